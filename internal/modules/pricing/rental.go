package pricing

import (
	"math"

	"ridehail/internal/types"
)

// requestedRentalHours converts a trip duration into whole package hours.
func requestedRentalHours(durationMinutes float64) int {
	h := int(math.Ceil(durationMinutes / 60))
	if h < 1 {
		h = 1
	}
	return h
}

// selectRentalPackage picks the smallest package covering the requested
// hours, or the largest package if none does. Among packages of equal
// hours, popular ones win, then the most recently updated.
func selectRentalPackage(pkgs []RentalFare, hours int) (RentalFare, bool) {
	var best RentalFare
	found := false
	for _, p := range pkgs {
		if !found || betterPackage(p, best, hours) {
			best = p
			found = true
		}
	}
	return best, found
}

func betterPackage(p, cur RentalFare, hours int) bool {
	pCovers, curCovers := p.DurationHours >= hours, cur.DurationHours >= hours
	switch {
	case pCovers && !curCovers:
		return true
	case !pCovers && curCovers:
		return false
	case p.DurationHours != cur.DurationHours:
		if pCovers {
			return p.DurationHours < cur.DurationHours
		}
		return p.DurationHours > cur.DurationHours
	case p.IsPopular != cur.IsPopular:
		return p.IsPopular
	default:
		return p.UpdatedAt.After(cur.UpdatedAt)
	}
}

func rentalFare(p RentalFare, distanceKm float64, requestedHours int) FareBreakdown {
	extraKm := math.Max(0, distanceKm-p.KmIncluded)
	b := FareBreakdown{
		BaseFare:       types.RoundMoney(p.BaseFare),
		ExtraKmCharges: types.RoundMoney(extraKm * p.ExtraKmRate),
	}
	b.TotalFare = types.RoundMoney(b.BaseFare + b.ExtraKmCharges)
	b.Details = FareDetails{
		RateID:         p.ID,
		PackageHours:   p.DurationHours,
		RequestedHours: requestedHours,
		IncludedKm:     p.KmIncluded,
		ExtraKm:        types.RoundTo(extraKm, 3),
		PerKmRate:      p.ExtraKmRate,
	}
	return b
}
