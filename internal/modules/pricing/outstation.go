package pricing

import (
	"math"
	"time"

	"ridehail/internal/types"
)

// roundTripKm derives the billed round trip from the measured one-way
// distance by doubling it. The return leg is not measured.
func roundTripKm(oneWayKm float64) float64 {
	return 2 * oneWayKm
}

// outstationDays counts started 24h periods since the trip start, minimum 1.
func outstationDays(start, now time.Time) int {
	days := int(math.Ceil(now.Sub(start).Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// outstationFare charges the full daily km allowance when the round trip fits
// inside it, otherwise the whole round trip. It is all-or-nothing, not a
// marginal rate on the excess.
func outstationFare(f OutstationFare, oneWayKm float64, days int) FareBreakdown {
	trip := roundTripKm(oneWayKm)
	allowanceKm := f.DailyKmLimit * float64(days)

	billedKm := trip
	withinAllowance := trip <= allowanceKm
	if withinAllowance {
		billedKm = allowanceKm
	}

	b := FareBreakdown{
		BaseFare:        types.RoundMoney(f.BaseFare),
		DistanceFare:    types.RoundMoney(billedKm * f.PerKmRate),
		DriverAllowance: types.RoundMoney(float64(days) * f.DriverAllowancePerDay),
	}
	b.TotalFare = types.RoundMoney(b.BaseFare + b.DistanceFare + b.DriverAllowance)
	b.Details = FareDetails{
		RateID:          f.ID,
		PerKmRate:       f.PerKmRate,
		Days:            days,
		RoundTripKm:     types.RoundTo(trip, 3),
		IncludedKm:      allowanceKm,
		KmAllowanceUsed: withinAllowance,
		AllowancePerDay: f.DriverAllowancePerDay,
	}
	return b
}
