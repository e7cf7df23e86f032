package pricing

import (
	"math"

	"ridehail/internal/types"
)

const (
	gstRateOnCharges     = 0.05
	gstRateOnPlatformFee = 0.18
)

// regularFare prices an on-demand trip: base + distance beyond the included
// km + deadhead, surged, plus a flat platform fee and GST on both.
func regularFare(m FareMatrix, distanceKm float64, dh deadhead) FareBreakdown {
	chargeableKm := math.Max(0, distanceKm-m.BaseKmIncluded)

	b := FareBreakdown{
		BaseFare:        types.RoundMoney(m.BaseFare),
		DistanceFare:    types.RoundMoney(chargeableKm * m.PerKmRate),
		DeadheadCharges: dh.Charges,
		PlatformFee:     types.RoundMoney(m.PlatformFee),
	}

	surge := m.SurgeMultiplier
	if surge < 1 {
		surge = 1
	}
	surgeable := b.BaseFare + b.DistanceFare + b.DeadheadCharges
	b.SurgeCharges = types.RoundMoney(surgeable * (surge - 1))

	applyGST(&b)

	b.Details = dh.details()
	b.Details.RateID = m.ID
	b.Details.PerKmRate = m.PerKmRate
	b.Details.BaseKmIncluded = m.BaseKmIncluded
	b.Details.SurgeMultiplier = surge
	return b
}

// applyGST fills both GST lines and the total.
func applyGST(b *FareBreakdown) {
	taxable := b.BaseFare + b.DistanceFare + b.DeadheadCharges + b.SurgeCharges
	b.GSTOnCharges = types.RoundMoney(taxable * gstRateOnCharges)
	b.GSTOnPlatformFee = types.RoundMoney(b.PlatformFee * gstRateOnPlatformFee)
	b.TotalFare = types.RoundMoney(taxable + b.PlatformFee + b.GSTOnCharges + b.GSTOnPlatformFee)
}
