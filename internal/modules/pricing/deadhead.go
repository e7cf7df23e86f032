package pricing

import (
	"ridehail/internal/geo"
	"ridehail/internal/types"
)

// deadhead is the surcharge for dropping outside the inner zone: half the
// distance back to its boundary, at the per-km rate.
type deadhead struct {
	Charges  float64
	Zone     string
	HasZone  bool
	Inside   bool
	Boundary float64
}

func computeDeadhead(zones []geo.Zone, drop types.Point, perKmRate float64) deadhead {
	inner, ok := geo.FindInnerZone(zones)
	if !ok {
		return deadhead{}
	}
	m := geo.Membership(drop, inner)
	dh := deadhead{Zone: inner.Name, HasZone: true, Inside: m.IsInside, Boundary: m.DistanceToBoundaryKm}
	if m.IsInside {
		return dh
	}
	dh.Charges = types.RoundMoney(m.DistanceToBoundaryKm / 2 * perKmRate)
	return dh
}

func (d deadhead) details() FareDetails {
	if !d.HasZone {
		return FareDetails{}
	}
	inside := d.Inside
	return FareDetails{
		ZoneDetected:         d.Zone,
		DropInsideZone:       &inside,
		DistanceToBoundaryKm: types.RoundTo(d.Boundary, 3),
	}
}
