package geo

import (
	"math"
	"testing"

	"ridehail/internal/types"
)

var center = types.Point{Lat: 12.9716, Lng: 77.5946}

func TestMembership_InsideOutside(t *testing.T) {
	z := Zone{Name: "Inner Ring", Center: center, RadiusKm: 10, IsActive: true}

	in := Membership(types.Point{Lat: 12.98, Lng: 77.60}, z)
	if !in.IsInside || in.DistanceToBoundaryKm != 0 {
		t.Fatalf("expected inside with zero boundary distance, got %+v", in)
	}

	// ~0.2 degrees of latitude is ~22km north of the centre.
	out := Membership(types.Point{Lat: center.Lat + 0.2, Lng: center.Lng}, z)
	if out.IsInside {
		t.Fatalf("expected outside, got %+v", out)
	}
	want := out.DistanceToCenterKm - z.RadiusKm
	if math.Abs(out.DistanceToBoundaryKm-want) > 1e-9 {
		t.Errorf("DistanceToBoundaryKm = %f, want %f", out.DistanceToBoundaryKm, want)
	}
}

func TestMembership_BoundaryIsInside(t *testing.T) {
	drop := types.Point{Lat: 13.05, Lng: 77.62}
	z := Zone{Name: "inner", Center: center, RadiusKm: DistanceKm(drop, center)}

	m := Membership(drop, z)
	if !m.IsInside {
		t.Fatalf("point on boundary must be inside: %+v", m)
	}
	if m.DistanceToBoundaryKm != 0 {
		t.Errorf("DistanceToBoundaryKm = %f, want 0", m.DistanceToBoundaryKm)
	}
}

func TestFindInnerZone(t *testing.T) {
	tests := []struct {
		name   string
		zones  []Zone
		wantID types.ID
		wantOK bool
	}{
		{
			name:   "no zones",
			wantOK: false,
		},
		{
			name:   "name fallback inner",
			zones:  []Zone{{ID: "a", Name: "Airport"}, {ID: "b", Name: "City INNER core"}},
			wantID: "b",
			wantOK: true,
		},
		{
			name:   "name fallback ring",
			zones:  []Zone{{ID: "a", Name: "Outer belt"}, {ID: "b", Name: "Ring road"}},
			wantID: "b",
			wantOK: true,
		},
		{
			name:   "explicit role beats name",
			zones:  []Zone{{ID: "a", Name: "inner old"}, {ID: "b", Name: "Downtown", Role: ZoneRoleInner}},
			wantID: "b",
			wantOK: true,
		},
		{
			name:   "first match wins",
			zones:  []Zone{{ID: "a", Name: "inner 1"}, {ID: "b", Name: "inner 2"}},
			wantID: "a",
			wantOK: true,
		},
		{
			name:   "nothing qualifies",
			zones:  []Zone{{ID: "a", Name: "Suburbs"}},
			wantOK: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z, ok := FindInnerZone(tt.zones)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && z.ID != tt.wantID {
				t.Errorf("zone = %s, want %s", z.ID, tt.wantID)
			}
		})
	}
}
