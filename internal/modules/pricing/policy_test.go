package pricing

import (
	"math"
	"testing"
	"time"

	"ridehail/internal/geo"
	"ridehail/internal/types"
)

var cityCenter = types.Point{Lat: 12.9716, Lng: 77.5946}

func northOf(p types.Point, km float64) types.Point {
	return types.Point{Lat: p.Lat + km/111.195, Lng: p.Lng}
}

func assertMoney(t *testing.T, field string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 0.005 {
		t.Errorf("%s = %.2f, want %.2f", field, got, want)
	}
}

func TestRegularFare(t *testing.T) {
	m := FareMatrix{BaseFare: 50, PerKmRate: 12, BaseKmIncluded: 4, SurgeMultiplier: 1, PlatformFee: 10}

	b := regularFare(m, 10, deadhead{})

	assertMoney(t, "base_fare", b.BaseFare, 50)
	assertMoney(t, "distance_fare", b.DistanceFare, 72)
	assertMoney(t, "surge_charges", b.SurgeCharges, 0)
	assertMoney(t, "deadhead_charges", b.DeadheadCharges, 0)
	assertMoney(t, "gst_on_charges", b.GSTOnCharges, 6.1)
	assertMoney(t, "gst_on_platform_fee", b.GSTOnPlatformFee, 1.8)
	assertMoney(t, "total_fare", b.TotalFare, 139.9)
	if b.TimeFare != 0 || b.ExtraKmCharges != 0 || b.DriverAllowance != 0 {
		t.Fatalf("unexpected non-regular components: %+v", b)
	}
}

func TestRegularFare_ShortTripOnlyBase(t *testing.T) {
	m := FareMatrix{BaseFare: 50, PerKmRate: 12, BaseKmIncluded: 4, SurgeMultiplier: 1}
	b := regularFare(m, 3.2, deadhead{})
	assertMoney(t, "distance_fare", b.DistanceFare, 0)
	assertMoney(t, "total_fare", b.TotalFare, 52.5)
}

func TestRegularFare_SurgeAppliesToDeadhead(t *testing.T) {
	m := FareMatrix{BaseFare: 50, PerKmRate: 12, BaseKmIncluded: 4, SurgeMultiplier: 1.5, PlatformFee: 10}
	b := regularFare(m, 10, deadhead{Charges: 24})

	assertMoney(t, "surge_charges", b.SurgeCharges, 73)
	assertMoney(t, "gst_on_charges", b.GSTOnCharges, 10.95)
	assertMoney(t, "total_fare", b.TotalFare, 50+72+24+73+10+10.95+1.8)
}

func TestRegularFare_MultiplierBelowOneIsNoSurge(t *testing.T) {
	m := FareMatrix{BaseFare: 50, PerKmRate: 12, BaseKmIncluded: 4, SurgeMultiplier: 0}
	b := regularFare(m, 10, deadhead{})
	assertMoney(t, "surge_charges", b.SurgeCharges, 0)
	if b.Details.SurgeMultiplier != 1 {
		t.Fatalf("surge multiplier detail = %v", b.Details.SurgeMultiplier)
	}
}

func TestComputeDeadhead(t *testing.T) {
	inner := geo.Zone{ID: "z1", Name: "Inner Ring", Center: cityCenter, RadiusKm: 5, IsActive: true}
	outer := geo.Zone{ID: "z2", Name: "Whitefield", Center: cityCenter, RadiusKm: 30, IsActive: true}

	t.Run("no inner zone configured", func(t *testing.T) {
		dh := computeDeadhead([]geo.Zone{outer}, northOf(cityCenter, 20), 12)
		if dh.Charges != 0 || dh.HasZone {
			t.Fatalf("got %+v", dh)
		}
		if d := dh.details(); d.ZoneDetected != "" || d.DropInsideZone != nil {
			t.Fatalf("details should be empty: %+v", d)
		}
	})

	t.Run("inside", func(t *testing.T) {
		dh := computeDeadhead([]geo.Zone{outer, inner}, northOf(cityCenter, 2), 12)
		if dh.Charges != 0 || !dh.Inside {
			t.Fatalf("got %+v", dh)
		}
	})

	t.Run("exactly on boundary", func(t *testing.T) {
		drop := northOf(cityCenter, 5)
		onEdge := inner
		onEdge.RadiusKm = geo.DistanceKm(drop, inner.Center)
		dh := computeDeadhead([]geo.Zone{onEdge}, drop, 12)
		if dh.Charges != 0 || !dh.Inside {
			t.Fatalf("boundary drop charged: %+v", dh)
		}
	})

	t.Run("outside charges half the way back", func(t *testing.T) {
		dh := computeDeadhead([]geo.Zone{inner}, northOf(cityCenter, 9), 12)
		assertMoney(t, "deadhead", dh.Charges, 24)
		d := dh.details()
		if d.ZoneDetected != "Inner Ring" || d.DropInsideZone == nil || *d.DropInsideZone {
			t.Fatalf("details = %+v", d)
		}
	})
}

func TestRequestedRentalHours(t *testing.T) {
	cases := map[float64]int{0: 1, 1: 1, 60: 1, 61: 2, 239: 4, 240: 4}
	for minutes, want := range cases {
		if got := requestedRentalHours(minutes); got != want {
			t.Errorf("requestedRentalHours(%v) = %d, want %d", minutes, got, want)
		}
	}
}

func TestSelectRentalPackage(t *testing.T) {
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := old.Add(48 * time.Hour)

	four := RentalFare{ID: "r4", DurationHours: 4, KmIncluded: 40}
	eight := RentalFare{ID: "r8", DurationHours: 8, KmIncluded: 80}
	eightPopular := RentalFare{ID: "r8p", DurationHours: 8, KmIncluded: 80, IsPopular: true, UpdatedAt: old}
	eightPopularNew := RentalFare{ID: "r8pn", DurationHours: 8, KmIncluded: 80, IsPopular: true, UpdatedAt: recent}
	twelve := RentalFare{ID: "r12", DurationHours: 12, KmIncluded: 120}

	tests := []struct {
		name  string
		pkgs  []RentalFare
		hours int
		want  types.ID
	}{
		{"smallest covering", []RentalFare{twelve, four, eight}, 5, "r8"},
		{"exact fit", []RentalFare{twelve, four, eight}, 4, "r4"},
		{"longer than any package", []RentalFare{four, twelve, eight}, 20, "r12"},
		{"popular wins tie", []RentalFare{eight, eightPopular}, 6, "r8p"},
		{"recent wins popular tie", []RentalFare{eightPopular, eightPopularNew}, 6, "r8pn"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := selectRentalPackage(tc.pkgs, tc.hours)
			if !ok || got.ID != tc.want {
				t.Fatalf("got %q (ok=%v), want %q", got.ID, ok, tc.want)
			}
		})
	}

	if _, ok := selectRentalPackage(nil, 2); ok {
		t.Fatal("expected no package from empty list")
	}
}

func TestRentalFare(t *testing.T) {
	p := RentalFare{DurationHours: 8, KmIncluded: 80, BaseFare: 1500, ExtraKmRate: 15}

	b := rentalFare(p, 95, 8)
	assertMoney(t, "extra_km_charges", b.ExtraKmCharges, 225)
	assertMoney(t, "total_fare", b.TotalFare, 1725)

	under := rentalFare(p, 60, 8)
	assertMoney(t, "extra_km_charges", under.ExtraKmCharges, 0)
	assertMoney(t, "total_fare", under.TotalFare, 1500)
	if under.PlatformFee != 0 || under.GSTOnCharges != 0 || under.DistanceFare != 0 {
		t.Fatalf("rental must not carry other components: %+v", under)
	}
}

func TestOutstationDays(t *testing.T) {
	now := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		start time.Time
		want  int
	}{
		{now, 1},
		{now.Add(6 * time.Hour), 1},
		{now.Add(-24 * time.Hour), 1},
		{now.Add(-24*time.Hour - time.Second), 2},
		{now.Add(-71 * time.Hour), 3},
	}
	for _, tc := range tests {
		if got := outstationDays(tc.start, now); got != tc.want {
			t.Errorf("outstationDays(%v) = %d, want %d", now.Sub(tc.start), got, tc.want)
		}
	}
}

func TestOutstationFare(t *testing.T) {
	f := OutstationFare{BaseFare: 500, PerKmRate: 12, DailyKmLimit: 300, DriverAllowancePerDay: 250}

	t.Run("within allowance charges full allowance", func(t *testing.T) {
		b := outstationFare(f, 120, 1)
		assertMoney(t, "distance_fare", b.DistanceFare, 300*12)
		assertMoney(t, "driver_allowance", b.DriverAllowance, 250)
		assertMoney(t, "total_fare", b.TotalFare, 500+3600+250)
		if !b.Details.KmAllowanceUsed || b.Details.RoundTripKm != 240 {
			t.Fatalf("details = %+v", b.Details)
		}
	})

	t.Run("beyond allowance charges whole round trip", func(t *testing.T) {
		b := outstationFare(f, 200, 1)
		assertMoney(t, "distance_fare", b.DistanceFare, 400*12)
		assertMoney(t, "total_fare", b.TotalFare, 500+4800+250)
		if b.Details.KmAllowanceUsed {
			t.Fatal("allowance should not apply")
		}
	})

	t.Run("multi day scales allowance", func(t *testing.T) {
		b := outstationFare(f, 200, 2)
		assertMoney(t, "distance_fare", b.DistanceFare, 600*12)
		assertMoney(t, "driver_allowance", b.DriverAllowance, 500)
	})
}

func TestAirportFare(t *testing.T) {
	f := AirportFare{CityToAirport: 800, AirportToCity: 950}
	airport := northOf(cityCenter, 30)
	downtown := northOf(cityCenter, 1)

	toAirport := airportFare(f, downtown, airport, cityCenter)
	if toAirport.Details.Direction != DirectionCityToAirport {
		t.Fatalf("direction = %s", toAirport.Details.Direction)
	}
	assertMoney(t, "total_fare", toAirport.TotalFare, 800)

	fromAirport := airportFare(f, airport, downtown, cityCenter)
	if fromAirport.Details.Direction != DirectionAirportToCity {
		t.Fatalf("direction = %s", fromAirport.Details.Direction)
	}
	assertMoney(t, "total_fare", fromAirport.TotalFare, 950)

	if got := airportDirection(downtown, downtown, cityCenter); got != DirectionCityToAirport {
		t.Fatalf("tie direction = %s", got)
	}
}
