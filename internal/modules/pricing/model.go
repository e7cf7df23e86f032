// README: Fare configuration rows, trip input and the itemized fare breakdown.
package pricing

import (
	"errors"
	"time"

	"ridehail/internal/types"
)

type BookingType string

const (
	BookingRegular    BookingType = "regular"
	BookingRental     BookingType = "rental"
	BookingOutstation BookingType = "outstation"
	BookingAirport    BookingType = "airport"
)

func (b BookingType) Valid() bool {
	switch b {
	case BookingRegular, BookingRental, BookingOutstation, BookingAirport:
		return true
	}
	return false
}

var (
	// ErrConfigurationMissing means no active rate row exists for the
	// booking/vehicle combination. It needs an operator fix; never default to zero.
	ErrConfigurationMissing = errors.New("fare configuration missing")
	ErrRideNotFound         = errors.New("ride not found")
	ErrBreakdownNotFound    = errors.New("fare breakdown not found")
	ErrUnsupportedBooking   = errors.New("unsupported booking type")
	ErrInvalidTrip          = errors.New("invalid trip measurements")
)

// FareMatrix is the rate row for regular (on-demand) trips.
type FareMatrix struct {
	ID              types.ID
	BookingType     BookingType
	VehicleType     string
	BaseFare        float64
	PerKmRate       float64
	BaseKmIncluded  float64
	SurgeMultiplier float64
	PlatformFee     float64
}

// RentalFare is one hourly package.
type RentalFare struct {
	ID            types.ID
	VehicleType   string
	DurationHours int
	KmIncluded    float64
	BaseFare      float64
	ExtraKmRate   float64
	IsPopular     bool
	UpdatedAt     time.Time
}

type OutstationFare struct {
	ID                    types.ID
	VehicleType           string
	BaseFare              float64
	PerKmRate             float64
	DailyKmLimit          float64
	DriverAllowancePerDay float64
}

type AirportFare struct {
	ID            types.ID
	VehicleType   string
	CityToAirport float64
	AirportToCity float64
}

// Trip is the slice of a ride the fare engine needs.
type Trip struct {
	RideID        types.ID
	BookingType   BookingType
	VehicleType   string
	ScheduledTime *time.Time
}

type CalculateCommand struct {
	RideID          types.ID
	DistanceKm      float64
	DurationMinutes float64
	Pickup          types.Point
	Drop            types.Point
}

type EstimateCommand struct {
	BookingType   BookingType
	VehicleType   string
	Pickup        types.Point
	Drop          types.Point
	ScheduledTime *time.Time
}

// FareBreakdown is the itemized charge for one completed ride.
type FareBreakdown struct {
	ID               types.ID    `json:"id"`
	RideID           types.ID    `json:"ride_id"`
	BookingType      BookingType `json:"booking_type"`
	VehicleType      string      `json:"vehicle_type"`
	DistanceKm       float64     `json:"distance_km"`
	DurationMinutes  float64     `json:"duration_minutes"`
	BaseFare         float64     `json:"base_fare"`
	DistanceFare     float64     `json:"distance_fare"`
	TimeFare         float64     `json:"time_fare"`
	SurgeCharges     float64     `json:"surge_charges"`
	DeadheadCharges  float64     `json:"deadhead_charges"`
	PlatformFee      float64     `json:"platform_fee"`
	GSTOnCharges     float64     `json:"gst_on_charges"`
	GSTOnPlatformFee float64     `json:"gst_on_platform_fee"`
	ExtraKmCharges   float64     `json:"extra_km_charges"`
	DriverAllowance  float64     `json:"driver_allowance"`
	TotalFare        float64     `json:"total_fare"`
	Details          FareDetails `json:"details"`
	CreatedAt        time.Time   `json:"created_at"`
}

// FareDetails carries diagnostics about how the fare was derived.
type FareDetails struct {
	RateID               types.ID `json:"rate_id,omitempty"`
	ZoneDetected         string   `json:"zone_detected,omitempty"`
	DropInsideZone       *bool    `json:"drop_inside_zone,omitempty"`
	DistanceToBoundaryKm float64  `json:"distance_to_boundary_km,omitempty"`
	PerKmRate            float64  `json:"per_km_rate,omitempty"`
	BaseKmIncluded       float64  `json:"base_km_included,omitempty"`
	SurgeMultiplier      float64  `json:"surge_multiplier,omitempty"`
	PackageHours         int      `json:"package_hours,omitempty"`
	RequestedHours       int      `json:"requested_hours,omitempty"`
	IncludedKm           float64  `json:"included_km,omitempty"`
	ExtraKm              float64  `json:"extra_km,omitempty"`
	Days                 int      `json:"days,omitempty"`
	RoundTripKm          float64  `json:"round_trip_km,omitempty"`
	KmAllowanceUsed      bool     `json:"km_allowance_used,omitempty"`
	AllowancePerDay      float64  `json:"allowance_per_day,omitempty"`
	Direction            string   `json:"direction,omitempty"`
}
