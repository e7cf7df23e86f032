// README: Driver, location sample and nearby-driver result types.
package location

import (
	"errors"
	"time"

	"ridehail/internal/types"
)

type DriverStatus string

const (
	DriverOffline   DriverStatus = "offline"
	DriverOnline    DriverStatus = "online"
	DriverBusy      DriverStatus = "busy"
	DriverSuspended DriverStatus = "suspended"
)

// VehicleTypeAny disables the vehicle-type filter in FindNearby.
const VehicleTypeAny = "any"

// etaMinutesPerKm is a fixed average-speed heuristic (20 km/h), not traffic data.
const etaMinutesPerKm = 3

var (
	ErrDriverNotFound  = errors.New("driver not found")
	ErrDriverSuspended = errors.New("driver is suspended")
	ErrInvalidStatus   = errors.New("invalid driver status")
	ErrDriverBusy      = errors.New("driver is on a ride")
)

type Driver struct {
	ID          types.ID     `json:"id"`
	UserID      types.ID     `json:"user_id"`
	Status      DriverStatus `json:"status"`
	IsVerified  bool         `json:"is_verified"`
	VehicleType string       `json:"vehicle_type"`
}

// Sample is one reported position of a user. Only the most recent sample per
// owner matters for dispatch.
type Sample struct {
	OwnerID    types.ID    `json:"owner_id"`
	Position   types.Point `json:"position"`
	Heading    *float64    `json:"heading,omitempty"`
	Speed      *float64    `json:"speed,omitempty"`
	Accuracy   *float64    `json:"accuracy,omitempty"`
	CapturedAt time.Time   `json:"captured_at"`
}

type NearbyQuery struct {
	Pickup         types.Point
	VehicleType    string
	RadiusKm       float64
	RecencyMinutes float64
}

// NearbyDriver is a dispatch candidate. DistanceKm is rounded to one decimal.
type NearbyDriver struct {
	DriverID    types.ID    `json:"driver_id"`
	UserID      types.ID    `json:"user_id"`
	VehicleType string      `json:"vehicle_type"`
	Position    types.Point `json:"position"`
	DistanceKm  float64     `json:"distance_km"`
	EtaMinutes  int         `json:"eta_minutes"`
	SampledAt   time.Time   `json:"sampled_at"`
}
