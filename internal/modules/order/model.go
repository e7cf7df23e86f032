// README: Ride aggregate and status definitions.
package order

import (
	"errors"
	"time"

	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

type Status string

const (
	StatusNone          Status = "none"
	StatusRequested     Status = "requested"
	StatusAccepted      Status = "accepted"
	StatusDriverArrived Status = "driver_arrived"
	StatusInProgress    Status = "in_progress"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
	StatusNoDrivers     Status = "no_drivers_available"
)

const (
	ActorCustomer = "customer"
	ActorDriver   = "driver"
	ActorSystem   = "system"
)

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("ride not found")
	ErrConflict     = errors.New("ride state conflict")
	ErrActiveRide   = errors.New("customer has an active ride")
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidOTP   = errors.New("pickup otp mismatch")
	ErrNotAssigned  = errors.New("driver is not assigned to this ride")
)

// ErrDriverUnavailable means the driver is not online and verified, or already holds a ride.
var ErrDriverUnavailable = errors.New("driver cannot accept rides right now")

type Ride struct {
	ID                  types.ID            `json:"id"`
	CustomerID          types.ID            `json:"customer_id"`
	DriverID            *types.ID           `json:"driver_id,omitempty"`
	Status              Status              `json:"status"`
	StatusVersion       int                 `json:"status_version"`
	BookingType         pricing.BookingType `json:"booking_type"`
	VehicleType         string              `json:"vehicle_type"`
	Pickup              types.Point         `json:"pickup"`
	PickupAddress       string              `json:"pickup_address"`
	Dropoff             types.Point         `json:"dropoff"`
	DropoffAddress      string              `json:"dropoff_address"`
	EstimatedFare       float64             `json:"estimated_fare"`
	FareAmount          *float64            `json:"fare_amount,omitempty"`
	DistanceKm          *float64            `json:"distance_km,omitempty"`
	DurationMinutes     *float64            `json:"duration_minutes,omitempty"`
	PickupOTP           string              `json:"pickup_otp,omitempty"`
	DriverStatusPending bool                `json:"driver_status_pending"`
	ScheduledTime       *time.Time          `json:"scheduled_time,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	AcceptedAt          *time.Time          `json:"accepted_at,omitempty"`
	ArrivedAt           *time.Time          `json:"arrived_at,omitempty"`
	StartedAt           *time.Time          `json:"started_at,omitempty"`
	CompletedAt         *time.Time          `json:"completed_at,omitempty"`
	CancelledAt         *time.Time          `json:"cancelled_at,omitempty"`
	CancelReason        *string             `json:"cancel_reason,omitempty"`
}

// AssignedTo reports whether driverID holds the ride.
func (r *Ride) AssignedTo(driverID types.ID) bool {
	return r.DriverID != nil && *r.DriverID == driverID
}

type Event struct {
	ID         int64
	RideID     types.ID
	FromStatus Status
	ToStatus   Status
	ActorType  string
	ActorID    *types.ID
	CreatedAt  time.Time
}

// AllowedTransitions is the ride state machine. Rides only move forward,
// except that any live ride may be cancelled.
var AllowedTransitions = map[Status][]Status{
	StatusRequested:     {StatusAccepted, StatusNoDrivers, StatusCancelled},
	StatusAccepted:      {StatusDriverArrived, StatusCancelled},
	StatusDriverArrived: {StatusInProgress, StatusCancelled},
	StatusInProgress:    {StatusCompleted, StatusCancelled},
	StatusNoDrivers:     {StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// DriverEngaged reports whether the assigned driver is still on the ride.
func (s Status) DriverEngaged() bool {
	return s == StatusAccepted || s == StatusDriverArrived || s == StatusInProgress
}
