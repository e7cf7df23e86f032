// README: Dispatch payloads shared by the notifier and whatever reads notifications.
package matching

import (
	"errors"
	"time"

	"ridehail/internal/types"
)

// OfferType tags every ride offer payload.
const OfferType = "new_ride_request"

var ErrNotDispatched = errors.New("ride has not been dispatched")

type CustomerContact struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// RideOffer is the payload written into a driver's notification, published
// on the broker and flattened into push data.
type RideOffer struct {
	Type           string          `json:"type"`
	RideID         types.ID        `json:"ride_id"`
	DriverID       types.ID        `json:"driver_id"`
	BookingType    string          `json:"booking_type"`
	VehicleType    string          `json:"vehicle_type"`
	Pickup         types.Point     `json:"pickup"`
	PickupAddress  string          `json:"pickup_address"`
	Dropoff        types.Point     `json:"dropoff"`
	DropoffAddress string          `json:"dropoff_address"`
	EstimatedFare  float64         `json:"estimated_fare"`
	ScheduledTime  *time.Time      `json:"scheduled_time,omitempty"`
	Customer       CustomerContact `json:"customer"`
	DistanceKm     float64         `json:"distance_km"`
	EtaMinutes     int             `json:"eta_minutes"`
	OfferedAt      time.Time       `json:"offered_at"`
}

type Notification struct {
	ID          types.ID
	RecipientID types.ID
	Type        string
	Title       string
	Message     string
	Payload     RideOffer
	CreatedAt   time.Time
}

type DispatchResult struct {
	DriversFound      int `json:"drivers_found"`
	NotificationsSent int `json:"notifications_sent"`
}

// DispatchRecord is what the dispatch log remembers about a ride.
type DispatchRecord struct {
	RideID          types.ID   `json:"ride_id"`
	DispatchedAt    time.Time  `json:"dispatched_at"`
	NotifiedDrivers []types.ID `json:"notified_drivers"`
}
