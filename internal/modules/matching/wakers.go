// README: Best-effort wake-ups sent after a driver's notification row is written.
package matching

import (
	"context"
	"fmt"
	"strconv"

	"firebase.google.com/go/v4/messaging"

	"ridehail/internal/modules/location"
	"ridehail/internal/types"
)

const rideExchange = "ride_topic"

// Waker nudges a driver about an offer through some out-of-band channel.
// The notification row is the record; wakers only shorten reaction time.
type Waker interface {
	Wake(ctx context.Context, driver location.NearbyDriver, offer RideOffer) error
}

// TokenSource resolves a user's push token. "" means none registered.
type TokenSource interface {
	DeviceToken(ctx context.Context, userID types.ID) (string, error)
}

type FCMWaker struct {
	client *messaging.Client
	tokens TokenSource
}

func NewFCMWaker(client *messaging.Client, tokens TokenSource) *FCMWaker {
	return &FCMWaker{client: client, tokens: tokens}
}

func (w *FCMWaker) Wake(ctx context.Context, driver location.NearbyDriver, offer RideOffer) error {
	token, err := w.tokens.DeviceToken(ctx, driver.UserID)
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	msg := &messaging.Message{
		Token: token,
		Data:  offerData(offer),
		Notification: &messaging.Notification{
			Title: "New ride request",
			Body:  fmt.Sprintf("Pickup %.1f km away, estimated fare %.2f", offer.DistanceKm, offer.EstimatedFare),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
		},
	}
	if _, err := w.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("sending FCM for ride %s: %w", offer.RideID, err)
	}
	return nil
}

// offerData flattens an offer into FCM's string map.
func offerData(o RideOffer) map[string]string {
	return map[string]string{
		"type":           o.Type,
		"ride_id":        string(o.RideID),
		"booking_type":   o.BookingType,
		"vehicle_type":   o.VehicleType,
		"pickup_lat":     strconv.FormatFloat(o.Pickup.Lat, 'f', 6, 64),
		"pickup_lng":     strconv.FormatFloat(o.Pickup.Lng, 'f', 6, 64),
		"pickup_address": o.PickupAddress,
		"dropoff_lat":    strconv.FormatFloat(o.Dropoff.Lat, 'f', 6, 64),
		"dropoff_lng":    strconv.FormatFloat(o.Dropoff.Lng, 'f', 6, 64),
		"estimated_fare": strconv.FormatFloat(o.EstimatedFare, 'f', 2, 64),
		"distance_km":    strconv.FormatFloat(o.DistanceKm, 'f', 1, 64),
		"eta_minutes":    strconv.Itoa(o.EtaMinutes),
	}
}

// Publisher is the slice of the message broker the AMQP waker needs.
type Publisher interface {
	PublishJSON(ctx context.Context, exchange, routingKey string, msg any) error
}

type AMQPWaker struct {
	pub Publisher
}

func NewAMQPWaker(pub Publisher) *AMQPWaker {
	return &AMQPWaker{pub: pub}
}

// Wake publishes the offer on ride_topic keyed by vehicle type, so driver
// gateways can bind only to the classes they serve.
func (w *AMQPWaker) Wake(ctx context.Context, _ location.NearbyDriver, offer RideOffer) error {
	return w.pub.PublishJSON(ctx, rideExchange, "ride.request."+offer.VehicleType, offer)
}
