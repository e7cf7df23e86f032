// README: Dispatch notifier; offers a requested ride to every nearby live driver.
package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"ridehail/internal/config"
	"ridehail/internal/logger"
	"ridehail/internal/modules/location"
	"ridehail/internal/modules/order"
	"ridehail/internal/types"
)

type Rides interface {
	Get(ctx context.Context, id types.ID) (*order.Ride, error)
	MarkNoDrivers(ctx context.Context, id types.ID) error
}

type Locator interface {
	FindNearby(ctx context.Context, q location.NearbyQuery) ([]location.NearbyDriver, error)
}

type Sink interface {
	CreateNotification(ctx context.Context, n Notification) error
}

type Contacts interface {
	CustomerContact(ctx context.Context, customerID types.ID) (CustomerContact, error)
}

type DispatchLog interface {
	RecordDispatch(ctx context.Context, rideID types.ID, at time.Time, driverIDs []types.ID) error
	GetDispatch(ctx context.Context, rideID types.ID) (*DispatchRecord, error)
}

type Service struct {
	rides    Rides
	locator  Locator
	sink     Sink
	contacts Contacts
	dispatch DispatchLog
	wakers   []Waker
	cfg      config.DispatchConfig
	log      logger.Logger
	now      func() time.Time
}

type Deps struct {
	Rides    Rides
	Locator  Locator
	Sink     Sink
	Contacts Contacts
	// Dispatch is optional; without it dispatches are not logged.
	Dispatch DispatchLog
	Wakers   []Waker
}

func NewService(deps Deps, cfg config.DispatchConfig, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Service{
		rides:    deps.Rides,
		locator:  deps.Locator,
		sink:     deps.Sink,
		contacts: deps.Contacts,
		dispatch: deps.Dispatch,
		wakers:   deps.Wakers,
		cfg:      cfg,
		log:      log.With("module", "matching"),
		now:      time.Now,
	}
}

// NotifyForRide offers a requested ride to nearby drivers. Rides that are no
// longer requested are left untouched. No coverage, or no notification
// getting through, leaves the ride in no_drivers_available.
func (s *Service) NotifyForRide(ctx context.Context, rideID types.ID) (DispatchResult, error) {
	ride, err := s.rides.Get(ctx, rideID)
	if err != nil {
		return DispatchResult{}, err
	}
	if ride.Status != order.StatusRequested {
		s.log.Debug("dispatch skipped", "ride_id", rideID, "status", ride.Status)
		return DispatchResult{}, nil
	}

	drivers, err := s.locator.FindNearby(ctx, location.NearbyQuery{
		Pickup:         ride.Pickup,
		VehicleType:    ride.VehicleType,
		RadiusKm:       s.cfg.RadiusKm,
		RecencyMinutes: s.cfg.RecencyMinutes,
	})
	if err != nil {
		return DispatchResult{}, fmt.Errorf("find nearby drivers: %w", err)
	}
	res := DispatchResult{DriversFound: len(drivers)}
	if len(drivers) == 0 {
		s.log.Info("no drivers in range", "ride_id", rideID, "radius_km", s.cfg.RadiusKm)
		return res, s.noCoverage(ctx, rideID)
	}

	contact := s.customerContact(ctx, ride.CustomerID)
	notified := s.notifyAll(ctx, ride, contact, drivers)
	res.NotificationsSent = len(notified)
	if len(notified) == 0 {
		s.log.Warn("every notification failed", "ride_id", rideID, "drivers_found", len(drivers))
		return res, s.noCoverage(ctx, rideID)
	}

	if s.dispatch != nil {
		if err := s.dispatch.RecordDispatch(ctx, rideID, s.now(), notified); err != nil {
			s.log.Warn("record dispatch failed", "ride_id", rideID, "error", err.Error())
		}
	}
	s.log.Info("ride dispatched", "ride_id", rideID, "drivers_found", res.DriversFound, "notifications_sent", res.NotificationsSent)
	return res, nil
}

// Dispatch returns what the dispatch log recorded for a ride.
func (s *Service) Dispatch(ctx context.Context, rideID types.ID) (*DispatchRecord, error) {
	if s.dispatch == nil {
		return nil, ErrNotDispatched
	}
	return s.dispatch.GetDispatch(ctx, rideID)
}

// notifyAll writes one notification per driver. Failures are independent and
// only reduce the returned set.
func (s *Service) notifyAll(ctx context.Context, ride *order.Ride, contact CustomerContact, drivers []location.NearbyDriver) []types.ID {
	limit := rate.Inf
	if s.cfg.NotifyInterval > 0 {
		limit = rate.Every(s.cfg.NotifyInterval)
	}
	limiter := rate.NewLimiter(limit, 1)

	var (
		g        errgroup.Group
		mu       sync.Mutex
		notified []types.ID
	)
	g.SetLimit(s.cfg.Workers)
	for _, d := range drivers {
		g.Go(func() error {
			if err := limiter.Wait(ctx); err != nil {
				return nil
			}
			offer := s.offer(ride, contact, d)
			if err := s.sink.CreateNotification(ctx, Notification{
				ID:          types.ID(uuid.NewString()),
				RecipientID: d.UserID,
				Type:        OfferType,
				Title:       "New ride request",
				Message:     fmt.Sprintf("Pickup %.1f km away (about %d min)", d.DistanceKm, d.EtaMinutes),
				Payload:     offer,
				CreatedAt:   offer.OfferedAt,
			}); err != nil {
				s.log.Warn("notification failed", "ride_id", ride.ID, "driver_id", d.DriverID, "error", err.Error())
				return nil
			}
			mu.Lock()
			notified = append(notified, d.DriverID)
			mu.Unlock()

			for _, w := range s.wakers {
				if err := w.Wake(ctx, d, offer); err != nil {
					s.log.Debug("wake failed", "ride_id", ride.ID, "driver_id", d.DriverID, "error", err.Error())
				}
			}
			return nil
		})
	}
	_ = g.Wait()
	return notified
}

func (s *Service) offer(ride *order.Ride, contact CustomerContact, d location.NearbyDriver) RideOffer {
	return RideOffer{
		Type:           OfferType,
		RideID:         ride.ID,
		DriverID:       d.DriverID,
		BookingType:    string(ride.BookingType),
		VehicleType:    ride.VehicleType,
		Pickup:         ride.Pickup,
		PickupAddress:  ride.PickupAddress,
		Dropoff:        ride.Dropoff,
		DropoffAddress: ride.DropoffAddress,
		EstimatedFare:  ride.EstimatedFare,
		ScheduledTime:  ride.ScheduledTime,
		Customer:       contact,
		DistanceKm:     d.DistanceKm,
		EtaMinutes:     d.EtaMinutes,
		OfferedAt:      s.now().UTC(),
	}
}

func (s *Service) customerContact(ctx context.Context, customerID types.ID) CustomerContact {
	if s.contacts == nil {
		return CustomerContact{}
	}
	c, err := s.contacts.CustomerContact(ctx, customerID)
	if err != nil {
		s.log.Warn("customer contact unavailable", "customer_id", customerID, "error", err.Error())
		return CustomerContact{}
	}
	return c
}

// noCoverage parks the ride in no_drivers_available. A ride that moved on in
// the meantime is left as it is.
func (s *Service) noCoverage(ctx context.Context, rideID types.ID) error {
	err := s.rides.MarkNoDrivers(ctx, rideID)
	if order.IsClaimed(err) {
		s.log.Info("ride moved on before no-coverage mark", "ride_id", rideID)
		return nil
	}
	return err
}
