// README: Ride service implements state transitions, acceptance and completion.
package order

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/google/uuid"

	"ridehail/internal/logger"
	"ridehail/internal/modules/location"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

const reconcileBatch = 100

type RideStore interface {
	Create(ctx context.Context, r *Ride) error
	Get(ctx context.Context, id types.ID) (*Ride, error)
	Accept(ctx context.Context, id, driverID types.ID) (bool, error)
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error)
	SetDriverStatusPending(ctx context.Context, id types.ID, pending bool) error
	ListDriverStatusPending(ctx context.Context, limit int) ([]Ride, error)
	AppendEvent(ctx context.Context, e *Event) error
	HasActiveByCustomer(ctx context.Context, customerID types.ID) (bool, error)
}

// Drivers looks up a driver and flips their availability around a ride.
type Drivers interface {
	Get(ctx context.Context, driverID types.ID) (*location.Driver, error)
	MarkBusy(ctx context.Context, driverID types.ID) error
	MarkAvailable(ctx context.Context, driverID types.ID) error
}

type Fares interface {
	Estimate(ctx context.Context, cmd pricing.EstimateCommand) (*pricing.FareBreakdown, error)
	CalculateAndStore(ctx context.Context, cmd pricing.CalculateCommand) (*pricing.FareBreakdown, error)
}

type Service struct {
	store   RideStore
	drivers Drivers
	fares   Fares
	log     logger.Logger
	now     func() time.Time
}

func NewService(store RideStore, drivers Drivers, fares Fares, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:   store,
		drivers: drivers,
		fares:   fares,
		log:     log.With("module", "order"),
		now:     time.Now,
	}
}

type CreateCommand struct {
	CustomerID     types.ID
	BookingType    pricing.BookingType
	VehicleType    string
	Pickup         types.Point
	PickupAddress  string
	Dropoff        types.Point
	DropoffAddress string
	ScheduledTime  *time.Time
}

type AcceptCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type AcceptResult struct {
	Ride *Ride `json:"ride"`
	// DriverStatusPending is set when the driver could not be marked busy.
	// The reconciler retries the flip.
	DriverStatusPending bool `json:"driver_status_pending"`
}

type ArriveCommand struct {
	RideID   types.ID
	DriverID types.ID
}

type StartCommand struct {
	RideID   types.ID
	DriverID types.ID
	OTP      string
}

type CompleteCommand struct {
	RideID          types.ID
	DriverID        types.ID
	DistanceKm      float64
	DurationMinutes float64
	// Drop overrides the booked drop-off with where the trip actually ended.
	Drop *types.Point
}

type CompleteResult struct {
	Ride *Ride                  `json:"ride"`
	Fare *pricing.FareBreakdown `json:"fare"`
}

type CancelCommand struct {
	RideID    types.ID
	ActorType string
	ActorID   types.ID
	Reason    string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Ride, error) {
	if cmd.CustomerID == "" || cmd.VehicleType == "" || !cmd.BookingType.Valid() {
		return nil, ErrBadRequest
	}
	active, err := s.store.HasActiveByCustomer(ctx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, ErrActiveRide
	}

	now := s.now()
	r := &Ride{
		ID:             types.ID(uuid.NewString()),
		CustomerID:     cmd.CustomerID,
		Status:         StatusRequested,
		BookingType:    cmd.BookingType,
		VehicleType:    cmd.VehicleType,
		Pickup:         cmd.Pickup,
		PickupAddress:  cmd.PickupAddress,
		Dropoff:        cmd.Dropoff,
		DropoffAddress: cmd.DropoffAddress,
		PickupOTP:      newOTP(),
		ScheduledTime:  cmd.ScheduledTime,
		CreatedAt:      now,
	}
	if s.fares != nil {
		est, err := s.fares.Estimate(ctx, pricing.EstimateCommand{
			BookingType:   cmd.BookingType,
			VehicleType:   cmd.VehicleType,
			Pickup:        cmd.Pickup,
			Drop:          cmd.Dropoff,
			ScheduledTime: cmd.ScheduledTime,
		})
		if err != nil {
			s.log.Warn("fare estimate unavailable", "vehicle_type", cmd.VehicleType, "booking_type", cmd.BookingType, "error", err.Error())
		} else {
			r.EstimatedFare = est.TotalFare
		}
	}

	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusRequested,
		ActorType:  ActorCustomer,
		ActorID:    &cmd.CustomerID,
		CreatedAt:  now,
	})
	return r, nil
}

// Accept assigns the driver with a single conditional update. Only online,
// verified drivers may accept. Losing the race is ErrConflict; a driver who
// already holds an active ride gets ErrDriverUnavailable. Marking the driver
// busy afterwards is best-effort: a failure leaves the ride flagged for the
// reconciler instead of undoing the accept.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*AcceptResult, error) {
	if cmd.RideID == "" || cmd.DriverID == "" {
		return nil, ErrBadRequest
	}
	if err := s.checkCanAccept(ctx, cmd.DriverID); err != nil {
		return nil, err
	}
	won, err := s.store.Accept(ctx, cmd.RideID, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if !won {
		r, err := s.store.Get(ctx, cmd.RideID)
		if err != nil {
			return nil, err
		}
		if r.Status == StatusRequested && r.DriverID == nil {
			return nil, ErrDriverUnavailable
		}
		return nil, ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     cmd.RideID,
		FromStatus: StatusRequested,
		ToStatus:   StatusAccepted,
		ActorType:  ActorDriver,
		ActorID:    &cmd.DriverID,
		CreatedAt:  s.now(),
	})

	res := &AcceptResult{}
	if s.drivers != nil {
		if err := s.drivers.MarkBusy(ctx, cmd.DriverID); err != nil {
			s.log.Error("mark driver busy failed", err, "ride_id", cmd.RideID, "driver_id", cmd.DriverID)
			res.DriverStatusPending = true
			if err := s.store.SetDriverStatusPending(ctx, cmd.RideID, true); err != nil {
				s.log.Error("flag driver status pending failed", err, "ride_id", cmd.RideID)
			}
		}
	}

	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	r.DriverStatusPending = r.DriverStatusPending || res.DriverStatusPending
	res.Ride = r
	s.log.Info("ride accepted", "ride_id", cmd.RideID, "driver_id", cmd.DriverID, "driver_status_pending", res.DriverStatusPending)
	return res, nil
}

func (s *Service) Arrive(ctx context.Context, cmd ArriveCommand) (*Ride, error) {
	r, err := s.assigned(ctx, cmd.RideID, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, r, StatusDriverArrived, ActorDriver, &cmd.DriverID, nil); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, r.ID)
}

// Start begins the trip once the customer's pickup code checks out.
func (s *Service) Start(ctx context.Context, cmd StartCommand) (*Ride, error) {
	r, err := s.assigned(ctx, cmd.RideID, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusInProgress) {
		return nil, ErrInvalidState
	}
	if cmd.OTP == "" || cmd.OTP != r.PickupOTP {
		return nil, ErrInvalidOTP
	}
	if err := s.transition(ctx, r, StatusInProgress, ActorDriver, &cmd.DriverID, nil); err != nil {
		return nil, err
	}
	return s.store.Get(ctx, r.ID)
}

// Complete closes the trip and prices it. Winning the in_progress to completed
// transition is what makes this the only fare calculation for the ride.
func (s *Service) Complete(ctx context.Context, cmd CompleteCommand) (*CompleteResult, error) {
	if !finiteNonNegative(cmd.DistanceKm) || !finiteNonNegative(cmd.DurationMinutes) {
		return nil, ErrBadRequest
	}
	r, err := s.assigned(ctx, cmd.RideID, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, r, StatusCompleted, ActorDriver, &cmd.DriverID, nil); err != nil {
		return nil, err
	}
	s.release(ctx, r)

	res := &CompleteResult{}
	if s.fares != nil {
		drop := r.Dropoff
		if cmd.Drop != nil {
			drop = *cmd.Drop
		}
		fare, err := s.fares.CalculateAndStore(ctx, pricing.CalculateCommand{
			RideID:          r.ID,
			DistanceKm:      cmd.DistanceKm,
			DurationMinutes: cmd.DurationMinutes,
			Pickup:          r.Pickup,
			Drop:            drop,
		})
		if err != nil {
			return nil, fmt.Errorf("ride %s completed but fare failed: %w", r.ID, err)
		}
		res.Fare = fare
	}

	res.Ride, err = s.store.Get(ctx, r.ID)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (*Ride, error) {
	r, err := s.store.Get(ctx, cmd.RideID)
	if err != nil {
		return nil, err
	}
	switch cmd.ActorType {
	case ActorCustomer:
		if r.CustomerID != cmd.ActorID {
			return nil, ErrNotAssigned
		}
	case ActorDriver:
		if !r.AssignedTo(cmd.ActorID) {
			return nil, ErrNotAssigned
		}
	case ActorSystem:
	default:
		return nil, ErrBadRequest
	}

	var reason *string
	if cmd.Reason != "" {
		reason = &cmd.Reason
	}
	var actorID *types.ID
	if cmd.ActorID != "" {
		actorID = &cmd.ActorID
	}
	if err := s.transition(ctx, r, StatusCancelled, cmd.ActorType, actorID, reason); err != nil {
		return nil, err
	}
	if r.DriverID != nil && r.Status.DriverEngaged() {
		s.release(ctx, r)
	}
	return s.store.Get(ctx, r.ID)
}

// MarkNoDrivers records that a dispatch found no coverage for a requested ride.
func (s *Service) MarkNoDrivers(ctx context.Context, id types.ID) error {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.transition(ctx, r, StatusNoDrivers, ActorSystem, nil, nil)
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Ride, error) {
	return s.store.Get(ctx, id)
}

// checkCanAccept lets only online, verified drivers take a ride.
func (s *Service) checkCanAccept(ctx context.Context, driverID types.ID) error {
	if s.drivers == nil {
		return nil
	}
	d, err := s.drivers.Get(ctx, driverID)
	if err != nil {
		return err
	}
	switch {
	case d.Status == location.DriverSuspended:
		return location.ErrDriverSuspended
	case d.Status != location.DriverOnline || !d.IsVerified:
		return ErrDriverUnavailable
	}
	return nil
}

// ReconcilePending retries driver busy flips that failed after acceptance.
// Each ride is re-read first; rides that ended meanwhile, and rides whose
// driver was suspended, just get their flag cleared.
func (s *Service) ReconcilePending(ctx context.Context) (int, error) {
	if s.drivers == nil {
		return 0, nil
	}
	rides, err := s.store.ListDriverStatusPending(ctx, reconcileBatch)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, listed := range rides {
		r, err := s.store.Get(ctx, listed.ID)
		if err != nil {
			s.log.Warn("reload pending ride", "ride_id", listed.ID, "error", err.Error())
			continue
		}
		if r.DriverID != nil && r.Status.DriverEngaged() {
			err := s.drivers.MarkBusy(ctx, *r.DriverID)
			switch {
			case errors.Is(err, location.ErrDriverSuspended):
				s.log.Warn("driver suspended during ride; clearing pending flag", "ride_id", r.ID, "driver_id", *r.DriverID)
			case err != nil:
				s.log.Warn("driver status still pending", "ride_id", r.ID, "driver_id", *r.DriverID, "error", err.Error())
				continue
			}
		}
		if err := s.store.SetDriverStatusPending(ctx, r.ID, false); err != nil {
			return fixed, err
		}
		fixed++
	}
	return fixed, nil
}

func (s *Service) RunReconciler(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ReconcilePending(ctx)
			if err != nil {
				s.log.Error("reconcile pending driver status", err)
				continue
			}
			if n > 0 {
				s.log.Info("reconciled driver status", "rides", n)
			}
		}
	}
}

func (s *Service) assigned(ctx context.Context, rideID, driverID types.ID) (*Ride, error) {
	r, err := s.store.Get(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !r.AssignedTo(driverID) {
		return nil, ErrNotAssigned
	}
	return r, nil
}

func (s *Service) transition(ctx context.Context, r *Ride, to Status, actorType string, actorID *types.ID, reason *string) error {
	if !CanTransition(r.Status, to) {
		return ErrInvalidState
	}
	ok, err := s.store.UpdateStatus(ctx, r.ID, r.Status, to, r.StatusVersion, reason)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		RideID:     r.ID,
		FromStatus: r.Status,
		ToStatus:   to,
		ActorType:  actorType,
		ActorID:    actorID,
		CreatedAt:  s.now(),
	})
	return nil
}

func (s *Service) release(ctx context.Context, r *Ride) {
	if s.drivers == nil || r.DriverID == nil {
		return
	}
	if err := s.drivers.MarkAvailable(ctx, *r.DriverID); err != nil {
		s.log.Warn("release driver failed", "ride_id", r.ID, "driver_id", *r.DriverID, "error", err.Error())
	}
}

// IsClaimed reports whether err means another actor moved the ride first.
func IsClaimed(err error) bool {
	return errors.Is(err, ErrConflict) || errors.Is(err, ErrInvalidState)
}

func finiteNonNegative(v float64) bool {
	return v >= 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func newOTP() string {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "0000"
	}
	return fmt.Sprintf("%04d", n.Int64())
}
