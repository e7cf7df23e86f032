// README: Ride handlers for the request -> accept -> arrive -> start -> complete lifecycle.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/modules/location"
	"ridehail/internal/modules/order"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

type RideService interface {
	Create(ctx context.Context, cmd order.CreateCommand) (*order.Ride, error)
	Get(ctx context.Context, id types.ID) (*order.Ride, error)
	Accept(ctx context.Context, cmd order.AcceptCommand) (*order.AcceptResult, error)
	Arrive(ctx context.Context, cmd order.ArriveCommand) (*order.Ride, error)
	Start(ctx context.Context, cmd order.StartCommand) (*order.Ride, error)
	Complete(ctx context.Context, cmd order.CompleteCommand) (*order.CompleteResult, error)
	Cancel(ctx context.Context, cmd order.CancelCommand) (*order.Ride, error)
}

// DriverDirectory resolves the authenticated user to their driver record.
type DriverDirectory interface {
	DriverByUser(ctx context.Context, userID types.ID) (*location.Driver, error)
}

type OrderHandler struct {
	order   RideService
	drivers DriverDirectory
}

func NewOrderHandler(svc RideService, drivers DriverDirectory) *OrderHandler {
	return &OrderHandler{order: svc, drivers: drivers}
}

type createRideReq struct {
	BookingType    pricing.BookingType `json:"booking_type"`
	VehicleType    string              `json:"vehicle_type"`
	Pickup         types.Point         `json:"pickup"`
	PickupAddress  string              `json:"pickup_address"`
	Dropoff        types.Point         `json:"dropoff"`
	DropoffAddress string              `json:"dropoff_address"`
	ScheduledTime  *time.Time          `json:"scheduled_time"`
}

// Create books a ride for the caller.
func (h *OrderHandler) Create(c *gin.Context) {
	if middleware.CallerRole(c) == middleware.RoleDriver {
		writeError(c, http.StatusForbidden, "forbidden: drivers cannot request rides")
		return
	}
	var req createRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.VehicleType == "" || !req.BookingType.Valid() {
		writeError(c, http.StatusBadRequest, "missing or invalid booking_type/vehicle_type")
		return
	}
	if !finitePoint(req.Pickup) || !finitePoint(req.Dropoff) {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	r, err := h.order.Create(c.Request.Context(), order.CreateCommand{
		CustomerID:     types.ID(middleware.CallerUID(c)),
		BookingType:    req.BookingType,
		VehicleType:    req.VehicleType,
		Pickup:         req.Pickup,
		PickupAddress:  req.PickupAddress,
		Dropoff:        req.Dropoff,
		DropoffAddress: req.DropoffAddress,
		ScheduledTime:  req.ScheduledTime,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, r)
}

// Get shows a ride to its customer, its assigned driver (without the pickup
// code) or an admin.
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.order.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	asDriver, ok := authorizeRideView(c, r, h.drivers)
	if !ok {
		return
	}
	if asDriver {
		masked := *r
		masked.PickupOTP = ""
		r = &masked
	}
	writeJSON(c, http.StatusOK, r)
}

func (h *OrderHandler) Accept(c *gin.Context) {
	id, d, ok := h.driverAction(c)
	if !ok {
		return
	}
	res, err := h.order.Accept(c.Request.Context(), order.AcceptCommand{RideID: id, DriverID: d.ID})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	res.Ride.PickupOTP = ""
	writeJSON(c, http.StatusOK, res)
}

func (h *OrderHandler) Arrive(c *gin.Context) {
	id, d, ok := h.driverAction(c)
	if !ok {
		return
	}
	r, err := h.order.Arrive(c.Request.Context(), order.ArriveCommand{RideID: id, DriverID: d.ID})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	r.PickupOTP = ""
	writeJSON(c, http.StatusOK, r)
}

type startRideReq struct {
	OTP string `json:"otp"`
}

func (h *OrderHandler) Start(c *gin.Context) {
	id, d, ok := h.driverAction(c)
	if !ok {
		return
	}
	var req startRideReq
	if err := c.ShouldBindJSON(&req); err != nil || req.OTP == "" {
		writeError(c, http.StatusBadRequest, "missing otp")
		return
	}
	r, err := h.order.Start(c.Request.Context(), order.StartCommand{RideID: id, DriverID: d.ID, OTP: req.OTP})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	r.PickupOTP = ""
	writeJSON(c, http.StatusOK, r)
}

type completeRideReq struct {
	DistanceKm      float64      `json:"distance_km"`
	DurationMinutes float64      `json:"duration_minutes"`
	Drop            *types.Point `json:"drop"`
}

func (h *OrderHandler) Complete(c *gin.Context) {
	id, d, ok := h.driverAction(c)
	if !ok {
		return
	}
	var req completeRideReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !finiteNonNegative(req.DistanceKm) || !finiteNonNegative(req.DurationMinutes) {
		writeError(c, http.StatusBadRequest, "distance_km and duration_minutes must be non-negative")
		return
	}
	if req.Drop != nil && !finitePoint(*req.Drop) {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	res, err := h.order.Complete(c.Request.Context(), order.CompleteCommand{
		RideID:          id,
		DriverID:        d.ID,
		DistanceKm:      req.DistanceKm,
		DurationMinutes: req.DurationMinutes,
		Drop:            req.Drop,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	res.Ride.PickupOTP = ""
	writeJSON(c, http.StatusOK, res)
}

type cancelRideReq struct {
	Reason string `json:"reason"`
}

// Cancel acts as whoever the caller is: the customer, the assigned driver, or
// the system when an admin does it.
func (h *OrderHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req cancelRideReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	cmd := order.CancelCommand{RideID: id, Reason: req.Reason}
	switch middleware.CallerRole(c) {
	case middleware.RoleAdmin:
		cmd.ActorType = order.ActorSystem
		cmd.ActorID = types.ID(middleware.CallerUID(c))
	case middleware.RoleDriver:
		d, ok := h.callerDriver(c)
		if !ok {
			return
		}
		cmd.ActorType = order.ActorDriver
		cmd.ActorID = d.ID
	default:
		cmd.ActorType = order.ActorCustomer
		cmd.ActorID = types.ID(middleware.CallerUID(c))
	}
	r, err := h.order.Cancel(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if cmd.ActorType == order.ActorDriver {
		r.PickupOTP = ""
	}
	writeJSON(c, http.StatusOK, r)
}

// driverAction validates the path id and resolves the calling driver. It
// writes the error response itself.
func (h *OrderHandler) driverAction(c *gin.Context) (types.ID, *location.Driver, bool) {
	id, ok := pathID(c)
	if !ok {
		return "", nil, false
	}
	if !requireRole(c, middleware.RoleDriver) {
		return "", nil, false
	}
	d, ok := h.callerDriver(c)
	if !ok {
		return "", nil, false
	}
	return id, d, true
}

func (h *OrderHandler) callerDriver(c *gin.Context) (*location.Driver, bool) {
	return callerDriver(c, h.drivers)
}
