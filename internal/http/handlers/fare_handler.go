// README: Fare handlers: estimates, stored breakdowns and admin recalculation.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/modules/order"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

type FareService interface {
	Estimate(ctx context.Context, cmd pricing.EstimateCommand) (*pricing.FareBreakdown, error)
	CalculateAndStore(ctx context.Context, cmd pricing.CalculateCommand) (*pricing.FareBreakdown, error)
	Get(ctx context.Context, rideID types.ID) (*pricing.FareBreakdown, error)
}

type FareHandler struct {
	pricing FareService
	rides   RideReader
	drivers DriverDirectory
}

func NewFareHandler(svc FareService, rides RideReader, drivers DriverDirectory) *FareHandler {
	return &FareHandler{pricing: svc, rides: rides, drivers: drivers}
}

type estimateReq struct {
	BookingType   pricing.BookingType `json:"booking_type"`
	VehicleType   string              `json:"vehicle_type"`
	Pickup        types.Point         `json:"pickup"`
	Drop          types.Point         `json:"drop"`
	ScheduledTime *time.Time          `json:"scheduled_time"`
}

// Estimate prices a prospective trip without storing anything.
func (h *FareHandler) Estimate(c *gin.Context) {
	var req estimateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.VehicleType == "" {
		writeError(c, http.StatusBadRequest, "missing vehicle_type")
		return
	}
	if !finitePoint(req.Pickup) || !finitePoint(req.Drop) {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	fb, err := h.pricing.Estimate(c.Request.Context(), pricing.EstimateCommand{
		BookingType:   req.BookingType,
		VehicleType:   req.VehicleType,
		Pickup:        req.Pickup,
		Drop:          req.Drop,
		ScheduledTime: req.ScheduledTime,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, fb)
}

type recalculateReq struct {
	DistanceKm      float64      `json:"distance_km"`
	DurationMinutes float64      `json:"duration_minutes"`
	Pickup          *types.Point `json:"pickup"`
	Drop            *types.Point `json:"drop"`
}

// Recalculate reprices a completed ride and replaces its stored breakdown.
// Pickup and drop default to the booked coordinates.
func (h *FareHandler) Recalculate(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if !requireRole(c, middleware.RoleAdmin) {
		return
	}
	var req recalculateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !finiteNonNegative(req.DistanceKm) || !finiteNonNegative(req.DurationMinutes) {
		writeError(c, http.StatusBadRequest, "distance_km and duration_minutes must be non-negative")
		return
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if r.Status != order.StatusCompleted {
		writeError(c, http.StatusConflict, "fare can only be recalculated for completed rides")
		return
	}
	cmd := pricing.CalculateCommand{
		RideID:          id,
		DistanceKm:      req.DistanceKm,
		DurationMinutes: req.DurationMinutes,
		Pickup:          r.Pickup,
		Drop:            r.Dropoff,
	}
	if req.Pickup != nil {
		cmd.Pickup = *req.Pickup
	}
	if req.Drop != nil {
		cmd.Drop = *req.Drop
	}
	if !finitePoint(cmd.Pickup) || !finitePoint(cmd.Drop) {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	fb, err := h.pricing.CalculateAndStore(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, fb)
}

func (h *FareHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	if _, ok := authorizeRideView(c, r, h.drivers); !ok {
		return
	}
	fb, err := h.pricing.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, fb)
}
