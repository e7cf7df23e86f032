// README: Location handlers: nearby drivers, driver location reports, availability toggles.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/config"
	"ridehail/internal/http/middleware"
	"ridehail/internal/modules/location"
	"ridehail/internal/types"
)

type LocationService interface {
	FindNearby(ctx context.Context, q location.NearbyQuery) ([]location.NearbyDriver, error)
	Report(ctx context.Context, cmd location.ReportCommand) error
	SetStatus(ctx context.Context, driverID types.ID, to location.DriverStatus) error
	DriverByUser(ctx context.Context, userID types.ID) (*location.Driver, error)
}

type LocationHandler struct {
	location LocationService
	defaults config.DispatchConfig
}

func NewLocationHandler(svc LocationService, defaults config.DispatchConfig) *LocationHandler {
	return &LocationHandler{location: svc, defaults: defaults}
}

// Nearby lists drivers around lat/lng. radius_km, recency_minutes and
// vehicle_type are optional and default to the dispatch settings and "any".
func (h *LocationHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	pickup := types.Point{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !finitePoint(pickup) {
		writeError(c, http.StatusBadRequest, "invalid lat/lng")
		return
	}
	q := location.NearbyQuery{
		Pickup:         pickup,
		VehicleType:    c.DefaultQuery("vehicle_type", location.VehicleTypeAny),
		RadiusKm:       h.defaults.RadiusKm,
		RecencyMinutes: h.defaults.RecencyMinutes,
	}
	if v := c.Query("radius_km"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || !finiteNonNegative(r) {
			writeError(c, http.StatusBadRequest, "invalid radius_km")
			return
		}
		q.RadiusKm = r
	}
	if v := c.Query("recency_minutes"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil || !finiteNonNegative(m) {
			writeError(c, http.StatusBadRequest, "invalid recency_minutes")
			return
		}
		q.RecencyMinutes = m
	}
	drivers, err := h.location.FindNearby(c.Request.Context(), q)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"drivers": drivers})
}

type locationReq struct {
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	Heading    *float64   `json:"heading"`
	Speed      *float64   `json:"speed"`
	Accuracy   *float64   `json:"accuracy"`
	CapturedAt *time.Time `json:"captured_at"`
}

// Update records a location sample for the authenticated driver.
func (h *LocationHandler) Update(c *gin.Context) {
	d, ok := h.ownDriver(c)
	if !ok {
		return
	}
	var req locationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	pos := types.Point{Lat: req.Lat, Lng: req.Lng}
	if !finitePoint(pos) {
		writeError(c, http.StatusBadRequest, "invalid coordinates")
		return
	}
	cmd := location.ReportCommand{
		UserID:   d.UserID,
		Position: pos,
		Heading:  req.Heading,
		Speed:    req.Speed,
		Accuracy: req.Accuracy,
	}
	if req.CapturedAt != nil {
		cmd.CapturedAt = *req.CapturedAt
	}
	if err := h.location.Report(c.Request.Context(), cmd); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": "ok"})
}

type statusReq struct {
	Status location.DriverStatus `json:"status"`
}

func (h *LocationHandler) SetStatus(c *gin.Context) {
	d, ok := h.ownDriver(c)
	if !ok {
		return
	}
	var req statusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.location.SetStatus(c.Request.Context(), d.ID, req.Status); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"driver_id": d.ID, "status": req.Status})
}

// ownDriver checks that the caller is a driver and that :id is their own
// driver id.
func (h *LocationHandler) ownDriver(c *gin.Context) (*location.Driver, bool) {
	id, ok := pathID(c)
	if !ok {
		return nil, false
	}
	if !requireRole(c, middleware.RoleDriver) {
		return nil, false
	}
	d, ok := callerDriver(c, h.location)
	if !ok {
		return nil, false
	}
	if d.ID != id {
		writeError(c, http.StatusForbidden, "forbidden: id does not match authenticated driver")
		return nil, false
	}
	return d, true
}
