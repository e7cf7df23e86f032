// README: Base handler utilities (JSON helpers, caller checks, error mapping).
package handlers

import (
	"errors"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/modules/location"
	"ridehail/internal/modules/matching"
	"ridehail/internal/modules/order"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts uuids and the other opaque ids we store: letters, digits,
// '-' and '_', at most 64 chars.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func finitePoint(p types.Point) bool {
	return !math.IsNaN(p.Lat) && !math.IsInf(p.Lat, 0) && !math.IsNaN(p.Lng) && !math.IsInf(p.Lng, 0)
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// pathID reads and validates the :id parameter. It writes the 400 itself.
func pathID(c *gin.Context) (types.ID, bool) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid id")
		return "", false
	}
	return types.ID(id), true
}

func requireRole(c *gin.Context, role string) bool {
	if middleware.CallerRole(c) != role {
		writeError(c, http.StatusForbidden, "forbidden: "+role+" role required")
		return false
	}
	return true
}

// writeServiceError maps module sentinel errors onto status codes. Anything
// unrecognised is a 500 with a generic body.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, pricing.ErrRideNotFound),
		errors.Is(err, pricing.ErrBreakdownNotFound),
		errors.Is(err, location.ErrDriverNotFound),
		errors.Is(err, matching.ErrNotDispatched):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrConflict),
		errors.Is(err, order.ErrInvalidState),
		errors.Is(err, order.ErrActiveRide),
		errors.Is(err, order.ErrDriverUnavailable),
		errors.Is(err, location.ErrDriverBusy):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, pricing.ErrConfigurationMissing):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrBadRequest),
		errors.Is(err, order.ErrInvalidOTP),
		errors.Is(err, pricing.ErrInvalidTrip),
		errors.Is(err, pricing.ErrUnsupportedBooking),
		errors.Is(err, location.ErrInvalidStatus):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrNotAssigned),
		errors.Is(err, location.ErrDriverSuspended):
		writeError(c, http.StatusForbidden, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func callerDriver(c *gin.Context, drivers DriverDirectory) (*location.Driver, bool) {
	d, err := drivers.DriverByUser(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeServiceError(c, err)
		return nil, false
	}
	return d, true
}

// authorizeRideView lets the ride's customer, its assigned driver and admins
// see a ride. asDriver tells the caller to hide customer-only fields.
func authorizeRideView(c *gin.Context, r *order.Ride, drivers DriverDirectory) (asDriver, ok bool) {
	switch middleware.CallerRole(c) {
	case middleware.RoleAdmin:
		return false, true
	case middleware.RoleDriver:
		d, ok := callerDriver(c, drivers)
		if !ok {
			return false, false
		}
		if !r.AssignedTo(d.ID) {
			writeError(c, http.StatusForbidden, "forbidden: ride is not assigned to you")
			return false, false
		}
		return true, true
	default:
		if r.CustomerID != types.ID(middleware.CallerUID(c)) {
			writeError(c, http.StatusForbidden, "forbidden: not your ride")
			return false, false
		}
		return false, true
	}
}
