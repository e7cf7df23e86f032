// README: Dispatch handlers: notify nearby drivers for a ride, read the dispatch log.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"ridehail/internal/http/middleware"
	"ridehail/internal/modules/matching"
	"ridehail/internal/modules/order"
	"ridehail/internal/types"
)

type Dispatcher interface {
	NotifyForRide(ctx context.Context, rideID types.ID) (matching.DispatchResult, error)
	Dispatch(ctx context.Context, rideID types.ID) (*matching.DispatchRecord, error)
}

// RideReader is the read side of the ride lifecycle.
type RideReader interface {
	Get(ctx context.Context, id types.ID) (*order.Ride, error)
}

type DispatchHandler struct {
	matching Dispatcher
	rides    RideReader
}

func NewDispatchHandler(svc Dispatcher, rides RideReader) *DispatchHandler {
	return &DispatchHandler{matching: svc, rides: rides}
}

// Notify fans the ride out to nearby drivers. Only the ride's customer or an
// admin may trigger it.
func (h *DispatchHandler) Notify(c *gin.Context) {
	id, ok := h.ownedRide(c)
	if !ok {
		return
	}
	res, err := h.matching.NotifyForRide(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, res)
}

func (h *DispatchHandler) Get(c *gin.Context) {
	id, ok := h.ownedRide(c)
	if !ok {
		return
	}
	rec, err := h.matching.Dispatch(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, rec)
}

func (h *DispatchHandler) ownedRide(c *gin.Context) (types.ID, bool) {
	id, ok := pathID(c)
	if !ok {
		return "", false
	}
	r, err := h.rides.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return "", false
	}
	if middleware.CallerRole(c) != middleware.RoleAdmin && r.CustomerID != types.ID(middleware.CallerUID(c)) {
		writeError(c, http.StatusForbidden, "forbidden: not your ride")
		return "", false
	}
	return id, true
}
