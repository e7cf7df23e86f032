// README: API gateway; registers gin routes and delegates to module services.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/config"
	"ridehail/internal/http/handlers"
	"ridehail/internal/http/middleware"
	"ridehail/internal/infra"
	"ridehail/internal/logger"
)

type ServerDeps struct {
	Order    handlers.RideService
	Matching handlers.Dispatcher
	Location handlers.LocationService
	Pricing  handlers.FareService
	Verifier infra.TokenVerifier
	Dispatch config.DispatchConfig
	Log      logger.Logger
}

// NewRouter wires every route. /health is the only unauthenticated one.
func NewRouter(deps ServerDeps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	r := gin.New()
	r.Use(middleware.Recovery(log), middleware.Logging(log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	rides := handlers.NewOrderHandler(deps.Order, deps.Location)
	api.POST("/rides", rides.Create)
	api.GET("/rides/:id", rides.Get)
	api.POST("/rides/:id/accept", rides.Accept)
	api.POST("/rides/:id/arrive", rides.Arrive)
	api.POST("/rides/:id/start", rides.Start)
	api.POST("/rides/:id/complete", rides.Complete)
	api.POST("/rides/:id/cancel", rides.Cancel)

	dispatch := handlers.NewDispatchHandler(deps.Matching, deps.Order)
	api.POST("/rides/:id/dispatch", dispatch.Notify)
	api.GET("/rides/:id/dispatch", dispatch.Get)

	fares := handlers.NewFareHandler(deps.Pricing, deps.Order, deps.Location)
	api.POST("/fares/estimate", fares.Estimate)
	api.POST("/rides/:id/fare", fares.Recalculate)
	api.GET("/rides/:id/fare", fares.Get)

	loc := handlers.NewLocationHandler(deps.Location, deps.Dispatch)
	api.GET("/drivers/nearby", loc.Nearby)
	api.PUT("/drivers/:id/location", loc.Update)
	api.PUT("/drivers/:id/status", loc.SetStatus)

	return r
}

type Server struct {
	srv *http.Server
	log logger.Logger
}

func NewServer(addr string, handler http.Handler, log logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Run serves until ctx is done, then drains in-flight requests for up to
// ten seconds.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
