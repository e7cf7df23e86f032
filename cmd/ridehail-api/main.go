// README: Entry point; loads config, wires services, starts the HTTP server and the driver-status reconciler.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"ridehail/internal/config"
	httptransport "ridehail/internal/http"
	"ridehail/internal/infra"
	"ridehail/internal/logger"
	"ridehail/internal/modules/location"
	"ridehail/internal/modules/matching"
	"ridehail/internal/modules/order"
	"ridehail/internal/modules/pricing"
	"ridehail/internal/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("INFO").Error("load config", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level).With("service", "ridehail-api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("ridehail-api stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log logger.Logger) error {
	if cfg.Firebase.ProjectID == "" {
		return errors.New("RIDEHAIL_FIREBASE_PROJECT_ID is required")
	}
	app, err := infra.NewFirebaseApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile, cfg.Firebase.DatabaseURL)
	if err != nil {
		return err
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, app)
	if err != nil {
		return err
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	locationStore := location.NewStore(dbPool)
	var samples location.SampleStore = locationStore
	if cfg.LocationSource == "firebase" {
		rtdb, err := app.Database(ctx)
		if err != nil {
			return err
		}
		samples = location.NewRTDBSampleStore(rtdb)
		log.Info("reading driver locations from firebase rtdb")
	}
	locationSvc := location.NewService(locationStore, samples)

	cityCenter := types.Point{Lat: cfg.Pricing.CityCenterLat, Lng: cfg.Pricing.CityCenterLng}
	pricingStore := pricing.NewStore(dbPool)
	pricingSvc := pricing.NewService(pricingStore, pricingStore, cityCenter, log)

	orderSvc := order.NewService(order.NewStore(dbPool), locationSvc, pricingSvc, log)

	wakers := []matching.Waker{}
	if msg, err := app.Messaging(ctx); err != nil {
		log.Warn("fcm disabled", "error", err.Error())
	} else {
		wakers = append(wakers, matching.NewFCMWaker(msg, locationStore))
	}
	if cfg.AMQP.URL != "" {
		broker, err := infra.NewBroker(cfg.AMQP.URL)
		if err != nil {
			return err
		}
		defer broker.Close()
		wakers = append(wakers, matching.NewAMQPWaker(broker))
	}

	notifications := matching.NewNotificationStore(dbPool)
	matchingSvc := matching.NewService(matching.Deps{
		Rides:    orderSvc,
		Locator:  locationSvc,
		Sink:     notifications,
		Contacts: notifications,
		Dispatch: matching.NewStore(redisClient),
		Wakers:   wakers,
	}, cfg.Dispatch, log)

	router := httptransport.NewRouter(httptransport.ServerDeps{
		Order:    orderSvc,
		Matching: matchingSvc,
		Location: locationSvc,
		Pricing:  pricingSvc,
		Verifier: verifier,
		Dispatch: cfg.Dispatch,
		Log:      log,
	})

	go orderSvc.RunReconciler(ctx, cfg.ReconcileTick)

	return httptransport.NewServer(cfg.HTTP.Addr, router, log).Run(ctx)
}
