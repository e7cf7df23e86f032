package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.RadiusKm != 15 {
		t.Errorf("RadiusKm = %v, want 15", cfg.Dispatch.RadiusKm)
	}
	if cfg.Dispatch.RecencyMinutes != 15 {
		t.Errorf("RecencyMinutes = %v, want 15", cfg.Dispatch.RecencyMinutes)
	}
	if cfg.LocationSource != "postgres" {
		t.Errorf("LocationSource = %q, want postgres", cfg.LocationSource)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RIDEHAIL_DISPATCH_RADIUS_KM", "7.5")
	t.Setenv("RIDEHAIL_DISPATCH_WORKERS", "9")
	t.Setenv("RIDEHAIL_DISPATCH_NOTIFY_INTERVAL", "250ms")
	t.Setenv("RIDEHAIL_CITY_CENTER_LAT", "19.07")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.RadiusKm != 7.5 {
		t.Errorf("RadiusKm = %v, want 7.5", cfg.Dispatch.RadiusKm)
	}
	if cfg.Dispatch.Workers != 9 {
		t.Errorf("Workers = %v, want 9", cfg.Dispatch.Workers)
	}
	if cfg.Dispatch.NotifyInterval != 250*time.Millisecond {
		t.Errorf("NotifyInterval = %v", cfg.Dispatch.NotifyInterval)
	}
	if cfg.Pricing.CityCenterLat != 19.07 {
		t.Errorf("CityCenterLat = %v", cfg.Pricing.CityCenterLat)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("RIDEHAIL_DISPATCH_RADIUS_KM", "far")
	t.Setenv("RIDEHAIL_DISPATCH_WORKERS", "lots")
	t.Setenv("RIDEHAIL_RECONCILE_TICK", "soon")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.RadiusKm != 15 || cfg.Dispatch.Workers != 4 {
		t.Errorf("expected defaults, got %+v", cfg.Dispatch)
	}
	if cfg.ReconcileTick != 30*time.Second {
		t.Errorf("ReconcileTick = %v", cfg.ReconcileTick)
	}
}
