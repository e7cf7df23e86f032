package location

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ridehail/internal/types"
)

func TestStoreLatestSamples(t *testing.T) {
	dsn := os.Getenv("RIDEHAIL_TEST_DSN")
	if dsn == "" {
		t.Skip("RIDEHAIL_TEST_DSN not set; skipping DB-backed location tests")
	}
	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(ctx, "DELETE FROM location_samples WHERE owner_id LIKE 'loc_test_%'"); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	store := NewStore(db)
	now := time.Now().UTC().Truncate(time.Millisecond)
	for i, age := range []time.Duration{10 * time.Minute, time.Minute, 5 * time.Minute} {
		err := store.AppendSample(ctx, Sample{
			OwnerID:    "loc_test_a",
			Position:   types.Point{Lat: float64(i), Lng: float64(i)},
			CapturedAt: now.Add(-age),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := store.LatestSamples(ctx, []types.ID{"loc_test_a", "loc_test_missing"})
	if err != nil {
		t.Fatalf("latest samples: %v", err)
	}
	if _, ok := got["loc_test_missing"]; ok {
		t.Error("owner without samples must be absent")
	}
	latest, ok := got["loc_test_a"]
	if !ok {
		t.Fatal("expected a sample for loc_test_a")
	}
	if latest.Position.Lat != 1 {
		t.Errorf("expected the 1-minute-old sample, got %+v", latest)
	}
}
