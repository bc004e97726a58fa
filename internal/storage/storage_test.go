package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/actiondex/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// openTestStores returns every backend cheap enough to exercise in unit
// tests: the in-memory store and a throwaway on-disk SQLite database.
func openTestStores(t *testing.T) map[string]Store {
	t.Helper()

	sqliteStore, err := openSQLite(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "actiondex.db")}, testLogger())
	if err != nil {
		t.Fatalf("opening sqlite store: %v", err)
	}
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqliteStore,
	}
}

func TestStoreAdvertisements(t *testing.T) {
	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Second)

			ad := &domain.Advertisement{
				AgentID:      "agent-1",
				Name:         "market_analyzer",
				Description:  "predicts stock trends",
				Similes:      []string{"trend predictor"},
				Capabilities: []string{"market_analysis"},
				TTL:          5 * time.Minute,
				AdvertisedAt: now,
				LastSeenAt:   now,
			}
			if err := store.SaveAdvertisement(ctx, ad); err != nil {
				t.Fatalf("save: %v", err)
			}

			// Upsert: same name, new owner.
			ad2 := *ad
			ad2.AgentID = "agent-2"
			if err := store.SaveAdvertisement(ctx, &ad2); err != nil {
				t.Fatalf("upsert: %v", err)
			}

			ads, err := store.ListAdvertisements(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(ads) != 1 {
				t.Fatalf("got %d advertisements, want 1", len(ads))
			}
			got := ads[0]
			if got.AgentID != "agent-2" {
				t.Errorf("agent_id = %q, want agent-2 after upsert", got.AgentID)
			}
			if got.TTL != 5*time.Minute {
				t.Errorf("ttl = %v, want 5m", got.TTL)
			}
			if len(got.Capabilities) != 1 || got.Capabilities[0] != "market_analysis" {
				t.Errorf("capabilities = %v", got.Capabilities)
			}

			if err := store.DeleteAdvertisement(ctx, "market_analyzer"); err != nil {
				t.Fatalf("delete: %v", err)
			}
			if err := store.DeleteAdvertisement(ctx, "market_analyzer"); !errors.Is(err, ErrNotFound) {
				t.Errorf("second delete err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreDeleteAgentAdvertisements(t *testing.T) {
	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for _, n := range []string{"one", "two"} {
				_ = store.SaveAdvertisement(ctx, &domain.Advertisement{
					AgentID: "agent-1", Name: n, Description: "d",
				})
			}
			_ = store.SaveAdvertisement(ctx, &domain.Advertisement{
				AgentID: "agent-2", Name: "three", Description: "d",
			})

			if err := store.DeleteAgentAdvertisements(ctx, "agent-1"); err != nil {
				t.Fatalf("delete agent ads: %v", err)
			}
			ads, _ := store.ListAdvertisements(ctx)
			if len(ads) != 1 || ads[0].Name != "three" {
				t.Errorf("remaining ads = %+v, want only three", ads)
			}
		})
	}
}

func TestStoreDiscoveryHistory(t *testing.T) {
	for name, store := range openTestStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC().Add(-time.Hour)

			for i := 0; i < 5; i++ {
				rec := &domain.DiscoveryRecord{
					ID:          uuid.New(),
					Keywords:    []string{"market", "trends"},
					CatalogSize: 10,
					ResultCount: i,
					TopScore:    0.5,
					DurationMS:  2,
					CreatedAt:   base.Add(time.Duration(i) * time.Minute),
				}
				if err := store.SaveDiscovery(ctx, rec); err != nil {
					t.Fatalf("save discovery: %v", err)
				}
			}

			records, err := store.ListDiscoveries(ctx, 3)
			if err != nil {
				t.Fatalf("list discoveries: %v", err)
			}
			if len(records) != 3 {
				t.Fatalf("got %d records, want 3", len(records))
			}
			// Newest first.
			if records[0].ResultCount != 4 {
				t.Errorf("first record result_count = %d, want 4 (newest)", records[0].ResultCount)
			}
			if len(records[0].Keywords) != 2 {
				t.Errorf("keywords round-trip failed: %v", records[0].Keywords)
			}
			if records[0].DurationMS != 2 {
				t.Errorf("duration_ms round-trip failed: %d", records[0].DurationMS)
			}
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(&Config{Driver: "bogus"}, testLogger()); err == nil {
		t.Error("unknown driver accepted")
	}
}

func TestOpenMemoryDriver(t *testing.T) {
	store, err := Open(&Config{Driver: DriverMemory}, testLogger())
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	if store.Driver() != DriverMemory {
		t.Errorf("driver = %q", store.Driver())
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}
}
