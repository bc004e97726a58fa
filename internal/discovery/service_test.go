package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jkaninda/actiondex/internal/catalog"
	"github.com/jkaninda/actiondex/internal/domain"
	"github.com/jkaninda/actiondex/internal/matching"
	"github.com/jkaninda/actiondex/internal/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	cat := catalog.New(testLogger())
	svc := New(cat, store, nil, Params{}, testLogger())
	return svc, store
}

func swapAd() domain.Advertisement {
	return domain.Advertisement{
		AgentID:      "agent-1",
		Name:         "token swap",
		Description:  "swap tokens between liquidity pools",
		Similes:      []string{"exchange tokens", "trade tokens"},
		Capabilities: []string{"defi", "swap", "trading"},
	}
}

func TestDiscoverRanksCatalog(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Advertise(ctx, swapAd()); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	if err := svc.Advertise(ctx, domain.Advertisement{
		AgentID:     "agent-2",
		Name:        "weather report",
		Description: "fetch the current weather forecast",
	}); err != nil {
		t.Fatalf("Advertise: %v", err)
	}

	res, err := svc.Discover(ctx, matching.Query{
		Keywords:     []string{"swap", "tokens"},
		Capabilities: []string{"defi"},
	}, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if res.CatalogSize != 2 {
		t.Errorf("catalog size = %d, want 2", res.CatalogSize)
	}
	if len(res.Matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(res.Matches))
	}
	if res.Matches[0].Descriptor.Name != "token swap" {
		t.Errorf("top match = %q", res.Matches[0].Descriptor.Name)
	}

	// The discovery record is persisted with the same request ID.
	recs, err := store.ListDiscoveries(ctx, 10)
	if err != nil {
		t.Fatalf("ListDiscoveries: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("discovery records = %d, want 1", len(recs))
	}
	if recs[0].ID != res.RequestID {
		t.Errorf("record id = %v, want %v", recs[0].ID, res.RequestID)
	}
	if recs[0].ResultCount != 1 || recs[0].CatalogSize != 2 {
		t.Errorf("record = %+v", recs[0])
	}
	if recs[0].TopScore != res.Matches[0].Score {
		t.Errorf("record top score = %v, want %v", recs[0].TopScore, res.Matches[0].Score)
	}
	if recs[0].DurationMS != res.Duration.Milliseconds() {
		t.Errorf("record duration_ms = %d, want %d", recs[0].DurationMS, res.Duration.Milliseconds())
	}
}

func TestDiscoverParamOverrides(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"token swap", "token swap one", "token swap two"} {
		if err := svc.Advertise(ctx, domain.Advertisement{
			AgentID:     "agent-1",
			Name:        name,
			Description: "swap tokens between pools",
		}); err != nil {
			t.Fatalf("Advertise %q: %v", name, err)
		}
	}

	q := matching.Query{Keywords: []string{"swap", "token"}}
	res, err := svc.Discover(ctx, q, nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(res.Matches) != 3 {
		t.Fatalf("matches = %d, want 3 with defaults", len(res.Matches))
	}

	res, err = svc.Discover(ctx, q, &Params{MaxResults: 1})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(res.Matches) != 1 {
		t.Errorf("matches = %d, want 1 after cap", len(res.Matches))
	}
	if res.Matches[0].Descriptor.Name != "token swap" {
		t.Errorf("top match = %q", res.Matches[0].Descriptor.Name)
	}

	// A floor above any attainable composite empties the shortlist.
	res, err = svc.Discover(ctx, q, &Params{MinScore: 0.95})
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(res.Matches) != 0 {
		t.Errorf("matches = %d, want 0 above floor", len(res.Matches))
	}
}

func TestDiscoverInvalidParams(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Discover(ctx, matching.Query{Keywords: []string{"swap"}}, &Params{MinScore: 1.5})
	if !errors.Is(err, matching.ErrInvalidParams) {
		t.Fatalf("err = %v, want ErrInvalidParams", err)
	}

	// Failed requests are not recorded.
	recs, _ := store.ListDiscoveries(ctx, 10)
	if len(recs) != 0 {
		t.Errorf("discovery records = %d, want 0", len(recs))
	}
}

func TestWithdrawSyncsStore(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if err := svc.Advertise(ctx, swapAd()); err != nil {
		t.Fatalf("Advertise: %v", err)
	}
	ads, _ := store.ListAdvertisements(ctx)
	if len(ads) != 1 {
		t.Fatalf("stored ads = %d, want 1", len(ads))
	}

	if err := svc.Withdraw(ctx, "token swap"); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if svc.CatalogSize() != 0 {
		t.Errorf("catalog size = %d after withdraw", svc.CatalogSize())
	}
	ads, _ = store.ListAdvertisements(ctx)
	if len(ads) != 0 {
		t.Errorf("stored ads = %d after withdraw", len(ads))
	}

	if err := svc.Withdraw(ctx, "token swap"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("second withdraw err = %v, want ErrNotFound", err)
	}
}

func TestDeregisterAgent(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	ads := []domain.Advertisement{
		{AgentID: "agent-1", Name: "swap", Description: "swap tokens"},
		{AgentID: "agent-1", Name: "quote", Description: "quote token prices"},
		{AgentID: "agent-2", Name: "weather", Description: "weather forecast"},
	}
	for _, ad := range ads {
		if err := svc.Advertise(ctx, ad); err != nil {
			t.Fatalf("Advertise %q: %v", ad.Name, err)
		}
	}

	removed := svc.DeregisterAgent(ctx, "agent-1")
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if svc.CatalogSize() != 1 {
		t.Errorf("catalog size = %d, want 1", svc.CatalogSize())
	}
	stored, _ := store.ListAdvertisements(ctx)
	if len(stored) != 1 || stored[0].AgentID != "agent-2" {
		t.Errorf("stored ads = %+v", stored)
	}
}

func TestRehydrateSkipsExpired(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	live := swapAd()
	live.TTL = time.Hour
	live.AdvertisedAt = time.Now().UTC()
	live.LastSeenAt = live.AdvertisedAt
	if err := store.SaveAdvertisement(ctx, &live); err != nil {
		t.Fatalf("SaveAdvertisement: %v", err)
	}

	stale := domain.Advertisement{
		AgentID:      "agent-3",
		Name:         "old action",
		Description:  "long gone",
		TTL:          time.Minute,
		AdvertisedAt: time.Now().UTC().Add(-time.Hour),
		LastSeenAt:   time.Now().UTC().Add(-time.Hour),
	}
	if err := store.SaveAdvertisement(ctx, &stale); err != nil {
		t.Fatalf("SaveAdvertisement: %v", err)
	}

	svc := New(catalog.New(testLogger()), store, nil, Params{}, testLogger())
	restored, err := svc.Rehydrate(ctx)
	if err != nil {
		t.Fatalf("Rehydrate: %v", err)
	}
	if restored != 1 {
		t.Errorf("restored = %d, want 1", restored)
	}
	if svc.CatalogSize() != 1 {
		t.Errorf("catalog size = %d, want 1", svc.CatalogSize())
	}

	// The expired row is removed from the store too.
	stored, _ := store.ListAdvertisements(ctx)
	if len(stored) != 1 || stored[0].Name != "token swap" {
		t.Errorf("stored ads = %+v", stored)
	}
}

func TestHistoryWithoutStore(t *testing.T) {
	svc := New(catalog.New(testLogger()), nil, nil, Params{}, testLogger())
	recs, err := svc.History(context.Background(), 5)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if recs != nil {
		t.Errorf("history = %v, want nil", recs)
	}
}
