package catalog

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jkaninda/actiondex/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testAd(agentID, name string) domain.Advertisement {
	return domain.Advertisement{
		AgentID:      agentID,
		Name:         name,
		Description:  "does something useful",
		Capabilities: []string{"useful_things"},
	}
}

func TestCatalogRegisterWithdraw(t *testing.T) {
	c := New(testLogger())

	if err := c.Register(testAd("agent-1", "market_analyzer")); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := c.Count(); got != 1 {
		t.Fatalf("count = %d, want 1", got)
	}

	ad, err := c.Get("market_analyzer")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ad.AgentID != "agent-1" {
		t.Errorf("agent_id = %q, want agent-1", ad.AgentID)
	}
	if ad.AdvertisedAt.IsZero() || ad.LastSeenAt.IsZero() {
		t.Error("timestamps not stamped on register")
	}

	if err := c.Withdraw("market_analyzer"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if err := c.Withdraw("market_analyzer"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second withdraw err = %v, want ErrNotFound", err)
	}
	if got := c.Count(); got != 0 {
		t.Errorf("count after withdraw = %d, want 0", got)
	}
}

func TestCatalogRegisterRejectsInvalid(t *testing.T) {
	c := New(testLogger())
	if err := c.Register(domain.Advertisement{AgentID: "agent-1", Name: "nameless"}); err == nil {
		t.Error("advertisement without description accepted")
	}
	if got := c.Count(); got != 0 {
		t.Errorf("count = %d, want 0", got)
	}
}

func TestCatalogRegisterReplaces(t *testing.T) {
	c := New(testLogger())
	_ = c.Register(testAd("agent-1", "swapper"))

	updated := testAd("agent-2", "swapper")
	updated.Description = "replacement description"
	if err := c.Register(updated); err != nil {
		t.Fatalf("re-register: %v", err)
	}

	if got := c.Count(); got != 1 {
		t.Fatalf("count = %d, want 1 after replace", got)
	}
	ad, _ := c.Get("swapper")
	if ad.AgentID != "agent-2" || ad.Description != "replacement description" {
		t.Errorf("replacement not applied: %+v", ad)
	}
}

func TestCatalogDeregisterAgent(t *testing.T) {
	c := New(testLogger())
	_ = c.Register(testAd("agent-1", "one"))
	_ = c.Register(testAd("agent-1", "two"))
	_ = c.Register(testAd("agent-2", "three"))

	if dropped := c.DeregisterAgent("agent-1"); dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	if got := c.Count(); got != 1 {
		t.Errorf("count = %d, want 1", got)
	}
	if _, err := c.Get("three"); err != nil {
		t.Errorf("unrelated advertisement removed: %v", err)
	}
}

func TestCatalogSnapshotStableOrder(t *testing.T) {
	c := New(testLogger())
	_ = c.Register(testAd("agent-1", "zeta"))
	_ = c.Register(testAd("agent-1", "alpha"))
	_ = c.Register(testAd("agent-1", "mid"))

	snap := c.Snapshot()
	want := []string{"alpha", "mid", "zeta"}
	if len(snap) != len(want) {
		t.Fatalf("snapshot size = %d, want %d", len(snap), len(want))
	}
	for i, name := range want {
		if snap[i].Name != name {
			t.Errorf("snapshot[%d] = %q, want %q", i, snap[i].Name, name)
		}
	}
}

func TestCatalogPruneExpired(t *testing.T) {
	c := New(testLogger())

	fresh := testAd("agent-1", "fresh")
	fresh.TTL = time.Hour
	_ = c.Register(fresh)

	forever := testAd("agent-1", "forever") // zero TTL never expires
	_ = c.Register(forever)

	stale := testAd("agent-2", "stale")
	stale.TTL = time.Minute
	_ = c.Register(stale)

	if pruned := c.PruneExpired(time.Now().UTC().Add(30 * time.Minute)); pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
	if _, err := c.Get("stale"); !errors.Is(err, ErrNotFound) {
		t.Error("stale advertisement survived prune")
	}
	if _, err := c.Get("fresh"); err != nil {
		t.Errorf("fresh advertisement pruned: %v", err)
	}
	if _, err := c.Get("forever"); err != nil {
		t.Errorf("zero-TTL advertisement pruned: %v", err)
	}
}

func TestCatalogTouchDefersExpiry(t *testing.T) {
	c := New(testLogger())
	ad := testAd("agent-1", "heartbeaten")
	ad.TTL = time.Minute
	_ = c.Register(ad)

	before, _ := c.Get("heartbeaten")
	time.Sleep(5 * time.Millisecond)
	c.Touch("agent-1")
	after, _ := c.Get("heartbeaten")

	if !after.LastSeenAt.After(before.LastSeenAt) {
		t.Error("Touch did not advance LastSeenAt")
	}
}
