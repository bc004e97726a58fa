// Package catalog maintains the in-memory registry of advertised actions.
// Agents register advertisements (via the WebSocket or HTTP gateways), the
// discovery service snapshots the registry per ranking call, and a cron
// pruner evicts entries whose TTL lapsed without a heartbeat.
package catalog

import (
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jkaninda/actiondex/internal/domain"
	"github.com/jkaninda/actiondex/internal/matching"
)

// ErrNotFound is returned when no advertisement exists under a name.
var ErrNotFound = errors.New("action not found in catalog")

// Catalog is a concurrent registry of advertisements keyed by action name.
// Registering an existing name replaces the previous advertisement, so
// re-announcing agents update in place.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]domain.Advertisement
	logger  *slog.Logger
}

// New creates an empty catalog.
func New(logger *slog.Logger) *Catalog {
	return &Catalog{
		entries: make(map[string]domain.Advertisement),
		logger:  logger,
	}
}

// Register validates the advertised descriptor and adds or replaces the
// advertisement. Timestamps are stamped here so callers only supply intent.
func (c *Catalog) Register(ad domain.Advertisement) error {
	if err := ad.Descriptor().Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	ad.AdvertisedAt = now
	ad.LastSeenAt = now

	c.mu.Lock()
	_, replaced := c.entries[ad.Name]
	c.entries[ad.Name] = ad
	c.mu.Unlock()

	c.logger.Info("action advertised",
		slog.String("action", ad.Name),
		slog.String("agent_id", ad.AgentID),
		slog.Int("capabilities", len(ad.Capabilities)),
		slog.Bool("replaced", replaced),
	)
	return nil
}

// Withdraw removes an advertisement by action name.
func (c *Catalog) Withdraw(name string) error {
	c.mu.Lock()
	_, ok := c.entries[name]
	if ok {
		delete(c.entries, name)
	}
	c.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	c.logger.Info("action withdrawn", slog.String("action", name))
	return nil
}

// Get returns the advertisement registered under name.
func (c *Catalog) Get(name string) (domain.Advertisement, error) {
	c.mu.RLock()
	ad, ok := c.entries[name]
	c.mu.RUnlock()
	if !ok {
		return domain.Advertisement{}, ErrNotFound
	}
	return ad, nil
}

// Touch refreshes the last-seen time on every advertisement owned by the
// agent. Called on heartbeat so live agents keep their actions from expiring.
func (c *Catalog) Touch(agentID string) {
	now := time.Now().UTC()
	c.mu.Lock()
	for name, ad := range c.entries {
		if ad.AgentID == agentID {
			ad.LastSeenAt = now
			c.entries[name] = ad
		}
	}
	c.mu.Unlock()
}

// DeregisterAgent removes every advertisement owned by the agent, returning
// how many were dropped. Called when an agent's connection closes.
func (c *Catalog) DeregisterAgent(agentID string) int {
	c.mu.Lock()
	dropped := 0
	for name, ad := range c.entries {
		if ad.AgentID == agentID {
			delete(c.entries, name)
			dropped++
		}
	}
	c.mu.Unlock()

	if dropped > 0 {
		c.logger.Info("agent actions deregistered",
			slog.String("agent_id", agentID),
			slog.Int("actions", dropped),
		)
	}
	return dropped
}

// Snapshot returns the current descriptors in stable name order. Ranking is
// order-sensitive only for tie-breaks, and a deterministic snapshot keeps
// repeated discovery calls reproducible.
func (c *Catalog) Snapshot() []matching.Descriptor {
	c.mu.RLock()
	out := make([]matching.Descriptor, 0, len(c.entries))
	for _, ad := range c.entries {
		out = append(out, ad.Descriptor())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// List returns all advertisements in stable name order.
func (c *Catalog) List() []domain.Advertisement {
	c.mu.RLock()
	out := make([]domain.Advertisement, 0, len(c.entries))
	for _, ad := range c.entries {
		out = append(out, ad)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered advertisements.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// PruneExpired evicts advertisements whose TTL lapsed before now and returns
// how many were removed.
func (c *Catalog) PruneExpired(now time.Time) int {
	c.mu.Lock()
	pruned := 0
	for name, ad := range c.entries {
		if ad.Expired(now) {
			delete(c.entries, name)
			pruned++
		}
	}
	c.mu.Unlock()

	if pruned > 0 {
		c.logger.Info("expired advertisements pruned", slog.Int("count", pruned))
	}
	return pruned
}
