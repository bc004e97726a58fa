// Package domain defines cross-cutting entity types used across the system.
package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/actiondex/internal/matching"
)

// Advertisement is one agent's published action offer: the descriptor the
// matching engine scores plus the publishing metadata the catalog tracks.
type Advertisement struct {
	AgentID      string
	Name         string // Canonical action name (unique across the catalog).
	Description  string
	Similes      []string
	Capabilities []string
	TTL          time.Duration // 0 = never expires.
	AdvertisedAt time.Time
	LastSeenAt   time.Time // Refreshed by agent heartbeats.
}

// Descriptor projects the advertisement into the engine's input type.
func (a Advertisement) Descriptor() matching.Descriptor {
	return matching.Descriptor{
		Name:         a.Name,
		Description:  a.Description,
		Similes:      a.Similes,
		Capabilities: a.Capabilities,
	}
}

// Expired reports whether the advertisement's TTL has lapsed at the given
// instant. Zero-TTL advertisements never expire.
func (a Advertisement) Expired(now time.Time) bool {
	if a.TTL <= 0 {
		return false
	}
	return now.Sub(a.LastSeenAt) > a.TTL
}

// DiscoveryRecord is the persisted trace of one discovery request: what was
// asked, how many descriptors matched, and how long ranking took. Results
// themselves are ephemeral; only the summary is kept.
type DiscoveryRecord struct {
	ID           uuid.UUID
	Keywords     []string
	Capabilities []string
	ContextTerms []string
	CatalogSize  int
	ResultCount  int
	TopScore     float64
	DurationMS   int64
	CreatedAt    time.Time
}
