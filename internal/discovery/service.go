// Package discovery coordinates catalog ranking, persistence, and
// observability behind a single service consumed by the HTTP, WebSocket,
// and MCP gateways.
package discovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jkaninda/actiondex/internal/catalog"
	"github.com/jkaninda/actiondex/internal/domain"
	"github.com/jkaninda/actiondex/internal/matching"
	"github.com/jkaninda/actiondex/internal/observability"
	"github.com/jkaninda/actiondex/internal/storage"
)

// Params override the ranking defaults for a single discovery request.
type Params struct {
	MinScore   float64
	MaxResults int
}

// Result is the outcome of one discovery request.
type Result struct {
	RequestID   uuid.UUID              `json:"request_id"`
	Matches     []matching.MatchResult `json:"matches"`
	CatalogSize int                    `json:"catalog_size"`
	Duration    time.Duration          `json:"-"`
}

// Service ranks the live catalog against queries and keeps the catalog and
// the persistent store in sync. The store and observability are optional.
type Service struct {
	catalog  *catalog.Catalog
	store    storage.Store
	matcher  *matching.Matcher
	obs      *observability.Observability
	logger   *slog.Logger
	defaults Params
}

// New creates a discovery Service. store and obs may be nil.
func New(cat *catalog.Catalog, store storage.Store, obs *observability.Observability, defaults Params, logger *slog.Logger) *Service {
	if defaults.MinScore <= 0 {
		defaults.MinScore = matching.DefaultMinScore
	}
	if defaults.MaxResults <= 0 {
		defaults.MaxResults = matching.DefaultMaxResults
	}
	return &Service{
		catalog:  cat,
		store:    store,
		matcher:  matching.NewMatcher(),
		obs:      obs,
		logger:   logger,
		defaults: defaults,
	}
}

// Discover ranks the current catalog against the query and returns the
// shortlist. Per-request params override the configured defaults; a nil
// override uses the defaults unchanged. The discovery record is persisted
// best-effort: a storage failure is logged, never surfaced to the caller.
func (s *Service) Discover(ctx context.Context, q matching.Query, override *Params) (*Result, error) {
	ctx, span := s.startSpan(ctx, "discovery.discover")
	defer span.End()

	minScore := s.defaults.MinScore
	maxResults := s.defaults.MaxResults
	if override != nil {
		if override.MinScore != 0 {
			minScore = override.MinScore
		}
		if override.MaxResults != 0 {
			maxResults = override.MaxResults
		}
	}

	snapshot := s.catalog.Snapshot()
	started := time.Now()
	matches, err := s.matcher.RankWithParams(snapshot, q, minScore, maxResults)
	elapsed := time.Since(started)
	if err != nil {
		s.countDiscovery("invalid")
		span.RecordError(err)
		return nil, err
	}

	res := &Result{
		RequestID:   uuid.New(),
		Matches:     matches,
		CatalogSize: len(snapshot),
		Duration:    elapsed,
	}

	span.SetAttributes(
		attribute.String("discovery.request_id", res.RequestID.String()),
		attribute.Int("discovery.catalog_size", res.CatalogSize),
		attribute.Int("discovery.results", len(matches)),
	)

	s.countDiscovery("ok")
	if m := s.metrics(); m != nil {
		m.DiscoveryDuration.Observe(elapsed.Seconds())
		m.DiscoveryResults.Observe(float64(len(matches)))
		if len(matches) > 0 {
			m.MatchScores.Observe(matches[0].Score)
		}
	}

	s.logger.Info("discovery completed",
		slog.String("request_id", res.RequestID.String()),
		slog.Int("catalog_size", res.CatalogSize),
		slog.Int("results", len(matches)),
		slog.Duration("duration", elapsed),
	)

	s.recordDiscovery(ctx, q, res)
	return res, nil
}

// Advertise registers an advertisement in the catalog and persists it.
func (s *Service) Advertise(ctx context.Context, ad domain.Advertisement) error {
	ctx, span := s.startSpan(ctx, "discovery.advertise")
	defer span.End()

	if err := s.catalog.Register(ad); err != nil {
		return err
	}
	s.countAdvertisement("register")
	s.setCatalogSize()

	if s.store != nil {
		stored, err := s.catalog.Get(ad.Name)
		if err != nil {
			stored = ad
		}
		if err := s.store.SaveAdvertisement(ctx, &stored); err != nil {
			s.logger.Warn("persisting advertisement failed",
				slog.String("name", ad.Name),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Withdraw removes an advertisement from the catalog and the store.
// Returns catalog.ErrNotFound when the name is unknown.
func (s *Service) Withdraw(ctx context.Context, name string) error {
	if err := s.catalog.Withdraw(name); err != nil {
		return err
	}
	s.countAdvertisement("withdraw")
	s.setCatalogSize()

	if s.store != nil {
		if err := s.store.DeleteAdvertisement(ctx, name); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("deleting stored advertisement failed",
				slog.String("name", name),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// DeregisterAgent removes all advertisements owned by the agent, in the
// catalog and the store, returning how many were removed.
func (s *Service) DeregisterAgent(ctx context.Context, agentID string) int {
	removed := s.catalog.DeregisterAgent(agentID)
	if removed > 0 {
		s.setCatalogSize()
	}
	if s.store != nil {
		if err := s.store.DeleteAgentAdvertisements(ctx, agentID); err != nil {
			s.logger.Warn("deleting agent advertisements failed",
				slog.String("agent_id", agentID),
				slog.String("error", err.Error()),
			)
		}
	}
	return removed
}

// Touch refreshes the last-seen timestamp on all of an agent's advertisements.
func (s *Service) Touch(agentID string) {
	s.catalog.Touch(agentID)
}

// Advertisements lists the live catalog sorted by name.
func (s *Service) Advertisements() []domain.Advertisement {
	return s.catalog.List()
}

// Advertisement returns a single advertisement by action name.
// Returns catalog.ErrNotFound when the name is unknown.
func (s *Service) Advertisement(name string) (domain.Advertisement, error) {
	return s.catalog.Get(name)
}

// CatalogSize returns the number of live advertisements.
func (s *Service) CatalogSize() int {
	return s.catalog.Count()
}

// History returns the most recent discovery records, newest first.
// Returns nil when no store is configured.
func (s *Service) History(ctx context.Context, limit int) ([]domain.DiscoveryRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.ListDiscoveries(ctx, limit)
}

// Rehydrate loads persisted advertisements into the catalog, skipping ones
// that expired while the process was down. Returns how many were restored.
func (s *Service) Rehydrate(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, nil
	}
	ads, err := s.store.ListAdvertisements(ctx)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	restored := 0
	for _, ad := range ads {
		if ad.Expired(now) {
			if err := s.store.DeleteAdvertisement(ctx, ad.Name); err != nil && !errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn("pruning expired stored advertisement failed",
					slog.String("name", ad.Name),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		if err := s.catalog.Register(ad); err != nil {
			s.logger.Warn("skipping invalid stored advertisement",
				slog.String("name", ad.Name),
				slog.String("error", err.Error()),
			)
			continue
		}
		restored++
	}
	s.setCatalogSize()
	return restored, nil
}

func (s *Service) recordDiscovery(ctx context.Context, q matching.Query, res *Result) {
	if s.store == nil {
		return
	}
	rec := &domain.DiscoveryRecord{
		ID:           res.RequestID,
		Keywords:     q.Keywords,
		Capabilities: q.Capabilities,
		ContextTerms: q.ContextTerms,
		CatalogSize:  res.CatalogSize,
		ResultCount:  len(res.Matches),
		DurationMS:   res.Duration.Milliseconds(),
		CreatedAt:    time.Now().UTC(),
	}
	if len(res.Matches) > 0 {
		rec.TopScore = res.Matches[0].Score
	}
	if err := s.store.SaveDiscovery(ctx, rec); err != nil {
		s.logger.Warn("persisting discovery record failed",
			slog.String("request_id", rec.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (s *Service) metrics() *observability.MetricsCollector {
	if s.obs == nil {
		return nil
	}
	return s.obs.Metrics
}

func (s *Service) countDiscovery(status string) {
	if m := s.metrics(); m != nil {
		m.DiscoveriesTotal.WithLabelValues(status).Inc()
	}
}

func (s *Service) countAdvertisement(op string) {
	if m := s.metrics(); m != nil {
		m.AdvertisementsTotal.WithLabelValues(op).Inc()
	}
}

func (s *Service) setCatalogSize() {
	if m := s.metrics(); m != nil {
		m.CatalogSize.Set(float64(s.catalog.Count()))
	}
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s.obs != nil && s.obs.Tracer != nil {
		return s.obs.Tracer.Tracer().Start(ctx, name)
	}
	return trace.NewNoopTracerProvider().Tracer("discovery").Start(ctx, name)
}
