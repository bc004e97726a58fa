package httpapi

import (
	"time"

	"github.com/jkaninda/actiondex/internal/domain"
	"github.com/jkaninda/actiondex/internal/matching"
)

// ErrorBody is the standard error response used in OpenAPI documentation.
type ErrorBody struct {
	Error string `json:"error"`
}

// DiscoverRequest is the JSON body for POST /v1/discover.
type DiscoverRequest struct {
	Keywords     []string `json:"keywords,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	ContextTerms []string `json:"context_terms,omitempty"`
	MinScore     *float64 `json:"min_score,omitempty"`   // Default: configured floor.
	MaxResults   int      `json:"max_results,omitempty"` // Default: configured cap.
}

// Query converts the request into a matching query.
func (r DiscoverRequest) Query() matching.Query {
	return matching.Query{
		Keywords:     r.Keywords,
		Capabilities: r.Capabilities,
		ContextTerms: r.ContextTerms,
	}
}

// DiscoverResponse is the JSON response for POST /v1/discover.
type DiscoverResponse struct {
	RequestID   string                 `json:"request_id"`
	CatalogSize int                    `json:"catalog_size"`
	Results     []matching.MatchResult `json:"results"`
}

// AdvertiseRequest is the JSON body for POST /v1/actions.
type AdvertiseRequest struct {
	AgentID      string   `json:"agent_id"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Similes      []string `json:"similes,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	TTLSeconds   int      `json:"ttl_seconds,omitempty"` // 0 = no expiry.
}

// Advertisement converts the request into a domain advertisement.
func (r AdvertiseRequest) Advertisement() domain.Advertisement {
	return domain.Advertisement{
		AgentID:      r.AgentID,
		Name:         r.Name,
		Description:  r.Description,
		Similes:      r.Similes,
		Capabilities: r.Capabilities,
		TTL:          time.Duration(r.TTLSeconds) * time.Second,
	}
}

// ActionResponse is one advertisement in GET /v1/actions.
type ActionResponse struct {
	AgentID      string    `json:"agent_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Similes      []string  `json:"similes,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	TTLSeconds   int       `json:"ttl_seconds,omitempty"`
	AdvertisedAt time.Time `json:"advertised_at"`
	LastSeenAt   time.Time `json:"last_seen_at"`
}

func toActionResponse(ad domain.Advertisement) ActionResponse {
	return ActionResponse{
		AgentID:      ad.AgentID,
		Name:         ad.Name,
		Description:  ad.Description,
		Similes:      ad.Similes,
		Capabilities: ad.Capabilities,
		TTLSeconds:   int(ad.TTL.Seconds()),
		AdvertisedAt: ad.AdvertisedAt,
		LastSeenAt:   ad.LastSeenAt,
	}
}

// DiscoveryHistoryResponse is one record in GET /v1/discoveries.
type DiscoveryHistoryResponse struct {
	ID           string    `json:"id"`
	Keywords     []string  `json:"keywords,omitempty"`
	Capabilities []string  `json:"capabilities,omitempty"`
	ContextTerms []string  `json:"context_terms,omitempty"`
	CatalogSize  int       `json:"catalog_size"`
	ResultCount  int       `json:"result_count"`
	TopScore     float64   `json:"top_score"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

func toHistoryResponse(rec domain.DiscoveryRecord) DiscoveryHistoryResponse {
	return DiscoveryHistoryResponse{
		ID:           rec.ID.String(),
		Keywords:     rec.Keywords,
		Capabilities: rec.Capabilities,
		ContextTerms: rec.ContextTerms,
		CatalogSize:  rec.CatalogSize,
		ResultCount:  rec.ResultCount,
		TopScore:     rec.TopScore,
		DurationMS:   rec.DurationMS,
		CreatedAt:    rec.CreatedAt,
	}
}

// HealthResponse is the JSON response for health endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}
