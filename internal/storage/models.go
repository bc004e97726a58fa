package storage

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jkaninda/actiondex/internal/domain"
)

// AdvertisementModel maps to the "advertisements" table. String slices are
// stored as JSON text so the same model works on SQLite and PostgreSQL.
type AdvertisementModel struct {
	Name         string `gorm:"primaryKey"`
	AgentID      string `gorm:"not null;index"`
	Description  string `gorm:"not null"`
	Similes      string // JSON-encoded []string.
	Capabilities string // JSON-encoded []string.
	TTLSeconds   int64
	AdvertisedAt time.Time
	LastSeenAt   time.Time
	UpdatedAt    time.Time
}

func (AdvertisementModel) TableName() string { return "advertisements" }

// DiscoveryModel maps to the "discoveries" table.
type DiscoveryModel struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey"`
	Keywords     string    // JSON-encoded []string.
	Capabilities string    // JSON-encoded []string.
	ContextTerms string    // JSON-encoded []string.
	CatalogSize  int
	ResultCount  int
	TopScore     float64
	DurationMS   int64
	CreatedAt    time.Time `gorm:"index"`
}

func (DiscoveryModel) TableName() string { return "discoveries" }

func toAdvertisementModel(ad *domain.Advertisement) AdvertisementModel {
	return AdvertisementModel{
		Name:         ad.Name,
		AgentID:      ad.AgentID,
		Description:  ad.Description,
		Similes:      encodeStrings(ad.Similes),
		Capabilities: encodeStrings(ad.Capabilities),
		TTLSeconds:   int64(ad.TTL / time.Second),
		AdvertisedAt: ad.AdvertisedAt,
		LastSeenAt:   ad.LastSeenAt,
	}
}

func toAdvertisementDomain(m *AdvertisementModel) domain.Advertisement {
	return domain.Advertisement{
		Name:         m.Name,
		AgentID:      m.AgentID,
		Description:  m.Description,
		Similes:      decodeStrings(m.Similes),
		Capabilities: decodeStrings(m.Capabilities),
		TTL:          time.Duration(m.TTLSeconds) * time.Second,
		AdvertisedAt: m.AdvertisedAt,
		LastSeenAt:   m.LastSeenAt,
	}
}

func toDiscoveryModel(rec *domain.DiscoveryRecord) DiscoveryModel {
	return DiscoveryModel{
		ID:           rec.ID,
		Keywords:     encodeStrings(rec.Keywords),
		Capabilities: encodeStrings(rec.Capabilities),
		ContextTerms: encodeStrings(rec.ContextTerms),
		CatalogSize:  rec.CatalogSize,
		ResultCount:  rec.ResultCount,
		TopScore:     rec.TopScore,
		DurationMS:   rec.DurationMS,
		CreatedAt:    rec.CreatedAt,
	}
}

func toDiscoveryDomain(m *DiscoveryModel) domain.DiscoveryRecord {
	return domain.DiscoveryRecord{
		ID:           m.ID,
		Keywords:     decodeStrings(m.Keywords),
		Capabilities: decodeStrings(m.Capabilities),
		ContextTerms: decodeStrings(m.ContextTerms),
		CatalogSize:  m.CatalogSize,
		ResultCount:  m.ResultCount,
		TopScore:     m.TopScore,
		DurationMS:   m.DurationMS,
		CreatedAt:    m.CreatedAt,
	}
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return ""
	}
	data, _ := json.Marshal(values)
	return string(data)
}

func decodeStrings(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	return values
}
