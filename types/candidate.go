package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscoverySource is the connector channel a candidate arrived through
type DiscoverySource string

const (
	SourceRSS        DiscoverySource = "rss"
	SourceSocial     DiscoverySource = "social"
	SourceGovernment DiscoverySource = "government"
	SourceManual     DiscoverySource = "manual"
)

// Valid reports whether s is one of the known channels
func (s DiscoverySource) Valid() bool {
	switch s {
	case SourceRSS, SourceSocial, SourceGovernment, SourceManual:
		return true
	}
	return false
}

// CandidateStatus is the lifecycle state of an EventCandidate
type CandidateStatus string

const (
	CandidateDiscovered CandidateStatus = "discovered"
	// CandidateEvaluated marks a candidate scored through a preview, without a decision
	CandidateEvaluated CandidateStatus = "evaluated"
	CandidateApproved  CandidateStatus = "approved"
	CandidateRejected  CandidateStatus = "rejected"
	CandidateHold      CandidateStatus = "hold"
	CandidateGenerated CandidateStatus = "generated"
)

// SubScores are the six newsworthiness dimensions
type SubScores struct {
	Impact        int `json:"impact"`        // 0-20
	Timeliness    int `json:"timeliness"`    // 0-20
	Proximity     int `json:"proximity"`     // 0-15
	Conflict      int `json:"conflict"`      // 0-15
	Novelty       int `json:"novelty"`       // 0-15
	Verifiability int `json:"verifiability"` // 0-15
}

// Total sums the sub-scores
func (s SubScores) Total() int {
	return s.Impact + s.Timeliness + s.Proximity + s.Conflict + s.Novelty + s.Verifiability
}

// RawCandidate is a connector-normalized item before intake persists it
type RawCandidate struct {
	Title          string          `json:"title"`
	Description    string          `json:"description"`
	URL            string          `json:"url"`
	DiscoveredFrom DiscoverySource `json:"discovered_from"`
	SourceName     string          `json:"source_name,omitempty"`
	Region         string          `json:"region,omitempty"`
	Category       string          `json:"category,omitempty"`
	PublishedAt    *time.Time      `json:"published_at,omitempty"`
}

// EventCandidate is a raw signal that may become a story
type EventCandidate struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string          `gorm:"not null" json:"title"`
	Description     string          `gorm:"type:text" json:"description"`
	SourceURL       string          `gorm:"not null;uniqueIndex:idx_candidate_source" json:"source_url"`
	DiscoveredFrom  DiscoverySource `gorm:"not null;uniqueIndex:idx_candidate_source" json:"discovered_from"`
	NormalizedTitle string          `gorm:"index" json:"-"`
	SourceName      string          `json:"source_name,omitempty"`
	Region          string          `json:"region,omitempty"`
	Category        string          `json:"category,omitempty"`
	PublishedAt     *time.Time      `json:"published_at,omitempty"`
	DiscoveredAt    time.Time       `gorm:"not null;index" json:"discovered_at"`
	Scores          SubScores       `gorm:"embedded;embeddedPrefix:score_" json:"scores"`
	TotalScore      int             `json:"total_score"`
	ScoredAt        *time.Time      `json:"scored_at,omitempty"`
	Status          CandidateStatus `gorm:"not null;index" json:"status"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	TopicID         *uuid.UUID      `gorm:"type:uuid" json:"topic_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (c *EventCandidate) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// SourceKey hashes the idempotence key of a candidate (normalized URL + channel)
func SourceKey(normalizedURL string, from DiscoverySource) string {
	hash := sha256.Sum256([]byte(normalizedURL + "|" + string(from)))
	return hex.EncodeToString(hash[:])
}
