package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ReliabilityEvent is the outcome recorded against a source
type ReliabilityEvent string

const (
	ReliabilityClaimVerified    ReliabilityEvent = "claim_verified"
	ReliabilityClaimFalse       ReliabilityEvent = "claim_false"
	ReliabilityCorrectionNeeded ReliabilityEvent = "correction_needed"
	ReliabilityNoIssue          ReliabilityEvent = "no_issue"
)

// SourceReliabilityLogEntry is an append-only credibility signal for a source
type SourceReliabilityLogEntry struct {
	ID        uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	SourceID  string           `gorm:"not null;index" json:"source_id"`
	ArticleID *uuid.UUID       `gorm:"type:uuid;index" json:"article_id,omitempty"`
	Event     ReliabilityEvent `gorm:"not null" json:"event"`
	Impact    float64          `json:"impact"`
	Notes     string           `json:"notes,omitempty"`
	CreatedAt time.Time        `gorm:"not null;index" json:"created_at"`
}

func (e *SourceReliabilityLogEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// FlagStatus tracks a monitor flag through human review
type FlagStatus string

const (
	FlagPending   FlagStatus = "pending"
	FlagApproved  FlagStatus = "approved"
	FlagDismissed FlagStatus = "dismissed"
)

// MonitorFlag is a suspected contradiction of a published article awaiting an editor
type MonitorFlag struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ArticleID  uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_flag_mention" json:"article_id"`
	MentionURL string     `gorm:"not null;uniqueIndex:idx_flag_mention" json:"mention_url"`
	Snippet    string     `gorm:"type:text" json:"snippet"`
	Reason     string     `json:"reason"`
	Status     FlagStatus `gorm:"not null;index" json:"status"`
	// ContradictedSources holds the source ids whose claims the mention disputes, JSON encoded
	ContradictedSources datatypes.JSON `json:"contradicted_sources,omitempty"`
	DetectedAt          time.Time      `json:"detected_at"`
	ResolvedBy          string         `json:"resolved_by,omitempty"`
	ResolvedAt          *time.Time     `json:"resolved_at,omitempty"`
}

func (f *MonitorFlag) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
