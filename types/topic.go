package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// VerificationStatus is the outcome of the verification gate for a topic
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationRejected VerificationStatus = "rejected"
)

// FactClassification separates what was seen from what was said and what was inferred
type FactClassification string

const (
	FactObserved    FactClassification = "observed"
	FactClaimed     FactClassification = "claimed"
	FactInterpreted FactClassification = "interpreted"
)

// SourceKind orders the sourcing hierarchy, strongest first
type SourceKind string

const (
	KindIndividual   SourceKind = "individual"
	KindOrganization SourceKind = "organization"
	KindDocument     SourceKind = "document"
	KindAnonymous    SourceKind = "anonymous"
	KindRumor        SourceKind = "rumor"
)

// Rank is the position of k in the sourcing hierarchy; rumor sorts last and is never cited
func (k SourceKind) Rank() int {
	switch k {
	case KindIndividual:
		return 0
	case KindOrganization:
		return 1
	case KindDocument:
		return 2
	case KindAnonymous:
		return 3
	default:
		return 4
	}
}

// Sourcing level labels
const (
	SourcingAggregated   = "aggregated"
	SourcingCorroborated = "corroborated"
	SourcingMultiSourced = "multi-sourced"
)

// SourcingLevel labels a story by its count of independent sources
func SourcingLevel(independent int) string {
	switch {
	case independent >= 5:
		return SourcingMultiSourced
	case independent >= 2:
		return SourcingCorroborated
	default:
		return SourcingAggregated
	}
}

// Topic is an approved candidate going through verification
type Topic struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	CandidateID        uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex" json:"candidate_id"`
	Title              string             `gorm:"not null" json:"title"`
	Summary            string             `gorm:"type:text" json:"summary"`
	SourceURL          string             `json:"source_url"`
	Category           string             `json:"category"`
	Region             string             `json:"region"`
	VerificationStatus VerificationStatus `gorm:"not null;index" json:"verification_status"`
	RejectionReason    string             `json:"rejection_reason,omitempty"`
	SourcingLevel      string             `json:"sourcing_level,omitempty"`
	SearchesUsed       int                `json:"searches_used"`
	VerifiedAt         *time.Time         `json:"verified_at,omitempty"`
	ArticleID          *uuid.UUID         `gorm:"type:uuid" json:"article_id,omitempty"`
	Facts              []VerifiedFact     `gorm:"foreignKey:TopicID" json:"verified_facts,omitempty"`
	SourcePlan         []SourcePlanEntry  `gorm:"foreignKey:TopicID" json:"source_plan,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (t *Topic) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// VerifiedFact is one fact that passed cross-referencing
type VerifiedFact struct {
	ID             uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	TopicID        uuid.UUID          `gorm:"type:uuid;not null;index" json:"topic_id"`
	Position       int                `json:"position"`
	Text           string             `gorm:"type:text;not null" json:"text"`
	Classification FactClassification `gorm:"not null" json:"classification"`
	Contentious    bool               `json:"contentious"`
	// SourceRefs holds the source ids supporting the fact, JSON encoded
	SourceRefs datatypes.JSON `json:"source_refs"`
}

func (f *VerifiedFact) BeforeCreate(*gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// SourcePlanEntry is one rung of a topic's ordered sourcing plan
type SourcePlanEntry struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TopicID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"topic_id"`
	Rank          int        `json:"rank"`
	SourceID      string     `gorm:"not null;index" json:"source_id"`
	Name          string     `json:"name"`
	URL           string     `json:"url"`
	Kind          SourceKind `gorm:"not null" json:"kind"`
	Academic      bool       `json:"academic"`
	Primary       bool       `json:"primary"`
	Credibility   float64    `json:"credibility"`
	Justification string     `json:"justification,omitempty"`
}

func (e *SourcePlanEntry) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
