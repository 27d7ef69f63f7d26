package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ArticleStatus is the editorial state of an article
type ArticleStatus string

const (
	StatusDraft             ArticleStatus = "draft"
	StatusAIReview          ArticleStatus = "ai_review"
	StatusPendingReview     ArticleStatus = "pending_review"
	StatusApproved          ArticleStatus = "approved"
	StatusRevisionRequested ArticleStatus = "revision_requested"
	StatusRejected          ArticleStatus = "rejected"
	StatusPublished         ArticleStatus = "published"
	StatusAwaitingReply     ArticleStatus = "awaiting_reply"
	StatusUnderReview       ArticleStatus = "under_review"
	StatusEscalated         ArticleStatus = "escalated"
)

// Terminal reports whether no further transition can leave s
func (s ArticleStatus) Terminal() bool {
	return s == StatusPublished || s == StatusRejected
}

// Article is a generated story moving through editorial review
type Article struct {
	ID                   uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TopicID              uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex" json:"topic_id"`
	Headline             string         `gorm:"not null" json:"headline"`
	Body                 string         `gorm:"type:text" json:"body"`
	Category             string         `json:"category"`
	Region               string         `json:"region"`
	Status               ArticleStatus  `gorm:"not null;index" json:"status"`
	BiasScanReport       datatypes.JSON `json:"bias_scan_report,omitempty"`
	BiasFlagged          bool           `json:"bias_flagged"`
	SelfAuditPassed      bool           `json:"self_audit_passed"`
	SelfAuditReport      datatypes.JSON `json:"self_audit_report,omitempty"`
	ReadingLevel         float64        `json:"reading_level"`
	EditorialNotes       string         `gorm:"type:text" json:"editorial_notes,omitempty"`
	AssignedEditor       string         `json:"assigned_editor,omitempty"`
	RevisionCount        int            `json:"revision_count"`
	Submissions          int            `json:"submissions"`
	DraftAttempts        int            `json:"draft_attempts"`
	RightOfReplyResponse string         `gorm:"type:text" json:"right_of_reply_response,omitempty"`
	ScheduledFor         *time.Time     `gorm:"index" json:"scheduled_for,omitempty"`
	PublishedAt          *time.Time     `json:"published_at,omitempty"`
	MonitoringClosedAt   *time.Time     `json:"monitoring_closed_at,omitempty"`
	LastMonitoredAt      *time.Time     `gorm:"index" json:"last_monitored_at,omitempty"`
	Version              int            `gorm:"not null;default:1" json:"version"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func (a *Article) BeforeCreate(*gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ArticleRevision is an immutable snapshot of an article body
type ArticleRevision struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ArticleID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_revision_number" json:"article_id"`
	RevisionNumber int       `gorm:"not null;uniqueIndex:idx_revision_number" json:"revision_number"`
	Headline       string    `json:"headline"`
	Body           string    `gorm:"type:text" json:"body"`
	RevisedBy      string    `json:"revised_by"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r *ArticleRevision) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// EventKind tags an ArticleEvent
type EventKind string

const (
	EventCreated         EventKind = "created"
	EventSubmitted       EventKind = "submitted_for_ai_review"
	EventAIReviewPassed  EventKind = "ai_review_passed"
	EventAIReviewFailed  EventKind = "ai_review_failed"
	EventBiasFlagged     EventKind = "bias_flagged"
	EventApproved        EventKind = "approved"
	EventRevisionRequest EventKind = "revision_requested"
	EventRejected        EventKind = "rejected"
	EventEscalated       EventKind = "escalated"
	EventPulledBack      EventKind = "pulled_back"
	EventRedrafted       EventKind = "redrafted"
	EventReplyRequested  EventKind = "reply_requested"
	EventReplyRecorded   EventKind = "reply_recorded"
	EventReplyBypassed   EventKind = "reply_bypassed"
	EventReplyExpired    EventKind = "reply_expired"
	EventRepliesResolved EventKind = "replies_resolved"
	EventEditorAssigned  EventKind = "editor_assigned"
	EventPublished       EventKind = "published"
)

// ArticleEvent is one entry in the append-only editorial log. Article.Status is its projection.
type ArticleEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ArticleID  uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:idx_event_sequence" json:"article_id"`
	Sequence   int            `gorm:"not null;uniqueIndex:idx_event_sequence" json:"sequence"`
	Kind       EventKind      `gorm:"not null" json:"kind"`
	FromStatus ArticleStatus  `json:"from_status,omitempty"`
	ToStatus   ArticleStatus  `json:"to_status"`
	Actor      string         `json:"actor"`
	Reason     string         `gorm:"type:text" json:"reason,omitempty"`
	Payload    datatypes.JSON `json:"payload,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (e *ArticleEvent) BeforeCreate(*gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// Correction is an appended post-publication correction; the article body is never rewritten
type Correction struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ArticleID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"article_id"`
	FlagID         *uuid.UUID `gorm:"type:uuid" json:"flag_id,omitempty"`
	CorrectionText string     `gorm:"type:text;not null" json:"correction_text"`
	WhatChanged    string     `gorm:"type:text" json:"what_changed"`
	Reason         string     `gorm:"type:text" json:"reason"`
	CorrectedBy    string     `gorm:"not null" json:"corrected_by"`
	CorrectedAt    time.Time  `gorm:"not null" json:"corrected_at"`
}

func (c *Correction) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ReviewTaskStatus is open while an article waits on a human decision
type ReviewTaskStatus string

const (
	ReviewOpen   ReviewTaskStatus = "open"
	ReviewClosed ReviewTaskStatus = "closed"
)

// ReviewTask is a durable entry in the human review queue
type ReviewTask struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	ArticleID     uuid.UUID        `gorm:"type:uuid;not null;uniqueIndex" json:"article_id"`
	Status        ReviewTaskStatus `gorm:"not null;index" json:"status"`
	ArticleStatus ArticleStatus    `json:"article_status"`
	Reason        string           `json:"reason"`
	OpenedAt      time.Time        `json:"opened_at"`
	ClosedAt      *time.Time       `json:"closed_at,omitempty"`
}

func (t *ReviewTask) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
