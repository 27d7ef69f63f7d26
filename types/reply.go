package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntityType is who a right-of-reply request goes to
type EntityType string

const (
	EntityPerson     EntityType = "person"
	EntityOrg        EntityType = "org"
	EntityGovernment EntityType = "government"
)

// ReplyStatus tracks a right-of-reply request
type ReplyStatus string

const (
	ReplySent       ReplyStatus = "sent"
	ReplyOpened     ReplyStatus = "opened"
	ReplyReplied    ReplyStatus = "replied"
	ReplyNoResponse ReplyStatus = "no_response"
	ReplyBypassed   ReplyStatus = "bypassed"
)

// Outstanding reports whether the request still blocks its article
func (s ReplyStatus) Outstanding() bool {
	return s == ReplySent || s == ReplyOpened
}

// DeliveryStatus is what the notification provider reported for the outbound request
type DeliveryStatus string

const (
	DeliveryQueued    DeliveryStatus = "queued"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryFailed    DeliveryStatus = "failed"
)

// RightOfReplyRequest asks an entity named in an article to respond before publication
type RightOfReplyRequest struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ArticleID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"article_id"`
	EntityName     string         `gorm:"not null" json:"entity_name"`
	EntityType     EntityType     `gorm:"not null" json:"entity_type"`
	Contact        string         `json:"-"`
	Urgent         bool           `json:"urgent"`
	Status         ReplyStatus    `gorm:"not null;index" json:"status"`
	DeliveryStatus DeliveryStatus `json:"delivery_status"`
	Deadline       time.Time      `gorm:"not null;index" json:"deadline"`
	ResponseText   string         `gorm:"type:text" json:"response_text,omitempty"`
	BypassReason   string         `json:"bypass_reason,omitempty"`
	RequestedBy    string         `json:"requested_by"`
	SentAt         time.Time      `json:"sent_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty"`
}

func (r *RightOfReplyRequest) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
