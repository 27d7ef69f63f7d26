package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"newsdesk/apperr"
	"newsdesk/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *Store) CreateTopic(ctx context.Context, t *types.Topic) error {
	if err := s.with(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("create topic: %w", err)
	}
	return nil
}

// GetTopic loads a topic with its facts and source plan in order.
func (s *Store) GetTopic(ctx context.Context, id uuid.UUID) (*types.Topic, error) {
	var t types.Topic
	err := s.with(ctx).
		Preload("Facts", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("SourcePlan", func(db *gorm.DB) *gorm.DB { return db.Order("rank") }).
		First(&t, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("topic %s not found", id)
		}
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return &t, nil
}

// PendingTopics returns topics waiting for verification, oldest first.
func (s *Store) PendingTopics(ctx context.Context, limit int) ([]types.Topic, error) {
	var out []types.Topic
	err := s.with(ctx).
		Where("verification_status = ?", types.VerificationPending).
		Order("created_at").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("pending topics: %w", err)
	}
	return out, nil
}

// TopicsAwaitingDraft returns verified topics that have no article yet.
func (s *Store) TopicsAwaitingDraft(ctx context.Context, limit int) ([]types.Topic, error) {
	var out []types.Topic
	err := s.with(ctx).
		Where("verification_status = ? AND article_id IS NULL", types.VerificationVerified).
		Order("verified_at").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("topics awaiting draft: %w", err)
	}
	return out, nil
}

// RejectTopic rejects a topic that is not yet rejected and has no article. It reports whether the topic changed.
func (s *Store) RejectTopic(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	res := s.with(ctx).Model(&types.Topic{}).
		Where("id = ? AND verification_status <> ? AND article_id IS NULL", id, types.VerificationRejected).
		Updates(map[string]any{
			"verification_status": types.VerificationRejected,
			"rejection_reason":    reason,
		})
	if res.Error != nil {
		return false, fmt.Errorf("reject topic: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Verification is the result a verification job commits for one topic.
type Verification struct {
	Facts         []types.VerifiedFact
	Plan          []types.SourcePlanEntry
	SourcingLevel string
	SearchesUsed  int
	VerifiedAt    time.Time
}

// CommitVerification marks the topic verified and writes its facts and source plan.
// It returns a conflict when the topic is no longer pending; run it inside Transaction.
func (s *Store) CommitVerification(ctx context.Context, topicID uuid.UUID, v Verification) error {
	res := s.with(ctx).Model(&types.Topic{}).
		Where("id = ? AND verification_status = ?", topicID, types.VerificationPending).
		Updates(map[string]any{
			"verification_status": types.VerificationVerified,
			"sourcing_level":      v.SourcingLevel,
			"searches_used":       v.SearchesUsed,
			"verified_at":         v.VerifiedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("commit verification: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict(apperr.CodeTopicRejected, "topic %s is no longer pending verification", topicID)
	}
	for i := range v.Facts {
		v.Facts[i].TopicID = topicID
	}
	for i := range v.Plan {
		v.Plan[i].TopicID = topicID
	}
	if len(v.Facts) > 0 {
		if err := s.with(ctx).Create(&v.Facts).Error; err != nil {
			return fmt.Errorf("create facts: %w", err)
		}
	}
	if len(v.Plan) > 0 {
		if err := s.with(ctx).Create(&v.Plan).Error; err != nil {
			return fmt.Errorf("create source plan: %w", err)
		}
	}
	return nil
}

// RecordSearches stores how many searches a rejected verification used.
func (s *Store) RecordSearches(ctx context.Context, topicID uuid.UUID, n int) error {
	return s.with(ctx).Model(&types.Topic{}).Where("id = ?", topicID).Update("searches_used", n).Error
}

// AttachArticle links a verified topic to its article. It returns a conflict when the topic
// was rejected or drafted in the meantime; run it in the transaction that creates the article.
func (s *Store) AttachArticle(ctx context.Context, topicID, articleID uuid.UUID) error {
	res := s.with(ctx).Model(&types.Topic{}).
		Where("id = ? AND article_id IS NULL AND verification_status = ?", topicID, types.VerificationVerified).
		Update("article_id", articleID)
	if res.Error != nil {
		return fmt.Errorf("attach article: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict(apperr.CodeTopicRejected, "topic %s is rejected or already drafted", topicID)
	}
	return nil
}

// TopicSourceIDs returns the distinct source ids in a topic's plan.
func (s *Store) TopicSourceIDs(ctx context.Context, topicID uuid.UUID) ([]string, error) {
	var ids []string
	err := s.with(ctx).Model(&types.SourcePlanEntry{}).
		Distinct("source_id").
		Where("topic_id = ?", topicID).
		Order("source_id").
		Pluck("source_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("topic source ids: %w", err)
	}
	return ids, nil
}
