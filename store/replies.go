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

var outstandingReplyStatuses = []types.ReplyStatus{types.ReplySent, types.ReplyOpened}

func (s *Store) CreateReply(ctx context.Context, r *types.RightOfReplyRequest) error {
	if err := s.with(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("create reply request: %w", err)
	}
	return nil
}

func (s *Store) GetReply(ctx context.Context, id uuid.UUID) (*types.RightOfReplyRequest, error) {
	var r types.RightOfReplyRequest
	if err := s.with(ctx).First(&r, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("reply request %s not found", id)
		}
		return nil, fmt.Errorf("get reply request: %w", err)
	}
	return &r, nil
}

func (s *Store) SaveReply(ctx context.Context, r *types.RightOfReplyRequest) error {
	if err := s.with(ctx).Save(r).Error; err != nil {
		return fmt.Errorf("save reply request: %w", err)
	}
	return nil
}

func (s *Store) Replies(ctx context.Context, articleID uuid.UUID) ([]types.RightOfReplyRequest, error) {
	var out []types.RightOfReplyRequest
	err := s.with(ctx).Where("article_id = ?", articleID).Order("sent_at").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("replies: %w", err)
	}
	return out, nil
}

// CountOutstandingReplies counts sent or opened requests for an article.
func (s *Store) CountOutstandingReplies(ctx context.Context, articleID uuid.UUID) (int64, error) {
	var n int64
	err := s.with(ctx).Model(&types.RightOfReplyRequest{}).
		Where("article_id = ? AND status IN ?", articleID, outstandingReplyStatuses).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count outstanding replies: %w", err)
	}
	return n, nil
}

// OutstandingReply finds the open request addressed to entity on an article.
func (s *Store) OutstandingReply(ctx context.Context, articleID uuid.UUID, entity string) (*types.RightOfReplyRequest, error) {
	var r types.RightOfReplyRequest
	err := s.with(ctx).
		Where("article_id = ? AND entity_name = ? AND status IN ?", articleID, entity, outstandingReplyStatuses).
		Order("sent_at").
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Conflict(apperr.CodeNoOutstandingReply, "no outstanding reply request for %q on article %s", entity, articleID)
		}
		return nil, fmt.Errorf("outstanding reply: %w", err)
	}
	return &r, nil
}

// ExpiredReplies lists outstanding requests whose deadline is at or before now.
func (s *Store) ExpiredReplies(ctx context.Context, now time.Time) ([]types.RightOfReplyRequest, error) {
	var out []types.RightOfReplyRequest
	err := s.with(ctx).
		Where("status IN ? AND deadline <= ?", outstandingReplyStatuses, now).
		Order("deadline").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("expired replies: %w", err)
	}
	return out, nil
}
