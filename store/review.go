package store

import (
	"context"
	"fmt"
	"time"

	"newsdesk/types"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"
)

// ReviewItem is an open review task with its article.
type ReviewItem struct {
	Task    types.ReviewTask `json:"task"`
	Article types.Article    `json:"article"`
}

// OpenReviewTask opens (or refreshes) the review task for an article.
func (s *Store) OpenReviewTask(ctx context.Context, articleID uuid.UUID, status types.ArticleStatus, reason string, now time.Time) error {
	task := types.ReviewTask{
		ID:            uuid.New(),
		ArticleID:     articleID,
		Status:        types.ReviewOpen,
		ArticleStatus: status,
		Reason:        reason,
		OpenedAt:      now,
	}
	err := s.with(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "article_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"status":         types.ReviewOpen,
			"article_status": status,
			"reason":         reason,
			"opened_at":      now,
			"closed_at":      nil,
		}),
	}).Create(&task).Error
	if err != nil {
		return fmt.Errorf("open review task: %w", err)
	}
	return nil
}

// CloseReviewTask closes the article's review task if one is open.
func (s *Store) CloseReviewTask(ctx context.Context, articleID uuid.UUID, now time.Time) error {
	err := s.with(ctx).Model(&types.ReviewTask{}).
		Where("article_id = ? AND status = ?", articleID, types.ReviewOpen).
		Updates(map[string]any{"status": types.ReviewClosed, "closed_at": now}).Error
	if err != nil {
		return fmt.Errorf("close review task: %w", err)
	}
	return nil
}

// ReviewQueue lists open review tasks, oldest first.
func (s *Store) ReviewQueue(ctx context.Context, limit int) ([]ReviewItem, error) {
	var tasks []types.ReviewTask
	err := s.with(ctx).Where("status = ?", types.ReviewOpen).Order("opened_at").Limit(limit).Find(&tasks).Error
	if err != nil {
		return nil, fmt.Errorf("review queue: %w", err)
	}
	if len(tasks) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ArticleID
	}
	var articles []types.Article
	if err := s.with(ctx).Where("id IN ?", ids).Find(&articles).Error; err != nil {
		return nil, fmt.Errorf("review queue articles: %w", err)
	}
	byID := make(map[uuid.UUID]types.Article, len(articles))
	for _, a := range articles {
		byID[a.ID] = a
	}

	items := make([]ReviewItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, ReviewItem{Task: t, Article: byID[t.ArticleID]})
	}
	return items, nil
}

// CountOpenReviews counts articles waiting on a human decision.
func (s *Store) CountOpenReviews(ctx context.Context) (int64, error) {
	var n int64
	if err := s.with(ctx).Model(&types.ReviewTask{}).Where("status = ?", types.ReviewOpen).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count open reviews: %w", err)
	}
	return n, nil
}
