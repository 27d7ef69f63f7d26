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

func (s *Store) CreateArticle(ctx context.Context, a *types.Article) error {
	if a.Version == 0 {
		a.Version = 1
	}
	if err := s.with(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("create article: %w", err)
	}
	return nil
}

func (s *Store) GetArticle(ctx context.Context, id uuid.UUID) (*types.Article, error) {
	var a types.Article
	if err := s.with(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("article %s not found", id)
		}
		return nil, fmt.Errorf("get article: %w", err)
	}
	return &a, nil
}

// UpdateArticle writes every column of a when the stored version still equals a.Version,
// then bumps a.Version. A stale version is a concurrency conflict.
func (s *Store) UpdateArticle(ctx context.Context, a *types.Article) error {
	expected := a.Version
	a.Version = expected + 1
	res := s.with(ctx).Model(a).
		Select("*").
		Omit("id", "created_at", "topic_id").
		Where("version = ?", expected).
		Updates(a)
	if res.Error != nil {
		a.Version = expected
		return fmt.Errorf("update article: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		a.Version = expected
		return apperr.Conflict(apperr.CodeStaleVersion, "article %s was modified concurrently (version %d)", a.ID, expected)
	}
	return nil
}

// ArticlesByStatus lists articles in status, oldest update first.
func (s *Store) ArticlesByStatus(ctx context.Context, status types.ArticleStatus, limit int) ([]types.Article, error) {
	var out []types.Article
	err := s.with(ctx).Where("status = ?", status).Order("updated_at").Limit(limit).Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("articles by status: %w", err)
	}
	return out, nil
}

// DueForPublication lists approved articles with no schedule or a schedule at or before now.
func (s *Store) DueForPublication(ctx context.Context, now time.Time, limit int) ([]types.Article, error) {
	var out []types.Article
	err := s.with(ctx).
		Where("status = ? AND (scheduled_for IS NULL OR scheduled_for <= ?)", types.StatusApproved, now).
		Order("updated_at").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("due for publication: %w", err)
	}
	return out, nil
}

// MonitoredArticles lists published articles whose monitoring window is still open.
// Articles never checked come first, then the least recently checked.
func (s *Store) MonitoredArticles(ctx context.Context, limit int) ([]types.Article, error) {
	var out []types.Article
	err := s.with(ctx).
		Where("status = ? AND monitoring_closed_at IS NULL", types.StatusPublished).
		Order("last_monitored_at IS NOT NULL, last_monitored_at, published_at").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("monitored articles: %w", err)
	}
	return out, nil
}

// MarkMonitored records when the monitor last checked an article. It leaves the
// article's version alone.
func (s *Store) MarkMonitored(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := s.with(ctx).Model(&types.Article{}).
		Where("id = ?", id).
		UpdateColumn("last_monitored_at", at).Error
	if err != nil {
		return fmt.Errorf("mark monitored: %w", err)
	}
	return nil
}

// CloseMonitoring stamps the end of an article's monitoring window.
func (s *Store) CloseMonitoring(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := s.with(ctx).Model(&types.Article{}).
		Where("id = ? AND monitoring_closed_at IS NULL", id).
		Update("monitoring_closed_at", at)
	if res.Error != nil {
		return false, fmt.Errorf("close monitoring: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// AppendRevision stores r with the next revision number for its article.
func (s *Store) AppendRevision(ctx context.Context, r *types.ArticleRevision) error {
	var last int
	err := s.with(ctx).Model(&types.ArticleRevision{}).
		Where("article_id = ?", r.ArticleID).
		Select("COALESCE(MAX(revision_number), 0)").
		Scan(&last).Error
	if err != nil {
		return fmt.Errorf("next revision number: %w", err)
	}
	r.RevisionNumber = last + 1
	if err := s.with(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("append revision: %w", err)
	}
	return nil
}

func (s *Store) Revisions(ctx context.Context, articleID uuid.UUID) ([]types.ArticleRevision, error) {
	var out []types.ArticleRevision
	err := s.with(ctx).Where("article_id = ?", articleID).Order("revision_number").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("revisions: %w", err)
	}
	return out, nil
}

// AppendEvent stores e with the next sequence number for its article.
func (s *Store) AppendEvent(ctx context.Context, e *types.ArticleEvent) error {
	var last int
	err := s.with(ctx).Model(&types.ArticleEvent{}).
		Where("article_id = ?", e.ArticleID).
		Select("COALESCE(MAX(sequence), 0)").
		Scan(&last).Error
	if err != nil {
		return fmt.Errorf("next event sequence: %w", err)
	}
	e.Sequence = last + 1
	if err := s.with(ctx).Create(e).Error; err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (s *Store) Events(ctx context.Context, articleID uuid.UUID) ([]types.ArticleEvent, error) {
	var out []types.ArticleEvent
	err := s.with(ctx).Where("article_id = ?", articleID).Order("sequence").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return out, nil
}

func (s *Store) CreateCorrection(ctx context.Context, c *types.Correction) error {
	if err := s.with(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create correction: %w", err)
	}
	return nil
}

func (s *Store) Corrections(ctx context.Context, articleID uuid.UUID) ([]types.Correction, error) {
	var out []types.Correction
	err := s.with(ctx).Where("article_id = ?", articleID).Order("corrected_at").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("corrections: %w", err)
	}
	return out, nil
}
