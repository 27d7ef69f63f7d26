package store

import (
	"context"
	"errors"
	"fmt"

	"newsdesk/apperr"
	"newsdesk/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateFlag stores f unless the article already has a flag for the same mention.
func (s *Store) CreateFlag(ctx context.Context, f *types.MonitorFlag) (bool, error) {
	res := s.with(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "article_id"}, {Name: "mention_url"}},
		DoNothing: true,
	}).Create(f)
	if res.Error != nil {
		return false, fmt.Errorf("create flag: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) GetFlag(ctx context.Context, id uuid.UUID) (*types.MonitorFlag, error) {
	var f types.MonitorFlag
	if err := s.with(ctx).First(&f, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("flag %s not found", id)
		}
		return nil, fmt.Errorf("get flag: %w", err)
	}
	return &f, nil
}

// ResolveFlag moves a pending flag to status. A flag already resolved is a conflict.
func (s *Store) ResolveFlag(ctx context.Context, f *types.MonitorFlag) error {
	res := s.with(ctx).Model(&types.MonitorFlag{}).
		Where("id = ? AND status = ?", f.ID, types.FlagPending).
		Updates(map[string]any{"status": f.Status, "resolved_by": f.ResolvedBy, "resolved_at": f.ResolvedAt})
	if res.Error != nil {
		return fmt.Errorf("resolve flag: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict(apperr.CodeInvalidTransition, "flag %s is already resolved", f.ID)
	}
	return nil
}

// Flags lists flags in status, newest first; an empty status lists all.
func (s *Store) Flags(ctx context.Context, status types.FlagStatus, limit int) ([]types.MonitorFlag, error) {
	q := s.with(ctx).Order("detected_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []types.MonitorFlag
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("flags: %w", err)
	}
	return out, nil
}

// CountFlags counts an article's flags in status.
func (s *Store) CountFlags(ctx context.Context, articleID uuid.UUID, status types.FlagStatus) (int64, error) {
	var n int64
	err := s.with(ctx).Model(&types.MonitorFlag{}).
		Where("article_id = ? AND status = ?", articleID, status).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count flags: %w", err)
	}
	return n, nil
}

// CountCorrections counts corrections appended to an article.
func (s *Store) CountCorrections(ctx context.Context, articleID uuid.UUID) (int64, error) {
	var n int64
	err := s.with(ctx).Model(&types.Correction{}).Where("article_id = ?", articleID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count corrections: %w", err)
	}
	return n, nil
}

// CountPendingFlags counts undecided flags across all articles.
func (s *Store) CountPendingFlags(ctx context.Context) (int64, error) {
	var n int64
	if err := s.with(ctx).Model(&types.MonitorFlag{}).Where("status = ?", types.FlagPending).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count pending flags: %w", err)
	}
	return n, nil
}
