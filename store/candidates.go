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
	"gorm.io/gorm/clause"
)

// TitleRef is a recent candidate title used for duplicate detection.
type TitleRef struct {
	ID              uuid.UUID
	NormalizedTitle string
}

// CreateCandidate inserts c unless a candidate with the same source URL and channel exists.
// It reports whether a row was written.
func (s *Store) CreateCandidate(ctx context.Context, c *types.EventCandidate) (bool, error) {
	res := s.with(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_url"}, {Name: "discovered_from"}},
			DoNothing: true,
		}).
		Create(c)
	if res.Error != nil {
		return false, fmt.Errorf("create candidate: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// CandidateExists reports whether the (source URL, channel) key is already stored.
func (s *Store) CandidateExists(ctx context.Context, sourceURL string, from types.DiscoverySource) (bool, error) {
	var n int64
	err := s.with(ctx).Model(&types.EventCandidate{}).
		Where("source_url = ? AND discovered_from = ?", sourceURL, from).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("candidate exists: %w", err)
	}
	return n > 0, nil
}

// RecentCandidateTitles lists normalized titles discovered at or after since.
func (s *Store) RecentCandidateTitles(ctx context.Context, since time.Time) ([]TitleRef, error) {
	var refs []TitleRef
	err := s.with(ctx).Model(&types.EventCandidate{}).
		Select("id", "normalized_title").
		Where("discovered_at >= ?", since).
		Order("discovered_at").
		Scan(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("recent candidate titles: %w", err)
	}
	return refs, nil
}

func (s *Store) GetCandidate(ctx context.Context, id uuid.UUID) (*types.EventCandidate, error) {
	var c types.EventCandidate
	if err := s.with(ctx).First(&c, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("candidate %s not found", id)
		}
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return &c, nil
}

// CandidatesForEvaluation returns candidates still awaiting a decision. Never-scored
// candidates come first, oldest first; held candidates follow, least recently scored first.
func (s *Store) CandidatesForEvaluation(ctx context.Context, limit int) ([]types.EventCandidate, error) {
	var out []types.EventCandidate
	err := s.with(ctx).
		Where("status IN ?", []types.CandidateStatus{types.CandidateDiscovered, types.CandidateEvaluated, types.CandidateHold}).
		Order("scored_at IS NOT NULL, scored_at, discovered_at").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("candidates for evaluation: %w", err)
	}
	return out, nil
}

// ApprovedUndrafted returns approved candidates whose topic is not rejected and has no article yet.
func (s *Store) ApprovedUndrafted(ctx context.Context, limit int) ([]types.EventCandidate, error) {
	var out []types.EventCandidate
	err := s.with(ctx).
		Joins("JOIN topics ON topics.id = event_candidates.topic_id").
		Where("event_candidates.status = ? AND topics.verification_status IN ? AND topics.article_id IS NULL",
			types.CandidateApproved, []types.VerificationStatus{types.VerificationPending, types.VerificationVerified}).
		Order("event_candidates.discovered_at").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("approved undrafted: %w", err)
	}
	return out, nil
}

// SaveCandidateDecision writes the scoring outcome of c.
func (s *Store) SaveCandidateDecision(ctx context.Context, c *types.EventCandidate) error {
	err := s.with(ctx).Model(c).
		Select("score_impact", "score_timeliness", "score_proximity", "score_conflict",
			"score_novelty", "score_verifiability", "total_score", "scored_at",
			"status", "rejection_reason", "topic_id").
		Updates(c).Error
	if err != nil {
		return fmt.Errorf("save candidate decision: %w", err)
	}
	return nil
}

// WithdrawCandidate rejects an approved candidate without touching its recorded scores.
func (s *Store) WithdrawCandidate(ctx context.Context, id uuid.UUID, reason string) error {
	err := s.with(ctx).Model(&types.EventCandidate{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": types.CandidateRejected, "rejection_reason": reason}).Error
	if err != nil {
		return fmt.Errorf("withdraw candidate: %w", err)
	}
	return nil
}

// MarkGeneratedCandidates moves approved candidates whose topic has an article to generated.
func (s *Store) MarkGeneratedCandidates(ctx context.Context) (int64, error) {
	drafted := s.with(ctx).Model(&types.Topic{}).Select("id").Where("article_id IS NOT NULL")
	res := s.with(ctx).Model(&types.EventCandidate{}).
		Where("status = ? AND topic_id IN (?)", types.CandidateApproved, drafted).
		Update("status", types.CandidateGenerated)
	if res.Error != nil {
		return 0, fmt.Errorf("mark generated candidates: %w", res.Error)
	}
	return res.RowsAffected, nil
}
