package store

import (
	"context"
	"fmt"
	"time"

	"newsdesk/types"
)

// AppendLedgerEntries inserts reliability entries. The ledger is never updated in place.
func (s *Store) AppendLedgerEntries(ctx context.Context, entries ...types.SourceReliabilityLogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.with(ctx).Create(&entries).Error; err != nil {
		return fmt.Errorf("append ledger entries: %w", err)
	}
	return nil
}

// LedgerEntriesSince lists entries created at or after since, oldest first.
func (s *Store) LedgerEntriesSince(ctx context.Context, since time.Time) ([]types.SourceReliabilityLogEntry, error) {
	var out []types.SourceReliabilityLogEntry
	err := s.with(ctx).Where("created_at >= ?", since).Order("created_at").Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("ledger entries: %w", err)
	}
	return out, nil
}
