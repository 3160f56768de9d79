package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRetention is how long batch receipts are kept.
const DefaultRetention = 365 * 24 * time.Hour

// CleanupMetrics records purged receipts.
type CleanupMetrics interface {
	RecordReceiptsPurged(ctx context.Context, n int64)
}

// CleanupService permanently deletes batch receipts older than the
// retention period.
type CleanupService struct {
	store     ReceiptStore
	retention time.Duration
	metrics   CleanupMetrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewCleanupService(store ReceiptStore, retention time.Duration, metrics CleanupMetrics, logger zerolog.Logger) *CleanupService {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &CleanupService{
		store:     store,
		retention: retention,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *CleanupService) cutoff() time.Time {
	return s.now().Add(-s.retention)
}

// CleanupExpiredReceipts deletes every receipt created before the cutoff
// and returns how many were removed.
func (s *CleanupService) CleanupExpiredReceipts(ctx context.Context) (int64, error) {
	cutoff := s.cutoff()
	s.logger.Info().Time("cutoff", cutoff).Msg("starting cleanup of expired batch receipts")

	deleted, err := s.store.DeleteReceiptsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup receipts: %w", err)
	}
	if deleted == 0 {
		s.logger.Info().Msg("no expired receipts found for cleanup")
		return 0, nil
	}

	if s.metrics != nil {
		s.metrics.RecordReceiptsPurged(ctx, deleted)
	}
	s.logger.Info().Int64("deleted", deleted).Msg("cleaned up expired receipts")
	return deleted, nil
}

// ExpiredReceiptsCount returns the number of receipts eligible for cleanup.
func (s *CleanupService) ExpiredReceiptsCount(ctx context.Context) (int, error) {
	count, err := s.store.CountReceiptsBefore(ctx, s.cutoff())
	if err != nil {
		return 0, fmt.Errorf("count expired receipts: %w", err)
	}
	return count, nil
}
