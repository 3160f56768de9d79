package reminders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type purgeMetrics struct {
	purged int64
}

func (m *purgeMetrics) RecordReceiptsPurged(ctx context.Context, n int64) {
	m.purged += n
}

func TestCleanupExpiredReceipts(t *testing.T) {
	var gotCutoff time.Time
	store := &mockReceipts{
		deleteBeforeFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
			gotCutoff = cutoff
			return 3, nil
		},
	}
	metrics := &purgeMetrics{}
	svc := NewCleanupService(store, 30*24*time.Hour, metrics, zerolog.Nop())
	svc.now = fixedNow

	deleted, err := svc.CleanupExpiredReceipts(context.Background())

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if deleted != 3 {
		t.Errorf("Expected 3 deleted, got %d", deleted)
	}
	if want := fixedNow().Add(-30 * 24 * time.Hour); !gotCutoff.Equal(want) {
		t.Errorf("Expected cutoff %v, got %v", want, gotCutoff)
	}
	if metrics.purged != 3 {
		t.Errorf("Expected 3 purged receipts recorded, got %d", metrics.purged)
	}
}

func TestCleanupExpiredReceipts_Nothing(t *testing.T) {
	store := &mockReceipts{
		deleteBeforeFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 0, nil
		},
	}
	metrics := &purgeMetrics{}

	deleted, err := NewCleanupService(store, 0, metrics, zerolog.Nop()).CleanupExpiredReceipts(context.Background())

	if err != nil || deleted != 0 {
		t.Errorf("Expected 0 deleted and no error, got %d, %v", deleted, err)
	}
	if metrics.purged != 0 {
		t.Errorf("Expected nothing recorded, got %d", metrics.purged)
	}
}

func TestCleanupExpiredReceipts_StoreError(t *testing.T) {
	store := &mockReceipts{
		deleteBeforeFunc: func(ctx context.Context, cutoff time.Time) (int64, error) {
			return 0, errors.New("database unavailable")
		},
	}

	if _, err := NewCleanupService(store, time.Hour, nil, zerolog.Nop()).CleanupExpiredReceipts(context.Background()); err == nil {
		t.Error("Expected error, got nil")
	}
}

func TestExpiredReceiptsCount(t *testing.T) {
	store := &mockReceipts{
		countBeforeFunc: func(ctx context.Context, cutoff time.Time) (int, error) {
			return 7, nil
		},
	}

	count, err := NewCleanupService(store, time.Hour, nil, zerolog.Nop()).ExpiredReceiptsCount(context.Background())

	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if count != 7 {
		t.Errorf("Expected 7, got %d", count)
	}
}
