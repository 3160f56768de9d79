package reminders

import (
	"context"
	"time"
)

// CredentialStore reads delegated calendar credentials. It returns
// ErrNoCredential when the user has none.
type CredentialStore interface {
	RefreshToken(ctx context.Context, userID string) (string, error)
}

// ReceiptStore persists batch receipts.
type ReceiptStore interface {
	SaveReceipt(ctx context.Context, r Receipt) error
	ListReceipts(ctx context.Context, userID, batchID string, limit, offset int) ([]Receipt, int, error)
	MergedEventIDs(ctx context.Context, userID, batchID string) ([]string, error)
	DeleteReceiptsBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountReceiptsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// Metrics records sync outcomes.
type Metrics interface {
	RecordSync(ctx context.Context, code string)
	RecordReminderEvent(ctx context.Context, outcome string)
}

type noopMetrics struct{}

func (noopMetrics) RecordSync(context.Context, string)          {}
func (noopMetrics) RecordReminderEvent(context.Context, string) {}

// Event outcomes recorded per submitted event.
const (
	OutcomeCreated   = "created"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)
