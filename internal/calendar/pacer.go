package calendar

import (
	"context"
	"time"

	"github.com/juju/ratelimit"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/schedule"
)

// PacedClient spaces provider calls with a token bucket shared by every
// request in the process.
type PacedClient struct {
	next   Client
	bucket *ratelimit.Bucket
}

// NewPacedClient allows burst calls at once and rate calls per second after.
func NewPacedClient(next Client, rate float64, burst int64) *PacedClient {
	return &PacedClient{next: next, bucket: ratelimit.NewBucketWithRate(rate, burst)}
}

func (p *PacedClient) InsertEvent(ctx context.Context, accessToken string, ev schedule.CalendarEvent, eventID string) (CreatedEvent, error) {
	if err := p.wait(ctx); err != nil {
		return CreatedEvent{}, err
	}
	return p.next.InsertEvent(ctx, accessToken, ev, eventID)
}

func (p *PacedClient) GetEvent(ctx context.Context, accessToken, eventID string) (CreatedEvent, error) {
	if err := p.wait(ctx); err != nil {
		return CreatedEvent{}, err
	}
	return p.next.GetEvent(ctx, accessToken, eventID)
}

func (p *PacedClient) wait(ctx context.Context) error {
	d := p.bucket.Take(1)
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
