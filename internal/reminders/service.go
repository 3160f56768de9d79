// Package reminders is the calendar sync gateway: it resolves a user's
// delegated calendar credential, submits reminder events to the provider
// and keeps an append-only history of submitted batches.
package reminders

import (
	"context"
	"crypto/sha1"
	"encoding/base32"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/calendar"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/pagination"
	redisclient "github.com/WailSalutem-Health-Care/reminder-service/internal/redis"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/schedule"
)

const providerName = "google"

var tracer = otel.Tracer("github.com/WailSalutem-Health-Care/reminder-service/reminders")

// Deps are the collaborators of a Service. Locker, Publisher and Metrics
// are optional.
type Deps struct {
	Credentials     CredentialStore
	Receipts        ReceiptStore
	Tokens          calendar.TokenProvider
	Calendar        calendar.Client
	Locker          redisclient.Locker
	Publisher       messaging.PublisherInterface
	Metrics         Metrics
	Logger          zerolog.Logger
	DefaultTimeZone string
	Now             func() time.Time
}

type Service struct {
	creds     CredentialStore
	receipts  ReceiptStore
	tokens    calendar.TokenProvider
	client    calendar.Client
	locker    redisclient.Locker
	publisher messaging.PublisherInterface
	metrics   Metrics
	logger    zerolog.Logger
	tz        string
	now       func() time.Time
}

func NewService(d Deps) *Service {
	s := &Service{
		creds:     d.Credentials,
		receipts:  d.Receipts,
		tokens:    d.Tokens,
		client:    d.Calendar,
		locker:    d.Locker,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		logger:    d.Logger,
		tz:        d.DefaultTimeZone,
		now:       d.Now,
	}
	if s.locker == nil {
		s.locker = redisclient.NoopLocker{}
	}
	if s.publisher == nil {
		s.publisher = messaging.NoopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.tz == "" {
		s.tz = "UTC"
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Sync submits req.Events to userID's calendar. Individual rejected events
// are reported in the result; only missing credentials, a revoked grant and
// unexpected failures fail the whole call.
func (s *Service) Sync(ctx context.Context, userID string, req SyncRequest) (res *SyncResult, err error) {
	ctx, span := tracer.Start(ctx, "reminders.Sync")
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID),
		attribute.String("batch.id", req.PrescriptionID),
		attribute.Int("events.requested", len(req.Events)),
	)
	defer func() {
		code := codeOf(err)
		s.metrics.RecordSync(ctx, code)
		if err != nil {
			span.SetStatus(codes.Error, code)
		}
	}()

	refreshToken, err := s.creds.RefreshToken(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNoCredential) {
			s.publishReauth(ctx, userID, req.PrescriptionID, CodeNoRefreshToken)
			return nil, errNoRefreshToken()
		}
		return nil, errServer("Failed to load calendar credential", err)
	}

	if len(req.Events) == 0 {
		return nil, errNoEvents()
	}

	// Once submission starts it runs to completion or failure.
	ctx = context.WithoutCancel(ctx)

	batchID := strings.TrimSpace(req.PrescriptionID)
	if batchID == "" {
		return s.submit(ctx, userID, "", refreshToken, req.Events)
	}

	ran := false
	lockErr := s.locker.WithBatchLock(ctx, userID, batchID, func(lctx context.Context) error {
		ran = true
		res, err = s.submit(lctx, userID, batchID, refreshToken, req.Events)
		return err
	})
	switch {
	case ran:
		return res, err
	case errors.Is(lockErr, redisclient.ErrLockNotAcquired):
		return nil, errBatchInProgress(batchID)
	default:
		s.logger.Warn().Err(lockErr).Str("batch_id", batchID).Msg("batch lock unavailable, submitting unlocked")
		return s.submit(ctx, userID, batchID, refreshToken, req.Events)
	}
}

func (s *Service) submit(ctx context.Context, userID, batchID, refreshToken string, events []schedule.CalendarEvent) (*SyncResult, error) {
	accessToken, err := s.tokens.AccessToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, calendar.ErrInvalidGrant) {
			s.publishReauth(ctx, userID, batchID, CodeInvalidGrant)
			return nil, errInvalidGrant(err)
		}
		return nil, errServer("Failed to obtain calendar access", err)
	}

	st := s.submitEvents(ctx, userID, batchID, accessToken, events)
	if st.aborted {
		s.logger.Warn().Err(st.abortErr).
			Str("user_id", userID).
			Int("created", len(st.created)).
			Msg("calendar provider revoked access mid-batch")
		s.publishReauth(ctx, userID, batchID, CodeInvalidGrant)
		return nil, errInvalidGrant(st.abortErr)
	}

	res := &SyncResult{
		Created:   st.created,
		Failed:    st.failed,
		CreatedAt: s.now().UTC(),
	}
	if res.Created == nil {
		res.Created = []calendar.CreatedEvent{}
	}

	if batchID != "" {
		s.saveReceipt(ctx, userID, batchID, res)
	}
	if len(res.Created) > 0 {
		s.publishBatchCreated(ctx, userID, batchID, res)
	}

	s.logger.Info().
		Str("user_id", userID).
		Str("batch_id", batchID).
		Int("created", len(res.Created)).
		Int("failed", len(res.Failed)).
		Msg("reminder batch submitted")
	return res, nil
}

// foldState accumulates the outcome of submitting a batch event by event.
type foldState struct {
	created  []calendar.CreatedEvent
	failed   []FailedEvent
	aborted  bool
	abortErr error
}

// submitEvents folds the events into a foldState in order, one provider
// call at a time. An authorization failure stops the fold.
func (s *Service) submitEvents(ctx context.Context, userID, batchID, accessToken string, events []schedule.CalendarEvent) foldState {
	st := foldState{}
	for i, ev := range events {
		st = s.step(ctx, st, i, ev, accessToken, derivedEventID(userID, batchID, i, ev))
		if st.aborted {
			break
		}
	}
	return st
}

func (s *Service) step(ctx context.Context, st foldState, i int, ev schedule.CalendarEvent, accessToken, eventID string) foldState {
	created, err := s.client.InsertEvent(ctx, accessToken, ev, eventID)
	outcome := OutcomeCreated
	if err != nil && eventID != "" && errors.Is(err, calendar.ErrDuplicate) {
		created, err = s.client.GetEvent(ctx, accessToken, eventID)
		outcome = OutcomeDuplicate
	}

	switch {
	case err == nil:
		s.metrics.RecordReminderEvent(ctx, outcome)
		st.created = append(st.created, created)
	case errors.Is(err, calendar.ErrUnauthorized):
		st.aborted = true
		st.abortErr = err
	default:
		s.metrics.RecordReminderEvent(ctx, OutcomeFailed)
		s.logger.Warn().Err(err).Int("index", i).Str("summary", ev.Summary).Msg("calendar event rejected, continuing")
		st.failed = append(st.failed, FailedEvent{Index: i, Summary: ev.Summary, Message: err.Error()})
	}
	return st
}

var eventIDEncoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// derivedEventID is a provider event id that is stable for the same event
// in the same batch, so a resubmitted batch hits the existing event. Ids
// are only derived when a batch id is given.
func derivedEventID(userID, batchID string, index int, ev schedule.CalendarEvent) string {
	if batchID == "" {
		return ""
	}
	h := sha1.New()
	for _, part := range []string{userID, batchID, strconv.Itoa(index), ev.Summary, ev.Start.DateTime, ev.Start.TimeZone} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return strings.ToLower(eventIDEncoding.EncodeToString(h.Sum(nil)))
}

func (s *Service) saveReceipt(ctx context.Context, userID, batchID string, res *SyncResult) {
	ids := make([]string, 0, len(res.Created))
	for _, c := range res.Created {
		ids = append(ids, c.ID)
	}
	err := s.receipts.SaveReceipt(ctx, Receipt{
		BatchID:         batchID,
		UserID:          userID,
		CreatedEventIDs: ids,
		FailedCount:     len(res.Failed),
		CreatedAt:       res.CreatedAt,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("batch_id", batchID).Msg("failed to save batch receipt")
	}
}

func (s *Service) publishBatchCreated(ctx context.Context, userID, batchID string, res *SyncResult) {
	ids := make([]string, 0, len(res.Created))
	for _, c := range res.Created {
		ids = append(ids, c.ID)
	}
	event := messaging.ReminderBatchCreatedEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventReminderBatchCreated),
		Data: messaging.ReminderBatchCreatedData{
			UserID:          userID,
			BatchID:         batchID,
			CreatedEventIDs: ids,
			FailedCount:     len(res.Failed),
			CreatedAt:       res.CreatedAt,
		},
	}
	if err := s.publisher.Publish(ctx, messaging.EventReminderBatchCreated, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish batch created event")
	}
}

func (s *Service) publishReauth(ctx context.Context, userID, batchID, reason string) {
	event := messaging.ReminderReauthRequiredEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventReminderReauthRequired),
		Data: messaging.ReminderReauthRequiredData{
			UserID:   userID,
			Provider: providerName,
			Reason:   reason,
			BatchID:  batchID,
			At:       s.now().UTC(),
		},
	}
	if err := s.publisher.Publish(ctx, messaging.EventReminderReauthRequired, event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish reauth required event")
	}
}

// History returns one page of the caller's receipts for batchID together
// with the merged ids of every event created across all of them.
func (s *Service) History(ctx context.Context, userID, batchID string, params pagination.Params) (*ReceiptHistory, error) {
	params.Validate()

	receipts, total, err := s.receipts.ListReceipts(ctx, userID, batchID, params.Limit, params.CalculateOffset())
	if err != nil {
		return nil, errServer("Failed to load receipts", err)
	}
	if total == 0 {
		return nil, errNotFound("No receipts for batch " + batchID)
	}

	ids, err := s.receipts.MergedEventIDs(ctx, userID, batchID)
	if err != nil {
		return nil, errServer("Failed to load receipts", err)
	}
	if receipts == nil {
		receipts = []Receipt{}
	}

	return &ReceiptHistory{
		BatchID:         batchID,
		CreatedEventIDs: ids,
		Receipts:        receipts,
		Pagination:      params.CalculateMeta(total),
	}, nil
}

func (s *Service) builder(tz string) (*schedule.Builder, error) {
	if tz == "" {
		tz = s.tz
	}
	b, err := schedule.NewBuilder(schedule.Options{TimeZone: tz, Now: s.now})
	if err != nil {
		return nil, errInvalidRequest(fmt.Sprintf("Unknown time zone %q", tz), err)
	}
	return b, nil
}

// Plan derives the reminder schedule for a prescription without touching
// the provider.
func (s *Service) Plan(req PlanRequest) (*Plan, error) {
	b, err := s.builder(req.TimeZone)
	if err != nil {
		return nil, err
	}
	preview, err := b.Preview(req.Prescription)
	if err != nil {
		return nil, errServer("Failed to build schedule", err)
	}
	events := b.Build(req.Prescription)
	if events == nil {
		events = []schedule.CalendarEvent{}
	}
	return &Plan{
		Preview: preview,
		Review:  schedule.NewReview(req.Prescription).Medicines(),
		Events:  events,
	}, nil
}

// ICS renders events as an iCalendar document.
func (s *Service) ICS(req ICSRequest) (string, error) {
	events := req.Events
	if len(events) == 0 && req.Prescription != nil {
		b, err := s.builder(req.TimeZone)
		if err != nil {
			return "", err
		}
		events = b.Build(*req.Prescription)
	}
	if len(events) == 0 {
		return "", errNoEvents()
	}

	doc, err := schedule.ExportICS(events, s.now())
	if err != nil {
		if errors.Is(err, schedule.ErrInvalidEvent) {
			return "", errInvalidRequest(err.Error(), err)
		}
		return "", errServer("Failed to export calendar", err)
	}
	return doc, nil
}
