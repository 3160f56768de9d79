// Package calendar talks to the external calendar provider on behalf of a
// user: refresh-token exchange, event creation and lookup, and call pacing.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/schedule"
)

var (
	// ErrInvalidGrant means the delegated credential was revoked or expired.
	ErrInvalidGrant = errors.New("invalid_grant")
	// ErrUnauthorized means the provider refused the access token mid-batch.
	ErrUnauthorized = errors.New("provider rejected access token")
	// ErrDuplicate means an event with the requested id already exists.
	ErrDuplicate = errors.New("event already exists")
)

// CreatedEvent identifies an event stored at the provider.
type CreatedEvent struct {
	ID       string `json:"id"`
	HTMLLink string `json:"htmlLink"`
	Summary  string `json:"summary"`
}

// Client creates reminder events in a user's calendar.
type Client interface {
	// InsertEvent creates ev. A non-empty eventID asks the provider to use
	// that id, so a retried insert fails with ErrDuplicate.
	InsertEvent(ctx context.Context, accessToken string, ev schedule.CalendarEvent, eventID string) (CreatedEvent, error)
	GetEvent(ctx context.Context, accessToken, eventID string) (CreatedEvent, error)
}

// GoogleClient implements Client on the Google Calendar v3 API.
type GoogleClient struct {
	calendarID string
	endpoint   string
	httpClient *http.Client
}

type GoogleClientConfig struct {
	CalendarID string
	// Endpoint overrides the API base URL; empty uses the public API.
	Endpoint   string
	HTTPClient *http.Client
}

func NewGoogleClient(cfg GoogleClientConfig) *GoogleClient {
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	endpoint := cfg.Endpoint
	if endpoint != "" && !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &GoogleClient{calendarID: calendarID, endpoint: endpoint, httpClient: cfg.HTTPClient}
}

func (c *GoogleClient) service(ctx context.Context, accessToken string) (*gcal.Service, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	return svc, nil
}

func (c *GoogleClient) InsertEvent(ctx context.Context, accessToken string, ev schedule.CalendarEvent, eventID string) (CreatedEvent, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return CreatedEvent{}, err
	}

	created, err := svc.Events.Insert(c.calendarID, toGoogleEvent(ev, eventID)).Context(ctx).Do()
	if err != nil {
		return CreatedEvent{}, classify("insert event", err)
	}
	return fromGoogleEvent(created), nil
}

func (c *GoogleClient) GetEvent(ctx context.Context, accessToken, eventID string) (CreatedEvent, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return CreatedEvent{}, err
	}

	found, err := svc.Events.Get(c.calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return CreatedEvent{}, classify("get event", err)
	}
	return fromGoogleEvent(found), nil
}

func toGoogleEvent(ev schedule.CalendarEvent, eventID string) *gcal.Event {
	overrides := make([]*gcal.EventReminder, 0, len(ev.Reminders.Overrides))
	for _, o := range ev.Reminders.Overrides {
		overrides = append(overrides, &gcal.EventReminder{Method: o.Method, Minutes: int64(o.Minutes)})
	}

	return &gcal.Event{
		Id:          eventID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.DateTime, TimeZone: ev.Start.TimeZone},
		End:         &gcal.EventDateTime{DateTime: ev.End.DateTime, TimeZone: ev.End.TimeZone},
		Recurrence:  ev.Recurrence,
		Reminders: &gcal.EventReminders{
			UseDefault: ev.Reminders.UseDefault,
			Overrides:  overrides,
			// useDefault=false is dropped by omitempty otherwise
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func fromGoogleEvent(ev *gcal.Event) CreatedEvent {
	return CreatedEvent{ID: ev.Id, HTMLLink: ev.HtmlLink, Summary: ev.Summary}
}

func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
		case http.StatusConflict:
			return fmt.Errorf("%s: %w: %v", op, ErrDuplicate, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
