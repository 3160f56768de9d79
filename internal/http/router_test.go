package http

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/calendar"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/reminders"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/schedule"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/testutil"
)

// memStore keeps credentials and receipts in memory.
type memStore struct {
	mu       sync.Mutex
	tokens   map[string]string
	receipts []reminders.Receipt
}

func newMemStore() *memStore {
	return &memStore{tokens: make(map[string]string)}
}

func (s *memStore) RefreshToken(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[userID]
	if !ok {
		return "", reminders.ErrNoCredential
	}
	return tok, nil
}

func (s *memStore) SaveReceipt(ctx context.Context, r reminders.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = fmt.Sprintf("receipt-%d", len(s.receipts)+1)
	s.receipts = append(s.receipts, r)
	return nil
}

func (s *memStore) matching(userID, batchID string) []reminders.Receipt {
	var out []reminders.Receipt
	for _, r := range s.receipts {
		if r.UserID == userID && r.BatchID == batchID {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) ListReceipts(ctx context.Context, userID, batchID string, limit, offset int) ([]reminders.Receipt, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.matching(userID, batchID)
	if offset >= len(all) {
		return []reminders.Receipt{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (s *memStore) MergedEventIDs(ctx context.Context, userID, batchID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	ids := []string{}
	for _, r := range s.matching(userID, batchID) {
		for _, id := range r.CreatedEventIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

func (s *memStore) DeleteReceiptsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (s *memStore) CountReceiptsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	return 0, nil
}

type fakeMetrics struct {
	mu     sync.Mutex
	routes []string
	auth   []string
}

func (m *fakeMetrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationMs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, fmt.Sprintf("%s %s %d", method, route, statusCode))
}

func (m *fakeMetrics) RecordAuthFailure(ctx context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auth = append(m.auth, reason)
}

type testEnv struct {
	server    *httptest.Server
	google    *testutil.MockGoogle
	store     *memStore
	publisher *testutil.MockPublisher
	metrics   *fakeMetrics
	token     string
	expired   string
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	google := testutil.NewMockGoogle(t)
	verifier, key := testutil.CreateTestVerifier(t)
	store := newMemStore()
	publisher := testutil.NewMockPublisher()
	metrics := &fakeMetrics{}

	svc := reminders.NewService(reminders.Deps{
		Credentials: store,
		Receipts:    store,
		Tokens:      calendar.NewTokenProvider("client-id", "client-secret", google.TokenURL(), google.Server.Client()),
		Calendar: calendar.NewGoogleClient(calendar.GoogleClientConfig{
			Endpoint:   google.CalendarEndpoint(),
			HTTPClient: google.Server.Client(),
		}),
		Publisher:       publisher,
		Logger:          zerolog.Nop(),
		DefaultTimeZone: "Asia/Kolkata",
	})

	router := SetupRouter(RouterConfig{
		ServiceName: "reminder-service",
		Reminders:   reminders.NewHandler(svc, zerolog.Nop()),
		Verifier:    verifier,
		Metrics:     metrics,
		Logger:      zerolog.Nop(),
	})
	server := httptest.NewServer(CORSMiddleware([]string{"http://localhost:3000"})(router))
	t.Cleanup(server.Close)

	return &testEnv{
		server:    server,
		google:    google,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		token:     testutil.GeneratePatientToken(t, key, "patient-1"),
		expired:   testutil.GenerateExpiredToken(t, key, "patient-1"),
	}
}

func (e *testEnv) grantCalendarAccess(userID string) {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	e.store.tokens[userID] = testutil.ValidRefreshToken
}

func events(n int) []schedule.CalendarEvent {
	out := make([]schedule.CalendarEvent, n)
	for i := range out {
		out[i] = schedule.CalendarEvent{
			Summary:    fmt.Sprintf("Take Dose %d", i+1),
			Start:      schedule.EventDateTime{DateTime: fmt.Sprintf("2024-03-15T%02d:00:00", 8+i), TimeZone: "Asia/Kolkata"},
			End:        schedule.EventDateTime{DateTime: fmt.Sprintf("2024-03-15T%02d:05:00", 8+i), TimeZone: "Asia/Kolkata"},
			Recurrence: []string{"RRULE:FREQ=DAILY;COUNT=5"},
			Reminders: schedule.Reminders{
				Overrides: []schedule.ReminderOverride{{Method: "popup", Minutes: 10}},
			},
		}
	}
	return out
}

type syncResponse struct {
	Created []struct {
		ID       string `json:"id"`
		HTMLLink string `json:"htmlLink"`
		Summary  string `json:"summary"`
	} `json:"created"`
	Failed    []reminders.FailedEvent `json:"failed"`
	CreatedAt time.Time               `json:"createdAt"`
}

type errorResponse struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	NeedsReauth bool   `json:"needsReauth"`
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)

	resp := testutil.NewHTTPTestClient(env.server.URL, "").GET(t, "/health")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if body := testutil.ReadBody(t, resp); !strings.Contains(body, `"status":"ok"`) {
		t.Errorf("Unexpected health body %s", body)
	}
}

func TestCalendarSync_MissingAuth(t *testing.T) {
	env := setupTestEnv(t)

	resp := testutil.NewHTTPTestClient(env.server.URL, "").POST(t, "/reminders/calendar-sync", map[string]interface{}{"events": events(1)})

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}
	var body errorResponse
	testutil.DecodeJSON(t, resp, &body)
	if body.Error != "missing_auth" {
		t.Errorf("Expected missing_auth, got %s", body.Error)
	}
	if len(env.metrics.auth) != 1 || env.metrics.auth[0] != "missing_auth" {
		t.Errorf("Expected one missing_auth failure recorded, got %v", env.metrics.auth)
	}
}

func TestCalendarSync_ExpiredToken(t *testing.T) {
	env := setupTestEnv(t)

	resp := testutil.NewHTTPTestClient(env.server.URL, env.expired).POST(t, "/reminders/calendar-sync", map[string]interface{}{"events": events(1)})

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}
	var body errorResponse
	testutil.DecodeJSON(t, resp, &body)
	if body.Error != "invalid_token" {
		t.Errorf("Expected invalid_token, got %s", body.Error)
	}
	if !strings.Contains(strings.ToLower(body.Message), "expired") {
		t.Errorf("Expected verifier diagnostic, got %q", body.Message)
	}
}

func TestCalendarSync_NoRefreshToken(t *testing.T) {
	env := setupTestEnv(t)

	resp := testutil.NewHTTPTestClient(env.server.URL, env.token).POST(t, "/reminders/calendar-sync", map[string]interface{}{"events": events(2)})

	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", resp.StatusCode)
	}
	var body errorResponse
	testutil.DecodeJSON(t, resp, &body)
	if body.Error != "no_refresh_token" || !body.NeedsReauth {
		t.Errorf("Expected no_refresh_token with needsReauth, got %+v", body)
	}
	if env.google.TokenCalls() != 0 {
		t.Errorf("Expected no token exchange, got %d", env.google.TokenCalls())
	}
	env.publisher.AssertEventPublished(t, messaging.EventReminderReauthRequired)
}

func TestCalendarSync_EmptyEvents(t *testing.T) {
	env := setupTestEnv(t)
	env.grantCalendarAccess("patient-1")

	resp := testutil.NewHTTPTestClient(env.server.URL, env.token).POST(t, "/reminders/calendar-sync", []byte(`{"events":[]}`))

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
	var body errorResponse
	testutil.DecodeJSON(t, resp, &body)
	if body.Error != "no_events" {
		t.Errorf("Expected no_events, got %s", body.Error)
	}
	if env.google.TokenCalls() != 0 || env.google.InsertCalls() != 0 {
		t.Errorf("Expected no provider calls, got %d token and %d insert", env.google.TokenCalls(), env.google.InsertCalls())
	}
}

func TestCalendarSync_PartialFailure(t *testing.T) {
	env := setupTestEnv(t)
	env.grantCalendarAccess("patient-1")
	env.google.FailInsert(3, http.StatusBadRequest)

	resp := testutil.NewHTTPTestClient(env.server.URL, env.token).POST(t, "/reminders/calendar-sync", map[string]interface{}{"events": events(5)})

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.StatusCode, testutil.ReadBody(t, resp))
	}
	var body syncResponse
	testutil.DecodeJSON(t, resp, &body)

	if len(body.Created) != 4 {
		t.Fatalf("Expected 4 created entries, got %d", len(body.Created))
	}
	if body.Created[2].Summary != "Take Dose 4" {
		t.Errorf("Expected the third entry to be dose 4, got %s", body.Created[2].Summary)
	}
	for _, c := range body.Created {
		if c.ID == "" || c.HTMLLink == "" {
			t.Errorf("Expected id and link on every entry, got %+v", c)
		}
	}
	if len(body.Failed) != 1 || body.Failed[0].Index != 2 {
		t.Errorf("Expected event #3 to be reported failed, got %+v", body.Failed)
	}
	if env.google.TokenCalls() != 1 || env.google.InsertCalls() != 5 {
		t.Errorf("Expected 1 token and 5 insert calls, got %d and %d", env.google.TokenCalls(), env.google.InsertCalls())
	}

	inserted := env.google.Inserted()
	if len(inserted[0].Recurrence) != 1 || inserted[0].Recurrence[0] != "RRULE:FREQ=DAILY;COUNT=5" {
		t.Errorf("Expected recurrence to reach the provider, got %v", inserted[0].Recurrence)
	}
	if !strings.Contains(string(inserted[0].Reminders), `"useDefault":false`) {
		t.Errorf("Expected useDefault=false on the wire, got %s", inserted[0].Reminders)
	}
}

func TestCalendarSync_RevokedGrant(t *testing.T) {
	env := setupTestEnv(t)
	env.grantCalendarAccess("patient-1")
	env.google.Revoke()

	resp := testutil.NewHTTPTestClient(env.server.URL, env.token).POST(t, "/reminders/calendar-sync", map[string]interface{}{"events": events(2)})

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}
	var body errorResponse
	testutil.DecodeJSON(t, resp, &body)
	if body.Error != "invalid_grant" || !body.NeedsReauth {
		t.Errorf("Expected invalid_grant with needsReauth, got %+v", body)
	}
	if env.google.InsertCalls() != 0 {
		t.Errorf("Expected no insert calls, got %d", env.google.InsertCalls())
	}
	if got := env.publisher.LastReauthRequired(t); got.UserID != "patient-1" {
		t.Errorf("Expected reauth event for patient-1, got %+v", got)
	}
}

func TestCalendarSync_AbortOnProviderUnauthorized(t *testing.T) {
	env := setupTestEnv(t)
	env.grantCalendarAccess("patient-1")
	env.google.FailInsert(2, http.StatusUnauthorized)

	resp := testutil.NewHTTPTestClient(env.server.URL, env.token).POST(t, "/reminders/calendar-sync", map[string]interface{}{"events": events(4)})

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.StatusCode)
	}
	var body errorResponse
	testutil.DecodeJSON(t, resp, &body)
	if body.Error != "invalid_grant" || !body.NeedsReauth {
		t.Errorf("Expected invalid_grant with needsReauth, got %+v", body)
	}
	if env.google.InsertCalls() != 2 {
		t.Errorf("Expected the batch to stop after 2 calls, got %d", env.google.InsertCalls())
	}
}

func TestCalendarSync_ResubmittedBatchIsDeduplicated(t *testing.T) {
	env := setupTestEnv(t)
	env.grantCalendarAccess("patient-1")
	client := testutil.NewHTTPTestClient(env.server.URL, env.token)
	payload := map[string]interface{}{"events": events(3), "prescriptionId": "rx-42"}

	var first, second syncResponse
	resp := client.POST(t, "/reminders/calendar-sync", payload)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.DecodeJSON(t, resp, &first)

	resp = client.POST(t, "/reminders/calendar-sync", payload)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	testutil.DecodeJSON(t, resp, &second)

	if len(env.google.Inserted()) != 3 {
		t.Errorf("Expected 3 distinct provider events, got %d", len(env.google.Inserted()))
	}
	if env.google.GetCalls() != 3 {
		t.Errorf("Expected 3 lookups of existing events, got %d", env.google.GetCalls())
	}
	if len(second.Created) != 3 {
		t.Fatalf("Expected resubmission to report 3 events, got %d", len(second.Created))
	}
	for i := range first.Created {
		if first.Created[i].ID != second.Created[i].ID {
			t.Errorf("Expected same event id on resubmission, got %s and %s", first.Created[i].ID, second.Created[i].ID)
		}
	}

	resp = client.GET(t, "/reminders/receipts/rx-42")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var history reminders.ReceiptHistory
	testutil.DecodeJSON(t, resp, &history)
	if len(history.Receipts) != 2 {
		t.Errorf("Expected both submissions in the history, got %d", len(history.Receipts))
	}
	if len(history.CreatedEventIDs) != 3 {
		t.Errorf("Expected 3 merged event ids, got %v", history.CreatedEventIDs)
	}
}

func TestPreviewAndICS(t *testing.T) {
	env := setupTestEnv(t)
	client := testutil.NewHTTPTestClient(env.server.URL, env.token)
	rx := map[string]interface{}{
		"prescription": map[string]interface{}{
			"doctorName": "Mehta",
			"date":       "15/03/2024",
			"medicines": []map[string]string{
				{"name": "Amoxicillin", "frequency": "three times a day", "duration": "7 days"},
			},
		},
	}

	resp := client.POST(t, "/reminders/preview", rx)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var plan reminders.Plan
	testutil.DecodeJSON(t, resp, &plan)
	if len(plan.Events) != 3 {
		t.Errorf("Expected 3 events, got %d", len(plan.Events))
	}

	resp = client.POST(t, "/reminders/ics", rx)
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	if body := testutil.ReadBody(t, resp); strings.Count(body, "BEGIN:VEVENT") != 3 {
		t.Errorf("Expected 3 VEVENTs, got body %s", body)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := setupTestEnv(t)

	req, _ := http.NewRequest(http.MethodOptions, env.server.URL+"/reminders/calendar-sync", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Expected allowed origin echoed, got %q", got)
	}
}

func TestRequestMetricsUseRouteTemplate(t *testing.T) {
	env := setupTestEnv(t)
	env.grantCalendarAccess("patient-1")

	resp := testutil.NewHTTPTestClient(env.server.URL, env.token).GET(t, "/reminders/receipts/unknown")
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)

	env.metrics.mu.Lock()
	defer env.metrics.mu.Unlock()
	found := false
	for _, r := range env.metrics.routes {
		if r == "GET /reminders/receipts/{batchId} 404" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected templated route in metrics, got %v", env.metrics.routes)
	}
}
