package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// ValidRefreshToken is the only refresh token MockGoogle exchanges.
const ValidRefreshToken = "refresh-ok"

// ValidAccessToken is the access token MockGoogle hands out and accepts.
const ValidAccessToken = "access-ok"

// InsertedEvent is an event body received by the mock calendar API.
type InsertedEvent struct {
	ID          string          `json:"id"`
	Summary     string          `json:"summary"`
	Description string          `json:"description"`
	Start       json.RawMessage `json:"start"`
	End         json.RawMessage `json:"end"`
	Recurrence  []string        `json:"recurrence"`
	Reminders   json.RawMessage `json:"reminders"`
	CalendarID  string          `json:"-"`
}

// MockGoogle is an httptest server standing in for the OAuth token endpoint
// and the Calendar v3 events API. All state is in memory.
type MockGoogle struct {
	Server *httptest.Server

	mu          sync.Mutex
	tokenCalls  int
	insertCalls int
	getCalls    int
	events      map[string]InsertedEvent
	inserted    []InsertedEvent
	// insert call number (1-based) -> HTTP status to fail with
	failures map[int]int
	revoked  bool
}

// NewMockGoogle starts the mock and registers its shutdown with t.
func NewMockGoogle(t *testing.T) *MockGoogle {
	t.Helper()

	m := &MockGoogle{
		events:   make(map[string]InsertedEvent),
		failures: make(map[int]int),
	}

	r := mux.NewRouter()
	r.HandleFunc("/token", m.handleToken).Methods(http.MethodPost)
	r.HandleFunc("/calendar/v3/calendars/{calendarId}/events", m.handleInsert).Methods(http.MethodPost)
	r.HandleFunc("/calendar/v3/calendars/{calendarId}/events/{eventId}", m.handleGet).Methods(http.MethodGet)

	m.Server = httptest.NewServer(r)
	t.Cleanup(m.Server.Close)
	return m
}

func (m *MockGoogle) TokenURL() string {
	return m.Server.URL + "/token"
}

func (m *MockGoogle) CalendarEndpoint() string {
	return m.Server.URL + "/calendar/v3/"
}

// FailInsert makes the n-th insert call (1-based) fail with status.
func (m *MockGoogle) FailInsert(n, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[n] = status
}

// Revoke makes both the token endpoint and the events API reject the user.
func (m *MockGoogle) Revoke() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked = true
}

// SeedEvent stores an event as if an earlier request had created it.
func (m *MockGoogle) SeedEvent(id, summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[id] = InsertedEvent{ID: id, Summary: summary}
}

func (m *MockGoogle) TokenCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenCalls
}

func (m *MockGoogle) InsertCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertCalls
}

func (m *MockGoogle) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

// Inserted returns the events the mock accepted, in order.
func (m *MockGoogle) Inserted() []InsertedEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]InsertedEvent, len(m.inserted))
	copy(out, m.inserted)
	return out
}

func (m *MockGoogle) handleToken(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.tokenCalls++
	revoked := m.revoked
	m.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}
	if r.PostForm.Get("grant_type") != "refresh_token" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}
	if revoked || r.PostForm.Get("refresh_token") != ValidRefreshToken {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":             "invalid_grant",
			"error_description": "Token has been expired or revoked.",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": ValidAccessToken,
		"token_type":   "Bearer",
		"expires_in":   3599,
	})
}

func (m *MockGoogle) handleInsert(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertCalls++
	if !m.authorized(r) {
		writeGoogleError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}
	if status, ok := m.failures[m.insertCalls]; ok {
		writeGoogleError(w, status, "rejected by mock")
		return
	}

	var ev InsertedEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeGoogleError(w, http.StatusBadRequest, "malformed event")
		return
	}
	if ev.ID != "" {
		if _, exists := m.events[ev.ID]; exists {
			writeGoogleError(w, http.StatusConflict, "The requested identifier already exists.")
			return
		}
	} else {
		ev.ID = fmt.Sprintf("evt%03d", len(m.inserted)+1)
	}
	ev.CalendarID = mux.Vars(r)["calendarId"]

	m.events[ev.ID] = ev
	m.inserted = append(m.inserted, ev)
	writeJSON(w, http.StatusOK, eventResource(ev))
}

func (m *MockGoogle) handleGet(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.getCalls++
	if !m.authorized(r) {
		writeGoogleError(w, http.StatusUnauthorized, "Invalid Credentials")
		return
	}
	ev, ok := m.events[mux.Vars(r)["eventId"]]
	if !ok {
		writeGoogleError(w, http.StatusNotFound, "Not Found")
		return
	}
	writeJSON(w, http.StatusOK, eventResource(ev))
}

func (m *MockGoogle) authorized(r *http.Request) bool {
	return !m.revoked && r.Header.Get("Authorization") == "Bearer "+ValidAccessToken
}

func eventResource(ev InsertedEvent) map[string]string {
	return map[string]string{
		"id":       ev.ID,
		"summary":  ev.Summary,
		"htmlLink": "https://calendar.example/event?eid=" + ev.ID,
	}
}

func writeGoogleError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"errors":  []map[string]string{{"message": message, "reason": http.StatusText(status)}},
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
