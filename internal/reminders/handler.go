package reminders

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/auth"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/pagination"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	service *Service
	logger  zerolog.Logger
}

func NewHandler(service *Service, logger zerolog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type ErrorResponse struct {
	Error       string `json:"error"`
	Message     string `json:"message"`
	NeedsReauth bool   `json:"needsReauth,omitempty"`
}

// SyncCalendar handles POST /reminders/calendar-sync.
func (h *Handler) SyncCalendar(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, CodeMissingAuth, "User not authenticated", false)
		return
	}

	var req SyncRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.service.Sync(r.Context(), principal.UserID, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, res)
}

// Preview handles POST /reminders/preview.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if !h.decode(w, r, &req) {
		return
	}

	plan, err := h.service.Plan(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, plan)
}

// ICS handles POST /reminders/ics.
func (h *Handler) ICS(w http.ResponseWriter, r *http.Request) {
	var req ICSRequest
	if !h.decode(w, r, &req) {
		return
	}

	doc, err := h.service.ICS(req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="reminders.ics"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(doc))
}

// Receipts handles GET /reminders/receipts/{batchId}.
func (h *Handler) Receipts(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, CodeMissingAuth, "User not authenticated", false)
		return
	}

	batchID := strings.TrimSpace(mux.Vars(r)["batchId"])
	if batchID == "" {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "Batch ID is required", false)
		return
	}

	history, err := h.service.History(r.Context(), principal.UserID, batchID, pagination.ParseParams(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid JSON payload: "+err.Error(), false)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var rerr *Error
	if !errors.As(err, &rerr) {
		rerr = errServer("Unexpected failure", err)
	}
	if rerr.Status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	respondError(w, rerr.Status, rerr.Code, rerr.Message, rerr.NeedsReauth)
}

func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, statusCode int, errorType, message string, needsReauth bool) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:       errorType,
		Message:     message,
		NeedsReauth: needsReauth,
	})
}
