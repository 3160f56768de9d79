package reminders

import (
	"time"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/calendar"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/pagination"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/prescription"
	"github.com/WailSalutem-Health-Care/reminder-service/internal/schedule"
)

// SyncRequest is the calendar-sync body.
type SyncRequest struct {
	Events         []schedule.CalendarEvent `json:"events"`
	PrescriptionID string                   `json:"prescriptionId,omitempty"`
}

// FailedEvent describes one event the provider rejected.
type FailedEvent struct {
	Index   int    `json:"index"`
	Summary string `json:"summary"`
	Message string `json:"message"`
}

// SyncResult is the receipt returned to the caller. Created may be shorter
// than the request when individual events were rejected.
type SyncResult struct {
	Created   []calendar.CreatedEvent `json:"created"`
	Failed    []FailedEvent           `json:"failed,omitempty"`
	CreatedAt time.Time               `json:"createdAt"`
}

// Receipt is one stored batch submission. Rows are only ever inserted.
type Receipt struct {
	ID              string    `json:"id"`
	BatchID         string    `json:"batchId"`
	UserID          string    `json:"-"`
	CreatedEventIDs []string  `json:"createdEventIds"`
	FailedCount     int       `json:"failedCount"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ReceiptHistory merges every submission of a batch.
type ReceiptHistory struct {
	BatchID         string          `json:"batchId"`
	CreatedEventIDs []string        `json:"createdEventIds"`
	Receipts        []Receipt       `json:"receipts"`
	Pagination      pagination.Meta `json:"pagination"`
}

// PlanRequest asks for the derived schedule of a prescription. TimeZone
// falls back to the service default.
type PlanRequest struct {
	Prescription prescription.ParsedPrescription `json:"prescription"`
	TimeZone     string                          `json:"timeZone,omitempty"`
}

// Plan is what a review UI needs to start editing: the derived schedule,
// the editable dose times and the events that would be submitted.
type Plan struct {
	Preview schedule.Preview         `json:"preview"`
	Review  []schedule.ReviewItem    `json:"review"`
	Events  []schedule.CalendarEvent `json:"events"`
}

// ICSRequest carries either ready events or a prescription to build them
// from. Events win when both are present.
type ICSRequest struct {
	Events       []schedule.CalendarEvent         `json:"events,omitempty"`
	Prescription *prescription.ParsedPrescription `json:"prescription,omitempty"`
	TimeZone     string                           `json:"timeZone,omitempty"`
}
