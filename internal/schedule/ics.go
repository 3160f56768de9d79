package schedule

import (
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"
)

const (
	icsProductID = "-//WailSalutem Health Care//Medication Reminders//EN"
	icsLayout    = "20060102T150405"
)

// eventNamespace scopes the deterministic UIDs of exported reminders.
var eventNamespace = uuid.MustParse("8f0c7a52-3f0e-4c55-9a7e-6d3f1f0d2b11")

// ExportICS renders events as an iCalendar document. UIDs are derived from
// each event's summary and start so re-exporting the same prescription
// updates rather than duplicates imported reminders.
func ExportICS(events []CalendarEvent, stamp time.Time) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)

	for i, ev := range events {
		start, err := ev.StartTime()
		if err != nil {
			return "", fmt.Errorf("event %d: %w", i, err)
		}
		end := start.Add(eventLength * time.Minute)
		tzid := &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{ev.Start.TimeZone}}

		uid := uuid.NewSHA1(eventNamespace, []byte(ev.Summary+"|"+ev.Start.DateTime+"|"+ev.Start.TimeZone))
		vevent := cal.AddEvent(uid.String() + "@reminders")
		vevent.SetDtStampTime(stamp.UTC())
		vevent.SetSummary(ev.Summary)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		vevent.SetProperty(ical.ComponentPropertyDtStart, start.Format(icsLayout), tzid)
		vevent.SetProperty(ical.ComponentPropertyDtEnd, end.Format(icsLayout), tzid)

		for _, rule := range ev.Recurrence {
			vevent.AddProperty(ical.ComponentPropertyRrule, strings.TrimPrefix(rule, "RRULE:"))
		}

		for _, o := range ev.Reminders.Overrides {
			alarm := vevent.AddAlarm()
			alarm.SetAction(ical.ActionDisplay)
			alarm.SetTrigger(fmt.Sprintf("-PT%dM", o.Minutes))
			alarm.SetProperty(ical.ComponentPropertyDescription, ev.Summary)
		}
	}

	return cal.Serialize(), nil
}
