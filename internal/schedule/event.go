// Package schedule turns a parsed prescription into recurring calendar
// reminder events, lets a user review the dose times before submission and
// exports events as an iCalendar file.
package schedule

import (
	"errors"
	"fmt"
	"time"
)

// DateTimeLayout is the provider's floating local date-time format.
const DateTimeLayout = "2006-01-02T15:04:05"

const (
	reminderMethod  = "popup"
	reminderMinutes = 10
	eventLength     = 5
)

var ErrInvalidEvent = errors.New("invalid calendar event")

// CalendarEvent is the provider wire shape of one recurring dose reminder.
type CalendarEvent struct {
	Summary     string        `json:"summary"`
	Description string        `json:"description,omitempty"`
	Start       EventDateTime `json:"start"`
	End         EventDateTime `json:"end"`
	Recurrence  []string      `json:"recurrence,omitempty"`
	Reminders   Reminders     `json:"reminders"`
}

type EventDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

type Reminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []ReminderOverride `json:"overrides"`
}

type ReminderOverride struct {
	Method  string `json:"method"`
	Minutes int    `json:"minutes"`
}

// StartTime resolves the event's floating start in its own time zone.
func (e CalendarEvent) StartTime() (time.Time, error) {
	loc, err := time.LoadLocation(e.Start.TimeZone)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time zone %q: %v", ErrInvalidEvent, e.Start.TimeZone, err)
	}
	t, err := time.ParseInLocation(DateTimeLayout, e.Start.DateTime, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: start %q: %v", ErrInvalidEvent, e.Start.DateTime, err)
	}
	return t, nil
}

func defaultReminders() Reminders {
	return Reminders{
		UseDefault: false,
		Overrides:  []ReminderOverride{{Method: reminderMethod, Minutes: reminderMinutes}},
	}
}
