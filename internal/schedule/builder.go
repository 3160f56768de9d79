package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/prescription"
)

// Options configures a Builder.
type Options struct {
	// TimeZone is the IANA zone written on every event and used to resolve
	// "today" when the prescription date is unreadable.
	TimeZone string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Builder derives calendar events from prescriptions. Given the same
// prescription and the same current date it always yields the same events.
type Builder struct {
	tz  string
	loc *time.Location
	now func() time.Time
}

func NewBuilder(opts Options) (*Builder, error) {
	loc, err := time.LoadLocation(opts.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", opts.TimeZone, err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Builder{tz: opts.TimeZone, loc: loc, now: now}, nil
}

// TimeZone returns the zone name events are written in.
func (b *Builder) TimeZone() string {
	return b.tz
}

// StartDate returns the prescription date as YYYY-MM-DD.
func (b *Builder) StartDate(p prescription.ParsedPrescription) string {
	return prescription.NormalizeDate(p.Date, b.now().In(b.loc))
}

// Build returns one event per medicine and dose time, in medicine order and
// then time order. Medicines without a name are skipped.
func (b *Builder) Build(p prescription.ParsedPrescription) []CalendarEvent {
	date := b.StartDate(p)

	var events []CalendarEvent
	for _, m := range p.Medicines {
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		sched := prescription.ScheduleFor(m)
		summary := eventSummary(m)
		description := eventDescription(p.DoctorName, m)
		recurrence := []string{recurrenceRule(sched.DurationDays)}

		for _, t := range sched.Times {
			start, _ := prescription.ParseClock(t)
			events = append(events, CalendarEvent{
				Summary:     summary,
				Description: description,
				Start:       EventDateTime{DateTime: dateTime(date, start), TimeZone: b.tz},
				End:         EventDateTime{DateTime: dateTime(date, start+eventLength), TimeZone: b.tz},
				Recurrence:  append([]string(nil), recurrence...),
				Reminders:   defaultReminders(),
			})
		}
	}
	return events
}

// dateTime keeps the date string even when the clock wraps past midnight.
func dateTime(date string, minutes int) string {
	return date + "T" + prescription.FormatClock(minutes) + ":00"
}

func recurrenceRule(days int) string {
	opt := rrule.ROption{Freq: rrule.DAILY, Count: days}
	return "RRULE:" + opt.RRuleString()
}

func eventSummary(m prescription.Medicine) string {
	name := strings.TrimSpace(m.Name)
	if d := strings.TrimSpace(m.Dosage); d != "" {
		return fmt.Sprintf("Take %s (%s)", name, d)
	}
	return "Take " + name
}

func eventDescription(doctor string, m prescription.Medicine) string {
	var lines []string
	add := func(label, value string) {
		if v := strings.TrimSpace(value); v != "" {
			lines = append(lines, label+": "+v)
		}
	}
	add("Prescribed by", doctor)
	add("Dosage", m.Dosage)
	add("Frequency", m.Frequency)
	add("Duration", m.Duration)
	add("Notes", m.Notes)
	return strings.Join(lines, "\n")
}

// MedicineSchedule summarizes the reminders one medicine will get.
type MedicineSchedule struct {
	Index        int      `json:"index"`
	Name         string   `json:"name"`
	Dosage       string   `json:"dosage,omitempty"`
	Times        []string `json:"times"`
	DurationDays int      `json:"durationDays"`
	FirstDose    string   `json:"firstDose"`
	LastDose     string   `json:"lastDose"`
}

// Preview is the resolved schedule of a prescription before submission.
type Preview struct {
	StartDate string             `json:"startDate"`
	TimeZone  string             `json:"timeZone"`
	Medicines []MedicineSchedule `json:"medicines"`
}

// Preview resolves every named medicine's dose times and the dates of its
// first and last reminder.
func (b *Builder) Preview(p prescription.ParsedPrescription) (Preview, error) {
	date := b.StartDate(p)
	day, err := time.ParseInLocation("2006-01-02", date, b.loc)
	if err != nil {
		return Preview{}, fmt.Errorf("parse start date %q: %w", date, err)
	}

	out := Preview{StartDate: date, TimeZone: b.tz, Medicines: []MedicineSchedule{}}
	for i, m := range p.Medicines {
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		sched := prescription.ScheduleFor(m)

		first, _ := prescription.ParseClock(sched.Times[0])
		last, _ := prescription.ParseClock(sched.Times[len(sched.Times)-1])
		lastDay := day.AddDate(0, 0, sched.DurationDays-1)

		out.Medicines = append(out.Medicines, MedicineSchedule{
			Index:        i,
			Name:         strings.TrimSpace(m.Name),
			Dosage:       m.Dosage,
			Times:        sched.Times,
			DurationDays: sched.DurationDays,
			FirstDose:    atClock(day, first).Format(DateTimeLayout),
			LastDose:     atClock(lastDay, last).Format(DateTimeLayout),
		})
	}
	return out, nil
}

func atClock(day time.Time, minutes int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minutes/60, minutes%60, 0, 0, day.Location())
}
