// Package prescription holds the prescription data model and the free-text
// interpreters that turn frequency, duration and date strings into a
// concrete dose schedule. Interpreters never fail: unparseable input yields
// a documented default.
package prescription

// Medicine is one line of a prescription.
type Medicine struct {
	Name      string `json:"name" yaml:"name"`
	Dosage    string `json:"dosage,omitempty" yaml:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	Duration  string `json:"duration,omitempty" yaml:"duration,omitempty"`
	Notes     string `json:"notes,omitempty" yaml:"notes,omitempty"`
	// Times, when non-empty, supersedes the schedule derived from Frequency.
	Times []string `json:"times,omitempty" yaml:"times,omitempty"`
}

// ParsedPrescription is the structured output of the upstream generator.
type ParsedPrescription struct {
	DoctorName string     `json:"doctorName" yaml:"doctorName"`
	Date       string     `json:"date" yaml:"date"`
	Medicines  []Medicine `json:"medicines" yaml:"medicines"`
}

// DoseSchedule is the resolved schedule for one medicine. Times are ordered,
// unique HH:MM values and there is always at least one.
type DoseSchedule struct {
	Times        []string `json:"times" yaml:"times"`
	DurationDays int      `json:"durationDays" yaml:"durationDays"`
}

// ScheduleFor resolves a medicine's dose schedule. Valid explicit times win
// over the frequency text.
func ScheduleFor(m Medicine) DoseSchedule {
	times := NormalizeTimes(m.Times)
	if len(times) == 0 {
		times = InterpretFrequency(m.Frequency)
	}
	return DoseSchedule{
		Times:        times,
		DurationDays: InterpretDuration(m.Duration),
	}
}
