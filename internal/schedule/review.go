package schedule

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/prescription"
)

var (
	ErrReviewClosed    = errors.New("review already confirmed or cancelled")
	ErrUnknownMedicine = errors.New("unknown medicine")
	ErrInvalidTime     = errors.New("invalid dose time")
	ErrDuplicateTime   = errors.New("dose time already scheduled")
	ErrTimeNotFound    = errors.New("dose time not scheduled")
	ErrLastTime        = errors.New("a medicine needs at least one dose time")
)

// ReviewItem is one medicine's current state in a review.
type ReviewItem struct {
	Index  int      `json:"index"`
	Name   string   `json:"name"`
	Dosage string   `json:"dosage,omitempty"`
	Times  []string `json:"times"`
}

// Review holds a user's edits to the derived dose times of a prescription
// until they are confirmed or cancelled. A Review is owned by one caller and
// is not safe for concurrent use.
type Review struct {
	original prescription.ParsedPrescription
	times    map[int][]string
	closed   bool
}

// NewReview seeds a review with the schedule derived for every named medicine.
func NewReview(p prescription.ParsedPrescription) *Review {
	r := &Review{
		original: clonePrescription(p),
		times:    make(map[int][]string, len(p.Medicines)),
	}
	for i, m := range p.Medicines {
		if strings.TrimSpace(m.Name) == "" {
			continue
		}
		r.times[i] = prescription.ScheduleFor(m).Times
	}
	return r
}

// Medicines lists the reviewable medicines in prescription order.
func (r *Review) Medicines() []ReviewItem {
	items := make([]ReviewItem, 0, len(r.times))
	for i, m := range r.original.Medicines {
		times, ok := r.times[i]
		if !ok {
			continue
		}
		items = append(items, ReviewItem{
			Index:  i,
			Name:   strings.TrimSpace(m.Name),
			Dosage: m.Dosage,
			Times:  slices.Clone(times),
		})
	}
	return items
}

// Lookup resolves a medicine reference, either its index or its name
// compared case-insensitively.
func (r *Review) Lookup(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if idx, err := strconv.Atoi(ref); err == nil {
		if _, ok := r.times[idx]; ok {
			return idx, nil
		}
		return 0, fmt.Errorf("%w: index %d", ErrUnknownMedicine, idx)
	}
	for i, m := range r.original.Medicines {
		if _, ok := r.times[i]; ok && strings.EqualFold(strings.TrimSpace(m.Name), ref) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMedicine, ref)
}

func (r *Review) AddTime(medicine int, at string) error {
	times, err := r.medicineTimes(medicine)
	if err != nil {
		return err
	}
	t, err := parseTime(at)
	if err != nil {
		return err
	}
	if slices.Contains(times, t) {
		return fmt.Errorf("%w: %s", ErrDuplicateTime, t)
	}
	r.times[medicine] = prescription.NormalizeTimes(append(slices.Clone(times), t))
	return nil
}

// RemoveTime drops a dose time. Removing a medicine's only time is refused.
func (r *Review) RemoveTime(medicine int, at string) error {
	times, err := r.medicineTimes(medicine)
	if err != nil {
		return err
	}
	t, err := parseTime(at)
	if err != nil {
		return err
	}
	idx := slices.Index(times, t)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTimeNotFound, t)
	}
	if len(times) == 1 {
		return ErrLastTime
	}
	r.times[medicine] = slices.Delete(slices.Clone(times), idx, idx+1)
	return nil
}

func (r *Review) ChangeTime(medicine int, from, to string) error {
	times, err := r.medicineTimes(medicine)
	if err != nil {
		return err
	}
	old, err := parseTime(from)
	if err != nil {
		return err
	}
	next, err := parseTime(to)
	if err != nil {
		return err
	}
	idx := slices.Index(times, old)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTimeNotFound, old)
	}
	if old == next {
		return nil
	}
	if slices.Contains(times, next) {
		return fmt.Errorf("%w: %s", ErrDuplicateTime, next)
	}

	updated := slices.Clone(times)
	updated[idx] = next
	r.times[medicine] = prescription.NormalizeTimes(updated)
	return nil
}

// Confirm closes the review and returns the prescription with explicit
// dose times on every named medicine.
func (r *Review) Confirm() (prescription.ParsedPrescription, error) {
	if r.closed {
		return prescription.ParsedPrescription{}, ErrReviewClosed
	}
	r.closed = true

	out := clonePrescription(r.original)
	for i := range out.Medicines {
		if times, ok := r.times[i]; ok {
			out.Medicines[i].Times = slices.Clone(times)
		}
	}
	return out, nil
}

// Cancel closes the review and discards every edit.
func (r *Review) Cancel() error {
	if r.closed {
		return ErrReviewClosed
	}
	r.closed = true
	r.times = nil
	return nil
}

func (r *Review) medicineTimes(medicine int) ([]string, error) {
	if r.closed {
		return nil, ErrReviewClosed
	}
	times, ok := r.times[medicine]
	if !ok {
		return nil, fmt.Errorf("%w: index %d", ErrUnknownMedicine, medicine)
	}
	return times, nil
}

func parseTime(s string) (string, error) {
	t, ok := prescription.CanonicalClock(s)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t, nil
}

func clonePrescription(p prescription.ParsedPrescription) prescription.ParsedPrescription {
	out := p
	out.Medicines = make([]prescription.Medicine, len(p.Medicines))
	for i, m := range p.Medicines {
		m.Times = slices.Clone(m.Times)
		out.Medicines[i] = m
	}
	return out
}
