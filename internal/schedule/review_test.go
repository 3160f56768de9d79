package schedule

import (
	"errors"
	"reflect"
	"testing"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/prescription"
)

func reviewFixture() prescription.ParsedPrescription {
	return prescription.ParsedPrescription{
		DoctorName: "Mehta",
		Date:       "15/03/2024",
		Medicines: []prescription.Medicine{
			{Name: "Amoxicillin", Frequency: "twice a day", Duration: "5 days"},
			{Name: ""},
			{Name: "Zinc", Frequency: "once"},
		},
	}
}

func TestReview_SeedsDerivedTimes(t *testing.T) {
	r := NewReview(reviewFixture())

	items := r.Medicines()
	if len(items) != 2 {
		t.Fatalf("Expected 2 reviewable medicines, got %d", len(items))
	}
	if items[0].Index != 0 || !reflect.DeepEqual(items[0].Times, []string{"09:00", "21:00"}) {
		t.Errorf("Unexpected first item: %+v", items[0])
	}
	if items[1].Index != 2 || items[1].Name != "Zinc" {
		t.Errorf("Unexpected second item: %+v", items[1])
	}
}

func TestReview_EditAndConfirm(t *testing.T) {
	r := NewReview(reviewFixture())

	if err := r.AddTime(0, "14:00"); err != nil {
		t.Fatalf("AddTime failed: %v", err)
	}
	if err := r.ChangeTime(0, "21:00", "22:30"); err != nil {
		t.Fatalf("ChangeTime failed: %v", err)
	}
	if err := r.RemoveTime(0, "9:00"); err != nil {
		t.Fatalf("RemoveTime failed: %v", err)
	}
	if err := r.ChangeTime(2, "09:00", "7:15"); err != nil {
		t.Fatalf("ChangeTime failed: %v", err)
	}

	out, err := r.Confirm()
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}
	if !reflect.DeepEqual(out.Medicines[0].Times, []string{"14:00", "22:30"}) {
		t.Errorf("Unexpected confirmed times: %v", out.Medicines[0].Times)
	}
	if out.Medicines[1].Times != nil {
		t.Errorf("Blank medicine should carry no times, got %v", out.Medicines[1].Times)
	}
	if !reflect.DeepEqual(out.Medicines[2].Times, []string{"07:15"}) {
		t.Errorf("Unexpected zinc times: %v", out.Medicines[2].Times)
	}
	if out.DoctorName != "Mehta" || out.Medicines[0].Frequency != "twice a day" {
		t.Errorf("Confirm should keep the rest of the prescription, got %+v", out)
	}
}

func TestReview_ConfirmedTimesDriveBuilder(t *testing.T) {
	r := NewReview(reviewFixture())
	if err := r.AddTime(2, "21:00"); err != nil {
		t.Fatalf("AddTime failed: %v", err)
	}
	out, err := r.Confirm()
	if err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	events := newTestBuilder(t).Build(out)
	if len(events) != 4 {
		t.Fatalf("Expected 4 events after adding a zinc dose, got %d", len(events))
	}
	if events[3].Start.DateTime != "2024-03-15T21:00:00" {
		t.Errorf("Expected added dose to be scheduled, got %s", events[3].Start.DateTime)
	}
}

func TestReview_Errors(t *testing.T) {
	testCases := []struct {
		name string
		op   func(r *Review) error
		want error
	}{
		{"unknown index", func(r *Review) error { return r.AddTime(7, "10:00") }, ErrUnknownMedicine},
		{"blank medicine", func(r *Review) error { return r.AddTime(1, "10:00") }, ErrUnknownMedicine},
		{"invalid time", func(r *Review) error { return r.AddTime(0, "25:00") }, ErrInvalidTime},
		{"duplicate add", func(r *Review) error { return r.AddTime(0, "9:00") }, ErrDuplicateTime},
		{"remove missing", func(r *Review) error { return r.RemoveTime(0, "10:00") }, ErrTimeNotFound},
		{"remove last", func(r *Review) error { return r.RemoveTime(2, "09:00") }, ErrLastTime},
		{"change missing", func(r *Review) error { return r.ChangeTime(0, "10:00", "11:00") }, ErrTimeNotFound},
		{"change onto existing", func(r *Review) error { return r.ChangeTime(0, "09:00", "21:00") }, ErrDuplicateTime},
		{"change to invalid", func(r *Review) error { return r.ChangeTime(0, "09:00", "noon") }, ErrInvalidTime},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReview(reviewFixture())
			if err := tc.op(r); !errors.Is(err, tc.want) {
				t.Errorf("Expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestReview_CancelDiscardsEdits(t *testing.T) {
	p := reviewFixture()
	r := NewReview(p)

	if err := r.AddTime(0, "13:00"); err != nil {
		t.Fatalf("AddTime failed: %v", err)
	}
	if err := r.Cancel(); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	if p.Medicines[0].Times != nil {
		t.Errorf("Cancel must leave the caller's prescription untouched, got %v", p.Medicines[0].Times)
	}
	if _, err := r.Confirm(); !errors.Is(err, ErrReviewClosed) {
		t.Errorf("Expected ErrReviewClosed after cancel, got %v", err)
	}
	if err := r.AddTime(0, "15:00"); !errors.Is(err, ErrReviewClosed) {
		t.Errorf("Expected ErrReviewClosed after cancel, got %v", err)
	}
	if err := r.Cancel(); !errors.Is(err, ErrReviewClosed) {
		t.Errorf("Expected second cancel to fail, got %v", err)
	}
}

func TestReview_ClosedAfterConfirm(t *testing.T) {
	r := NewReview(reviewFixture())
	if _, err := r.Confirm(); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	if err := r.RemoveTime(0, "09:00"); !errors.Is(err, ErrReviewClosed) {
		t.Errorf("Expected ErrReviewClosed, got %v", err)
	}
	if _, err := r.Confirm(); !errors.Is(err, ErrReviewClosed) {
		t.Errorf("Expected ErrReviewClosed on second confirm, got %v", err)
	}
}

func TestReview_Lookup(t *testing.T) {
	r := NewReview(reviewFixture())

	if idx, err := r.Lookup("zinc"); err != nil || idx != 2 {
		t.Errorf("Expected zinc at 2, got %d (%v)", idx, err)
	}
	if idx, err := r.Lookup("0"); err != nil || idx != 0 {
		t.Errorf("Expected index 0, got %d (%v)", idx, err)
	}
	if _, err := r.Lookup("1"); !errors.Is(err, ErrUnknownMedicine) {
		t.Errorf("Expected blank medicine to be unknown, got %v", err)
	}
	if _, err := r.Lookup("Paracetamol"); !errors.Is(err, ErrUnknownMedicine) {
		t.Errorf("Expected ErrUnknownMedicine, got %v", err)
	}
}
