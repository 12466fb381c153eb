package appointment

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/carelink/telehealth/internal/domain/doctor"
	"github.com/carelink/telehealth/internal/platform/apperr"
	"github.com/carelink/telehealth/internal/platform/auth"
)

const (
	minNotesLength = 5
	dateLayout     = "2006-01-02"
	clockLayout    = "15:04"
)

// SlotPolicy describes the bookable day: reference timezone, slot length and
// the hourly menu offered to patients.
type SlotPolicy struct {
	Location   *time.Location
	SlotLength time.Duration
	OpenHour   int
	CloseHour  int
	// EnforceMenu rejects times that are not on the menu. Off by default; the
	// menu is otherwise only a client affordance.
	EnforceMenu bool
}

// DefaultSlotPolicy is the hourly 10:00 to 19:00 menu in the server's local time.
func DefaultSlotPolicy() SlotPolicy {
	return SlotPolicy{
		Location:   time.Local,
		SlotLength: time.Hour,
		OpenHour:   10,
		CloseHour:  19,
	}
}

// Menu returns the "HH:MM" start times offered for a day, inclusive of
// CloseHour.
func (p SlotPolicy) Menu() []string {
	step := p.SlotLength
	if step <= 0 {
		step = time.Hour
	}
	var out []string
	start := time.Duration(p.OpenHour) * time.Hour
	end := time.Duration(p.CloseHour) * time.Hour
	for t := start; t <= end; t += step {
		out = append(out, fmt.Sprintf("%02d:%02d", int(t/time.Hour), int(t%time.Hour/time.Minute)))
	}
	return out
}

func (p SlotPolicy) onMenu(clock string) bool {
	for _, m := range p.Menu() {
		if m == clock {
			return true
		}
	}
	return false
}

// Validator turns raw booking requests into appointments. It holds no state
// beyond its policy and clock.
type Validator struct {
	policy SlotPolicy
	now    func() time.Time
}

func NewValidator(policy SlotPolicy) *Validator {
	if policy.Location == nil {
		policy.Location = time.Local
	}
	return &Validator{policy: policy, now: time.Now}
}

func (v *Validator) Policy() SlotPolicy { return v.policy }

// RegistrationPath is where anonymous callers are sent before they can book.
func RegistrationPath(doctorID string) string {
	return "/signup?upgrade=true&next=/book/" + url.PathEscape(strings.TrimSpace(doctorID))
}

// Parse checks the caller and the request shape and returns a command whose
// PatientID is always the caller's id.
func (v *Validator) Parse(caller auth.Identity, req BookingRequest) (BookingCommand, error) {
	if caller.IsZero() {
		return BookingCommand{}, apperr.Unauthenticated("You must be logged in to book an appointment.")
	}
	if caller.Anonymous {
		return BookingCommand{}, apperr.RegistrationRequired("Create a free account to book an appointment.").
			WithRedirect(RegistrationPath(req.DoctorID))
	}

	doctorRaw := strings.TrimSpace(req.DoctorID)
	if doctorRaw == "" {
		return BookingCommand{}, apperr.Validation("doctorId", "Please choose a doctor.")
	}
	doctorID, err := uuid.Parse(doctorRaw)
	if err != nil {
		return BookingCommand{}, apperr.Validation("doctorId", "Doctor id is not valid.")
	}

	dateRaw := strings.TrimSpace(req.Date)
	if dateRaw == "" {
		return BookingCommand{}, apperr.Validation("date", "Please choose a date.")
	}
	clockRaw := strings.TrimSpace(req.Time)
	if clockRaw == "" {
		return BookingCommand{}, apperr.Validation("time", "Please choose a time.")
	}

	notes := strings.TrimSpace(req.Notes)
	if utf8.RuneCountInString(notes) < minNotesLength {
		return BookingCommand{}, apperr.Validation("notes", fmt.Sprintf("Please describe the reason for your visit (at least %d characters).", minNotesLength))
	}

	scheduledAt, err := v.combine(dateRaw, clockRaw)
	if err != nil {
		return BookingCommand{}, err
	}

	if v.beforeToday(scheduledAt) {
		return BookingCommand{}, apperr.Validation("date", "Please choose today or a future date.")
	}
	if v.policy.EnforceMenu && !v.policy.onMenu(scheduledAt.Format(clockLayout)) {
		return BookingCommand{}, apperr.Validation("time", "Please choose one of the available times.")
	}

	return BookingCommand{
		PatientID:   caller.ID,
		DoctorID:    doctorID,
		ScheduledAt: scheduledAt,
		Notes:       notes,
	}, nil
}

// ParseDate parses a "YYYY-MM-DD" date as midnight in the reference timezone.
func (v *Validator) ParseDate(date string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), v.policy.Location)
	if err != nil {
		return time.Time{}, apperr.InvalidSchedule(fmt.Sprintf("%q is not a valid date (expected YYYY-MM-DD).", date))
	}
	return d, nil
}

func (v *Validator) combine(date, clock string) (time.Time, error) {
	day, err := v.ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	tod, err := time.Parse(clockLayout, clock)
	if err != nil {
		tod, err = time.Parse(clockLayout+":05", clock)
	}
	if err != nil {
		return time.Time{}, apperr.InvalidSchedule(fmt.Sprintf("%q is not a valid time (expected HH:MM).", clock))
	}
	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, v.policy.Location), nil
}

func (v *Validator) beforeToday(t time.Time) bool {
	now := v.now().In(v.policy.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, v.policy.Location)
	local := t.In(v.policy.Location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, v.policy.Location)
	return day.Before(today)
}

// DayBounds returns [start of day, start of next day) around t in the
// reference timezone.
func (v *Validator) DayBounds(t time.Time) (time.Time, time.Time) {
	local := t.In(v.policy.Location)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, v.policy.Location)
	return start, start.AddDate(0, 0, 1)
}

// Build checks the doctor and the advisory conflict set and returns the record
// to insert. existing should hold the doctor's appointments for the day.
func (v *Validator) Build(cmd BookingCommand, doc *doctor.Doctor, existing []*Appointment) (*Appointment, error) {
	if doc == nil || doc.ID != cmd.DoctorID || !doc.Bookable() {
		return nil, apperr.InvalidDoctor(cmd.DoctorID.String())
	}

	want := v.slotKey(cmd.ScheduledAt)
	for _, a := range existing {
		if a == nil || a.Status == StatusCancelled || a.DoctorID != cmd.DoctorID {
			continue
		}
		if v.slotKey(a.ScheduledAt) == want {
			return nil, apperr.SlotTaken()
		}
	}

	return &Appointment{
		PatientID:   cmd.PatientID,
		DoctorID:    cmd.DoctorID,
		ScheduledAt: cmd.ScheduledAt,
		Status:      StatusConfirmed,
		Notes:       cmd.Notes,
	}, nil
}

// ValidateAndBuildBooking runs Parse then Build.
func (v *Validator) ValidateAndBuildBooking(caller auth.Identity, req BookingRequest, doc *doctor.Doctor, existing []*Appointment) (*Appointment, error) {
	cmd, err := v.Parse(caller, req)
	if err != nil {
		return nil, err
	}
	return v.Build(cmd, doc, existing)
}

func (v *Validator) slotKey(t time.Time) string {
	return t.In(v.policy.Location).Format(dateLayout + " " + clockLayout)
}

// TakenTimes returns the sorted local "HH:MM" start times held by
// non-cancelled appointments.
func TakenTimes(existing []*Appointment, loc *time.Location) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range existing {
		if a == nil || a.Status == StatusCancelled {
			continue
		}
		k := a.ScheduledAt.In(loc).Format(clockLayout)
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
