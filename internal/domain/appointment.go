package domain

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	DefaultType = "General Consultation"
)

type Status string

const (
	StatusScheduled Status = "Scheduled"
	StatusUpcoming  Status = "Upcoming"
	StatusConfirmed Status = "Confirmed"
	StatusCompleted Status = "Completed"
	StatusCancelled Status = "Cancelled"
)

// Statuses lists every accepted status. Any status may follow any other.
var Statuses = []Status{
	StatusScheduled,
	StatusUpcoming,
	StatusConfirmed,
	StatusCompleted,
	StatusCancelled,
}

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusUpcoming, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Mode string

const (
	ModeInPerson Mode = "In-Person"
	ModeVideo    Mode = "Video"
	ModePhone    Mode = "Phone"
)

func (m Mode) IsValid() bool {
	switch m {
	case ModeInPerson, ModeVideo, ModePhone:
		return true
	}
	return false
}

// Appointment is always handed out by value; holding one never aliases
// store-owned state.
type Appointment struct {
	ID          string    `json:"id" yaml:"id"`
	PatientName string    `json:"patientName" yaml:"patientName"`
	Date        string    `json:"date" yaml:"date"`
	Time        string    `json:"time" yaml:"time"`
	Duration    int       `json:"duration" yaml:"duration"`
	DoctorName  string    `json:"doctorName" yaml:"doctorName"`
	Status      Status    `json:"status" yaml:"status"`
	Mode        Mode      `json:"mode" yaml:"mode"`
	Type        string    `json:"type" yaml:"type"`
	Version     int       `json:"version" yaml:"-"`
	CreatedAt   time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time `json:"updatedAt" yaml:"-"`
}

// Slot returns the half-open interval the appointment occupies.
func (a Appointment) Slot() (Interval, error) {
	return ParseSlot(a.Date, a.Time, a.Duration)
}

// SameBooking reports whether b describes the same booking as a. Status,
// version and timestamps are ignored since they change after creation.
func (a Appointment) SameBooking(b Appointment) bool {
	return a.ID == b.ID &&
		a.PatientName == b.PatientName &&
		a.Date == b.Date &&
		a.Time == b.Time &&
		a.Duration == b.Duration &&
		a.DoctorName == b.DoctorName &&
		a.Mode == b.Mode &&
		a.Type == b.Type
}

// Filter fields are optional; a nil field matches everything. A query
// matches only when every supplied field matches exactly.
type Filter struct {
	Date       *string
	Status     *Status
	DoctorName *string
}

func (f Filter) Matches(a Appointment) bool {
	if f.Date != nil && a.Date != *f.Date {
		return false
	}
	if f.Status != nil && a.Status != *f.Status {
		return false
	}
	if f.DoctorName != nil && a.DoctorName != *f.DoctorName {
		return false
	}
	return true
}

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps excludes back-to-back intervals where one ends as the other starts.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

var (
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidTime     = errors.New("invalid time")
	ErrInvalidDuration = errors.New("invalid duration")
)

// ParseSlot combines a YYYY-MM-DD date and an HH:MM time into a slot of the
// given number of minutes. Wall-clock times are interpreted in UTC.
func ParseSlot(date, clock string, durationMinutes int) (Interval, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return Interval{}, fmt.Errorf("%w %q: %w", ErrInvalidDate, date, err)
	}
	tod, err := time.Parse(TimeLayout, clock)
	if err != nil {
		return Interval{}, fmt.Errorf("%w %q: %w", ErrInvalidTime, clock, err)
	}
	if durationMinutes <= 0 {
		return Interval{}, fmt.Errorf("%w: %d", ErrInvalidDuration, durationMinutes)
	}

	start := time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), 0, 0, time.UTC)
	return Interval{
		Start: start,
		End:   start.Add(time.Duration(durationMinutes) * time.Minute),
	}, nil
}
