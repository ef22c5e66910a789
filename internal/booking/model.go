package booking

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Layouts shared with the mobile clients. Dates are calendar days rendered
// the way JS Date.toDateString() renders them; times are 12-hour slot labels.
const (
	DateLayout = "Mon Jan 02 2006"
	TimeLayout = "3:04 PM"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "Pending"
	StatusConfirmed AppointmentStatus = "Confirmed"
	StatusCompleted AppointmentStatus = "Completed"
	StatusCancelled AppointmentStatus = "Cancelled"
)

// IsLive reports whether the appointment still claims its slot.
// Cancelled is the only terminal state that releases the slot.
func (s AppointmentStatus) IsLive() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted:
		return true
	}
	return false
}

// State transition possibilities:
//
//	Pending   → Confirmed | Cancelled
//	Confirmed → Completed | Cancelled
//	Completed, Cancelled → (terminal)
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotPending   SlotStatus = "pending"
	SlotBooked    SlotStatus = "booked"
)

type SlotCategory string

const (
	CategoryDay   SlotCategory = "day"
	CategoryNight SlotCategory = "night"
)

type Doctor struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Slot struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	Date          string
	Time          string
	Category      SlotCategory
	Status        SlotStatus
	AppointmentID *uuid.UUID
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Appointment struct {
	ID            uuid.UUID
	DoctorID      uuid.UUID
	PatientID     uuid.UUID
	Date          string
	Time          string
	Status        AppointmentStatus
	PatientName   string
	PatientAge    int
	PatientMobile string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PatientDetails is the contact block a patient submits when booking.
type PatientDetails struct {
	Name   string
	Age    int
	Mobile string
}

// SlotKey is the identity under which bookings for one slot serialize.
func SlotKey(doctorID uuid.UUID, date, timeLabel string) string {
	return fmt.Sprintf("%s|%s|%s", doctorID, date, timeLabel)
}

// ParseDate validates a calendar-day string such as "Mon Jan 05 2026".
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not a valid calendar day", s)}
	}
	return t, nil
}

// ParseTimeLabel validates a 12-hour clock label such as "9:00 AM" and
// returns it in canonical form.
func ParseTimeLabel(s string) (string, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return "", &ValidationError{Field: "time", Reason: fmt.Sprintf("%q is not a 12-hour clock label", s)}
	}
	return t.Format(TimeLayout), nil
}

// CategorizeTime splits the day the way the doctor app always has:
// 12 AM belongs to night, 12 PM to day, and otherwise 6:00 AM through
// 5:59 PM counts as day.
func CategorizeTime(label string) (SlotCategory, error) {
	canonical, err := ParseTimeLabel(label)
	if err != nil {
		return "", err
	}
	t, _ := time.Parse(TimeLayout, canonical)

	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	isPM := t.Hour() >= 12

	switch {
	case hour == 12 && !isPM:
		return CategoryNight, nil
	case hour == 12 && isPM:
		return CategoryDay, nil
	case (!isPM && hour >= 6) || (isPM && hour < 6):
		return CategoryDay, nil
	default:
		return CategoryNight, nil
	}
}

// ValidateDetails enforces the booking form rules: a name, an age between
// 1 and 120, and an 11-digit mobile number.
func ValidateDetails(d PatientDetails) error {
	if d.Name == "" {
		return &ValidationError{Field: "patientName", Reason: "name is required"}
	}
	if d.Age < 1 || d.Age > 120 {
		return &ValidationError{Field: "patientAge", Reason: "age must be between 1 and 120"}
	}
	if len(d.Mobile) != 11 {
		return &ValidationError{Field: "patientMobile", Reason: "mobile number must be 11 digits"}
	}
	for _, r := range d.Mobile {
		if r < '0' || r > '9' {
			return &ValidationError{Field: "patientMobile", Reason: "mobile number must be 11 digits"}
		}
	}
	return nil
}
