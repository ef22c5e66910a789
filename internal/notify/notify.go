package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/medibook/slot-booking/internal/booking"
)

const (
	TypeNewAppointment       = "new_appointment"
	TypeAppointmentConfirmed = "appointment_confirmed"
	TypeAppointmentCancelled = "appointment_cancelled"
)

const (
	StatusUnread = "unread"
	StatusRead   = "read"
)

// ErrDeliveryFailed wraps a failed inbox write. Callers treat it as
// retriable and never roll back the booking it belongs to.
var ErrDeliveryFailed = errors.New("notification delivery failed")

// Notification is one inbox row. The doctor's inbox receives
// new_appointment entries; the patient's receives confirm/cancel entries.
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	RecipientID   uuid.UUID  `json:"recipientId"`
	RecipientRole string     `json:"recipientRole"`
	Type          string     `json:"type"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
	PatientName   string     `json:"patientName,omitempty"`
	PatientAge    int        `json:"patientAge,omitempty"`
	PatientMobile string     `json:"patientMobile,omitempty"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Repository persists inbox rows.
type Repository interface {
	Insert(ctx context.Context, n Notification) error
	ListInbox(ctx context.Context, recipientID uuid.UUID, limit int) ([]Notification, error)
	ClearInbox(ctx context.Context, recipientID uuid.UUID) error
}

func forBooking(appt *booking.Appointment) Notification {
	id := appt.ID
	return Notification{
		ID:            uuid.New(),
		RecipientID:   appt.DoctorID,
		RecipientRole: "doctor",
		Type:          TypeNewAppointment,
		AppointmentID: &id,
		PatientName:   appt.PatientName,
		PatientAge:    appt.PatientAge,
		PatientMobile: appt.PatientMobile,
		Date:          appt.Date,
		Time:          appt.Time,
		Status:        StatusUnread,
		CreatedAt:     time.Now(),
	}
}

func forStatusChange(appt *booking.Appointment) Notification {
	id := appt.ID
	typ := TypeAppointmentConfirmed
	if appt.Status == booking.StatusCancelled {
		typ = TypeAppointmentCancelled
	}
	return Notification{
		ID:            uuid.New(),
		RecipientID:   appt.PatientID,
		RecipientRole: "patient",
		Type:          typ,
		AppointmentID: &id,
		PatientName:   appt.PatientName,
		Date:          appt.Date,
		Time:          appt.Time,
		Status:        StatusUnread,
		CreatedAt:     time.Now(),
	}
}
