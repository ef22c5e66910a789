package booking

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrSlotTaken is returned by CreatePendingAppointment when the conditional
// insert finds a live appointment already holding the slot key.
var ErrSlotTaken = errors.New("slot already taken by a live appointment")

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	// Slot catalog
	ListSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]Slot, error)
	GetSlotByID(ctx context.Context, doctorID, slotID uuid.UUID) (*Slot, error)
	UpsertSlots(ctx context.Context, slots []Slot) error
	SetSlotStatus(ctx context.Context, doctorID uuid.UUID, date, timeLabel string, status SlotStatus, appointmentID *uuid.UUID) error
	DeleteSlot(ctx context.Context, doctorID, slotID uuid.UUID) error

	// Appointment records
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListLiveAppointmentsForDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error)
	ListLiveAppointmentsForSlot(ctx context.Context, doctorID uuid.UUID, date, timeLabel string) ([]Appointment, error)
	ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)

	// CreatePendingAppointment must be atomic against the live-appointment
	// key: it fails with ErrSlotTaken instead of ever producing a second
	// live row for the same (doctor, date, time).
	CreatePendingAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error)
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
}
