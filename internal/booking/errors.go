package booking

import (
	"errors"
	"fmt"
)

var (
	ErrDoctorNotFound      = errors.New("doctor not found")
	ErrPatientNotFound     = errors.New("patient not found")
	ErrSlotNotFound        = errors.New("slot not found")
	ErrAppointmentNotFound = errors.New("appointment not found")

	// Booking rejections. The two are distinct on purpose: the client tells
	// the patient "already booked" and "pending request" apart.
	ErrSlotBooked  = errors.New("slot already has a booked appointment")
	ErrSlotPending = errors.New("slot already has a pending request")

	// ErrSlotContended means another booker holds the slot lock right now.
	ErrSlotContended = errors.New("slot is currently being booked, please retry")

	// ErrSlotReferenced blocks deleting a slot while a live appointment
	// points at it.
	ErrSlotReferenced = errors.New("slot is referenced by a live appointment")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotDeletable      = errors.New("only confirmed or completed appointments can be deleted")

	ErrNotPermitted = errors.New("caller is not permitted to perform this action")
)

// ValidationError reports a rejected input field before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
