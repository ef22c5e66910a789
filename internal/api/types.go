package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/medibook/slot-booking/internal/booking"
)

// Wire field names (doctorId, userId, date, time, status, category) are the
// interop surface shared with the mobile clients; do not rename them.

type BookAppointmentRequest struct {
	DoctorID      string `json:"doctorId"`
	Date          string `json:"date"`
	Time          string `json:"time"`
	PatientName   string `json:"patientName"`
	PatientAge    int    `json:"patientAge"`
	PatientMobile string `json:"patientMobile"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type DefineSlotRequest struct {
	Date      string `json:"date"`
	Time      string `json:"time"`
	Recurring bool   `json:"recurring"`
}

type AppointmentResponse struct {
	ID            uuid.UUID `json:"id"`
	DoctorID      uuid.UUID `json:"doctorId"`
	UserID        uuid.UUID `json:"userId"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	Status        string    `json:"status"`
	PatientName   string    `json:"patientName"`
	PatientAge    int       `json:"patientAge"`
	PatientMobile string    `json:"patientMobile"`
	CreatedAt     time.Time `json:"createdAt"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		DoctorID:      a.DoctorID,
		UserID:        a.PatientID,
		Date:          a.Date,
		Time:          a.Time,
		Status:        string(a.Status),
		PatientName:   a.PatientName,
		PatientAge:    a.PatientAge,
		PatientMobile: a.PatientMobile,
		CreatedAt:     a.CreatedAt,
	}
}

type SlotResponse struct {
	ID            uuid.UUID  `json:"id"`
	DoctorID      uuid.UUID  `json:"doctorId"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	Category      string     `json:"category"`
	Status        string     `json:"status"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
}

func toSlotResponse(s booking.Slot) SlotResponse {
	return SlotResponse{
		ID:            s.ID,
		DoctorID:      s.DoctorID,
		Date:          s.Date,
		Time:          s.Time,
		Category:      string(s.Category),
		Status:        string(s.Status),
		AppointmentID: s.AppointmentID,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
