package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/medibook/slot-booking/internal/auth"
	"github.com/medibook/slot-booking/internal/booking"
	"github.com/medibook/slot-booking/internal/metrics"
	"github.com/medibook/slot-booking/internal/notify"
	"github.com/medibook/slot-booking/internal/realtime"
)

// BookingService is the slice of the booking service the handlers use.
type BookingService interface {
	Book(ctx context.Context, ident auth.Identity, doctorID uuid.UUID, date, timeLabel string, details booking.PatientDetails) (*booking.Appointment, error)
	UpdateStatus(ctx context.Context, ident auth.Identity, apptID uuid.UUID, to booking.AppointmentStatus) (*booking.Appointment, error)
	Delete(ctx context.Context, ident auth.Identity, apptID uuid.UUID) error
	Get(ctx context.Context, ident auth.Identity, apptID uuid.UUID) (*booking.Appointment, error)
	ListForActor(ctx context.Context, ident auth.Identity, limit, offset int) ([]booking.Appointment, error)
	ListSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]booking.Slot, error)
	DefineSlot(ctx context.Context, ident auth.Identity, doctorID uuid.UUID, date, timeLabel string, recurring bool) ([]booking.Slot, error)
	DeleteSlot(ctx context.Context, ident auth.Identity, doctorID, slotID uuid.UUID) error
}

// NotificationService is the inbox surface.
type NotificationService interface {
	Inbox(ctx context.Context, recipientID uuid.UUID, limit int) ([]notify.Notification, error)
	ClearInbox(ctx context.Context, recipientID uuid.UUID) error
}

type Handlers struct {
	booking       BookingService
	notifications NotificationService
	hub           *realtime.Hub
	collector     *metrics.Collector
	log           *zap.Logger
	upgrader      websocket.Upgrader
}

func NewHandlers(b BookingService, n NotificationService, hub *realtime.Hub, collector *metrics.Collector, log *zap.Logger) *Handlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handlers{
		booking:       b,
		notifications: n,
		hub:           hub,
		collector:     collector,
		log:           log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Mobile clients connect from app webviews; origin carries no
			// signal here, auth is the bearer token.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handlers) bookAppointment(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	var req BookAppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	doctorID, err := uuid.Parse(req.DoctorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctorId must be a valid UUID")
		return
	}

	details := booking.PatientDetails{
		Name:   req.PatientName,
		Age:    req.PatientAge,
		Mobile: req.PatientMobile,
	}

	appt, err := h.booking.Book(r.Context(), ident, doctorID, req.Date, req.Time, details)
	if err != nil {
		h.recordBooking(bookingOutcome(err))
		h.handleBookingError(w, err)
		return
	}

	h.recordBooking("created")
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *Handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	appt, err := h.booking.Get(r.Context(), ident, id)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	appts, err := h.booking.ListForActor(r.Context(), ident, limit, offset)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	resp := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp = append(resp, toAppointmentResponse(&appts[i]))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) updateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return
	}

	to := booking.AppointmentStatus(req.Status)
	switch to {
	case booking.StatusConfirmed, booking.StatusCompleted, booking.StatusCancelled:
	default:
		writeError(w, http.StatusBadRequest, "invalid_status", "status must be Confirmed, Completed, or Cancelled")
		return
	}

	appt, err := h.booking.UpdateStatus(r.Context(), ident, id, to)
	if err != nil {
		h.handleBookingError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	ident, ok := auth.IdentityFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing identity")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
		return
	}

	if err := h.booking.Delete(r.Context(), ident, id); err != nil {
		h.handleBookingError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) handleBookingError(w http.ResponseWriter, err error) {
	var vErr *booking.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())
		return
	}

	switch {
	case errors.Is(err, booking.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "slot_not_found", err.Error())
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotBooked):
		writeError(w, http.StatusConflict, "slot_already_booked", "this slot has already been booked, please select another time")
	case errors.Is(err, booking.ErrSlotPending):
		writeError(w, http.StatusConflict, "slot_pending", "this slot already has a pending request, please select another time")
	case errors.Is(err, booking.ErrSlotContended):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrSlotReferenced):
		writeError(w, http.StatusConflict, "slot_referenced", "this slot is referenced by a live appointment and cannot be deleted")
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrNotDeletable):
		writeError(w, http.StatusConflict, "appointment_not_deletable", err.Error())
	case errors.Is(err, booking.ErrNotPermitted):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		h.log.Error("internal error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong, please retry")
	}
}

func bookingOutcome(err error) string {
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &vErr):
		return "invalid"
	case errors.Is(err, booking.ErrSlotBooked):
		return "booked"
	case errors.Is(err, booking.ErrSlotPending):
		return "pending"
	case errors.Is(err, booking.ErrSlotContended):
		return "contended"
	default:
		return "error"
	}
}

func (h *Handlers) recordBooking(outcome string) {
	if h.collector != nil {
		h.collector.BookingsTotal.WithLabelValues(outcome).Inc()
	}
}
