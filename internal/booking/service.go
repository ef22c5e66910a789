package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medibook/slot-booking/internal/auth"
	redisclient "github.com/medibook/slot-booking/internal/redis"
)

// Notifier fans out inbox notifications. Delivery is best-effort: a failure
// never rolls back the booking it belongs to.
type Notifier interface {
	BookingCreated(ctx context.Context, appt *Appointment) error
	StatusChanged(ctx context.Context, appt *Appointment) error
}

// SlotChange is pushed to watchers whenever a slot's effective status moves.
type SlotChange struct {
	Type          string     `json:"type"`
	DoctorID      uuid.UUID  `json:"doctorId"`
	Date          string     `json:"date"`
	Time          string     `json:"time"`
	Status        SlotStatus `json:"status"`
	AppointmentID *uuid.UUID `json:"appointmentId,omitempty"`
}

const (
	ChangeBookingRequested = "booking_requested"
	ChangeStatusUpdated    = "status_updated"
	ChangeSlotDefined      = "slot_defined"
	ChangeSlotDeleted      = "slot_deleted"
)

// Publisher pushes slot changes to realtime watchers, best-effort.
type Publisher interface {
	PublishSlotChange(ctx context.Context, change SlotChange) error
}

type Service struct {
	repo      Repository
	locker    redisclient.Locker
	notifier  Notifier
	publisher Publisher
	log       *zap.Logger
}

func NewService(repo Repository, locker redisclient.Locker, notifier Notifier, publisher Publisher, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		locker:    locker,
		notifier:  notifier,
		publisher: publisher,
		log:       log,
	}
}

// Book reserves a slot for the calling patient. The check and the write
// run under the per-slot lock, and the insert itself is conditional on no
// live appointment holding the key, so two concurrent bookers can never
// both succeed.
func (s *Service) Book(ctx context.Context, ident auth.Identity, doctorID uuid.UUID, date, timeLabel string, details PatientDetails) (*Appointment, error) {
	if ident.Role != auth.RolePatient {
		return nil, ErrNotPermitted
	}

	if err := ValidateDetails(details); err != nil {
		return nil, err
	}
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}
	canonical, err := ParseTimeLabel(timeLabel)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetDoctorByID(ctx, doctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}
	if _, err := s.repo.GetPatientByID(ctx, ident.UID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	var created *Appointment

	key := SlotKey(doctorID, date, canonical)
	err = s.locker.WithKeyLock(ctx, key, func(lockCtx context.Context) error {
		live, err := s.repo.ListLiveAppointmentsForSlot(lockCtx, doctorID, date, canonical)
		if err != nil {
			return fmt.Errorf("check live appointments: %w", err)
		}

		// Confirmed/Completed outranks Pending when the store momentarily
		// holds both.
		hasPending := false
		for _, a := range live {
			switch a.Status {
			case StatusConfirmed, StatusCompleted:
				return ErrSlotBooked
			case StatusPending:
				hasPending = true
			}
		}
		if hasPending {
			return ErrSlotPending
		}

		appt := &Appointment{
			ID:            uuid.New(),
			DoctorID:      doctorID,
			PatientID:     ident.UID,
			Date:          date,
			Time:          canonical,
			Status:        StatusPending,
			PatientName:   details.Name,
			PatientAge:    details.Age,
			PatientMobile: details.Mobile,
		}

		created, err = s.repo.CreatePendingAppointment(lockCtx, appt)
		if err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return ErrSlotBooked
			}
			return fmt.Errorf("create pending appointment: %w", err)
		}

		// The slot row is a denormalized view; listing derives the truth
		// from live appointments, so a failure here is not fatal.
		if err := s.repo.SetSlotStatus(lockCtx, doctorID, date, canonical, SlotPending, &created.ID); err != nil {
			s.log.Warn("failed to update slot status after booking",
				zap.String("appointment_id", created.ID.String()),
				zap.Error(err))
		}

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotContended
		}
		return nil, err
	}

	s.fanOutCreated(ctx, created)
	s.publishChange(ctx, SlotChange{
		Type:          ChangeBookingRequested,
		DoctorID:      doctorID,
		Date:          date,
		Time:          canonical,
		Status:        SlotPending,
		AppointmentID: &created.ID,
	})

	return created, nil
}

// UpdateStatus moves an appointment through its lifecycle. Only the owning
// doctor may call it, and only the legal transitions pass.
func (s *Service) UpdateStatus(ctx context.Context, ident auth.Identity, apptID uuid.UUID, to AppointmentStatus) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		return nil, err
	}

	if ident.Role != auth.RoleDoctor || appt.DoctorID != ident.UID {
		return nil, ErrNotPermitted
	}

	if !CanTransition(appt.Status, to) {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.UpdateAppointmentStatus(ctx, apptID, appt.Status, to)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			// The row moved under us between the load and the CAS update.
			return nil, ErrInvalidTransition
		}
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.syncSlotAfterTransition(ctx, updated)

	if s.notifier != nil && (to == StatusConfirmed || to == StatusCancelled) {
		if err := s.notifier.StatusChanged(ctx, updated); err != nil {
			s.log.Warn("notification delivery failed",
				zap.String("appointment_id", updated.ID.String()),
				zap.String("status", string(to)),
				zap.Error(err))
		}
	}

	return updated, nil
}

// Delete removes a resolved appointment. Pending ones must be cancelled
// instead; that asymmetry mirrors the app's behaviour.
func (s *Service) Delete(ctx context.Context, ident auth.Identity, apptID uuid.UUID) error {
	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		return err
	}

	if ident.Role != auth.RoleDoctor || appt.DoctorID != ident.UID {
		return ErrNotPermitted
	}

	if appt.Status != StatusConfirmed && appt.Status != StatusCompleted {
		return ErrNotDeletable
	}

	if err := s.repo.DeleteAppointment(ctx, apptID); err != nil {
		return err
	}

	// Deleting the record frees the slot; leaving a dangling back-reference
	// would contradict the catalog invariant.
	if err := s.repo.SetSlotStatus(ctx, appt.DoctorID, appt.Date, appt.Time, SlotAvailable, nil); err != nil {
		s.log.Warn("failed to release slot after deletion",
			zap.String("appointment_id", apptID.String()),
			zap.Error(err))
	}

	s.publishChange(ctx, SlotChange{
		Type:     ChangeStatusUpdated,
		DoctorID: appt.DoctorID,
		Date:     appt.Date,
		Time:     appt.Time,
		Status:   SlotAvailable,
	})

	return nil
}

// Get returns an appointment visible to the caller.
func (s *Service) Get(ctx context.Context, ident auth.Identity, apptID uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, apptID)
	if err != nil {
		return nil, err
	}

	if appt.DoctorID != ident.UID && appt.PatientID != ident.UID {
		return nil, ErrNotPermitted
	}

	return appt, nil
}

// ListForActor lists the caller's own appointments, newest first.
func (s *Service) ListForActor(ctx context.Context, ident auth.Identity, limit, offset int) ([]Appointment, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	if ident.Role == auth.RoleDoctor {
		return s.repo.ListAppointmentsByDoctor(ctx, ident.UID, limit, offset)
	}
	return s.repo.ListAppointmentsByPatient(ctx, ident.UID, limit, offset)
}

func (s *Service) syncSlotAfterTransition(ctx context.Context, appt *Appointment) {
	var (
		status SlotStatus
		ref    *uuid.UUID
	)

	switch appt.Status {
	case StatusConfirmed, StatusCompleted:
		status = SlotBooked
		ref = &appt.ID
	case StatusCancelled:
		status = SlotAvailable
	default:
		status = SlotPending
		ref = &appt.ID
	}

	if err := s.repo.SetSlotStatus(ctx, appt.DoctorID, appt.Date, appt.Time, status, ref); err != nil {
		s.log.Warn("failed to sync slot after transition",
			zap.String("appointment_id", appt.ID.String()),
			zap.String("status", string(appt.Status)),
			zap.Error(err))
	}

	s.publishChange(ctx, SlotChange{
		Type:          ChangeStatusUpdated,
		DoctorID:      appt.DoctorID,
		Date:          appt.Date,
		Time:          appt.Time,
		Status:        status,
		AppointmentID: ref,
	})
}

func (s *Service) fanOutCreated(ctx context.Context, appt *Appointment) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.BookingCreated(ctx, appt); err != nil {
		s.log.Warn("notification delivery failed",
			zap.String("appointment_id", appt.ID.String()),
			zap.Error(err))
	}
}

func (s *Service) publishChange(ctx context.Context, change SlotChange) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSlotChange(ctx, change); err != nil {
		s.log.Warn("failed to publish slot change",
			zap.String("doctor_id", change.DoctorID.String()),
			zap.String("date", change.Date),
			zap.Error(err))
	}
}
