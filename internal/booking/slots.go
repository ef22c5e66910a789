package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medibook/slot-booking/internal/auth"
)

// recurrenceHorizonDays is how far a recurring slot definition replicates:
// every date in the next 30 days that falls on the same weekday.
const recurrenceHorizonDays = 30

// ListSlots returns a doctor's slots for a date with their effective status.
// The slot row's own status column is only a cache; the truth is derived by
// overlaying the live appointments for the same (date, time):
// Confirmed/Completed → booked, Pending → pending, none → available.
func (s *Service) ListSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]Slot, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}

	slots, err := s.repo.ListSlots(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	if len(slots) == 0 {
		return []Slot{}, nil
	}

	live, err := s.repo.ListLiveAppointmentsForDate(ctx, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("list live appointments: %w", err)
	}

	type overlay struct {
		status SlotStatus
		ref    *uuid.UUID
	}
	byTime := make(map[string]overlay, len(live))
	for i := range live {
		a := live[i]
		switch a.Status {
		case StatusConfirmed, StatusCompleted:
			byTime[a.Time] = overlay{status: SlotBooked, ref: &a.ID}
		case StatusPending:
			// Confirmed wins if both are momentarily present.
			if existing, ok := byTime[a.Time]; !ok || existing.status != SlotBooked {
				byTime[a.Time] = overlay{status: SlotPending, ref: &a.ID}
			}
		}
	}

	for i := range slots {
		if o, ok := byTime[slots[i].Time]; ok {
			slots[i].Status = o.status
			slots[i].AppointmentID = o.ref
		} else {
			slots[i].Status = SlotAvailable
			slots[i].AppointmentID = nil
		}
	}

	return slots, nil
}

// DefineSlot creates a slot for the date and, when recurring, for every
// date within the 30-day horizon sharing the same weekday.
func (s *Service) DefineSlot(ctx context.Context, ident auth.Identity, doctorID uuid.UUID, date, timeLabel string, recurring bool) ([]Slot, error) {
	if ident.Role != auth.RoleDoctor || ident.UID != doctorID {
		return nil, ErrNotPermitted
	}

	start, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	canonical, err := ParseTimeLabel(timeLabel)
	if err != nil {
		return nil, err
	}
	category, err := CategorizeTime(canonical)
	if err != nil {
		return nil, err
	}

	dates := []string{start.Format(DateLayout)}
	if recurring {
		dates = dates[:0]
		weekday := start.Weekday()
		for i := 0; i < recurrenceHorizonDays; i++ {
			d := start.AddDate(0, 0, i)
			if d.Weekday() == weekday {
				dates = append(dates, d.Format(DateLayout))
			}
		}
	}

	slots := make([]Slot, 0, len(dates))
	for _, d := range dates {
		slots = append(slots, Slot{
			ID:       uuid.New(),
			DoctorID: doctorID,
			Date:     d,
			Time:     canonical,
			Category: category,
			Status:   SlotAvailable,
		})
	}

	if err := s.repo.UpsertSlots(ctx, slots); err != nil {
		return nil, fmt.Errorf("define slots: %w", err)
	}

	s.publishChange(ctx, SlotChange{
		Type:     ChangeSlotDefined,
		DoctorID: doctorID,
		Date:     date,
		Time:     canonical,
		Status:   SlotAvailable,
	})

	return slots, nil
}

// DeleteSlot removes a slot unless a live appointment references it.
func (s *Service) DeleteSlot(ctx context.Context, ident auth.Identity, doctorID, slotID uuid.UUID) error {
	if ident.Role != auth.RoleDoctor || ident.UID != doctorID {
		return ErrNotPermitted
	}

	slot, err := s.repo.GetSlotByID(ctx, doctorID, slotID)
	if err != nil {
		return err
	}

	live, err := s.repo.ListLiveAppointmentsForSlot(ctx, doctorID, slot.Date, slot.Time)
	if err != nil {
		return fmt.Errorf("check live appointments: %w", err)
	}
	if len(live) > 0 {
		return ErrSlotReferenced
	}

	if err := s.repo.DeleteSlot(ctx, doctorID, slotID); err != nil {
		return err
	}

	s.publishChange(ctx, SlotChange{
		Type:     ChangeSlotDeleted,
		DoctorID: doctorID,
		Date:     slot.Date,
		Time:     slot.Time,
		Status:   SlotAvailable,
	})

	s.log.Info("slot deleted",
		zap.String("doctor_id", doctorID.String()),
		zap.String("date", slot.Date),
		zap.String("time", slot.Time))

	return nil
}

// Weekday reports the weekday of a catalog date string. Helper for the
// seed command and tests.
func Weekday(date string) (time.Weekday, error) {
	t, err := ParseDate(date)
	if err != nil {
		return 0, err
	}
	return t.Weekday(), nil
}
