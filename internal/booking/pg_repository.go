package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgPool is the slice of pgxpool.Pool the repository needs. pgxmock
// satisfies it too, which is how the repository tests run without Postgres.
type PgPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PgRepository struct {
	pool PgPool
}

func NewPgRepository(pool PgPool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var specialty *string

	err := row.Scan(
		&d.ID,
		&d.Name,
		&specialty,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.Specialty = specialty
	return &d, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	var appointmentID *uuid.UUID

	err := row.Scan(
		&s.ID,
		&s.DoctorID,
		&s.Date,
		&s.Time,
		&s.Category,
		&s.Status,
		&appointmentID,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, err
	}

	s.AppointmentID = appointmentID
	return &s, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment

	err := row.Scan(
		&a.ID,
		&a.DoctorID,
		&a.PatientID,
		&a.Date,
		&a.Time,
		&a.Status,
		&a.PatientName,
		&a.PatientAge,
		&a.PatientMobile,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	return &a, nil
}

const appointmentColumns = `id, doctor_id, patient_id, date, time, status, patient_name, patient_age, patient_mobile, created_at, updated_at`

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// Interface methods

func (r *PgRepository) GetDoctorByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM doctors
		WHERE id = $1
	`, id)
	return scanDoctor(row)
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) ListSlots(ctx context.Context, doctorID uuid.UUID, date string) ([]Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, date, time, category, status, appointment_id, created_at, updated_at
		FROM slots
		WHERE doctor_id = $1 AND date = $2
		ORDER BY created_at
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) GetSlotByID(ctx context.Context, doctorID, slotID uuid.UUID) (*Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, doctor_id, date, time, category, status, appointment_id, created_at, updated_at
		FROM slots
		WHERE id = $1 AND doctor_id = $2
	`, slotID, doctorID)
	return scanSlot(row)
}

func (r *PgRepository) UpsertSlots(ctx context.Context, slots []Slot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert slots: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, s := range slots {
		_, err := tx.Exec(ctx, `
			INSERT INTO slots (id, doctor_id, date, time, category, status, appointment_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (doctor_id, date, time)
			DO UPDATE SET category = EXCLUDED.category, updated_at = now()
		`, s.ID, s.DoctorID, s.Date, s.Time, s.Category, s.Status, s.AppointmentID)
		if err != nil {
			return fmt.Errorf("upsert slot %s %s: %w", s.Date, s.Time, err)
		}
	}

	return tx.Commit(ctx)
}

func (r *PgRepository) SetSlotStatus(ctx context.Context, doctorID uuid.UUID, date, timeLabel string, status SlotStatus, appointmentID *uuid.UUID) error {
	category, err := CategorizeTime(timeLabel)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO slots (id, doctor_id, date, time, category, status, appointment_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		ON CONFLICT (doctor_id, date, time)
		DO UPDATE SET status = EXCLUDED.status, appointment_id = EXCLUDED.appointment_id, updated_at = now()
	`, uuid.New(), doctorID, date, timeLabel, category, status, appointmentID)
	if err != nil {
		return fmt.Errorf("set slot status: %w", err)
	}

	return nil
}

func (r *PgRepository) DeleteSlot(ctx context.Context, doctorID, slotID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM slots
		WHERE id = $1 AND doctor_id = $2
	`, slotID, doctorID)
	if err != nil {
		return fmt.Errorf("delete slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSlotNotFound
	}

	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListLiveAppointmentsForDate(ctx context.Context, doctorID uuid.UUID, date string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND date = $2
		  AND status IN ('Pending', 'Confirmed', 'Completed')
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListLiveAppointmentsForSlot(ctx context.Context, doctorID uuid.UUID, date, timeLabel string) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1 AND date = $2 AND time = $3
		  AND status IN ('Pending', 'Confirmed', 'Completed')
	`, doctorID, date, timeLabel)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, doctorID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE patient_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, patientID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

// CreatePendingAppointment inserts the Pending row conditionally: the
// partial unique index on live (doctor_id, date, time) rows turns a lost
// race into a conflict instead of a double booking.
func (r *PgRepository) CreatePendingAppointment(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := appt.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, date, time, status, patient_name, patient_age, patient_mobile, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 'Pending', $6, $7, $8, now(), now())
		ON CONFLICT (doctor_id, date, time) WHERE status IN ('Pending', 'Confirmed', 'Completed')
		DO NOTHING
		RETURNING `+appointmentColumns+`
	`, id, appt.DoctorID, appt.PatientID, appt.Date, appt.Time, appt.PatientName, appt.PatientAge, appt.PatientMobile)

	created, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	return created, nil
}

func (r *PgRepository) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns+`
	`, id, to, from)

	return scanAppointment(row)
}

func (r *PgRepository) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM appointments
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}

	return nil
}
