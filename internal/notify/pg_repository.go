package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgPool is the slice of pgxpool.Pool the repository needs; pgxmock
// satisfies it in tests.
type PgPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PgRepository struct {
	pool PgPool
}

func NewPgRepository(pool PgPool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, recipient_id, recipient_role, type, appointment_id, patient_name, patient_age, patient_mobile, date, time, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, n.ID, n.RecipientID, n.RecipientRole, n.Type, n.AppointmentID, n.PatientName, n.PatientAge, n.PatientMobile, n.Date, n.Time, n.Status, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

func (r *PgRepository) ListInbox(ctx context.Context, recipientID uuid.UUID, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, recipient_id, recipient_role, type, appointment_id, patient_name, patient_age, patient_mobile, date, time, status, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		var appointmentID *uuid.UUID

		err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.RecipientRole,
			&n.Type,
			&appointmentID,
			&n.PatientName,
			&n.PatientAge,
			&n.PatientMobile,
			&n.Date,
			&n.Time,
			&n.Status,
			&n.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		n.AppointmentID = appointmentID
		result = append(result, n)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) ClearInbox(ctx context.Context, recipientID uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE recipient_id = $1
	`, recipientID)
	if err != nil {
		return fmt.Errorf("clear inbox: %w", err)
	}

	return nil
}
