package booking

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var appointmentCols = []string{
	"id", "doctor_id", "patient_id", "date", "time", "status",
	"patient_name", "patient_age", "patient_mobile", "created_at", "updated_at",
}

func newMockRepo(t *testing.T) (pgxmock.PgxPoolIface, *PgRepository) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	return mock, NewPgRepository(mock)
}

func appointmentRow(appt Appointment) *pgxmock.Rows {
	return pgxmock.NewRows(appointmentCols).AddRow(
		appt.ID, appt.DoctorID, appt.PatientID, appt.Date, appt.Time, appt.Status,
		appt.PatientName, appt.PatientAge, appt.PatientMobile, appt.CreatedAt, appt.UpdatedAt,
	)
}

func TestCreatePendingAppointment(t *testing.T) {
	mock, repo := newMockRepo(t)

	appt := Appointment{
		ID:            uuid.New(),
		DoctorID:      uuid.New(),
		PatientID:     uuid.New(),
		Date:          "Mon Jan 05 2026",
		Time:          "9:00 AM",
		Status:        StatusPending,
		PatientName:   "Ayesha Rahman",
		PatientAge:    34,
		PatientMobile: "01712345678",
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WithArgs(appt.ID, appt.DoctorID, appt.PatientID, appt.Date, appt.Time,
			appt.PatientName, appt.PatientAge, appt.PatientMobile).
		WillReturnRows(appointmentRow(appt))

	created, err := repo.CreatePendingAppointment(context.Background(), &appt)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, created.ID)
	assert.Equal(t, StatusPending, created.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// The conditional insert returns no row when a live appointment already
// holds the key; that must surface as ErrSlotTaken, never a second row.
func TestCreatePendingAppointmentSlotTaken(t *testing.T) {
	mock, repo := newMockRepo(t)

	appt := Appointment{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		Date:      "Mon Jan 05 2026",
		Time:      "9:00 AM",
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WithArgs(appt.ID, appt.DoctorID, appt.PatientID, appt.Date, appt.Time,
			appt.PatientName, appt.PatientAge, appt.PatientMobile).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	created, err := repo.CreatePendingAppointment(context.Background(), &appt)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Nil(t, created)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAppointmentStatusCAS(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	updated := Appointment{
		ID:       id,
		DoctorID: uuid.New(),
		Date:     "Mon Jan 05 2026",
		Time:     "9:00 AM",
		Status:   StatusConfirmed,
	}

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE appointments")).
		WithArgs(id, StatusConfirmed, StatusPending).
		WillReturnRows(appointmentRow(updated))

	got, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusPending, StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, got.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// A CAS miss (the row's status moved underneath) returns no row.
func TestUpdateAppointmentStatusCASMiss(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE appointments")).
		WithArgs(id, StatusConfirmed, StatusPending).
		WillReturnRows(pgxmock.NewRows(appointmentCols))

	_, err := repo.UpdateAppointmentStatus(context.Background(), id, StatusPending, StatusConfirmed)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteAppointmentNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments")).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.DeleteAppointment(context.Background(), id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDoctorByIDNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("FROM doctors")).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "specialty", "created_at", "updated_at"}))

	_, err := repo.GetDoctorByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrDoctorNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSlotNotFound(t *testing.T) {
	mock, repo := newMockRepo(t)

	doctorID := uuid.New()
	slotID := uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM slots")).
		WithArgs(slotID, doctorID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := repo.DeleteSlot(context.Background(), doctorID, slotID)
	assert.ErrorIs(t, err, ErrSlotNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}
