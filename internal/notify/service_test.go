package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medibook/slot-booking/internal/booking"
)

type fakeRepo struct {
	mu        sync.Mutex
	inserted  []Notification
	failNext  int
	lastLimit int
}

func (f *fakeRepo) Insert(_ context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return errors.New("inbox unavailable")
	}
	f.inserted = append(f.inserted, n)
	return nil
}

func (f *fakeRepo) ListInbox(_ context.Context, recipientID uuid.UUID, limit int) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLimit = limit
	var result []Notification
	for _, n := range f.inserted {
		if n.RecipientID == recipientID {
			result = append(result, n)
		}
	}
	return result, nil
}

func (f *fakeRepo) ClearInbox(_ context.Context, recipientID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.inserted[:0]
	for _, n := range f.inserted {
		if n.RecipientID != recipientID {
			kept = append(kept, n)
		}
	}
	f.inserted = kept
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	repo := &fakeRepo{}
	return NewService(repo, client, nil, nil), repo, client
}

func testAppointment() *booking.Appointment {
	return &booking.Appointment{
		ID:            uuid.New(),
		DoctorID:      uuid.New(),
		PatientID:     uuid.New(),
		Date:          "Mon Jan 05 2026",
		Time:          "9:00 AM",
		Status:        booking.StatusPending,
		PatientName:   "Ayesha Rahman",
		PatientAge:    34,
		PatientMobile: "01712345678",
	}
}

func TestBookingCreatedWritesDoctorInbox(t *testing.T) {
	svc, repo, _ := newTestService(t)
	appt := testAppointment()

	require.NoError(t, svc.BookingCreated(context.Background(), appt))

	require.Len(t, repo.inserted, 1)
	n := repo.inserted[0]
	assert.Equal(t, appt.DoctorID, n.RecipientID)
	assert.Equal(t, TypeNewAppointment, n.Type)
	assert.Equal(t, StatusUnread, n.Status)
	assert.Equal(t, appt.PatientName, n.PatientName)
	assert.Equal(t, appt.PatientMobile, n.PatientMobile)
	require.NotNil(t, n.AppointmentID)
	assert.Equal(t, appt.ID, *n.AppointmentID)
}

func TestStatusChangedWritesPatientInbox(t *testing.T) {
	svc, repo, _ := newTestService(t)

	appt := testAppointment()
	appt.Status = booking.StatusConfirmed
	require.NoError(t, svc.StatusChanged(context.Background(), appt))

	appt2 := testAppointment()
	appt2.Status = booking.StatusCancelled
	require.NoError(t, svc.StatusChanged(context.Background(), appt2))

	require.Len(t, repo.inserted, 2)
	assert.Equal(t, appt.PatientID, repo.inserted[0].RecipientID)
	assert.Equal(t, TypeAppointmentConfirmed, repo.inserted[0].Type)
	assert.Equal(t, TypeAppointmentCancelled, repo.inserted[1].Type)
}

func TestDeliveryFailureQueuesForRetry(t *testing.T) {
	svc, repo, client := newTestService(t)
	repo.failNext = 1

	err := svc.BookingCreated(context.Background(), testAppointment())
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Empty(t, repo.inserted)

	queued, qErr := client.LLen(context.Background(), retryQueueKey).Result()
	require.NoError(t, qErr)
	assert.EqualValues(t, 1, queued)
}

func TestRetryPendingDrainsQueue(t *testing.T) {
	svc, repo, client := newTestService(t)

	repo.failNext = 2
	_ = svc.BookingCreated(context.Background(), testAppointment())
	_ = svc.StatusChanged(context.Background(), &booking.Appointment{
		ID: uuid.New(), PatientID: uuid.New(), Status: booking.StatusConfirmed,
		Date: "Mon Jan 05 2026", Time: "9:00 AM",
	})

	queued, err := client.LLen(context.Background(), retryQueueKey).Result()
	require.NoError(t, err)
	require.EqualValues(t, 2, queued)

	delivered, err := svc.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)
	assert.Len(t, repo.inserted, 2)

	queued, err = client.LLen(context.Background(), retryQueueKey).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, queued)
}

// A retry that fails again goes back to the end of the queue and stops
// the drain, so a dead inbox cannot spin the worker.
func TestRetryPendingRequeuesOnFailure(t *testing.T) {
	svc, repo, client := newTestService(t)

	repo.failNext = 1
	_ = svc.BookingCreated(context.Background(), testAppointment())

	repo.failNext = 1
	delivered, err := svc.RetryPending(context.Background())
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Equal(t, 0, delivered)

	queued, qErr := client.LLen(context.Background(), retryQueueKey).Result()
	require.NoError(t, qErr)
	assert.EqualValues(t, 1, queued)

	// Next run succeeds.
	delivered, err = svc.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
}

func TestRetryPendingEmptyQueue(t *testing.T) {
	svc, _, _ := newTestService(t)

	delivered, err := svc.RetryPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, delivered)
}

func TestInboxDefaultLimit(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.Inbox(context.Background(), uuid.New(), 0)
	require.NoError(t, err)
	assert.Equal(t, 50, repo.lastLimit)

	_, err = svc.Inbox(context.Background(), uuid.New(), 10)
	require.NoError(t, err)
	assert.Equal(t, 10, repo.lastLimit)
}

func TestClearInbox(t *testing.T) {
	svc, _, _ := newTestService(t)

	appt := testAppointment()
	require.NoError(t, svc.BookingCreated(context.Background(), appt))
	require.NoError(t, svc.ClearInbox(context.Background(), appt.DoctorID))

	inbox, err := svc.Inbox(context.Background(), appt.DoctorID, 10)
	require.NoError(t, err)
	assert.Empty(t, inbox)
}
