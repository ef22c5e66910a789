package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medibook/slot-booking/internal/booking"
	"github.com/medibook/slot-booking/internal/metrics"
)

// retryQueueKey is the Redis list holding notifications whose inbox write
// failed. The notify worker drains it.
const retryQueueKey = "notifications:retry"

// Service writes inbox notifications and parks failures on a retry queue.
type Service struct {
	repo      Repository
	queue     *redis.Client
	collector *metrics.Collector
	log       *zap.Logger
}

func NewService(repo Repository, queue *redis.Client, collector *metrics.Collector, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		queue:     queue,
		collector: collector,
		log:       log,
	}
}

func (s *Service) record(result string) {
	if s.collector != nil {
		s.collector.NotificationsTotal.WithLabelValues(result).Inc()
	}
}

// BookingCreated appends a new_appointment entry to the doctor's inbox.
func (s *Service) BookingCreated(ctx context.Context, appt *booking.Appointment) error {
	return s.deliver(ctx, forBooking(appt))
}

// StatusChanged appends a confirm/cancel entry to the patient's inbox.
func (s *Service) StatusChanged(ctx context.Context, appt *booking.Appointment) error {
	return s.deliver(ctx, forStatusChange(appt))
}

// Inbox lists the newest notifications for a recipient.
func (s *Service) Inbox(ctx context.Context, recipientID uuid.UUID, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListInbox(ctx, recipientID, limit)
}

// ClearInbox removes every notification owned by the recipient.
func (s *Service) ClearInbox(ctx context.Context, recipientID uuid.UUID) error {
	return s.repo.ClearInbox(ctx, recipientID)
}

func (s *Service) deliver(ctx context.Context, n Notification) error {
	err := s.repo.Insert(ctx, n)
	if err == nil {
		s.record("delivered")
		return nil
	}

	s.record("queued")
	s.log.Warn("inbox write failed, queueing for retry",
		zap.String("notification_id", n.ID.String()),
		zap.String("type", n.Type),
		zap.Error(err))

	if qErr := s.enqueue(ctx, n); qErr != nil {
		s.log.Error("failed to queue notification for retry",
			zap.String("notification_id", n.ID.String()),
			zap.Error(qErr))
	}

	return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
}

func (s *Service) enqueue(ctx context.Context, n Notification) error {
	if s.queue == nil {
		return errors.New("no retry queue configured")
	}

	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := s.queue.RPush(ctx, retryQueueKey, payload).Err(); err != nil {
		return fmt.Errorf("push retry queue: %w", err)
	}

	return nil
}

// RetryPending drains the retry queue, re-attempting each parked inbox
// write. A notification that fails again goes back to the end of the queue
// and the drain stops, so one bad row cannot spin the worker.
func (s *Service) RetryPending(ctx context.Context) (int, error) {
	if s.queue == nil {
		return 0, nil
	}

	delivered := 0
	for {
		payload, err := s.queue.LPop(ctx, retryQueueKey).Result()
		if errors.Is(err, redis.Nil) {
			return delivered, nil
		}
		if err != nil {
			return delivered, fmt.Errorf("pop retry queue: %w", err)
		}

		var n Notification
		if err := json.Unmarshal([]byte(payload), &n); err != nil {
			s.log.Error("dropping undecodable retry payload", zap.Error(err))
			continue
		}

		if err := s.repo.Insert(ctx, n); err != nil {
			if qErr := s.queue.RPush(ctx, retryQueueKey, payload).Err(); qErr != nil {
				s.log.Error("failed to requeue notification",
					zap.String("notification_id", n.ID.String()),
					zap.Error(qErr))
			}
			return delivered, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
		}

		s.record("retried")
		delivered++
	}
}
