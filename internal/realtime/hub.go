package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/medibook/slot-booking/internal/booking"
)

// Hub carries slot-change events to watchers over Redis pub/sub, one
// channel per (doctor, date). It replaces the app's per-query snapshot
// listeners: every Watch pairs with a Close on view teardown, and no event
// is delivered after Close returns.
type Hub struct {
	client *redis.Client
	log    *zap.Logger
}

func NewHub(client *redis.Client, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{client: client, log: log}
}

func channelFor(doctorID uuid.UUID, date string) string {
	return fmt.Sprintf("slots:%s:%s", doctorID, date)
}

// PublishSlotChange pushes one event to whoever is watching the slot's
// doctor and date. Implements booking.Publisher.
func (h *Hub) PublishSlotChange(ctx context.Context, change booking.SlotChange) error {
	payload, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal slot change: %w", err)
	}

	if err := h.client.Publish(ctx, channelFor(change.DoctorID, change.Date), payload).Err(); err != nil {
		return fmt.Errorf("publish slot change: %w", err)
	}

	return nil
}

// Subscription is a live watch on one doctor's date. Callers must Close it
// when the view goes away.
type Subscription struct {
	events chan booking.SlotChange
	pubsub *redis.PubSub
	cancel context.CancelFunc

	closeOnce sync.Once
	done      chan struct{}
}

// C is the event stream. It is closed after Close.
func (s *Subscription) C() <-chan booking.SlotChange {
	return s.events
}

// Close tears the subscription down. Safe to call more than once; after it
// returns no further event is delivered.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.pubsub.Close()
		<-s.done
	})
	return err
}

// Watch subscribes to slot changes for a doctor and date.
func (h *Hub) Watch(ctx context.Context, doctorID uuid.UUID, date string) (*Subscription, error) {
	pubsub := h.client.Subscribe(ctx, channelFor(doctorID, date))

	// Force the subscribe to complete so a failed Redis connection surfaces
	// here instead of as a silent dead channel.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe slot changes: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())

	sub := &Subscription{
		events: make(chan booking.SlotChange, 16),
		pubsub: pubsub,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.events)

		ch := pubsub.Channel()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var change booking.SlotChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					h.log.Warn("dropping undecodable slot change", zap.Error(err))
					continue
				}

				select {
				case sub.events <- change:
				default:
					// Slow watcher; drop rather than block the hub.
					h.log.Warn("dropping slot change for slow watcher",
						zap.String("doctor_id", change.DoctorID.String()),
						zap.String("date", change.Date))
				}
			}
		}
	}()

	return sub, nil
}
