// Package sessionbus carries session events over Redis pub/sub, one channel
// per principal.
package sessionbus

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
)

type Bus struct {
	rdb    *redis.Client
	logger *logrus.Logger
}

func New(rdb *redis.Client, logger *logrus.Logger) *Bus {
	return &Bus{rdb: rdb, logger: logger}
}

func (b *Bus) Publish(ctx context.Context, ev entity.SessionEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, helpers.SessionEventsChannel(ev.UserID), payload).Err()
}

// Subscription delivers the events of one principal until closed.
type Subscription struct {
	ps     *redis.PubSub
	events chan entity.SessionEvent
	done   chan struct{}
	once   sync.Once
}

// Subscribe returns once Redis has confirmed the subscription, so events
// published afterwards are not lost.
func (b *Bus) Subscribe(ctx context.Context, userID string) (*Subscription, error) {
	ps := b.rdb.Subscribe(ctx, helpers.SessionEventsChannel(userID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}
	s := &Subscription{
		ps:     ps,
		events: make(chan entity.SessionEvent, 16),
		done:   make(chan struct{}),
	}
	go s.pump(b.logger)
	return s, nil
}

func (s *Subscription) Events() <-chan entity.SessionEvent { return s.events }

func (s *Subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *Subscription) pump(logger *logrus.Logger) {
	defer close(s.events)
	for msg := range s.ps.Channel() {
		var ev entity.SessionEvent
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			if logger != nil {
				logger.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed session event")
			}
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}
