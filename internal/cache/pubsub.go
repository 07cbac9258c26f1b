package cache

import (
	"context"
	"encoding/json"

	"github.com/aman-zulfiqar/escrow-solver/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Subscriber streams published ledger events
type Subscriber struct {
	client redis.UniversalClient
	logger *logrus.Logger
}

func NewSubscriber(client redis.UniversalClient, logger *logrus.Logger) *Subscriber {
	if logger == nil {
		logger = logrus.New()
	}
	return &Subscriber{client: client, logger: logger}
}

// Subscribe calls handler for every event on channel until ctx is done
func (s *Subscriber) Subscribe(ctx context.Context, channel string, handler func(*models.LedgerEvent)) error {
	sub := s.client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	s.logger.WithField("channel", channel).Info("subscribed to events")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var ev models.LedgerEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				s.logger.WithError(err).Warn("skipping malformed event")
				continue
			}
			handler(&ev)
		}
	}
}
