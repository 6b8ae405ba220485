// Package redis fans envelopes out across server instances over a single
// Redis pub/sub channel.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
)

// Broker publishes JSON-encoded envelopes and relays everything received on
// the channel, including its own publications.
type Broker struct {
	client  *redis.Client
	channel string
	pubsub  *redis.PubSub
	out     chan core.Envelope
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
	log     *zerolog.Logger
}

// New subscribes to channel and starts relaying. The subscription is
// confirmed before New returns so no publication after it is missed.
func New(ctx context.Context, client *redis.Client, channel string, logger *zerolog.Logger) (*Broker, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	b := &Broker{
		client:  client,
		channel: channel,
		pubsub:  pubsub,
		out:     make(chan core.Envelope, 256),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
		log:     logger,
	}
	go b.relay()
	return b, nil
}

// Publish sends env to every subscriber of the channel.
func (b *Broker) Publish(ctx context.Context, env core.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Deliveries is closed once Close has stopped the relay.
func (b *Broker) Deliveries() <-chan core.Envelope {
	return b.out
}

// Close unsubscribes and waits for the relay to exit. The client is owned by
// the caller and stays open.
func (b *Broker) Close() error {
	var err error
	b.once.Do(func() {
		close(b.stop)
		err = b.pubsub.Close()
		<-b.done
	})
	return err
}

func (b *Broker) relay() {
	defer close(b.done)
	defer close(b.out)

	for msg := range b.pubsub.Channel() {
		var env core.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			b.log.Warn().Err(err).Str("channel", b.channel).Msg("dropping undecodable envelope")
			continue
		}
		select {
		case b.out <- env:
		case <-b.stop:
			return
		}
	}
}
