package core

import "context"

// Broker carries envelopes between server instances. Every published
// envelope, including those published locally, comes back on Deliveries.
type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	Deliveries() <-chan Envelope
	Close() error
}
