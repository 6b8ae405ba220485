package chat

import (
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultHistoryLimit bounds the history fetched on room activation.
const DefaultHistoryLimit = 100

// Options tunes the core. Zero values pick the defaults.
type Options struct {
	HistoryLimit  int
	TypingTTL     time.Duration
	FetchTimeout  time.Duration
	LookupTimeout time.Duration
	SendTimeout   time.Duration

	// Clock drives typing expiry; tests inject clock.NewMock().
	Clock clock.Clock
}

func (o Options) withDefaults() Options {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.TypingTTL <= 0 {
		o.TypingTTL = DefaultTypingTTL
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = 2 * time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 10 * time.Second
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}
