// Package mock drives the tally with random votes for demos. The feeder is an
// ordinary admin client: it authorizes and submits through the gateway.
package mock

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/votecast/backend/internal/connid"
	"github.com/votecast/backend/internal/tally"
)

// FeederID is the connection id the feeder authorizes under.
const FeederID connid.ID = "mock-feeder"

var ErrNotAuthorized = errors.New("mock feeder was not granted admin rights")

// Submitter is the part of the gateway the feeder uses.
type Submitter interface {
	Authorize(id connid.ID, secret string) bool
	Submit(id connid.ID, unitID string, option tally.Option) (tally.Snapshot, error)
	Snapshot() tally.Snapshot
}

type Feeder struct {
	gw       Submitter
	secret   string
	clock    clockwork.Clock
	interval time.Duration
	rng      *rand.Rand
	done     chan struct{}
}

func NewFeeder(gw Submitter, secret string, clock clockwork.Clock, interval time.Duration, seed int64) *Feeder {
	if interval <= 0 {
		interval = time.Second
	}
	return &Feeder{
		gw:       gw,
		secret:   secret,
		clock:    clock,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		done:     make(chan struct{}),
	}
}

// Start authorizes the feeder and submits one random vote per interval until
// ctx is cancelled.
func (f *Feeder) Start(ctx context.Context) error {
	if !f.gw.Authorize(FeederID, f.secret) {
		close(f.done)
		return ErrNotAuthorized
	}

	units := f.gw.Snapshot().Units
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}

	go f.run(ctx, ids)
	return nil
}

// Done is closed once the feeder has stopped.
func (f *Feeder) Done() <-chan struct{} {
	return f.done
}

func (f *Feeder) run(ctx context.Context, ids []string) {
	defer close(f.done)
	if len(ids) == 0 {
		return
	}

	ticker := f.clock.NewTicker(f.interval)
	defer ticker.Stop()

	options := []tally.Option{tally.OptionA, tally.OptionB, tally.Blank}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			unit := ids[f.rng.Intn(len(ids))]
			// Weighted so the two candidates pull ahead of blank.
			opt := options[f.pick()]
			if _, err := f.gw.Submit(FeederID, unit, opt); err != nil {
				slog.Warn("mock vote rejected", "unit", unit, "option", opt, "error", err)
			}
		}
	}
}

func (f *Feeder) pick() int {
	n := f.rng.Intn(10)
	switch {
	case n < 5:
		return 0
	case n < 9:
		return 1
	default:
		return 2
	}
}
