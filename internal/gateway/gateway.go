// Package gateway is the single path through which vote counts change.
//
// Every Submit checks the caller's rights, applies the vote and hands the
// resulting snapshot to the publisher while holding one lock, so snapshots
// reach the publisher in the same order the votes were applied.
package gateway

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/votecast/backend/internal/auth"
	"github.com/votecast/backend/internal/connid"
	"github.com/votecast/backend/internal/metrics"
	"github.com/votecast/backend/internal/tally"
)

var ErrDenied = errors.New("connection not authorized to submit votes")

// Publisher receives every snapshot produced by an accepted vote.
type Publisher interface {
	Publish(snap tally.Snapshot)
}

type Gateway struct {
	mu        sync.Mutex
	store     *tally.Store
	registry  *auth.Registry
	publisher Publisher
	metrics   *metrics.Metrics
}

// New wires a gateway over store and registry. publisher may be nil, in
// which case accepted votes are not fanned out.
func New(store *tally.Store, registry *auth.Registry, publisher Publisher, m *metrics.Metrics) *Gateway {
	return &Gateway{
		store:     store,
		registry:  registry,
		publisher: publisher,
		metrics:   m,
	}
}

// Authorize runs the admin exchange for id.
func (g *Gateway) Authorize(id connid.ID, secret string) bool {
	if g.registry.Authorize(id, secret) {
		g.metrics.AdminRequest(metrics.AdminGranted)
		slog.Info("admin granted", "conn", id)
		return true
	}
	g.metrics.AdminRequest(metrics.AdminDenied)
	slog.Warn("admin denied", "conn", id)
	return false
}

// Submit records one vote on behalf of id and returns the snapshot that was
// published. It fails with ErrDenied when id holds no rights and with
// tally.ErrNotFound or tally.ErrInvalidOption when the store rejects the
// vote. A failed Submit changes nothing and publishes nothing.
func (g *Gateway) Submit(id connid.ID, unitID string, option tally.Option) (tally.Snapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.registry.IsAuthorized(id) {
		g.metrics.VoteResult(metrics.ResultDenied)
		return tally.Snapshot{}, ErrDenied
	}

	if _, err := g.store.ApplyVote(unitID, option); err != nil {
		switch {
		case errors.Is(err, tally.ErrNotFound):
			g.metrics.VoteResult(metrics.ResultNotFound)
		default:
			g.metrics.VoteResult(metrics.ResultMalformed)
		}
		return tally.Snapshot{}, err
	}

	snap := g.store.Snapshot()
	g.metrics.VoteApplied(unitID, string(option))
	slog.Info("vote registered", "conn", id, "unit", unitID, "option", option, "version", snap.Version)

	if g.publisher != nil {
		g.publisher.Publish(snap)
	}
	return snap, nil
}

// RecordMalformed counts a vote request that could not be decoded.
// It never reaches the store.
func (g *Gateway) RecordMalformed() {
	g.metrics.VoteResult(metrics.ResultMalformed)
}

// Snapshot returns the current state without mutating it.
func (g *Gateway) Snapshot() tally.Snapshot {
	return g.store.Snapshot()
}
