package gateway

import (
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/votecast/backend/internal/auth"
	"github.com/votecast/backend/internal/connid"
	"github.com/votecast/backend/internal/metrics"
	"github.com/votecast/backend/internal/tally"
)

const secret = "s3cret"

type recordingPublisher struct {
	mu    sync.Mutex
	snaps []tally.Snapshot
}

func (p *recordingPublisher) Publish(snap tally.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snaps = append(p.snaps, snap)
}

func (p *recordingPublisher) published() []tally.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tally.Snapshot(nil), p.snaps...)
}

type fixture struct {
	store    *tally.Store
	registry *auth.Registry
	pub      *recordingPublisher
	gw       *Gateway
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := tally.NewStore([]tally.Unit{
		{ID: "U1", Name: "Unit 1", CandidateA: "A", CandidateB: "B"},
		{ID: "U2", Name: "Unit 2", CandidateA: "C", CandidateB: "D"},
	})
	require.NoError(t, err)
	registry := auth.NewRegistry(secret)
	pub := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	return &fixture{
		store:    store,
		registry: registry,
		pub:      pub,
		gw:       New(store, registry, pub, m),
		metrics:  m,
	}
}

func TestSubmit_UnauthorizedIsDenied(t *testing.T) {
	f := newFixture(t)
	before := f.store.Snapshot()

	for _, unit := range []string{"U1", "U2", "U9"} {
		for _, opt := range []tally.Option{tally.OptionA, tally.OptionB, tally.Blank} {
			_, err := f.gw.Submit(connid.New(), unit, opt)
			assert.ErrorIs(t, err, ErrDenied)
		}
	}

	assert.Equal(t, before, f.store.Snapshot())
	assert.Empty(t, f.pub.published())
	assert.Equal(t, 9.0, testutil.ToFloat64(f.metrics.Votes.WithLabelValues(metrics.ResultDenied)))
}

func TestSubmit_Scenario(t *testing.T) {
	f := newFixture(t)
	id := connid.New()

	_, err := f.gw.Submit(id, "U1", tally.OptionA)
	require.ErrorIs(t, err, ErrDenied)
	u, _ := f.store.Get("U1")
	require.Equal(t, tally.Counters{}, u.Votes)

	require.True(t, f.gw.Authorize(id, secret))

	for _, opt := range []tally.Option{tally.OptionA, tally.OptionA, tally.Blank} {
		_, err := f.gw.Submit(id, "U1", opt)
		require.NoError(t, err)
	}

	u, _ = f.store.Get("U1")
	assert.Equal(t, tally.Counters{OptionA: 2, OptionB: 0, Blank: 1}, u.Votes)

	snaps := f.pub.published()
	require.Len(t, snaps, 3)
	want := []tally.Counters{
		{OptionA: 1},
		{OptionA: 2},
		{OptionA: 2, Blank: 1},
	}
	for i, snap := range snaps {
		assert.Equal(t, uint64(i+1), snap.Version)
		got, ok := snap.Unit("U1")
		require.True(t, ok)
		assert.Equal(t, want[i], got.Votes, "broadcast %d", i)
		assert.Len(t, snap.Units, 2, "broadcast %d must carry the full snapshot", i)
	}
}

func TestSubmit_UnknownUnit(t *testing.T) {
	f := newFixture(t)
	id := connid.New()
	require.True(t, f.gw.Authorize(id, secret))
	before := f.store.Snapshot()

	_, err := f.gw.Submit(id, "U9", tally.OptionA)

	assert.ErrorIs(t, err, tally.ErrNotFound)
	assert.Equal(t, before, f.store.Snapshot())
	assert.Empty(t, f.pub.published())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Votes.WithLabelValues(metrics.ResultNotFound)))
}

func TestSubmit_InvalidOption(t *testing.T) {
	f := newFixture(t)
	id := connid.New()
	require.True(t, f.gw.Authorize(id, secret))

	_, err := f.gw.Submit(id, "U1", tally.Option("elector3"))

	assert.ErrorIs(t, err, tally.ErrInvalidOption)
	assert.Zero(t, f.store.Version())
	assert.Empty(t, f.pub.published())
}

func TestRecordMalformed(t *testing.T) {
	f := newFixture(t)

	f.gw.RecordMalformed()

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Votes.WithLabelValues(metrics.ResultMalformed)))
	assert.Zero(t, f.store.Version())
	assert.Empty(t, f.pub.published())
}

func TestSubmit_ReturnsPublishedSnapshot(t *testing.T) {
	f := newFixture(t)
	id := connid.New()
	require.True(t, f.gw.Authorize(id, secret))

	snap, err := f.gw.Submit(id, "U2", tally.OptionB)
	require.NoError(t, err)

	published := f.pub.published()
	require.Len(t, published, 1)
	assert.Equal(t, published[0], snap)
}

func TestSubmit_AfterRevokeIsDenied(t *testing.T) {
	f := newFixture(t)
	id := connid.New()
	require.True(t, f.gw.Authorize(id, secret))
	_, err := f.gw.Submit(id, "U1", tally.OptionA)
	require.NoError(t, err)

	f.registry.Revoke(id)

	_, err = f.gw.Submit(id, "U1", tally.OptionA)
	assert.ErrorIs(t, err, ErrDenied)
	u, _ := f.store.Get("U1")
	assert.Equal(t, uint64(1), u.Votes.OptionA)
}

func TestAuthorize_WrongSecret(t *testing.T) {
	f := newFixture(t)
	id := connid.New()

	assert.False(t, f.gw.Authorize(id, "nope"))
	assert.False(t, f.registry.IsAuthorized(id))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.AdminRequests.WithLabelValues(metrics.AdminDenied)))
}

func TestNilPublisher(t *testing.T) {
	store, err := tally.NewStore([]tally.Unit{{ID: "U1"}})
	require.NoError(t, err)
	registry := auth.NewRegistry(secret)
	gw := New(store, registry, nil, nil)
	id := connid.New()
	require.True(t, gw.Authorize(id, secret))

	_, err = gw.Submit(id, "U1", tally.Blank)
	assert.NoError(t, err)
}

func TestSubmit_ConcurrentPublishesInVersionOrder(t *testing.T) {
	f := newFixture(t)
	const admins = 8
	const perAdmin = 100

	ids := make([]connid.ID, admins)
	for i := range ids {
		ids[i] = connid.New()
		require.True(t, f.gw.Authorize(ids[i], secret))
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id connid.ID) {
			defer wg.Done()
			for n := 0; n < perAdmin; n++ {
				unit := []string{"U1", "U2"}[(i+n)%2]
				if _, err := f.gw.Submit(id, unit, tally.OptionA); err != nil {
					t.Errorf("Submit: %v", err)
				}
			}
		}(i, id)
	}
	wg.Wait()

	snaps := f.pub.published()
	require.Len(t, snaps, admins*perAdmin)
	for i, snap := range snaps {
		if snap.Version != uint64(i+1) {
			t.Fatalf("publish %d carried version %d", i, snap.Version)
		}
	}

	var total uint64
	for _, u := range f.store.Snapshot().Units {
		total += u.Votes.OptionA
	}
	assert.Equal(t, uint64(admins*perAdmin), total)
}
