package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/minisource/schedulerd/internal/repository/memory"
	"github.com/minisource/schedulerd/internal/sched/clock"
	"github.com/minisource/schedulerd/internal/sched/job"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l.WithField("component", "sched_test")
}

// onceAt fires exactly once, at 'at'.
type onceAt struct {
	at    int64
	spent bool
}

func (o *onceAt) Next(from int64) (int64, bool) {
	if o.spent || from > o.at {
		return 0, false
	}
	o.spent = true
	return o.at, true
}

// everyN recurs indefinitely every n seconds.
type everyN struct {
	n int64
}

func (e everyN) Next(from int64) (int64, bool) {
	return from + e.n, true
}

// stubPayload is a sched.PayloadAdapter that counts calls and optionally
// runs onExec synchronously inside Execute, letting tests block a
// worker mid-flight.
type stubPayload struct {
	mu     sync.Mutex
	calls  int
	onExec func(rec *job.Record)
}

func (p *stubPayload) Execute(ctx context.Context, rec *job.Record) (ExecResult, string, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.onExec != nil {
		p.onExec(rec)
	}
	return ExecOk, "", nil
}

func (p *stubPayload) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func newTestScheduler(seed []*job.Record, payload PayloadAdapter, clk clock.Clock) (*Scheduler, *memory.Store) {
	repo := memory.NewStore(seed)
	s := New(repo, payload, nil, clk, testLogger())
	s.Init()
	return s, repo
}

func TestStartSuspendedThenResumeIsEquivalentToStart(t *testing.T) {
	clk := clock.NewFake(1000)
	s, _ := newTestScheduler(nil, &stubPayload{}, clk)
	ctx := context.Background()

	require.NoError(t, s.StartSuspended(ctx))
	assert.Equal(t, Suspended, s.State())

	require.NoError(t, s.Resume(ctx))
	assert.Equal(t, Running, s.State())

	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, Initialized, s.State())
}

func TestStartTwiceReturnsAlreadyRunning(t *testing.T) {
	clk := clock.NewFake(1000)
	s, _ := newTestScheduler(nil, &stubPayload{}, clk)
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.ErrorIs(t, s.Start(ctx), ErrAlreadyRunning)
	require.NoError(t, s.Stop(ctx))
}

func TestRecurringJobFiresOnEachClockAdvance(t *testing.T) {
	clk := clock.NewFake(1000)
	fired := make(chan struct{}, 8)
	payload := &stubPayload{onExec: func(rec *job.Record) { fired <- struct{}{} }}

	rec := job.New(job.Identity{DatabaseName: "d1", JobName: "recurring"}, "", "", everyN{n: 60}, 1000)
	s, _ := newTestScheduler([]*job.Record{rec}, payload, clk)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	waitFired(t, fired)
	assert.Equal(t, 1, payload.count())

	clk.Advance(60)
	waitFired(t, fired)
	assert.Equal(t, 2, payload.count())
}

func TestOneShotJobExhaustsAndLeavesQueueEmpty(t *testing.T) {
	clk := clock.NewFake(1000)
	fired := make(chan struct{}, 4)
	payload := &stubPayload{onExec: func(rec *job.Record) { fired <- struct{}{} }}

	rec := job.New(job.Identity{DatabaseName: "d1", JobName: "once"}, "", "", &onceAt{at: 1000}, 1000)
	s, _ := newTestScheduler([]*job.Record{rec}, payload, clk)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	waitFired(t, fired)
	assert.Eventually(t, func() bool { return payload.count() >= 1 }, time.Second, time.Millisecond)

	// Give the manager a chance to advance the schedule past its only
	// fire, notice exhaustion and drop the record from the queue.
	assert.Eventually(t, func() bool {
		rows := s.DumpStatus()
		for _, row := range rows {
			if row[0] == "queue.elements" {
				return row[1] == "0"
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestDropWhileRunningDefersPersistedDeleteUntilWorkerFinishes(t *testing.T) {
	clk := clock.NewFake(1000)
	started := make(chan struct{})
	release := make(chan struct{})
	payload := &stubPayload{onExec: func(rec *job.Record) {
		close(started)
		<-release
	}}

	id := job.Identity{DatabaseName: "d1", JobName: "long-running"}
	rec := job.New(id, "", "", everyN{n: 60}, 1000)
	s, repo := newTestScheduler([]*job.Record{rec}, payload, clk)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	<-started
	assert.Equal(t, 1, s.WorkersCount())

	s.Drop(id)
	// The worker is still executing; the persisted drop must not have
	// happened yet.
	assert.Empty(t, repo.Dropped())

	close(release)

	assert.Eventually(t, func() bool {
		for _, d := range repo.Dropped() {
			if d == id {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestUpdateMutatesQueuedJobAndReportsMissing(t *testing.T) {
	clk := clock.NewFake(1000)
	id := job.Identity{DatabaseName: "d1", JobName: "updatable"}
	rec := job.New(id, "principal", "schema", everyN{n: 3600}, 100000)
	s, _ := newTestScheduler([]*job.Record{rec}, &stubPayload{}, clk)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	ok := s.Update(id, func(r *job.Record) {
		r.NextFireAt = 200000
		r.DefinerPrincipal = "new-principal"
	})
	assert.True(t, ok)

	missing := job.Identity{DatabaseName: "d1", JobName: "nonexistent"}
	assert.False(t, s.Update(missing, func(r *job.Record) {}))
}

func TestKillTreatedAsImplicitSuspend(t *testing.T) {
	clk := clock.NewFake(1000)
	id := job.Identity{DatabaseName: "d1", JobName: "far-future"}
	rec := job.New(id, "", "", everyN{n: 60}, 1000+100000)
	s, _ := newTestScheduler([]*job.Record{rec}, &stubPayload{}, clk)
	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	require.Equal(t, Running, s.State())
	s.Kill()

	assert.Eventually(t, func() bool { return s.State() == Suspended }, time.Second, time.Millisecond)
}

func waitFired(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload execution")
	}
}
