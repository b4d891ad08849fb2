package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/EternisAI/silo-enroll/internal/bsidca"
	"github.com/EternisAI/silo-enroll/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	bsidca.Service
	id     int
	alive  atomic.Bool
	closed atomic.Bool
	// stall makes PingConnection wait for ctx to end.
	stall atomic.Bool
}

func (h *fakeHandle) PingConnection(ctx context.Context) (bool, error) {
	if h.stall.Load() {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if !h.alive.Load() {
		return false, errors.New("connection reset")
	}
	return true, nil
}

func (h *fakeHandle) Close() {
	h.closed.Store(true)
}

type dialResult struct {
	alive bool
	err   error
}

// fakeDialer returns scripted results in order and repeats the last one.
type fakeDialer struct {
	mu      sync.Mutex
	script  []dialResult
	dials   int
	handles []*fakeHandle
	gate    chan struct{}
}

func (d *fakeDialer) dial(ctx context.Context) (Handle, error) {
	if d.gate != nil {
		select {
		case <-d.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	idx := d.dials
	if idx >= len(d.script) {
		idx = len(d.script) - 1
	}
	d.dials++

	res := d.script[idx]
	if res.err != nil {
		return nil, res.err
	}
	h := &fakeHandle{id: d.dials}
	h.alive.Store(res.alive)
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) last() *fakeHandle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.handles) == 0 {
		return nil
	}
	return d.handles[len(d.handles)-1]
}

func testConfig() Config {
	return Config{
		MaxAttempts:   3,
		RetryInterval: 20 * time.Millisecond,
		ProbeTimeout:  time.Second,
	}
}

func newTestSupervisor(t *testing.T, cfg Config, d *fakeDialer) *Supervisor {
	t.Helper()
	s := NewSupervisor(cfg, d.dial, metrics.New())
	t.Cleanup(s.Stop)
	return s
}

var errRefused = errors.New("connection refused")

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, time.Second, cfg.RetryInterval)
	assert.Equal(t, 30*time.Second, cfg.KeepaliveInterval)
}

func TestAcquireConnectsOnce(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{alive: true}}}
	s := newTestSupervisor(t, testConfig(), d)
	ctx := context.Background()

	first, err := s.Acquire(ctx)
	require.NoError(t, err)
	second, err := s.Acquire(ctx)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, d.count())
	assert.True(t, s.Healthy())
	assert.Equal(t, 0, s.Attempts())
}

func TestAcquireExhaustsAttempts(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{err: errRefused}}}
	s := newTestSupervisor(t, testConfig(), d)

	start := time.Now()
	_, err := s.Acquire(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 3, d.count())
	assert.Equal(t, 3, s.Attempts())
	assert.False(t, s.Healthy())
	assert.GreaterOrEqual(t, elapsed, 40*time.Millisecond)
}

func TestSuccessAtSecondAttemptResetsCounter(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{err: errRefused}, {alive: true}}}
	s := newTestSupervisor(t, testConfig(), d)

	h, err := s.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, h)

	assert.Equal(t, 2, d.count())
	assert.Equal(t, 0, s.Attempts())
	assert.True(t, s.Healthy())
}

func TestDeadFreshHandleCountsAsFailedAttempt(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{alive: false}, {alive: true}}}
	s := newTestSupervisor(t, testConfig(), d)

	_, err := s.Acquire(context.Background())
	require.NoError(t, err)

	require.Len(t, d.handles, 2)
	assert.True(t, d.handles[0].closed.Load())
	assert.False(t, d.handles[1].closed.Load())
}

func TestDeadSessionIsReplaced(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{alive: true}}}
	s := newTestSupervisor(t, testConfig(), d)
	ctx := context.Background()

	first, err := s.Acquire(ctx)
	require.NoError(t, err)

	old := d.last()
	old.alive.Store(false)

	second, err := s.Acquire(ctx)
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Equal(t, 2, d.count())
	assert.True(t, old.closed.Load())
	assert.True(t, s.Healthy())
}

func TestRecoversAfterExhaustion(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{err: errRefused}, {err: errRefused}, {err: errRefused}, {alive: true}}}
	s := newTestSupervisor(t, testConfig(), d)
	ctx := context.Background()

	_, err := s.Acquire(ctx)
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Equal(t, 3, s.Attempts())

	_, err = s.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Attempts())
	assert.Equal(t, 4, d.count())
}

func TestConcurrentCallersShareOneSequence(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{alive: true}}, gate: make(chan struct{})}
	s := newTestSupervisor(t, testConfig(), d)

	const callers = 20
	var wg sync.WaitGroup
	results := make([]bsidca.Service, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Acquire(context.Background())
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(d.gate)
	wg.Wait()

	assert.Equal(t, 1, d.count())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
}

func TestCallerStopsWaitingButSequenceContinues(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{alive: true}}, gate: make(chan struct{})}
	s := newTestSupervisor(t, testConfig(), d)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(d.gate)
	assert.Eventually(t, s.Healthy, time.Second, 5*time.Millisecond)

	_, err = s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, d.count())
}

func TestCancelledCallerKeepsHealthySession(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{alive: true}}}
	s := newTestSupervisor(t, testConfig(), d)

	first, err := s.Acquire(context.Background())
	require.NoError(t, err)
	handle := d.last()

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Acquire(cancelled)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, err, context.Canceled)

	handle.stall.Store(true)
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	_, err = s.Acquire(short)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.Equal(t, 1, d.count())
	assert.True(t, s.Healthy())
	assert.False(t, handle.closed.Load())

	handle.stall.Store(false)
	again, err := s.Acquire(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, again)
	assert.Equal(t, 1, d.count())
}

func TestPing(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{alive: true}}}
	s := newTestSupervisor(t, testConfig(), d)
	assert.True(t, s.Ping(context.Background()))

	down := &fakeDialer{script: []dialResult{{err: errRefused}}}
	s = newTestSupervisor(t, testConfig(), down)
	assert.False(t, s.Ping(context.Background()))
}

func TestKeepaliveRestoresSession(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{alive: true}}}
	cfg := testConfig()
	cfg.KeepaliveInterval = 10 * time.Millisecond
	s := NewSupervisor(cfg, d.dial, nil)

	s.Start()
	assert.Eventually(t, s.Healthy, time.Second, 5*time.Millisecond)

	first := d.last()
	first.alive.Store(false)

	assert.Eventually(t, func() bool { return d.count() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, s.Healthy, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Healthy())
	assert.True(t, first.closed.Load())
	assert.True(t, d.last().closed.Load())
}

func TestStopIsIdempotent(t *testing.T) {
	d := &fakeDialer{script: []dialResult{{alive: true}}}
	s := NewSupervisor(testConfig(), d.dial, nil)
	s.Start()
	s.Stop()
	assert.NotPanics(t, s.Stop)
}
