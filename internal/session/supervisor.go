// Package session keeps one authenticated backend session alive for the
// whole process and hands it out through Acquire.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EternisAI/silo-enroll/internal/bsidca"
	"github.com/EternisAI/silo-enroll/internal/metrics"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/singleflight"
)

const (
	defaultMaxAttempts       = 3
	defaultRetryInterval     = 1 * time.Second
	defaultKeepaliveInterval = 30 * time.Second
	defaultProbeTimeout      = 10 * time.Second

	reconnectKey = "reconnect"
)

var (
	// ErrBackendUnavailable is returned when a reconnection sequence exhausts
	// its attempts.
	ErrBackendUnavailable = errors.New("backend unavailable")

	errProbeFailed = errors.New("liveness probe failed")
)

// Handle is one authenticated session.
type Handle interface {
	bsidca.Service
	Close()
}

// Dialer opens and authenticates a fresh Handle.
type Dialer func(ctx context.Context) (Handle, error)

// BackendDialer dials the SOAP backend described by cfg.
func BackendDialer(cfg bsidca.Config) Dialer {
	return func(ctx context.Context) (Handle, error) {
		client, err := bsidca.Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

type Config struct {
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryInterval     time.Duration `mapstructure:"retry_interval"`
	KeepaliveInterval time.Duration `mapstructure:"keepalive_interval"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.KeepaliveInterval < 0 {
		c.KeepaliveInterval = 0
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	return c
}

// DefaultConfig returns 3 attempts 1s apart and a 30s keepalive.
func DefaultConfig() Config {
	return Config{KeepaliveInterval: defaultKeepaliveInterval}.withDefaults()
}

type Supervisor struct {
	cfg     Config
	dial    Dialer
	metrics *metrics.Metrics

	mu         sync.RWMutex
	handle     Handle
	generation uint64
	healthy    bool
	attempts   int

	group singleflight.Group

	ctx     context.Context
	cancel  context.CancelFunc
	doneCh  chan struct{}
	started atomic.Bool
	once    sync.Once
}

var _ bsidca.Source = (*Supervisor)(nil)

func NewSupervisor(cfg Config, dial Dialer, m *metrics.Metrics) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		cfg:     cfg.withDefaults(),
		dial:    dial,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
		doneCh:  make(chan struct{}),
	}
}

// Acquire returns a session that passed a liveness probe just now. When the
// current session is dead it waits for the single in-flight reconnection
// sequence, starting one if needed. If ctx ends first the caller stops
// waiting but the sequence keeps running. A probe that fails because ctx
// ended says nothing about the session and leaves it in place.
func (s *Supervisor) Acquire(ctx context.Context) (bsidca.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	}

	s.mu.RLock()
	handle := s.handle
	generation := s.generation
	s.mu.RUnlock()

	if handle != nil {
		if s.probe(ctx, handle) {
			return handle, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
		slog.Warn("Backend session failed liveness probe")
		s.setHealthy(false)
	}

	return s.reconnect(ctx, generation)
}

func (s *Supervisor) reconnect(ctx context.Context, generation uint64) (bsidca.Service, error) {
	ch := s.group.DoChan(reconnectKey, func() (any, error) {
		return s.reconnectSequence(generation)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Handle), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrBackendUnavailable, ctx.Err())
	}
}

func (s *Supervisor) reconnectSequence(generation uint64) (Handle, error) {
	s.mu.Lock()
	if s.generation != generation && s.healthy && s.handle != nil {
		// another sequence replaced the handle since the caller looked
		handle := s.handle
		s.mu.Unlock()
		return handle, nil
	}
	s.attempts = 0
	s.mu.Unlock()

	var handle Handle
	operation := func() error {
		attempt := s.nextAttempt()
		s.metrics.ReconnectAttempt()
		slog.Info("Reconnecting to backend", "attempt", attempt, "max_attempts", s.cfg.MaxAttempts)

		h, err := s.dial(s.ctx)
		if err != nil {
			slog.Warn("Backend connect failed", "attempt", attempt, "error", err)
			return err
		}
		if !s.probe(s.ctx, h) {
			h.Close()
			slog.Warn("Backend session failed liveness probe", "attempt", attempt)
			return errProbeFailed
		}
		handle = h
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.RetryInterval), uint64(s.cfg.MaxAttempts-1)),
		s.ctx,
	)

	if err := backoff.Retry(operation, policy); err != nil {
		s.mu.Lock()
		old := s.handle
		s.handle = nil
		s.healthy = false
		attempts := s.attempts
		s.mu.Unlock()

		if old != nil {
			old.Close()
		}
		s.metrics.SetSessionHealthy(false)
		s.metrics.ReconnectFailed()
		slog.Error("Backend unavailable", "attempts", attempts, "error", err)
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrBackendUnavailable, attempts, err)
	}

	s.mu.Lock()
	old := s.handle
	s.handle = handle
	s.generation++
	s.healthy = true
	s.attempts = 0
	s.mu.Unlock()

	if old != nil {
		old.Close()
	}
	s.metrics.SetSessionHealthy(true)
	slog.Info("Backend session established")
	return handle, nil
}

func (s *Supervisor) nextAttempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	return s.attempts
}

func (s *Supervisor) probe(ctx context.Context, handle Handle) bool {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	alive, err := handle.PingConnection(ctx)
	if err != nil {
		slog.Debug("Ping failed", "error", err)
		return false
	}
	return alive
}

func (s *Supervisor) setHealthy(healthy bool) {
	s.mu.Lock()
	s.healthy = healthy
	s.mu.Unlock()
	s.metrics.SetSessionHealthy(healthy)
}

// Ping probes the backend through Acquire and reports whether a live
// session is available.
func (s *Supervisor) Ping(ctx context.Context) bool {
	_, err := s.Acquire(ctx)
	return err == nil
}

func (s *Supervisor) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

// Attempts is the number of attempts made by the current or last failed
// reconnection sequence. It is 0 after a successful one.
func (s *Supervisor) Attempts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attempts
}

// Start connects in the background and keeps probing the session every
// KeepaliveInterval. A failed initial connect is logged, not fatal.
func (s *Supervisor) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.keepaliveLoop()
}

func (s *Supervisor) keepaliveLoop() {
	defer close(s.doneCh)

	if _, err := s.Acquire(s.ctx); err != nil {
		slog.Error("Initial backend connect failed", "error", err)
	}

	if s.cfg.KeepaliveInterval == 0 {
		<-s.ctx.Done()
		return
	}

	ticker := time.NewTicker(s.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Acquire(s.ctx); err != nil && s.ctx.Err() == nil {
				slog.Warn("Keepalive could not restore backend session", "error", err)
			}
		}
	}
}

// Stop cancels any running reconnection, waits for the keepalive worker and
// releases the session.
func (s *Supervisor) Stop() {
	s.once.Do(func() {
		slog.Info("Stopping session supervisor")
		s.cancel()
		if s.started.Load() {
			<-s.doneCh
		}

		s.mu.Lock()
		handle := s.handle
		s.handle = nil
		s.healthy = false
		s.mu.Unlock()

		if handle != nil {
			handle.Close()
		}
		slog.Info("Session supervisor stopped")
	})
}
