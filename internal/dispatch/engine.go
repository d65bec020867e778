package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrEmptySelection is returned when there is nobody to send to.
	ErrEmptySelection = errors.New("no recipients selected")

	// ErrInFlight is returned while another broadcast is being sent.
	ErrInFlight = errors.New("broadcast already in flight")

	// ErrGateway wraps push gateway failures.
	ErrGateway = errors.New("push gateway failed")
)

// Status is the engine's dispatch state.
type Status int

const (
	StatusIdle Status = iota
	StatusInFlight
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusInFlight:
		return "in_flight"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Gateway Gateway
	Logger  zerolog.Logger
	// Metrics is optional.
	Metrics *Metrics
}

// Engine sends broadcasts one at a time. A failed broadcast is not retried.
type Engine struct {
	gateway Gateway
	logger  zerolog.Logger
	metrics *Metrics
	now     func() time.Time

	inFlight atomic.Bool

	mu      sync.Mutex
	status  Status
	lastErr error
}

// NewEngine creates an idle engine.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		gateway: cfg.Gateway,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		now:     time.Now,
	}
}

// Send pushes title and body to every distinct recipient with a single
// gateway call.
func (e *Engine) Send(ctx context.Context, recipients []string, title, body string) (*Result, error) {
	messages := BuildMessages(recipients, title, body)
	if len(messages) == 0 {
		return nil, ErrEmptySelection
	}

	if !e.inFlight.CompareAndSwap(false, true) {
		return nil, ErrInFlight
	}
	defer e.inFlight.Store(false)

	e.setStatus(StatusInFlight, nil)

	start := e.now()
	tickets, err := e.gateway.Push(ctx, messages)
	e.metrics.record(len(messages), e.now().Sub(start), err)

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrGateway, err)
		e.setStatus(StatusFailed, err)
		e.logger.Error().Err(err).Int("recipients", len(messages)).Msg("broadcast failed")
		return nil, err
	}

	e.setStatus(StatusIdle, nil)

	sent := make([]string, len(messages))
	for i, m := range messages {
		sent[i] = m.To
	}
	res := &Result{Recipients: sent, Tickets: tickets}

	e.logger.Info().
		Int("recipients", len(sent)).
		Int("failed_tickets", len(res.Failed())).
		Msg("broadcast accepted")
	return res, nil
}

// Status returns the current state and the error of the last failed send.
func (e *Engine) Status() (Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status, e.lastErr
}

func (e *Engine) setStatus(s Status, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.status = s
	if err != nil {
		e.lastErr = err
	}
}
