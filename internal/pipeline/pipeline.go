package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/akylbek/payment-system/skill-check/internal/models"
	"github.com/akylbek/payment-system/skill-check/internal/telemetry"
)

const (
	defaultQueueSize     = 128
	defaultActionTimeout = 10 * time.Second
)

// Action is one best-effort side effect of a completed session.
type Action interface {
	Name() string
	Run(ctx context.Context, session models.PaymentSession) error
}

// Conditional is implemented by actions that only apply to some sessions.
type Conditional interface {
	Applies(session models.PaymentSession) bool
}

// ActionError reports a failed action. It is logged and counted, never returned
// to whoever completed the session.
type ActionError struct {
	Action    string
	SessionID string
	Err       error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("completion action %s failed for session %s: %v", e.Action, e.SessionID, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Pipeline fans each completed session out to its actions on a small worker pool.
type Pipeline struct {
	logger        *zap.Logger
	actions       []Action
	workers       int
	actionTimeout time.Duration

	jobs    chan models.PaymentSession
	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

type Option func(*Pipeline)

func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithActionTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.actionTimeout = d
		}
	}
}

func WithQueueSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.jobs = make(chan models.PaymentSession, n)
		}
	}
}

func New(logger *zap.Logger, actions []Action, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger:        logger,
		actions:       actions,
		workers:       1,
		actionTimeout: defaultActionTimeout,
		jobs:          make(chan models.PaymentSession, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Calling it more than once has no effect.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for session := range p.jobs {
				p.Execute(context.Background(), session)
			}
		}()
	}
}

// Enqueue schedules the actions for session without blocking. It never reports
// failure to the caller; a job submitted after Stop or onto a full queue is logged
// and dropped.
func (p *Pipeline) Enqueue(session models.PaymentSession) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("Completion pipeline stopped, dropping job",
			zap.String("session_id", session.ID),
		)
		telemetry.PipelineActions.WithLabelValues("queue", "dropped").Inc()
		return
	}

	select {
	case p.jobs <- session:
	default:
		p.logger.Error("Completion queue full, dropping job",
			zap.String("session_id", session.ID),
			zap.Int("queue_size", cap(p.jobs)),
		)
		telemetry.PipelineActions.WithLabelValues("queue", "dropped").Inc()
	}
}

// Stop refuses new jobs and waits for queued ones to finish or for ctx to end.
func (p *Pipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Execute runs every applicable action concurrently and waits for all of them.
// The returned errors are informational; they have already been logged.
func (p *Pipeline) Execute(ctx context.Context, session models.PaymentSession) []*ActionError {
	var (
		mu     sync.Mutex
		failed []*ActionError
		wg     sync.WaitGroup
	)

	for _, action := range p.actions {
		if c, ok := action.(Conditional); ok && !c.Applies(session) {
			telemetry.PipelineActions.WithLabelValues(action.Name(), "skipped").Inc()
			continue
		}

		wg.Add(1)
		go func(action Action) {
			defer wg.Done()
			if err := p.runAction(ctx, action, session); err != nil {
				mu.Lock()
				failed = append(failed, err)
				mu.Unlock()
			}
		}(action)
	}
	wg.Wait()

	return failed
}

func (p *Pipeline) runAction(ctx context.Context, action Action, session models.PaymentSession) (actionErr *ActionError) {
	ctx, cancel := context.WithTimeout(ctx, p.actionTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			actionErr = &ActionError{Action: action.Name(), SessionID: session.ID, Err: fmt.Errorf("panic: %v", r)}
		}
		if actionErr != nil {
			telemetry.PipelineActions.WithLabelValues(action.Name(), "failed").Inc()
			p.logger.Error("Completion action failed",
				zap.String("action", action.Name()),
				zap.String("session_id", session.ID),
				zap.Error(actionErr.Err),
			)
			return
		}
		telemetry.PipelineActions.WithLabelValues(action.Name(), "succeeded").Inc()
	}()

	if err := action.Run(ctx, session); err != nil {
		return &ActionError{Action: action.Name(), SessionID: session.ID, Err: err}
	}
	return nil
}
