// Package dispatch serializes access to the single shared browser session.
// The HTTP layer may serve many connections, but every call that touches
// the browser funnels through one worker goroutine draining a strict FIFO
// queue, so at most one job drives the driver at any instant.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/entrhq/gemweb/pkg/browser"
	"github.com/entrhq/gemweb/pkg/observability"
)

// ErrSessionExpired reports that the login expired and could not be
// recovered within the maximum wait. Maps to HTTP 401.
var ErrSessionExpired = errors.New("browser session expired and re-login did not complete")

// ErrClosed reports that the serializer has shut down.
var ErrClosed = errors.New("serializer closed")

// Conversant is the driver surface the serializer drives. Narrow by design:
// nothing outside the active job's scope may touch the browser.
type Conversant interface {
	SubmitAndAwait(ctx context.Context, prompt string, timeout time.Duration) (*browser.RawReply, error)
	StartNewChat(ctx context.Context) error
	EnsureLoggedIn(ctx context.Context) error
	State() browser.State
}

// Job is one unit of browser work.
type Job struct {
	// Prompt is the encoded conversation to submit.
	Prompt string

	// Timeout bounds the submit/await cycle.
	Timeout time.Duration

	// NewChat requests a fresh UI conversation before submitting.
	NewChat bool
}

type outcome struct {
	reply *browser.RawReply
	err   error
}

type pendingRequest struct {
	ctx    context.Context
	job    Job
	result chan outcome
}

// Serializer owns the driver and enforces the single-active-slot invariant.
type Serializer struct {
	driver       Conversant
	queue        chan *pendingRequest
	maxLoginWait time.Duration
	logger       *slog.Logger

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewSerializer creates a serializer and starts its worker. queueSize bounds
// how many requests may wait; further Enqueue calls block until space frees.
func NewSerializer(driver Conversant, queueSize int, maxLoginWait time.Duration, logger *slog.Logger) *Serializer {
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	s := &Serializer{
		driver:       driver,
		queue:        make(chan *pendingRequest, queueSize),
		maxLoginWait: maxLoginWait,
		logger:       logger,
		done:         make(chan struct{}),
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Enqueue submits a job and blocks until it completes, the context is
// cancelled, or the serializer closes. Jobs activate in strict submission
// order; a cancelled context removes the job before it becomes active.
func (s *Serializer) Enqueue(ctx context.Context, job Job) (*browser.RawReply, error) {
	pr := &pendingRequest{
		ctx: ctx,
		job: job,
		// Buffered so the worker never blocks on a caller that gave up.
		result: make(chan outcome, 1),
	}

	observability.QueueDepth.Inc()
	select {
	case s.queue <- pr:
	case <-ctx.Done():
		observability.QueueDepth.Dec()
		return nil, ctx.Err()
	case <-s.done:
		observability.QueueDepth.Dec()
		return nil, ErrClosed
	}

	select {
	case out := <-pr.result:
		return out.reply, out.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		// The job may have slipped into the queue after the worker drained
		// it; prefer a delivered result over the shutdown signal.
		select {
		case out := <-pr.result:
			return out.reply, out.err
		default:
			return nil, ErrClosed
		}
	}
}

// Close stops the worker after the active job finishes. Queued jobs fail
// with ErrClosed.
func (s *Serializer) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

func (s *Serializer) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			s.drain(ErrClosed)
			return
		case pr := <-s.queue:
			observability.QueueDepth.Dec()
			if pr.ctx.Err() != nil {
				pr.result <- outcome{err: pr.ctx.Err()}
				continue
			}
			s.process(pr)
		}
	}
}

// process runs one job in the active slot. A failure here never corrupts
// the queue: the worker simply moves on to the next job.
func (s *Serializer) process(pr *pendingRequest) {
	observability.ActiveSlot.Set(1)
	defer observability.ActiveSlot.Set(0)

	if s.driver.State() == browser.StateAwaitingLogin {
		if err := s.recoverLogin(); err != nil {
			pr.result <- outcome{err: err}
			return
		}
	}

	if pr.job.NewChat {
		if err := s.driver.StartNewChat(pr.ctx); err != nil {
			// Stale conversation context is tolerable; selector drift
			// here will surface on the submission itself.
			s.logger.Warn("failed to start new chat", "error", err)
		}
	}

	reply, err := s.driver.SubmitAndAwait(pr.ctx, pr.job.Prompt, pr.job.Timeout)
	observability.SubmissionsTotal.WithLabelValues(submissionOutcome(err)).Inc()

	if errors.Is(err, browser.ErrLoggedOut) {
		pr.result <- outcome{err: fmt.Errorf("%w: %w", ErrSessionExpired, err)}
		// Recover for the waiting queue; jobs held past the max wait are
		// failed by recoverLogin on their activation.
		if rerr := s.recoverLogin(); rerr != nil {
			s.logger.Error("re-login failed, failing held requests", "error", rerr)
			s.failQueued(rerr)
		}
		return
	}

	pr.result <- outcome{reply: reply, err: err}
}

// recoverLogin runs the interactive re-login flow, bounded by the
// configured maximum wait.
func (s *Serializer) recoverLogin() error {
	s.logger.Info("session expired, starting re-login flow", "max_wait", s.maxLoginWait)

	ctx, cancel := context.WithTimeout(context.Background(), s.maxLoginWait)
	defer cancel()

	if err := s.driver.EnsureLoggedIn(ctx); err != nil {
		observability.LoginCyclesTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	observability.LoginCyclesTotal.WithLabelValues("ok").Inc()
	s.logger.Info("re-login completed, resuming queue")
	return nil
}

// failQueued fails every currently queued job with err.
func (s *Serializer) failQueued(err error) {
	for {
		select {
		case pr := <-s.queue:
			observability.QueueDepth.Dec()
			pr.result <- outcome{err: err}
		default:
			return
		}
	}
}

// drain fails all remaining queued jobs during shutdown.
func (s *Serializer) drain(err error) {
	s.failQueued(err)
}

func submissionOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, browser.ErrLoggedOut):
		return "logged_out"
	default:
		var timeoutErr *browser.TimeoutError
		var uiErr *browser.UIChangedError
		if errors.As(err, &timeoutErr) {
			return "timeout"
		}
		if errors.As(err, &uiErr) {
			return "ui_changed"
		}
		return "error"
	}
}
