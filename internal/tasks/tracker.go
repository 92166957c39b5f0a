package tasks

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/channel"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/session"
	"github.com/desertthunder/stemx/internal/shared"
)

const defaultBufferSize = 32

// Recorder persists job lifecycle changes. Errors are logged and never affect the session.
type Recorder interface {
	RecordSubmitted(ctx context.Context, jobID, filename string) error
	RecordFinished(ctx context.Context, jobID, status, reason string) error
}

// TrackerOptions configures a [Tracker].
type TrackerOptions struct {
	PollInterval time.Duration
	ErrorDisplay time.Duration
	BufferSize   int
	Channel      *channel.Client // nil disables the push channel
	Recorder     Recorder        // nil disables history
}

// Tracker owns a job session and every source that updates it.
//
// The push channel, the poller and error-clear timers only [Tracker.Dispatch] events. A single consumer drains
// [Tracker.Events] and calls [Tracker.Apply], which is the only place the session changes.
type Tracker struct {
	sep    services.Separator
	opts   TrackerOptions
	logger *log.Logger
	poller *Poller
	events chan session.Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	state  session.State
	timers map[int]*time.Timer
	closed bool
}

// NewTracker creates a tracker bound to ctx. Call [Tracker.Start] to connect the push channel and [Tracker.Close]
// to release everything.
func NewTracker(ctx context.Context, sep services.Separator, opts TrackerOptions, logger *log.Logger) *Tracker {
	if opts.ErrorDisplay <= 0 {
		opts.ErrorDisplay = 5 * time.Second
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan session.Event, opts.BufferSize)

	return &Tracker{
		sep:    sep,
		opts:   opts,
		logger: logger.With("component", "tracker"),
		poller: NewPoller(sep, opts.PollInterval, events, logger),
		events: events,
		ctx:    ctx,
		cancel: cancel,
		state:  session.Default(),
		timers: map[int]*time.Timer{},
	}
}

// Start connects the push channel in the background. When the channel gives up the session keeps working on
// polling alone.
func (t *Tracker) Start() {
	if t.opts.Channel == nil {
		t.logger.Debug("push channel disabled")
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		err := t.opts.Channel.Run(t.ctx, func(ev session.Event) { t.Dispatch(ev) })
		switch {
		case errors.Is(err, shared.ErrChannelExhausted):
			t.logger.Warn("push channel unavailable, relying on polling", "err", err)
		case err != nil:
			t.logger.Warn("push channel stopped", "err", err)
		}
	}()
}

// Events is the stream the consumer drains.
func (t *Tracker) Events() <-chan session.Event {
	return t.events
}

// Done is closed once the tracker is closed.
func (t *Tracker) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Dispatch queues ev for the consumer. It reports false, without blocking, once the tracker is closed.
func (t *Tracker) Dispatch(ev session.Event) bool {
	select {
	case <-t.ctx.Done():
		return false
	default:
	}

	select {
	case t.events <- ev:
		return true
	case <-t.ctx.Done():
		return false
	}
}

// State returns a snapshot of the session.
func (t *Tracker) State() session.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Apply reduces ev into the session and performs the effects of the transition:
//   - entering Processing starts the poller; leaving it stops the poller
//   - a newly displayed error arms its clear timer
//   - submissions and terminal transitions are recorded
func (t *Tracker) Apply(ev session.Event) session.State {
	t.mu.Lock()
	prev := t.state
	next := session.Reduce(prev, ev)
	t.state = next
	if ev.Kind == session.ClearError {
		delete(t.timers, ev.Seq)
	}
	t.mu.Unlock()

	if next == prev {
		t.logger.Debug("event ignored", "event", ev.String(), "view", prev.View.String())
		return next
	}
	t.logger.Debug("event applied", "event", ev.String(), "from", prev.View.String(), "to", next.View.String())

	switch {
	case next.Polling() && (!prev.Polling() || prev.JobID != next.JobID):
		t.poller.Start(t.ctx, next.JobID)
		t.record(func(ctx context.Context, r Recorder) error {
			return r.RecordSubmitted(ctx, next.JobID, next.Filename)
		})
	case prev.Polling() && !next.Polling():
		t.poller.Stop()
		status, reason := services.StatusComplete, ""
		if next.View != session.Results {
			status, reason = services.StatusError, next.Error
		}
		t.record(func(ctx context.Context, r Recorder) error {
			return r.RecordFinished(ctx, prev.JobID, status, reason)
		})
	}

	if next.ErrorSeq != prev.ErrorSeq && next.HasError() {
		t.armClear(next.ErrorSeq)
	}
	return next
}

// Reset returns to a fresh session and stops polling. Only the user starts over; terminal events never reset.
func (t *Tracker) Reset() session.State {
	t.mu.Lock()
	seq := t.state.ErrorSeq
	t.state = session.Default()
	t.state.ErrorSeq = seq
	state := t.state
	t.mu.Unlock()

	t.poller.Stop()
	return state
}

// Submit uploads the file at path and returns the event describing the outcome: Submitted on success, Rejected
// with the user-facing reason otherwise. The caller applies it.
func (t *Tracker) Submit(ctx context.Context, path string) session.Event {
	result, err := t.sep.Upload(ctx, path)
	if err != nil {
		var serr *services.Error
		if errors.As(err, &serr) {
			t.logger.Warn("upload rejected", "file", path, "err", serr.Detail())
		} else {
			t.logger.Warn("upload rejected", "file", path, "err", err)
		}
		return session.RejectedEvent(services.Message(err))
	}

	t.logger.Info("upload accepted", "file", path, "job_id", result.JobID)
	return session.SubmittedEvent(result.JobID, filepath.Base(path))
}

// Wait drains events until the session leaves Processing or ctx ends, calling onChange after each state change.
// It is the consumer loop for non-interactive callers.
func (t *Tracker) Wait(ctx context.Context, onChange func(session.State)) (session.State, error) {
	state := t.State()
	for state.View == session.Processing {
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-t.ctx.Done():
			return state, t.ctx.Err()
		case ev := <-t.events:
			next := t.Apply(ev)
			if next != state && onChange != nil {
				onChange(next)
			}
			state = next
		}
	}
	return state, nil
}

// Close stops the push channel, the poller and every pending clear timer, then waits for them to exit.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for seq, timer := range t.timers {
		timer.Stop()
		delete(t.timers, seq)
	}
	t.mu.Unlock()

	t.cancel()
	t.poller.Stop()

	var err error
	if t.opts.Channel != nil {
		err = t.opts.Channel.Close()
	}
	t.wg.Wait()
	return err
}

func (t *Tracker) armClear(seq int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	t.timers[seq] = time.AfterFunc(t.opts.ErrorDisplay, func() {
		t.Dispatch(session.ClearErrorEvent(seq))
	})
}

func (t *Tracker) record(fn func(context.Context, Recorder) error) {
	if t.opts.Recorder == nil {
		return
	}
	if err := fn(t.ctx, t.opts.Recorder); err != nil {
		t.logger.Warn("failed to record job", "err", err)
	}
}
