package tasks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/session"
	"golang.org/x/time/rate"
)

// Poller is the polling fallback: it asks the backend for a job's status on a fixed interval until the job reaches a
// terminal state. At most one loop is live at a time.
type Poller struct {
	sep      services.Separator
	interval time.Duration
	out      chan<- session.Event
	logger   *log.Logger

	ctl sync.Mutex // serializes Start and Stop

	mu     sync.Mutex
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller that delivers terminal events to out.
func NewPoller(sep services.Separator, interval time.Duration, out chan<- session.Event, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Poller{
		sep:      sep,
		interval: interval,
		out:      out,
		logger:   logger.With("component", "poller"),
	}
}

// Start polls jobID until it completes, fails, ctx is cancelled or [Poller.Stop] is called.
//
// Any loop already running is stopped first.
func (p *Poller) Start(ctx context.Context, jobID string) {
	p.ctl.Lock()
	defer p.ctl.Unlock()

	p.stop()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	p.mu.Lock()
	p.jobID, p.cancel, p.done = jobID, cancel, done
	p.mu.Unlock()

	p.logger.Debug("polling started", "job_id", jobID, "interval", p.interval)
	go p.loop(ctx, jobID, done)
}

// Stop cancels the running loop, if any, and waits for it to exit.
func (p *Poller) Stop() {
	p.ctl.Lock()
	defer p.ctl.Unlock()
	p.stop()
}

// Active returns the job being polled.
func (p *Poller) Active() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID, p.cancel != nil
}

func (p *Poller) stop() {
	p.mu.Lock()
	cancel, done, jobID := p.cancel, p.done, p.jobID
	p.jobID, p.cancel, p.done = "", nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Debug("polling stopped", "job_id", jobID)
}

func (p *Poller) loop(ctx context.Context, jobID string, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.done == done {
			p.cancel()
			p.jobID, p.cancel, p.done = "", nil, nil
		}
		p.mu.Unlock()
		close(done)
	}()

	// The bucket starts full; draining it makes the first request wait one interval.
	limiter := rate.NewLimiter(rate.Every(p.interval), 1)
	limiter.Allow()

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		status, err := p.sep.Status(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Warn("status check failed", "job_id", jobID, "err", err)
			continue
		}

		ev, ok := statusEvent(jobID, status)
		if !ok {
			continue
		}
		if status.JobID != "" && status.JobID != jobID {
			p.logger.Warn("status reported another job id", "job_id", jobID, "reported", status.JobID)
		}

		select {
		case p.out <- ev:
			p.logger.Debug("job finished", "job_id", jobID, "status", status.Status)
		case <-ctx.Done():
		}
		return
	}
}

// statusEvent maps a polled status to a terminal event for the polled job. Non-terminal statuses produce nothing:
// progress text only arrives over the push channel.
//
// The event always carries jobID: the loop exits after emitting it, so an event the session would reject as stale
// would leave the job with nobody polling it.
func statusEvent(jobID string, status *services.JobStatus) (session.Event, bool) {
	switch status.Status {
	case services.StatusComplete:
		return session.CompleteEvent(session.FromPoller, jobID), true
	case services.StatusError:
		return session.FailureEvent(session.FromPoller, jobID, status.Error), true
	default:
		return session.Event{}, false
	}
}
