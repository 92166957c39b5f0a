package tasks

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/stemx/internal/channel"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/session"
	"github.com/desertthunder/stemx/internal/shared"
	tu "github.com/desertthunder/stemx/internal/testing"
)

const errorDisplay = 50 * time.Millisecond

type recorded struct {
	kind, jobID, value string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []recorded
}

func (r *fakeRecorder) RecordSubmitted(_ context.Context, jobID, filename string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recorded{"submitted", jobID, filename})
	return nil
}

func (r *fakeRecorder) RecordFinished(_ context.Context, jobID, status, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recorded{"finished", jobID, status})
	return nil
}

func (r *fakeRecorder) snapshot() []recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recorded(nil), r.calls...)
}

func newTestTracker(t *testing.T, sep services.Separator, opts TrackerOptions) *Tracker {
	t.Helper()
	if opts.PollInterval == 0 {
		opts.PollInterval = testInterval
	}
	if opts.ErrorDisplay == 0 {
		opts.ErrorDisplay = errorDisplay
	}
	tr := NewTracker(context.Background(), sep, opts, shared.NewLogger(io.Discard))
	t.Cleanup(func() { tr.Close() })
	return tr
}

func audioFile(t *testing.T, name string, size int64) string {
	t.Helper()
	return tu.WriteSizedFile(t, filepath.Join(t.TempDir(), name), size)
}

// drainUntil applies events until cond holds.
func drainUntil(t *testing.T, tr *Tracker, cond func(session.State) bool) session.State {
	t.Helper()
	deadline := time.After(2 * time.Second)
	state := tr.State()
	for !cond(state) {
		select {
		case ev := <-tr.Events():
			state = tr.Apply(ev)
		case <-deadline:
			t.Fatalf("condition not reached, state = %+v", state)
		}
	}
	return state
}

func TestTrackerOversizedFile(t *testing.T) {
	backend := tu.NewBackend(t, channel.SocketIO)
	client := services.NewClient(backend.URL, nil, shared.LimitsConfig{})
	tr := newTestTracker(t, client, TrackerOptions{})

	ev := tr.Submit(context.Background(), audioFile(t, "song.mp3", 60*1024*1024))
	if ev.Kind != session.Rejected {
		t.Fatalf("Submit() = %v, want rejected", ev)
	}

	state := tr.Apply(ev)
	if state.Error != "File too large. Maximum 50MB" {
		t.Errorf("error = %q", state.Error)
	}
	if state.View != session.Upload {
		t.Errorf("view = %v, want upload", state.View)
	}
	if upload, _, _ := backend.Hits(); upload != 0 {
		t.Errorf("upload requests = %d, want 0", upload)
	}
	if _, ok := tr.poller.Active(); ok {
		t.Error("poller started for a rejected upload")
	}

	start := time.Now()
	state = drainUntil(t, tr, func(s session.State) bool { return !s.HasError() })
	if elapsed := time.Since(start); elapsed < errorDisplay/2 {
		t.Errorf("error cleared after %v, want about %v", elapsed, errorDisplay)
	}
	if state.View != session.Upload {
		t.Errorf("view after clear = %v, want upload", state.View)
	}
}

func TestTrackerChannelComplete(t *testing.T) {
	backend := tu.NewBackend(t, channel.SocketIO)
	client := services.NewClient(backend.URL, nil, shared.LimitsConfig{})
	ch := channel.New(channel.Options{
		BaseURL:        backend.URL,
		ReconnectDelay: 10 * time.Millisecond,
		Timeout:        time.Second,
	}, shared.NewLogger(io.Discard))
	rec := &fakeRecorder{}
	tr := newTestTracker(t, client, TrackerOptions{Channel: ch, Recorder: rec, PollInterval: time.Hour})
	tr.Start()
	backend.WaitForClient(t, 2*time.Second)

	ev := tr.Submit(context.Background(), audioFile(t, "My Song.wav", 1024))
	if ev.Kind != session.Submitted || ev.Filename != "My Song.wav" {
		t.Fatalf("Submit() = %+v", ev)
	}
	state := tr.Apply(ev)
	if state.View != session.Processing {
		t.Fatalf("view = %v, want processing", state.View)
	}
	if id, ok := tr.poller.Active(); !ok || id != ev.JobID {
		t.Fatalf("poller Active() = %q, %v", id, ok)
	}

	backend.Emit(t, channel.EventStatus, map[string]string{"job_id": ev.JobID, "message": "Loading model..."})
	backend.Emit(t, channel.EventComplete, map[string]string{"job_id": ev.JobID})

	var messages []string
	state, err := tr.Wait(context.Background(), func(s session.State) {
		messages = append(messages, s.StatusMessage)
	})
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if state.View != session.Results || state.JobID != ev.JobID {
		t.Errorf("state = %+v, want results for %s", state, ev.JobID)
	}
	if len(messages) == 0 || messages[0] != "Loading model..." {
		t.Errorf("progress messages = %v", messages)
	}
	if _, ok := tr.poller.Active(); ok {
		t.Error("poller still active after completion")
	}

	// The poller's late copy of the same outcome changes nothing.
	if again := tr.Apply(session.CompleteEvent(session.FromPoller, ev.JobID)); again != state {
		t.Errorf("second complete changed state: %+v", again)
	}

	want := []recorded{{"submitted", ev.JobID, "My Song.wav"}, {"finished", ev.JobID, services.StatusComplete}}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("recorded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestTrackerPollerError(t *testing.T) {
	backend := tu.NewBackend(t, channel.SocketIO)
	client := services.NewClient(backend.URL, nil, shared.LimitsConfig{})
	tr := newTestTracker(t, client, TrackerOptions{})

	ev := tr.Submit(context.Background(), audioFile(t, "track.flac", 2048))
	tr.Apply(ev)
	backend.SetStatus(ev.JobID, services.StatusError, "Model crashed")

	state, err := tr.Wait(context.Background(), nil)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if state.View != session.Upload || state.Error != "Model crashed" {
		t.Errorf("state = %+v, want upload with error", state)
	}

	state = drainUntil(t, tr, func(s session.State) bool { return !s.HasError() })
	if state.View != session.Upload {
		t.Errorf("view = %v", state.View)
	}
}

func TestTrackerPollingFinishesWhenStatusEchoesAnotherID(t *testing.T) {
	sep := &tu.MockSeparator{StatusFn: func(_ context.Context, jobID string) (*services.JobStatus, error) {
		return &services.JobStatus{JobID: "ABC", Status: services.StatusComplete}, nil
	}}
	tr := newTestTracker(t, sep, TrackerOptions{})
	tr.Apply(session.SubmittedEvent("abc", "song.mp3"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	state, err := tr.Wait(ctx, nil)
	if err != nil {
		t.Fatalf("Wait() error = %v, state = %+v", err, state)
	}
	if state.View != session.Results || state.JobID != "abc" {
		t.Errorf("state = %+v, want results for abc", state)
	}
	if _, ok := tr.poller.Active(); ok {
		t.Error("poller still active after completion")
	}
}

func TestTrackerSinglePoller(t *testing.T) {
	sep := &tu.MockSeparator{}
	tr := newTestTracker(t, sep, TrackerOptions{})

	tr.Apply(session.SubmittedEvent("first", "a.mp3"))
	state := tr.Apply(session.SubmittedEvent("second", "b.mp3"))

	if state.JobID != "first" {
		t.Errorf("job = %q, want first", state.JobID)
	}
	if id, ok := tr.poller.Active(); !ok || id != "first" {
		t.Errorf("poller Active() = %q, %v; want first", id, ok)
	}
}

func TestTrackerIgnoresStaleEvents(t *testing.T) {
	sep := &tu.MockSeparator{}
	tr := newTestTracker(t, sep, TrackerOptions{PollInterval: time.Hour})

	tr.Apply(session.SubmittedEvent("current", "a.mp3"))
	state := tr.Apply(session.CompleteEvent(session.FromChannel, "previous"))
	if state.View != session.Processing {
		t.Errorf("view = %v, want processing", state.View)
	}
	if _, ok := tr.poller.Active(); !ok {
		t.Error("stale event stopped the poller")
	}
}

func TestTrackerReset(t *testing.T) {
	sep := &tu.MockSeparator{}
	tr := newTestTracker(t, sep, TrackerOptions{ErrorDisplay: time.Hour})

	tr.Apply(session.RejectedEvent("bad file"))
	tr.Apply(session.SubmittedEvent("j1", "a.mp3"))
	before := tr.State()

	state := tr.Reset()
	if state.View != session.Upload || state.JobID != "" || state.Filename != "" {
		t.Errorf("Reset() = %+v, want fresh session", state)
	}
	if state.ErrorSeq != before.ErrorSeq {
		t.Errorf("ErrorSeq = %d, want %d preserved", state.ErrorSeq, before.ErrorSeq)
	}
	if _, ok := tr.poller.Active(); ok {
		t.Error("poller still active after reset")
	}
}

func TestTrackerClose(t *testing.T) {
	sep := &tu.MockSeparator{}
	tr := NewTracker(context.Background(), sep, TrackerOptions{ErrorDisplay: errorDisplay, PollInterval: testInterval}, shared.NewLogger(io.Discard))

	tr.Apply(session.RejectedEvent("bad file"))
	tr.Apply(session.SubmittedEvent("j1", "a.mp3"))

	if err := tr.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if tr.Dispatch(session.ClearErrorEvent(1)) {
		t.Error("Dispatch succeeded after Close")
	}
	if _, ok := tr.poller.Active(); ok {
		t.Error("poller active after Close")
	}
	select {
	case <-tr.Done():
	default:
		t.Error("Done not closed")
	}

	time.Sleep(2 * errorDisplay)
	select {
	case ev := <-tr.Events():
		t.Errorf("event %v delivered after Close", ev)
	default:
	}
}

func TestTrackerWaitHonoursContext(t *testing.T) {
	sep := &tu.MockSeparator{}
	tr := newTestTracker(t, sep, TrackerOptions{PollInterval: time.Hour})
	tr.Apply(session.SubmittedEvent("j1", "a.mp3"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	state, err := tr.Wait(ctx, nil)
	if err == nil {
		t.Fatal("Wait() returned nil error on timeout")
	}
	if state.View != session.Processing {
		t.Errorf("view = %v, want processing", state.View)
	}
}

func TestTrackerSubmitUnreadable(t *testing.T) {
	sep := services.NewClient("http://127.0.0.1:0", nil, shared.LimitsConfig{})
	tr := newTestTracker(t, sep, TrackerOptions{})

	ev := tr.Submit(context.Background(), filepath.Join(t.TempDir(), "missing.mp3"))
	if ev.Kind != session.Rejected || ev.Message != "Could not read file" {
		t.Errorf("Submit() = %+v", ev)
	}

	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(txt, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	ev = tr.Submit(context.Background(), txt)
	if ev.Message != "Invalid file format. Accepted: mp3, wav, flac, ogg, m4a" {
		t.Errorf("Submit(txt) message = %q", ev.Message)
	}
}
