package session

import (
	"math/rand"
	"testing"
)

func processing(jobID string) State {
	return Reduce(Default(), SubmittedEvent(jobID, "song.mp3"))
}

func TestReduce(t *testing.T) {
	t.Run("Submitted enters processing", func(t *testing.T) {
		s := processing("abc")

		if s.View != Processing {
			t.Errorf("expected processing view, got %v", s.View)
		}
		if s.JobID != "abc" || s.Filename != "song.mp3" {
			t.Errorf("expected job abc for song.mp3, got %q / %q", s.JobID, s.Filename)
		}
		if !s.Polling() {
			t.Error("expected polling to be wanted while processing")
		}
	})

	t.Run("Submitted clears a displayed error", func(t *testing.T) {
		s := Reduce(Default(), RejectedEvent("Upload failed"))
		s = Reduce(s, SubmittedEvent("abc", "song.mp3"))

		if s.HasError() {
			t.Errorf("expected error to be cleared, got %q", s.Error)
		}
	})

	t.Run("Submitted without job id is ignored", func(t *testing.T) {
		if s := Reduce(Default(), SubmittedEvent("", "song.mp3")); s != Default() {
			t.Errorf("expected default state, got %+v", s)
		}
	})

	t.Run("Progress updates the message", func(t *testing.T) {
		s := Reduce(processing("abc"), ProgressEvent(FromChannel, "abc", "Loading model..."))

		if s.StatusMessage != "Loading model..." {
			t.Errorf("expected progress message, got %q", s.StatusMessage)
		}
		if s.View != Processing {
			t.Errorf("progress must not leave processing, got %v", s.View)
		}
	})

	t.Run("Progress outside processing is ignored", func(t *testing.T) {
		if s := Reduce(Default(), ProgressEvent(FromChannel, "", "hello")); s != Default() {
			t.Errorf("expected default state, got %+v", s)
		}
	})

	t.Run("Complete moves to results", func(t *testing.T) {
		s := Reduce(processing("abc"), CompleteEvent(FromChannel, "abc"))

		if s.View != Results || s.JobID != "abc" {
			t.Errorf("expected results for abc, got %v / %q", s.View, s.JobID)
		}
		if s.Polling() {
			t.Error("polling must stop after completion")
		}
	})

	t.Run("Complete without job id keeps the active job", func(t *testing.T) {
		s := Reduce(processing("abc"), CompleteEvent(FromPoller, ""))

		if s.View != Results || s.JobID != "abc" {
			t.Errorf("expected results for abc, got %v / %q", s.View, s.JobID)
		}
	})

	t.Run("Failure returns to upload with error", func(t *testing.T) {
		s := Reduce(processing("abc"), FailureEvent(FromPoller, "abc", "decode failed"))

		if s.View != Upload {
			t.Errorf("expected upload view, got %v", s.View)
		}
		if s.Error != "decode failed" || s.ErrorSeq != 1 {
			t.Errorf("expected error 'decode failed' seq 1, got %q seq %d", s.Error, s.ErrorSeq)
		}
	})

	t.Run("Failure without reason uses default text", func(t *testing.T) {
		s := Reduce(processing("abc"), FailureEvent(FromChannel, "", ""))

		if s.Error != DefaultFailure {
			t.Errorf("expected default failure text, got %q", s.Error)
		}
	})

	t.Run("Events for another job are stale", func(t *testing.T) {
		start := processing("new")
		for _, ev := range []Event{
			CompleteEvent(FromChannel, "old"),
			FailureEvent(FromChannel, "old", "boom"),
			ProgressEvent(FromChannel, "old", "stale"),
		} {
			if s := Reduce(start, ev); s != start {
				t.Errorf("%v should be a no-op, got %+v", ev, s)
			}
		}
	})

	t.Run("Rejected shows error without a job", func(t *testing.T) {
		s := Reduce(Default(), RejectedEvent("File too large. Maximum 50MB"))

		if s.View != Upload || s.JobID != "" {
			t.Errorf("expected upload view without job, got %v / %q", s.View, s.JobID)
		}
		if s.Error != "File too large. Maximum 50MB" {
			t.Errorf("unexpected error %q", s.Error)
		}
	})

	t.Run("Rejected while processing is ignored", func(t *testing.T) {
		start := processing("abc")
		if s := Reduce(start, RejectedEvent("nope")); s != start {
			t.Errorf("expected no change, got %+v", s)
		}
	})

	t.Run("ClearError only clears its own error", func(t *testing.T) {
		s := Reduce(Default(), RejectedEvent("first"))
		armed := s.ErrorSeq
		s = Reduce(s, RejectedEvent("second"))

		if got := Reduce(s, ClearErrorEvent(armed)); got.Error != "second" {
			t.Errorf("stale clear removed newer error: %+v", got)
		}
		if got := Reduce(s, ClearErrorEvent(s.ErrorSeq)); got.HasError() {
			t.Errorf("expected error cleared, got %q", got.Error)
		}
	})
}

func TestTerminalEventsAreIdempotent(t *testing.T) {
	t.Run("both sources complete in the same tick", func(t *testing.T) {
		s := processing("abc")
		transitions := 0
		for _, ev := range []Event{CompleteEvent(FromChannel, "abc"), CompleteEvent(FromPoller, "abc")} {
			next := Reduce(s, ev)
			if next.View != s.View {
				transitions++
			}
			s = next
		}

		if transitions != 1 {
			t.Errorf("expected exactly one view transition, got %d", transitions)
		}
		if s.View != Results || s.JobID != "abc" {
			t.Errorf("expected results for abc, got %+v", s)
		}
	})

	t.Run("random sequences", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		pool := []Event{
			ProgressEvent(FromChannel, "abc", "working"),
			CompleteEvent(FromChannel, "abc"),
			CompleteEvent(FromPoller, "abc"),
			CompleteEvent(FromPoller, ""),
			FailureEvent(FromChannel, "abc", "boom"),
			FailureEvent(FromPoller, "", "decode failed"),
			CompleteEvent(FromChannel, "zzz"),
		}

		for i := 0; i < 500; i++ {
			s := processing("abc")
			var settled *State
			for j := 0; j < 8; j++ {
				ev := pool[rng.Intn(len(pool))]
				s = Reduce(s, ev)
				if settled == nil && s.View != Processing {
					snapshot := s
					settled = &snapshot
					continue
				}
				if settled != nil && ev.Terminal() {
					if s.View != settled.View || s.JobID != settled.JobID || s.Error != settled.Error {
						t.Fatalf("terminal event %v changed settled state %+v to %+v", ev, *settled, s)
					}
				}
			}
		}
	})
}

func TestDefault(t *testing.T) {
	want := State{View: Upload, StatusMessage: DefaultStatusMessage}
	if got := Default(); got != want {
		t.Errorf("Default() = %+v, want %+v", got, want)
	}
	if Default().Polling() {
		t.Error("a fresh session must not poll")
	}
}
