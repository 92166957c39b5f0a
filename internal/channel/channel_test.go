package channel_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/stemx/internal/channel"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/session"
	"github.com/desertthunder/stemx/internal/shared"
	tu "github.com/desertthunder/stemx/internal/testing"
)

const waitFor = 2 * time.Second

type harness struct {
	client *channel.Client
	events chan session.Event
	done   chan error
	cancel context.CancelFunc
}

func start(t *testing.T, opts channel.Options) *harness {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{
		client: channel.New(opts, shared.NewLogger(io.Discard)),
		events: make(chan session.Event, 16),
		done:   make(chan error, 1),
		cancel: cancel,
	}
	go func() {
		h.done <- h.client.Run(ctx, func(ev session.Event) { h.events <- ev })
	}()
	t.Cleanup(func() {
		cancel()
		h.client.Close()
	})
	return h
}

func (h *harness) next(t *testing.T) session.Event {
	t.Helper()
	select {
	case ev := <-h.events:
		return ev
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for event")
		return session.Event{}
	}
}

func (h *harness) result(t *testing.T) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
		return nil
	}
}

func fastOptions(b *tu.Backend, protocol channel.Protocol) channel.Options {
	return channel.Options{
		BaseURL:           b.URL,
		Protocol:          protocol,
		ReconnectAttempts: 3,
		ReconnectDelay:    10 * time.Millisecond,
		Timeout:           time.Second,
	}
}

func TestURL(t *testing.T) {
	tests := []struct {
		name    string
		opts    channel.Options
		want    string
		wantErr bool
	}{
		{
			name: "socket.io over http",
			opts: channel.Options{BaseURL: "http://localhost:5000", Protocol: channel.SocketIO},
			want: "ws://localhost:5000/socket.io/?EIO=4&transport=websocket",
		},
		{
			name: "https becomes wss",
			opts: channel.Options{BaseURL: "https://sep.example.com/", Protocol: channel.SocketIO},
			want: "wss://sep.example.com/socket.io/?EIO=4&transport=websocket",
		},
		{
			name: "json protocol default path",
			opts: channel.Options{BaseURL: "http://localhost:5000", Protocol: channel.JSON},
			want: "ws://localhost:5000/ws",
		},
		{
			name: "base path is kept",
			opts: channel.Options{BaseURL: "http://host/app", Protocol: channel.JSON, Path: "events"},
			want: "ws://host/app/events",
		},
		{
			name:    "unsupported scheme",
			opts:    channel.Options{BaseURL: "ftp://host"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := channel.New(tt.opts, nil).URL()
			if (err != nil) != tt.wantErr {
				t.Fatalf("URL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidConfig) {
					t.Errorf("expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRunDeliversEvents(t *testing.T) {
	for _, protocol := range []channel.Protocol{channel.SocketIO, channel.JSON} {
		t.Run(string(protocol), func(t *testing.T) {
			backend := tu.NewBackend(t, protocol)
			h := start(t, fastOptions(backend, protocol))
			backend.WaitForClient(t, waitFor)

			backend.Emit(t, "unrelated", map[string]string{"x": "y"})
			backend.Emit(t, channel.EventStatus, map[string]string{"job_id": "j1", "message": "Separating..."})
			backend.Emit(t, channel.EventComplete, map[string]string{"job_id": "j1"})
			backend.Emit(t, channel.EventError, map[string]string{"job_id": "j2"})

			if ev := h.next(t); ev.Kind != session.Progress || ev.Message != "Separating..." || ev.JobID != "j1" {
				t.Errorf("first event = %+v, want progress for j1", ev)
			}
			if ev := h.next(t); ev.Kind != session.Complete || ev.JobID != "j1" {
				t.Errorf("second event = %+v, want complete for j1", ev)
			}
			ev := h.next(t)
			if ev.Kind != session.Failure || ev.Message != session.DefaultFailure {
				t.Errorf("third event = %+v, want failure with default reason", ev)
			}
			if ev.Source != session.FromChannel {
				t.Errorf("source = %q, want channel", ev.Source)
			}
		})
	}
}

func TestRunSkipsMalformedFrames(t *testing.T) {
	backend := tu.NewBackend(t, channel.SocketIO)
	h := start(t, fastOptions(backend, channel.SocketIO))
	backend.WaitForClient(t, waitFor)

	backend.EmitRaw([]byte(`42not json`))
	backend.EmitRaw([]byte(`42["processing_status","bad"]`))
	backend.EmitRaw([]byte(`6`))
	backend.Emit(t, channel.EventComplete, map[string]string{"job_id": "ok"})

	if ev := h.next(t); ev.Kind != session.Complete || ev.JobID != "ok" {
		t.Errorf("event = %+v, want complete for ok", ev)
	}
}

func TestRunAnswersPing(t *testing.T) {
	backend := tu.NewBackend(t, channel.SocketIO)
	start(t, fastOptions(backend, channel.SocketIO))
	backend.WaitForClient(t, waitFor)

	backend.EmitRaw([]byte("2"))

	deadline := time.Now().Add(waitFor)
	for backend.Pongs() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never answered ping")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunReconnects(t *testing.T) {
	backend := tu.NewBackend(t, channel.JSON)
	h := start(t, fastOptions(backend, channel.JSON))
	backend.WaitForClient(t, waitFor)

	backend.DropClients()
	backend.WaitForClient(t, waitFor)

	if dials := backend.Dials(); dials < 2 {
		t.Errorf("dials = %d, want at least 2", dials)
	}

	backend.Emit(t, channel.EventComplete, map[string]string{"job_id": "after"})
	if ev := h.next(t); ev.JobID != "after" {
		t.Errorf("event after reconnect = %+v", ev)
	}
}

func TestRunExhaustsRetries(t *testing.T) {
	backend := tu.NewBackend(t, channel.SocketIO)
	backend.RefuseChannel(true)

	opts := fastOptions(backend, channel.SocketIO)
	opts.ReconnectAttempts = 2
	h := start(t, opts)

	err := h.result(t)
	if !errors.Is(err, shared.ErrChannelExhausted) {
		t.Fatalf("Run() error = %v, want ErrChannelExhausted", err)
	}
	if dials := backend.Dials(); dials != 3 {
		t.Errorf("dials = %d, want 3 (initial + 2 retries)", dials)
	}
}

func TestRunCountsDroppedHandshakes(t *testing.T) {
	for _, protocol := range []channel.Protocol{channel.SocketIO, channel.JSON} {
		t.Run(string(protocol), func(t *testing.T) {
			backend := tu.NewBackend(t, protocol)
			backend.HangUpChannel(true)

			opts := fastOptions(backend, protocol)
			opts.ReconnectAttempts = 1
			h := start(t, opts)

			err := h.result(t)
			if !errors.Is(err, shared.ErrChannelExhausted) {
				t.Fatalf("Run() error = %v, want ErrChannelExhausted", err)
			}
			if dials := backend.Dials(); dials != 2 {
				t.Errorf("dials = %d, want 2 (initial + 1 retry)", dials)
			}
		})
	}
}

func TestRunResetsBudgetAfterHandshake(t *testing.T) {
	backend := tu.NewBackend(t, channel.SocketIO)
	opts := fastOptions(backend, channel.SocketIO)
	opts.ReconnectAttempts = 1
	h := start(t, opts)

	for i := 0; i < 3; i++ {
		backend.WaitForClient(t, waitFor)
		backend.DropClients()
	}
	backend.WaitForClient(t, waitFor)

	select {
	case err := <-h.done:
		t.Fatalf("Run() returned %v after handshaken connections dropped", err)
	default:
	}
	backend.Emit(t, channel.EventComplete, map[string]string{"job_id": "still-here"})
	if ev := h.next(t); ev.JobID != "still-here" {
		t.Errorf("event = %+v", ev)
	}
}

func TestRunStops(t *testing.T) {
	t.Run("close unblocks run", func(t *testing.T) {
		backend := tu.NewBackend(t, channel.SocketIO)
		h := start(t, fastOptions(backend, channel.SocketIO))
		backend.WaitForClient(t, waitFor)

		if err := h.client.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		if err := h.client.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
		if err := h.result(t); err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	})

	t.Run("context cancel unblocks run", func(t *testing.T) {
		backend := tu.NewBackend(t, channel.JSON)
		h := start(t, fastOptions(backend, channel.JSON))
		backend.WaitForClient(t, waitFor)

		h.cancel()
		if err := h.result(t); err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	})

	t.Run("cancel during retry delay", func(t *testing.T) {
		backend := tu.NewBackend(t, channel.JSON)
		backend.RefuseChannel(true)

		opts := fastOptions(backend, channel.JSON)
		opts.ReconnectDelay = time.Hour
		h := start(t, opts)

		deadline := time.Now().Add(waitFor)
		for backend.Dials() == 0 && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
		h.cancel()
		if err := h.result(t); err != nil {
			t.Errorf("Run() error = %v, want nil", err)
		}
	})
}

func TestRunSendsToken(t *testing.T) {
	backend := tu.NewBackend(t, channel.JSON)
	opts := fastOptions(backend, channel.JSON)
	opts.TokenSource = services.TokenSource("s3cret")
	start(t, opts)
	backend.WaitForClient(t, waitFor)

	if got := backend.LastAuthorization(); got != "Bearer s3cret" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer s3cret")
	}
}
