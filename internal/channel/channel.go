// package channel maintains the push connection to the separation backend
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/desertthunder/stemx/internal/session"
	"github.com/desertthunder/stemx/internal/shared"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"
)

// Protocol selects the frame format spoken on the socket.
type Protocol string

const (
	SocketIO Protocol = "socketio"
	JSON     Protocol = "json"
)

// Engine.IO defaults used until the server's open packet says otherwise.
const (
	defaultPingInterval = 25 * time.Second
	defaultPingTimeout  = 20 * time.Second
)

// Options configures the connection and its reconnection policy.
type Options struct {
	BaseURL           string
	Path              string
	Protocol          Protocol
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	Timeout           time.Duration
	TokenSource       oauth2.TokenSource
}

// OptionsFromConfig builds [Options] from the [server] and [channel] config sections.
func OptionsFromConfig(server shared.ServerConfig, ch shared.ChannelConfig) Options {
	return Options{
		BaseURL:           server.BaseURL,
		Path:              ch.Path,
		Protocol:          Protocol(ch.Protocol),
		ReconnectAttempts: ch.ReconnectAttempts,
		ReconnectDelay:    ch.ReconnectDelay,
		Timeout:           ch.Timeout,
		TokenSource:       services.TokenSource(server.Token),
	}
}

// Client is a reconnecting push channel. A Client is started once with [Client.Run] and stopped with [Client.Close]
// or by cancelling Run's context.
type Client struct {
	opts   Options
	dialer *websocket.Dialer
	logger *log.Logger

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
	done   chan struct{}
}

// New creates a channel client. Zero delay, timeout and path fall back to the Socket.IO defaults (2s delay, 20s
// timeout, path "/socket.io/"). ReconnectAttempts is taken as given: 0 means no retries after the first failure.
func New(opts Options, logger *log.Logger) *Client {
	if opts.Protocol == "" {
		opts.Protocol = SocketIO
	}
	if opts.Path == "" {
		if opts.Protocol == SocketIO {
			opts.Path = "/socket.io/"
		} else {
			opts.Path = "/ws"
		}
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.Timeout,
		},
		logger: logger.With("component", "channel"),
		done:   make(chan struct{}),
	}
}

// URL returns the WebSocket URL derived from the backend base URL.
func (c *Client) URL() (string, error) {
	u, err := url.Parse(c.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: invalid base URL: %v", shared.ErrInvalidConfig, err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("%w: unsupported base URL scheme %q", shared.ErrInvalidConfig, u.Scheme)
	}

	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(c.opts.Path, "/")
	if c.opts.Protocol == SocketIO {
		q := u.Query()
		q.Set("EIO", "4")
		q.Set("transport", "websocket")
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// Run connects and delivers events to emit until ctx is cancelled or [Client.Close] is called, in which case it
// returns nil. It returns an error wrapping [shared.ErrChannelExhausted] when the retry budget runs out.
//
// emit is called from Run's goroutine and must not block for long.
func (c *Client) Run(ctx context.Context, emit func(session.Event)) error {
	target, err := c.URL()
	if err != nil {
		return err
	}

	failures := 0
	for {
		if c.stopped(ctx) {
			return nil
		}

		established, err := c.connect(ctx, target, emit)
		if c.stopped(ctx) {
			return nil
		}

		if established {
			failures = 0
			c.logger.Info("disconnected", "reason", err)
		} else {
			failures++
			c.logger.Warn("connection error", "url", target, "attempt", failures, "err", err)
			if failures > c.opts.ReconnectAttempts {
				return fmt.Errorf("%w: %d attempts: %v", shared.ErrChannelExhausted, failures, err)
			}
		}

		if !c.wait(ctx) {
			return nil
		}
	}
}

// connect runs one connection until it drops. established reports whether the server completed its side of the
// handshake; a connection that dies before that counts against the retry budget.
//
// JSON has no handshake: the first frame establishes the connection, as does staying up for the handshake timeout.
func (c *Client) connect(ctx context.Context, target string, emit func(session.Event)) (established bool, err error) {
	conn, err := c.dial(ctx, target)
	if err != nil {
		return false, err
	}
	defer c.release(conn)

	opened := time.Now()
	err = c.serve(ctx, conn, emit, func() {
		if !established {
			established = true
			c.logger.Info("connected", "url", target)
		}
	})

	if !established && c.opts.Protocol == JSON && time.Since(opened) >= c.opts.Timeout {
		established = true
	}
	return established, err
}

// Close shuts the socket and stops Run. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.done)

	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

func (c *Client) stopped(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-c.done:
		return true
	default:
		return false
	}
}

// wait sleeps for the reconnect delay; false means the client was stopped meanwhile.
func (c *Client) wait(ctx context.Context) bool {
	t := time.NewTimer(c.opts.ReconnectDelay)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-c.done:
		return false
	case <-t.C:
		return true
	}
}

func (c *Client) dial(ctx context.Context, target string) (*websocket.Conn, error) {
	header, err := services.AuthHeader(c.opts.TokenSource)
	if err != nil {
		return nil, err
	}

	dctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(dctx, target, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w: handshake status %d", shared.ErrChannel, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrChannel, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		conn.Close()
		return nil, fmt.Errorf("%w: client closed", shared.ErrChannel)
	}
	c.conn = conn
	return conn, nil
}

func (c *Client) release(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	conn.Close()
}

// serve reads frames until the connection drops and returns the reason. ready is called once the server has
// spoken.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, emit func(session.Event), ready func()) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if c.opts.Protocol == JSON {
		return c.serveJSON(conn, emit, ready)
	}
	return c.serveSocketIO(conn, emit, ready)
}

func (c *Client) serveJSON(conn *websocket.Conn, emit func(session.Event), ready func()) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		ready()

		name, data, err := decodeEnvelope(msg)
		if err != nil {
			c.logger.Debug("skipping frame", "err", err)
			continue
		}
		c.dispatch(name, data, emit)
	}
}

func (c *Client) serveSocketIO(conn *websocket.Conn, emit func(session.Event), ready func()) error {
	interval, timeout := defaultPingInterval, defaultPingTimeout
	conn.SetReadDeadline(time.Now().Add(c.opts.Timeout))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("waiting for open packet: %w", err)
	}
	if len(msg) == 0 || msg[0] != eioOpen {
		return fmt.Errorf("%w: expected open packet, got %q", shared.ErrChannel, msg)
	}

	var open openPacket
	if err := json.Unmarshal(msg[1:], &open); err == nil {
		if open.PingInterval > 0 {
			interval = time.Duration(open.PingInterval) * time.Millisecond
		}
		if open.PingTimeout > 0 {
			timeout = time.Duration(open.PingTimeout) * time.Millisecond
		}
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte{eioMessage, sioConnect}); err != nil {
		return fmt.Errorf("namespace connect: %w", err)
	}
	ready()

	for {
		conn.SetReadDeadline(time.Now().Add(interval + timeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if len(msg) == 0 {
			continue
		}

		switch msg[0] {
		case eioPing:
			if err := conn.WriteMessage(websocket.TextMessage, []byte{eioPong}); err != nil {
				return fmt.Errorf("pong: %w", err)
			}
		case eioClose:
			return errors.New("server closed transport")
		case eioNoop, eioPong:
		case eioMessage:
			if err := c.handleSocketIO(msg[1:], emit); err != nil {
				return err
			}
		default:
			c.logger.Debug("skipping packet", "type", string(msg[0]))
		}
	}
}

// handleSocketIO processes one Socket.IO packet; a returned error ends the connection.
func (c *Client) handleSocketIO(pkt []byte, emit func(session.Event)) error {
	if len(pkt) == 0 {
		return nil
	}

	switch pkt[0] {
	case sioConnect:
		c.logger.Debug("namespace connected")
	case sioDisconnect:
		return errors.New("server disconnected namespace")
	case sioConnectError:
		return fmt.Errorf("%w: connect error %s", shared.ErrChannel, pkt[1:])
	case sioEvent:
		name, data, err := decodeSocketIOEvent(pkt[1:])
		if err != nil {
			c.logger.Debug("skipping event", "err", err)
			return nil
		}
		c.dispatch(name, data, emit)
	default:
		c.logger.Debug("skipping socket.io packet", "type", string(pkt[0]))
	}
	return nil
}

func (c *Client) dispatch(name string, data json.RawMessage, emit func(session.Event)) {
	ev, ok, err := toEvent(name, data)
	switch {
	case err != nil:
		c.logger.Debug("skipping event", "event", name, "err", err)
	case !ok:
		c.logger.Debug("ignoring event", "event", name)
	default:
		c.logger.Debug("received", "event", name, "job_id", ev.JobID)
		emit(ev)
	}
}
