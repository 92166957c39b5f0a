package testing

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/stemx/internal/channel"
	"github.com/desertthunder/stemx/internal/services"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Upload is a file received by the fake backend.
type Upload struct {
	Filename string
	Size     int64
	JobID    string
}

type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (p *peer) write(msg []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WriteMessage(websocket.TextMessage, msg)
}

// Backend is an in-process fake of the separation service: the three REST endpoints plus a push channel speaking
// either protocol.
type Backend struct {
	*httptest.Server

	protocol channel.Protocol

	mu       sync.Mutex
	jobs     map[string]services.JobStatus
	uploads  []Upload
	peers    map[*peer]struct{}
	nextID   int
	upload   func(w http.ResponseWriter) bool
	refuseWS bool
	hangUp   bool

	uploadHits   atomic.Int64
	statusHits   atomic.Int64
	downloadHits atomic.Int64
	dialHits     atomic.Int64
	pongs        atomic.Int64
	authHeader   atomic.Value

	connected chan struct{}
}

// NewBackend starts a fake backend that is closed with the test.
func NewBackend(t *testing.T, protocol channel.Protocol) *Backend {
	t.Helper()

	b := &Backend{
		protocol:  protocol,
		jobs:      map[string]services.JobStatus{},
		peers:     map[*peer]struct{}{},
		connected: make(chan struct{}, 16),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/upload", b.handleUpload)
	mux.HandleFunc("GET /api/status/{id}", b.handleStatus)
	mux.HandleFunc("GET /api/download/{stem}/{id}", b.handleDownload)
	mux.HandleFunc("/socket.io/", b.handleSocket)
	mux.HandleFunc("/ws", b.handleSocket)

	b.Server = httptest.NewServer(mux)
	t.Cleanup(b.Close)
	return b
}

// Close drops every push connection and stops the server.
func (b *Backend) Close() {
	b.mu.Lock()
	for p := range b.peers {
		p.conn.Close()
	}
	b.mu.Unlock()
	b.Server.Close()
}

// SetStatus sets what GET /api/status/{id} reports for a job.
func (b *Backend) SetStatus(jobID, status, errMsg string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	job := b.jobs[jobID]
	job.JobID, job.Status, job.Error = jobID, status, errMsg
	b.jobs[jobID] = job
}

// OverrideUpload replaces the upload handler's response; returning false falls through to the default.
func (b *Backend) OverrideUpload(fn func(w http.ResponseWriter) bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.upload = fn
}

// RefuseChannel makes every push channel handshake fail with 503.
func (b *Backend) RefuseChannel(refuse bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refuseWS = refuse
}

// HangUpChannel makes every push channel connection close right after the upgrade, before any handshake.
func (b *Backend) HangUpChannel(hangUp bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hangUp = hangUp
}

// Uploads returns the files received so far.
func (b *Backend) Uploads() []Upload {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Upload(nil), b.uploads...)
}

// Hits returns request counts for upload, status and download.
func (b *Backend) Hits() (upload, status, download int64) {
	return b.uploadHits.Load(), b.statusHits.Load(), b.downloadHits.Load()
}

// Dials returns how many push channel handshakes were attempted.
func (b *Backend) Dials() int64 {
	return b.dialHits.Load()
}

// Pongs returns how many Engine.IO pong packets clients sent.
func (b *Backend) Pongs() int64 {
	return b.pongs.Load()
}

// LastAuthorization returns the Authorization header of the most recent request.
func (b *Backend) LastAuthorization() string {
	v, _ := b.authHeader.Load().(string)
	return v
}

// WaitForClient blocks until a push client has connected (and joined the namespace for Socket.IO).
func (b *Backend) WaitForClient(t *testing.T, timeout time.Duration) {
	t.Helper()
	select {
	case <-b.connected:
	case <-time.After(timeout):
		t.Fatalf("no push client connected within %v", timeout)
	}
}

// Emit pushes a server event to every connected client.
func (b *Backend) Emit(t *testing.T, name string, data any) {
	t.Helper()

	var frame []byte
	var err error
	if b.protocol == channel.JSON {
		frame, err = channel.EncodeEnvelope(name, data)
	} else {
		frame, err = channel.EncodeSocketIOEvent(name, data)
	}
	if err != nil {
		t.Fatalf("failed to encode %s: %v", name, err)
	}

	b.broadcast(frame)
}

// EmitRaw pushes an already encoded frame to every connected client.
func (b *Backend) EmitRaw(frame []byte) {
	b.broadcast(frame)
}

// DropClients closes every push connection without a close handshake.
func (b *Backend) DropClients() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for p := range b.peers {
		p.conn.Close()
		delete(b.peers, p)
	}
}

func (b *Backend) broadcast(frame []byte) {
	b.mu.Lock()
	peers := make([]*peer, 0, len(b.peers))
	for p := range b.peers {
		peers = append(peers, p)
	}
	b.mu.Unlock()

	for _, p := range peers {
		_ = p.write(frame)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	b.uploadHits.Add(1)
	b.authHeader.Store(r.Header.Get("Authorization"))

	b.mu.Lock()
	override := b.upload
	b.mu.Unlock()
	if override != nil && override(w) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No file provided"})
		return
	}
	defer file.Close()
	size, _ := io.Copy(io.Discard, file)

	b.mu.Lock()
	b.nextID++
	jobID := fmt.Sprintf("job-%d", b.nextID)
	b.jobs[jobID] = services.JobStatus{JobID: jobID, Status: services.StatusProcessing, Filename: header.Filename}
	b.uploads = append(b.uploads, Upload{Filename: header.Filename, Size: size, JobID: jobID})
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "message": "Processing started"})
}

func (b *Backend) handleStatus(w http.ResponseWriter, r *http.Request) {
	b.statusHits.Add(1)
	b.authHeader.Store(r.Header.Get("Authorization"))

	b.mu.Lock()
	job, ok := b.jobs[r.PathValue("id")]
	b.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (b *Backend) handleDownload(w http.ResponseWriter, r *http.Request) {
	b.downloadHits.Add(1)

	b.mu.Lock()
	job, ok := b.jobs[r.PathValue("id")]
	b.mu.Unlock()

	stem := r.PathValue("stem")
	switch {
	case !ok:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Job not found"})
	case job.Status != services.StatusComplete:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Processing not complete"})
	case stem != string(services.Vocals) && stem != string(services.Accompaniment):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid track type"})
	default:
		w.Header().Set("Content-Type", "audio/wav")
		w.Write([]byte("RIFF" + stem + ":" + job.JobID))
	}
}

func (b *Backend) handleSocket(w http.ResponseWriter, r *http.Request) {
	b.dialHits.Add(1)
	b.authHeader.Store(r.Header.Get("Authorization"))

	b.mu.Lock()
	refuse, hangUp := b.refuseWS, b.hangUp
	b.mu.Unlock()
	if refuse {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	if hangUp {
		conn.Close()
		return
	}
	p := &peer{conn: conn}

	if b.protocol == channel.SocketIO {
		if err := p.write([]byte(`0{"sid":"fake","upgrades":[],"pingInterval":25000,"pingTimeout":20000}`)); err != nil {
			conn.Close()
			return
		}
	} else {
		b.join(p)
	}

	go func() {
		defer func() {
			b.mu.Lock()
			delete(b.peers, p)
			b.mu.Unlock()
			conn.Close()
		}()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(msg) == "3" {
				b.pongs.Add(1)
				continue
			}
			if string(msg) == "40" {
				if err := p.write([]byte(`40{"sid":"fake-ns"}`)); err != nil {
					return
				}
				b.join(p)
			}
		}
	}()
}

func (b *Backend) join(p *peer) {
	b.mu.Lock()
	b.peers[p] = struct{}{}
	b.mu.Unlock()

	select {
	case b.connected <- struct{}{}:
	default:
	}
}
