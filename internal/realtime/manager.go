// Package realtime keeps one live STOMP-over-WebSocket connection per owner
// (a chat window, the notification dropdown) and re-establishes it after
// transport failures.
package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/oggyb/jobswipe/internal/auth"
	"github.com/oggyb/jobswipe/internal/config"
	"github.com/oggyb/jobswipe/internal/logger"
	"github.com/oggyb/jobswipe/internal/metrics"
)

// State of a connection handle.
type State string

const (
	Disconnected State = "DISCONNECTED"
	Connecting   State = "CONNECTING"
	Connected    State = "CONNECTED"
	Reconnecting State = "RECONNECTING"
)

// Config holds the transport settings shared by every handle.
type Config struct {
	URL               string
	ReconnectDelay    time.Duration
	HeartbeatIncoming time.Duration
	HeartbeatOutgoing time.Duration
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
}

// ConfigFrom extracts the realtime settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		URL:               cfg.Realtime.URL,
		ReconnectDelay:    cfg.Realtime.ReconnectDelay,
		HeartbeatIncoming: cfg.Realtime.HeartbeatIncoming,
		HeartbeatOutgoing: cfg.Realtime.HeartbeatOutgoing,
		HandshakeTimeout:  cfg.Realtime.HandshakeTimeout,
	}
}

// Options identify who owns a connection. Scope distinguishes what the
// owner is looking at, e.g. the room id of a chat window.
type Options struct {
	Owner string
	Scope string
}

// Snapshot is the observable status of a handle.
type Snapshot struct {
	Owner     string
	Scope     string
	SessionID string
	State     State
	Err       error
	Since     time.Time
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the logger used by the manager and its handles.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithMetrics records state transitions and reconnects.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithDialer replaces the WebSocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// Manager hands out connection handles, at most one per owner.
type Manager struct {
	cfg     Config
	creds   auth.CredentialSource
	log     *slog.Logger
	metrics *metrics.Metrics
	dialer  *websocket.Dialer

	mu        sync.Mutex
	handles   map[string]*Handle
	observers []func(Snapshot)
}

// NewManager builds a manager reading credentials from creds on every Open.
func NewManager(cfg Config, creds auth.CredentialSource, opts ...Option) *Manager {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}

	m := &Manager{
		cfg:     cfg,
		creds:   creds,
		handles: make(map[string]*Handle),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Subsystem("realtime")
	}
	if m.dialer == nil {
		m.dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}
	return m
}

// Open returns the live handle of o.Owner, creating it if needed. It never
// blocks on the network: the handle reports CONNECTED asynchronously.
//
// An owner that already holds a handle for the same scope gets that handle
// back. A different scope supersedes the previous handle, which is closed.
// ctx bounds the lifetime of a newly created handle.
func (m *Manager) Open(ctx context.Context, o Options) (*Handle, error) {
	token, err := auth.Require(m.creds)
	if err != nil {
		m.log.Warn("not opening connection without credential", "owner", o.Owner)
		return nil, err
	}

	m.mu.Lock()
	old, ok := m.handles[o.Owner]
	if ok && old.scope == o.Scope && old.alive.Load() {
		m.mu.Unlock()
		return old, nil
	}
	h := newHandle(ctx, m, o, token)
	m.handles[o.Owner] = h
	m.mu.Unlock()

	if ok {
		m.log.Info("superseding connection", "owner", o.Owner, "old_scope", old.scope, "scope", o.Scope)
		old.Close()
	}

	go h.run()
	return h, nil
}

// Get returns the current handle of owner.
func (m *Manager) Get(owner string) (*Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.handles[owner]
	return h, ok
}

// Snapshots lists the status of every open handle.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	hs := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		hs = append(hs, h)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(hs))
	for _, h := range hs {
		out = append(out, h.Snapshot())
	}
	return out
}

// Observe registers fn to receive every state transition of every handle.
// fn runs on the goroutine that caused the transition and must not block.
func (m *Manager) Observe(fn func(Snapshot)) {
	m.mu.Lock()
	m.observers = append(m.observers, fn)
	m.mu.Unlock()
}

// Close closes every handle.
func (m *Manager) Close() {
	m.mu.Lock()
	hs := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		hs = append(hs, h)
	}
	m.mu.Unlock()

	for _, h := range hs {
		h.Close()
		m.metrics.Forget(h.owner)
	}
}

func (m *Manager) release(h *Handle) {
	m.mu.Lock()
	if m.handles[h.owner] == h {
		delete(m.handles, h.owner)
	}
	m.mu.Unlock()
}

func (m *Manager) notify(s Snapshot) {
	m.metrics.SetState(s.Owner, string(s.State))

	m.mu.Lock()
	obs := append([]func(Snapshot){}, m.observers...)
	m.mu.Unlock()

	for _, fn := range obs {
		fn(s)
	}
}
