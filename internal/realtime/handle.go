package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	svcErr "github.com/oggyb/jobswipe/internal/errors"
	"github.com/oggyb/jobswipe/internal/stomp"
)

// Handler receives MESSAGE frames of one subscription, in arrival order.
type Handler func(f *stomp.Frame)

// Subscription binds a topic to a handler for the lifetime of a handle. It is
// re-issued to the server after every reconnect.
type Subscription struct {
	ID      string
	Topic   string
	handler Handler
	h       *Handle
}

// Unsubscribe removes the subscription from its handle.
func (s *Subscription) Unsubscribe() { s.h.Unsubscribe(s) }

// Handle is one owner's live connection.
type Handle struct {
	m         *Manager
	owner     string
	scope     string
	token     string
	sessionID string
	log       *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	alive     atomic.Bool
	closeOnce sync.Once
	done      chan struct{}

	mu    sync.Mutex // guards everything below; taken before writeMu
	state State
	since time.Time
	err   error
	subs  []*Subscription
	conn  *websocket.Conn
	ready chan struct{}

	writeMu sync.Mutex
}

func newHandle(ctx context.Context, m *Manager, o Options, token string) *Handle {
	hctx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	h := &Handle{
		m:         m,
		owner:     o.Owner,
		scope:     o.Scope,
		token:     token,
		sessionID: id,
		log:       m.log.With("owner", o.Owner, "scope", o.Scope, "session", id),
		ctx:       hctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     Disconnected,
		since:     time.Now(),
		ready:     make(chan struct{}),
	}
	h.alive.Store(true)
	return h
}

// Owner returns the owner the handle was opened for.
func (h *Handle) Owner() string { return h.owner }

// Scope returns the scope the handle was opened for.
func (h *Handle) Scope() string { return h.scope }

// State returns the current connection state.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Connected reports whether publishes currently go over the live channel.
func (h *Handle) Connected() bool { return h.State() == Connected }

// Done is closed once the handle is closed, by the caller or because the
// server rejected the credential.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err returns the terminal error of a handle closed by an authentication
// rejection, nil otherwise.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Snapshot returns the observable status of the handle.
func (h *Handle) Snapshot() Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

func (h *Handle) snapshotLocked() Snapshot {
	return Snapshot{
		Owner:     h.owner,
		Scope:     h.scope,
		SessionID: h.sessionID,
		State:     h.state,
		Err:       h.err,
		Since:     h.since,
	}
}

// WaitConnected blocks until the handle is CONNECTED, closed, or ctx ends.
func (h *Handle) WaitConnected(ctx context.Context) error {
	h.mu.Lock()
	ready := h.ready
	h.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-h.done:
		if err := h.Err(); err != nil {
			return err
		}
		return svcErr.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers handler for topic. When connected the SUBSCRIBE frame
// goes out immediately; otherwise it is sent on the next connect.
func (h *Handle) Subscribe(topic string, handler Handler) (*Subscription, error) {
	if !h.alive.Load() {
		return nil, svcErr.ErrClosed
	}
	sub := &Subscription{ID: "sub-" + uuid.NewString(), Topic: topic, handler: handler, h: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs = append(h.subs, sub)
	if h.state == Connected && h.conn != nil {
		if err := h.writeFrame(h.conn, stomp.NewSubscribe(sub.ID, topic)); err != nil {
			// the read loop sees the broken socket and the reconnect re-subscribes
			h.log.Warn("subscribe write failed", "topic", topic, "error", err)
		}
	}
	h.log.Debug("subscribed", "topic", topic, "id", sub.ID)
	return sub, nil
}

// Unsubscribe drops sub. Unknown subscriptions are ignored.
func (h *Handle) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, s := range h.subs {
		if s != sub {
			continue
		}
		h.subs = append(h.subs[:i], h.subs[i+1:]...)
		if h.state == Connected && h.conn != nil {
			_ = h.writeFrame(h.conn, stomp.NewUnsubscribe(sub.ID))
		}
		return
	}
}

// Publish sends body to destination over the live channel. It fails with
// ErrNotConnected while the handle is not CONNECTED.
func (h *Handle) Publish(destination string, body []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.alive.Load() {
		return svcErr.ErrClosed
	}
	if h.state != Connected || h.conn == nil {
		return svcErr.Wrap(svcErr.ErrNotConnected, "publish", fmt.Errorf("state %s", h.state))
	}
	if err := h.writeFrame(h.conn, stomp.NewSend(destination, body)); err != nil {
		return svcErr.Send("publish", err)
	}
	h.m.metrics.RecordPublish(destination)
	return nil
}

// Close tears the handle down: subscriptions are dropped, any pending
// reconnect timer becomes a no-op. Safe to call more than once.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.alive.Store(false)

		h.mu.Lock()
		conn := h.conn
		h.subs = nil
		h.mu.Unlock()
		if conn != nil {
			_ = h.writeFrame(conn, stomp.New(stomp.Disconnect))
		}

		h.cancel()
		h.setState(Disconnected)
		h.m.release(h)
		close(h.done)
		h.log.Info("connection closed")
	})
}

func (h *Handle) fail(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	h.log.Error("connection rejected", "error", err)
	h.Close()
}

// setState records a transition and notifies observers. Once the handle is
// dead only the final DISCONNECTED is accepted.
func (h *Handle) setState(s State) {
	h.mu.Lock()
	if !h.alive.Load() && s != Disconnected {
		h.mu.Unlock()
		return
	}
	snap, changed := h.setStateLocked(s)
	h.mu.Unlock()

	if changed {
		h.m.notify(snap)
	}
}

func (h *Handle) setStateLocked(s State) (Snapshot, bool) {
	if h.state == s {
		return Snapshot{}, false
	}
	h.state = s
	h.since = time.Now()
	if s == Connected {
		close(h.ready)
	} else {
		select {
		case <-h.ready:
			h.ready = make(chan struct{})
		default:
		}
	}
	h.log.Debug("state", "state", s)
	return h.snapshotLocked(), true
}

// run is the supervisor: it keeps a session alive until the handle dies.
func (h *Handle) run() {
	defer h.Close()

	next := Connecting
	for {
		h.setState(next)
		err := h.session()
		if h.ctx.Err() != nil || !h.alive.Load() {
			return
		}
		if errors.Is(err, svcErr.ErrAuthRejected) {
			h.fail(err)
			return
		}

		next = Reconnecting
		h.setState(Reconnecting)
		h.m.metrics.RecordReconnect(h.owner)
		h.log.Warn("connection lost, reconnecting", "error", err, "delay", h.m.cfg.ReconnectDelay)

		timer := time.NewTimer(h.m.cfg.ReconnectDelay)
		select {
		case <-h.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		if !h.alive.Load() {
			return
		}
	}
}

// session runs one transport connection from dial to failure.
func (h *Handle) session() error {
	cfg := h.m.cfg

	header := http.Header{}
	header.Set(stomp.HeaderAuthorization, "Bearer "+h.token)
	conn, resp, err := h.m.dialer.DialContext(h.ctx, cfg.URL, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return svcErr.Rejected(resp.Status)
		}
		return svcErr.Transport("dial", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(h.ctx, func() { _ = conn.Close() })
	defer stop()

	if err := h.writeFrame(conn, stomp.NewConnect(hostOf(cfg.URL), h.token, cfg.HeartbeatOutgoing, cfg.HeartbeatIncoming)); err != nil {
		return svcErr.Transport("connect", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(cfg.HandshakeTimeout))
	reply, err := readFrame(conn)
	if err != nil {
		return svcErr.Transport("connect", err)
	}
	switch reply.Command {
	case stomp.Connected:
	case stomp.Error:
		reason := reply.Header.Get("message")
		if reason == "" {
			reason = string(reply.Body)
		}
		return svcErr.Rejected(reason)
	default:
		return svcErr.Transport("connect", fmt.Errorf("unexpected %s frame", reply.Command))
	}

	out, in := stomp.NegotiateHeartBeat(cfg.HeartbeatOutgoing, cfg.HeartbeatIncoming, reply.Header.Get("heart-beat"))

	// Every subscription goes out before anyone can observe CONNECTED.
	h.mu.Lock()
	if !h.alive.Load() {
		h.mu.Unlock()
		return svcErr.ErrClosed
	}
	for _, s := range h.subs {
		if err := h.writeFrame(conn, stomp.NewSubscribe(s.ID, s.Topic)); err != nil {
			h.mu.Unlock()
			return svcErr.Transport("resubscribe", err)
		}
	}
	h.conn = conn
	resubscribed := len(h.subs)
	snap, changed := h.setStateLocked(Connected)
	h.mu.Unlock()
	if changed {
		h.m.notify(snap)
	}
	h.log.Info("connected", "subscriptions", resubscribed, "heartbeat_out", out, "heartbeat_in", in)

	defer func() {
		h.mu.Lock()
		if h.conn == conn {
			h.conn = nil
		}
		h.mu.Unlock()
	}()

	hbCtx, cancel := context.WithCancel(h.ctx)
	defer cancel()
	if out > 0 {
		go h.heartbeat(hbCtx, conn, out)
	}
	return h.readLoop(conn, in)
}

func (h *Handle) heartbeat(ctx context.Context, conn *websocket.Conn, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.write(conn, stomp.Heartbeat()); err != nil {
				h.log.Debug("heartbeat write failed", "error", err)
				return
			}
		}
	}
}

// readLoop dispatches inbound frames until the socket fails. Silence longer
// than twice the negotiated incoming interval counts as a failure.
func (h *Handle) readLoop(conn *websocket.Conn, in time.Duration) error {
	for {
		if in > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(2 * in))
		} else {
			_ = conn.SetReadDeadline(time.Time{})
		}

		_, payload, err := conn.ReadMessage()
		if err != nil {
			return svcErr.Transport("read", err)
		}

		frames, err := stomp.Decode(payload)
		if err != nil {
			h.log.Error("dropping malformed frame", "error", svcErr.Parse("read", err))
		}
		for _, f := range frames {
			switch f.Command {
			case stomp.Message:
				h.dispatch(f)
			case stomp.Error:
				return svcErr.Transport("read", fmt.Errorf("server error: %s", f.Header.Get("message")))
			}
		}
	}
}

// dispatch runs the handler of the frame's subscription on the read
// goroutine, which keeps per-topic arrival order.
func (h *Handle) dispatch(f *stomp.Frame) {
	id := f.Header.Get("subscription")
	dest := f.Header.Get("destination")

	h.mu.Lock()
	var target *Subscription
	for _, s := range h.subs {
		if s.ID == id || (id == "" && s.Topic == dest) {
			target = s
			break
		}
	}
	h.mu.Unlock()

	if target == nil {
		h.log.Debug("frame for unknown subscription", "subscription", id, "destination", dest)
		return
	}
	target.handler(f)
}

func (h *Handle) writeFrame(conn *websocket.Conn, f *stomp.Frame) error {
	payload, err := stomp.Encode(f)
	if err != nil {
		return err
	}
	return h.write(conn, payload)
}

func (h *Handle) write(conn *websocket.Conn, payload []byte) error {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(h.m.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readFrame reads messages until one carries a frame, skipping heart-beats.
func readFrame(conn *websocket.Conn) (*stomp.Frame, error) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		frames, err := stomp.Decode(payload)
		if err != nil {
			return nil, svcErr.Parse("read", err)
		}
		if len(frames) > 0 {
			return frames[0], nil
		}
	}
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "localhost"
	}
	return u.Hostname()
}
