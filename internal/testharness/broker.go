// Package testharness runs an in-process STOMP-over-WebSocket broker for
// tests. It speaks enough of the protocol for the realtime client: CONNECT,
// SUBSCRIBE, UNSUBSCRIBE, SEND and DISCONNECT.
package testharness

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oggyb/jobswipe/internal/stomp"
)

// Sent is a SEND frame received by the broker.
type Sent struct {
	Destination string
	Body        []byte
}

// Broker is a test STOMP broker.
type Broker struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu            sync.Mutex
	conns         map[*conn]struct{}
	rejectUpgrade bool
	rejectConnect bool
	heartBeat     string
	connects      int
	tokens        []string
	sent          []Sent
	onSend        func(b *Broker, s Sent)
}

type conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	mu      sync.Mutex
	subs    map[string]string // id -> destination
}

// NewBroker starts a broker that is shut down with the test.
func NewBroker(t testing.TB) *Broker {
	b := &Broker{
		conns:     make(map[*conn]struct{}),
		heartBeat: "0,0",
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// URL is the ws:// endpoint of the broker.
func (b *Broker) URL() string {
	return "ws" + strings.TrimPrefix(b.server.URL, "http")
}

// Close drops every connection and stops the server.
func (b *Broker) Close() {
	b.DropAll()
	b.server.Close()
}

// RejectUpgrade makes the WebSocket upgrade answer 401.
func (b *Broker) RejectUpgrade(v bool) {
	b.mu.Lock()
	b.rejectUpgrade = v
	b.mu.Unlock()
}

// RejectConnect makes the broker answer CONNECT with an ERROR frame.
func (b *Broker) RejectConnect(v bool) {
	b.mu.Lock()
	b.rejectConnect = v
	b.mu.Unlock()
}

// SetHeartBeat sets the heart-beat header of CONNECTED. The broker itself
// never sends heart-beats, so a non-zero send interval simulates a server
// that went silent.
func (b *Broker) SetHeartBeat(v string) {
	b.mu.Lock()
	b.heartBeat = v
	b.mu.Unlock()
}

// OnSend installs a hook run for every SEND frame.
func (b *Broker) OnSend(fn func(b *Broker, s Sent)) {
	b.mu.Lock()
	b.onSend = fn
	b.mu.Unlock()
}

// Connects counts accepted CONNECT frames.
func (b *Broker) Connects() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.connects
}

// Tokens lists the bearer tokens presented on CONNECT.
func (b *Broker) Tokens() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.tokens...)
}

// Sent lists every SEND frame received.
func (b *Broker) Sent() []Sent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Sent(nil), b.sent...)
}

// Subscribers counts live subscriptions to destination.
func (b *Broker) Subscribers(destination string) int {
	n := 0
	for _, c := range b.snapshot() {
		c.mu.Lock()
		for _, d := range c.subs {
			if d == destination {
				n++
			}
		}
		c.mu.Unlock()
	}
	return n
}

// Publish delivers body as a MESSAGE to every subscriber of destination and
// returns the number of deliveries.
func (b *Broker) Publish(destination string, body []byte) int {
	n := 0
	for _, c := range b.snapshot() {
		c.mu.Lock()
		var ids []string
		for id, d := range c.subs {
			if d == destination {
				ids = append(ids, id)
			}
		}
		c.mu.Unlock()

		for _, id := range ids {
			f := stomp.New(stomp.Message,
				"destination", destination,
				"subscription", id,
				"message-id", uuid.NewString(),
				"content-type", "application/json",
				"content-length", strconv.Itoa(len(body)),
			)
			f.Body = body
			if c.send(f) == nil {
				n++
			}
		}
	}
	return n
}

// DropAll closes every client connection without a protocol goodbye.
func (b *Broker) DropAll() {
	for _, c := range b.snapshot() {
		_ = c.ws.Close()
	}
}

func (b *Broker) snapshot() []*conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]*conn, 0, len(b.conns))
	for c := range b.conns {
		out = append(out, c)
	}
	return out
}

func (b *Broker) serve(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	reject := b.rejectUpgrade
	b.mu.Unlock()
	if reject {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{ws: ws, subs: make(map[string]string)}

	b.mu.Lock()
	b.conns[c] = struct{}{}
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.conns, c)
		b.mu.Unlock()
		_ = ws.Close()
	}()

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		frames, err := stomp.Decode(payload)
		if err != nil {
			return
		}
		for _, f := range frames {
			if !b.handle(c, f) {
				return
			}
		}
	}
}

func (b *Broker) handle(c *conn, f *stomp.Frame) bool {
	switch f.Command {
	case stomp.Connect:
		b.mu.Lock()
		reject := b.rejectConnect
		hb := b.heartBeat
		b.tokens = append(b.tokens, strings.TrimPrefix(f.Header.Get(stomp.HeaderAuthorization), "Bearer "))
		if !reject {
			b.connects++
		}
		b.mu.Unlock()

		if reject {
			_ = c.send(stomp.New(stomp.Error, "message", "Invalid token"))
			return false
		}
		_ = c.send(stomp.New(stomp.Connected, "version", "1.2", "heart-beat", hb))

	case stomp.Subscribe:
		c.mu.Lock()
		c.subs[f.Header.Get("id")] = f.Header.Get("destination")
		c.mu.Unlock()

	case stomp.Unsubscribe:
		c.mu.Lock()
		delete(c.subs, f.Header.Get("id"))
		c.mu.Unlock()

	case stomp.Send:
		s := Sent{Destination: f.Header.Get("destination"), Body: append([]byte(nil), f.Body...)}
		b.mu.Lock()
		b.sent = append(b.sent, s)
		hook := b.onSend
		b.mu.Unlock()
		if hook != nil {
			hook(b, s)
		}

	case stomp.Disconnect:
		return false
	}
	return true
}

func (c *conn) send(f *stomp.Frame) error {
	payload, err := stomp.Encode(f)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}
