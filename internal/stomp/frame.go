// Package stomp encodes and decodes STOMP frames carried one per WebSocket
// message, the way Spring's broker relay and stomp.js exchange them.
package stomp

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/go-stomp/stomp/v3/frame"
)

// Frame is re-exported so callers do not import the codec library directly.
type Frame = frame.Frame

// Commands used by the client.
const (
	Connect     = frame.CONNECT
	Connected   = frame.CONNECTED
	Send        = frame.SEND
	Subscribe   = frame.SUBSCRIBE
	Unsubscribe = frame.UNSUBSCRIBE
	Message     = frame.MESSAGE
	Receipt     = frame.RECEIPT
	Error       = frame.ERROR
	Disconnect  = frame.DISCONNECT
)

// HeaderAuthorization carries the bearer credential on CONNECT.
const HeaderAuthorization = "Authorization"

// heartbeatPayload is what stomp.js sends as an outgoing heart-beat.
var heartbeatPayload = []byte("\n")

// Heartbeat returns the payload of an outgoing heart-beat message.
func Heartbeat() []byte { return heartbeatPayload }

// New builds a frame from a command and alternating header key/values.
func New(command string, headers ...string) *Frame {
	return frame.New(command, headers...)
}

// NewConnect builds the CONNECT frame. out/in are the heart-beat intervals the
// client offers: how often it can send and how often it wants to receive.
func NewConnect(host, token string, out, in time.Duration) *Frame {
	return frame.New(Connect,
		frame.AcceptVersion, "1.2,1.1,1.0",
		frame.Host, host,
		frame.HeartBeat, fmt.Sprintf("%d,%d", out.Milliseconds(), in.Milliseconds()),
		HeaderAuthorization, "Bearer "+token,
	)
}

// NewSubscribe builds a SUBSCRIBE frame with auto acknowledgement.
func NewSubscribe(id, destination string) *Frame {
	return frame.New(Subscribe, frame.Id, id, frame.Destination, destination, frame.Ack, "auto")
}

// NewUnsubscribe builds an UNSUBSCRIBE frame.
func NewUnsubscribe(id string) *Frame {
	return frame.New(Unsubscribe, frame.Id, id)
}

// NewSend builds a SEND frame with a JSON body.
func NewSend(destination string, body []byte) *Frame {
	f := frame.New(Send,
		frame.Destination, destination,
		frame.ContentType, "application/json",
		frame.ContentLength, strconv.Itoa(len(body)),
	)
	f.Body = body
	return f
}

// Encode serialises one frame into a WebSocket message payload.
func Encode(f *Frame) ([]byte, error) {
	var buf bytes.Buffer
	if err := frame.NewWriter(&buf).Write(f); err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", f.Command, err)
	}
	return buf.Bytes(), nil
}

// Decode parses every frame contained in one WebSocket message. Heart-beats
// are skipped; a message made only of heart-beats yields no frames.
func Decode(payload []byte) ([]*Frame, error) {
	r := frame.NewReader(bytes.NewReader(payload))
	var frames []*Frame
	for {
		f, err := r.Read()
		if errors.Is(err, io.EOF) {
			return frames, nil
		}
		if err != nil {
			return frames, fmt.Errorf("decode frame: %w", err)
		}
		if f == nil {
			continue
		}
		frames = append(frames, f)
	}
}

// ParseHeartBeat reads a "cx,cy" heart-beat header value. Missing or
// malformed values mean "no heart-beats".
func ParseHeartBeat(v string) (send, receive time.Duration) {
	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return 0, 0
	}
	sx, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	sy, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil || sx < 0 || sy < 0 {
		return 0, 0
	}
	return time.Duration(sx) * time.Millisecond, time.Duration(sy) * time.Millisecond
}

// NegotiateHeartBeat applies the STOMP rule: a direction is active only when
// both sides want it, at the slower of the two intervals.
//
// clientOut/clientIn are what the client offered; server is the CONNECTED
// header. It returns how often the client must send and how often it should
// expect something from the server.
func NegotiateHeartBeat(clientOut, clientIn time.Duration, server string) (out, in time.Duration) {
	serverOut, serverIn := ParseHeartBeat(server)
	if clientOut > 0 && serverIn > 0 {
		out = max(clientOut, serverIn)
	}
	if clientIn > 0 && serverOut > 0 {
		in = max(clientIn, serverOut)
	}
	return out, in
}
