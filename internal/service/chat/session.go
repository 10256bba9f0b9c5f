// Package chat runs one chat window: the live connection of the room, its
// message timeline and the presence of the other party.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/oggyb/jobswipe/internal/app"
	svcErr "github.com/oggyb/jobswipe/internal/errors"
	"github.com/oggyb/jobswipe/internal/models"
	"github.com/oggyb/jobswipe/internal/realtime"
	"github.com/oggyb/jobswipe/internal/router"
	"github.com/oggyb/jobswipe/internal/stomp"
	"github.com/oggyb/jobswipe/internal/timeline"
)

// Owner is the connection owner name of chat windows.
const Owner = "chat"

// ErrEmptyMessage is returned by Send for blank content.
var ErrEmptyMessage = errors.New("message is empty")

// Session is an open chat window.
type Session struct {
	appCtx   *app.AppContext
	log      *slog.Logger
	selfID   int64
	timeline *timeline.Timeline

	onMessage func(models.Message)

	mu       sync.Mutex
	matchID  int64
	room     models.ChatRoom
	handle   *realtime.Handle
	router   *router.Router
	subs     []*realtime.Subscription
	consumer sync.WaitGroup

	peerOnline atomic.Bool
}

// Option customises a Session.
type Option func(*Session)

// WithMessageHook is called for every message appended from the live channel.
func WithMessageHook(fn func(models.Message)) Option {
	return func(s *Session) { s.onMessage = fn }
}

// Open opens the chat window of matchID for selfID: the live connection
// is requested, the first history page loaded and the room marked read.
// A missing credential fails the open; a failed history load leaves the
// timeline empty.
func Open(ctx context.Context, appCtx *app.AppContext, matchID, selfID int64, opts ...Option) (*Session, error) {
	s := &Session{
		appCtx: appCtx,
		log:    appCtx.Logger.With("subsystem", "chat"),
		selfID: selfID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.timeline = timeline.New(appCtx.API, appCtx.Config.Chat.PageSize, s.log)

	if err := s.SwitchRoom(ctx, matchID); err != nil {
		return nil, err
	}
	return s, nil
}

// SwitchRoom moves the window to another room. The previous room's
// connection is superseded and its in-flight page loads are discarded.
// Switching to the current room reloads it over the same connection.
func (s *Session) SwitchRoom(ctx context.Context, matchID int64) error {
	h, err := s.appCtx.Realtime.Open(context.WithoutCancel(ctx), realtime.Options{
		Owner: Owner,
		Scope: strconv.FormatInt(matchID, 10),
	})
	if err != nil {
		return err
	}

	r := router.New(64, router.WithLogger(s.log), router.WithMetrics(s.appCtx.Metrics))
	subs, err := r.Attach(h, stomp.ChatTopic(matchID), stomp.PresenceTopic)
	if err != nil {
		r.Close()
		return err
	}

	s.mu.Lock()
	oldRouter, oldSubs := s.router, s.subs
	s.matchID = matchID
	s.handle = h
	s.router = r
	s.subs = subs
	s.room = models.ChatRoom{MatchID: matchID}
	s.mu.Unlock()
	for _, sub := range oldSubs {
		sub.Unsubscribe()
	}
	if oldRouter != nil {
		oldRouter.Close()
	}
	s.peerOnline.Store(false)
	s.timeline.SwitchRoom(matchID)

	s.consumer.Add(1)
	go s.consume(r, matchID)

	log := s.log.With("room", matchID)
	if room, err := s.appCtx.API.ChatRoom(ctx, matchID); err != nil {
		log.Warn("chat room unavailable", "error", err)
	} else {
		s.mu.Lock()
		if s.matchID == matchID {
			s.room = room
		}
		s.mu.Unlock()
		s.refreshPresence(ctx, room.OtherUserID)
	}

	if _, err := s.timeline.LoadOlder(ctx); err != nil {
		log.Warn("history unavailable", "error", err)
	}
	if err := s.MarkRead(ctx); err != nil {
		log.Warn("mark room read failed", "error", err)
	}
	return nil
}

func (s *Session) consume(r *router.Router, matchID int64) {
	defer s.consumer.Done()
	for {
		select {
		case <-r.Done():
			return
		case m := <-r.Chat():
			if !s.timeline.AppendIn(matchID, m) {
				continue
			}
			if s.onMessage != nil {
				s.onMessage(m)
			}
		case p := <-r.Presence():
			s.applyPresence(p)
		}
	}
}

func (s *Session) applyPresence(p models.Presence) {
	if rc := s.appCtx.RedisCache; rc != nil {
		if err := rc.SetPresence(context.Background(), p.UserID, p.Online); err != nil {
			s.log.Debug("presence mirror update failed", "error", err)
		}
	}
	s.mu.Lock()
	peer := s.room.OtherUserID
	s.mu.Unlock()
	if peer != 0 && p.UserID == peer {
		s.peerOnline.Store(p.Online)
	}
}

func (s *Session) refreshPresence(ctx context.Context, peer int64) {
	rc := s.appCtx.RedisCache
	if rc == nil || peer == 0 {
		return
	}
	online, err := rc.IsOnline(ctx, peer)
	if err != nil {
		s.log.Debug("presence lookup failed", "error", err)
		return
	}
	s.peerOnline.Store(online)
}

// Send delivers content. Over a live connection it is published and the
// server's echo lands in the timeline; otherwise it goes through REST and
// the stored message is appended directly. The returned message is nil on
// the live path. Exactly one path is used per call.
func (s *Session) Send(ctx context.Context, content string) (*models.Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	s.mu.Lock()
	h, matchID := s.handle, s.matchID
	s.mu.Unlock()

	if h.Connected() {
		body, err := json.Marshal(models.SendMessageRequest{MatchID: matchID, Content: content})
		if err != nil {
			return nil, svcErr.Send("encode message", err)
		}
		err = h.Publish(stomp.ChatSendDestination, body)
		if err == nil {
			return nil, nil
		}
		if !errors.Is(err, svcErr.ErrNotConnected) {
			return nil, err
		}
		// dropped between the check and the publish; nothing went out
	}

	m, err := s.appCtx.API.SendMessage(ctx, matchID, content)
	if err != nil {
		return nil, err
	}
	s.timeline.AppendIn(matchID, m)
	return &m, nil
}

// MarkRead promotes the other party's messages locally and tells the
// server. The local change stands even if the call fails.
func (s *Session) MarkRead(ctx context.Context) error {
	s.timeline.MarkRead(s.selfID)
	return s.appCtx.API.MarkRoomRead(ctx, s.MatchID())
}

// LoadOlder loads the next older page of history.
func (s *Session) LoadOlder(ctx context.Context) (bool, error) {
	return s.timeline.LoadOlder(ctx)
}

// Timeline returns the messages, pagination flags and room.
func (s *Session) Timeline() timeline.Snapshot { return s.timeline.Snapshot() }

// Room returns the metadata of the current room.
func (s *Session) Room() models.ChatRoom {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.room
}

// MatchID returns the current room.
func (s *Session) MatchID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchID
}

// Online reports the binary connection indicator of the window.
func (s *Session) Online() bool {
	s.mu.Lock()
	h := s.handle
	s.mu.Unlock()
	return h.Connected()
}

// Handle returns the live connection of the current room.
func (s *Session) Handle() *realtime.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// PeerOnline reports the last presence event of the other party.
func (s *Session) PeerOnline() bool { return s.peerOnline.Load() }

// Close releases the connection and stops event delivery.
func (s *Session) Close() {
	s.mu.Lock()
	h, r := s.handle, s.router
	s.mu.Unlock()
	r.Close()
	h.Close()
	s.consumer.Wait()
}
