package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/jobswipe/internal/models"
	"github.com/oggyb/jobswipe/internal/stomp"
	"github.com/oggyb/jobswipe/internal/testharness"
	"github.com/oggyb/jobswipe/internal/testharness/fixture"
)

const (
	self = int64(1)
	peer = int64(2)
)

type fakeAPI struct {
	mu        sync.Mutex
	history   map[int64][]models.Message // newest first
	failFetch bool
	posted    []string
	readMarks []int64
	nextID    int64
}

func (a *fakeAPI) handler() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/chats/{id}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, req *http.Request) {
			id := roomID(req)
			writeJSON(w, models.ChatRoom{ID: id * 10, MatchID: id, OtherUserID: peer, OtherUserName: "Ada"})
		})
		r.Get("/messages", func(w http.ResponseWriter, req *http.Request) {
			a.mu.Lock()
			defer a.mu.Unlock()
			if a.failFetch {
				http.Error(w, "down", http.StatusServiceUnavailable)
				return
			}
			msgs := a.history[roomID(req)]
			writeJSON(w, models.Page[models.Message]{Content: msgs, Last: true, Size: len(msgs)})
		})
		r.Post("/messages", func(w http.ResponseWriter, req *http.Request) {
			var body struct{ Content string }
			_ = json.NewDecoder(req.Body).Decode(&body)
			a.mu.Lock()
			a.nextID++
			a.posted = append(a.posted, body.Content)
			m := models.Message{
				ID: 1000 + a.nextID, ChatRoomID: roomID(req), SenderID: self,
				Content: body.Content, Status: models.StatusSent,
				CreatedAt: models.NewTimestamp(time.Now()),
			}
			a.mu.Unlock()
			writeJSON(w, m)
		})
		r.Put("/read", func(w http.ResponseWriter, req *http.Request) {
			a.mu.Lock()
			a.readMarks = append(a.readMarks, roomID(req))
			a.mu.Unlock()
		})
	})
	return r
}

func (a *fakeAPI) postedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.posted)
}

func roomID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func msg(id, sender int64, at time.Time, content string) models.Message {
	return models.Message{
		ID: id, SenderID: sender, Content: content,
		Status: models.StatusDelivered, CreatedAt: models.NewTimestamp(at),
	}
}

func openSession(t *testing.T, env *fixture.Env, matchID int64) *Session {
	t.Helper()
	s, err := Open(context.Background(), env.App, matchID, self)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, s.Handle().WaitConnected(ctx))
	require.Eventually(t, func() bool {
		return env.Broker.Subscribers(stomp.ChatTopic(matchID)) == 1
	}, 3*time.Second, 10*time.Millisecond)
	return s
}

func contents(s *Session) []string {
	snap := s.Timeline()
	out := make([]string, len(snap.Messages))
	for i, m := range snap.Messages {
		out[i] = m.Content
	}
	return out
}

func TestOpenLoadsHistoryAndMarksRead(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	api := &fakeAPI{history: map[int64][]models.Message{
		7: {msg(2, peer, base.Add(time.Minute), "second"), msg(1, peer, base, "first")},
	}}
	env := fixture.New(t, self, api.handler())

	s := openSession(t, env, 7)

	assert.Equal(t, []string{"first", "second"}, contents(s))
	for _, m := range s.Timeline().Messages {
		assert.Equal(t, models.StatusRead, m.Status)
	}
	assert.Equal(t, "Ada", s.Room().OtherUserName)
	api.mu.Lock()
	assert.Equal(t, []int64{7}, api.readMarks)
	api.mu.Unlock()
	assert.True(t, s.Online())
	assert.Equal(t, 1, env.Broker.Subscribers(stomp.PresenceTopic))
}

func TestHistoryFailureLeavesEmptyTimeline(t *testing.T) {
	api := &fakeAPI{failFetch: true}
	env := fixture.New(t, self, api.handler())

	s := openSession(t, env, 7)
	assert.Empty(t, s.Timeline().Messages)
}

func TestLiveMessagesAreDeduped(t *testing.T) {
	api := &fakeAPI{}
	env := fixture.New(t, self, api.handler())

	var hooked sync.WaitGroup
	hooked.Add(1)
	s, err := Open(context.Background(), env.App, 7, self, WithMessageHook(func(models.Message) { hooked.Done() }))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.Eventually(t, func() bool {
		return env.Broker.Subscribers(stomp.ChatTopic(7)) == 1
	}, 3*time.Second, 10*time.Millisecond)

	body, _ := json.Marshal(msg(5, peer, time.Now(), "hi"))
	env.Broker.Publish(stomp.ChatTopic(7), body)
	env.Broker.Publish(stomp.ChatTopic(7), body)

	hooked.Wait()
	require.Eventually(t, func() bool { return len(s.Timeline().Messages) == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"hi"}, contents(s))
}

func TestSendOverLiveConnection(t *testing.T) {
	api := &fakeAPI{}
	env := fixture.New(t, self, api.handler())
	env.Broker.OnSend(func(b *testharness.Broker, sent testharness.Sent) {
		var req models.SendMessageRequest
		if !assert.NoError(t, json.Unmarshal(sent.Body, &req)) {
			return
		}
		echo, _ := json.Marshal(msg(50, self, time.Now(), req.Content))
		b.Publish(stomp.ChatTopic(req.MatchID), echo)
	})

	s := openSession(t, env, 7)
	m, err := s.Send(context.Background(), "  hello  ")
	require.NoError(t, err)
	assert.Nil(t, m, "live sends come back as an echo")

	require.Eventually(t, func() bool { return len(s.Timeline().Messages) == 1 }, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"hello"}, contents(s))
	assert.Zero(t, api.postedCount(), "never both paths")

	sent := env.Broker.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, stomp.ChatSendDestination, sent[0].Destination)
	assert.JSONEq(t, `{"matchId":7,"content":"hello"}`, string(sent[0].Body))
}

func TestSendFallsBackToRESTWhenOffline(t *testing.T) {
	api := &fakeAPI{}
	env := fixture.New(t, self, api.handler())

	s := openSession(t, env, 7)
	env.Broker.RejectUpgrade(true)
	env.Broker.DropAll()
	require.Eventually(t, func() bool { return !s.Online() }, 3*time.Second, 10*time.Millisecond)

	m, err := s.Send(context.Background(), "offline")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "offline", m.Content)
	assert.Equal(t, []string{"offline"}, contents(s))
	assert.Equal(t, 1, api.postedCount())
	assert.Empty(t, env.Broker.Sent())
}

func TestSendRejectsBlank(t *testing.T) {
	api := &fakeAPI{}
	env := fixture.New(t, self, api.handler())
	s := openSession(t, env, 7)

	_, err := s.Send(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Zero(t, api.postedCount())
}

func TestPresenceOfPeer(t *testing.T) {
	api := &fakeAPI{}
	env := fixture.New(t, self, api.handler())
	s := openSession(t, env, 7)
	assert.False(t, s.PeerOnline())

	env.Broker.Publish(stomp.PresenceTopic, []byte(fmt.Sprintf(`{"userId":%d,"online":true}`, peer)))
	require.Eventually(t, s.PeerOnline, time.Second, 10*time.Millisecond)
	assert.True(t, env.Redis.Exists(env.App.RedisCache.KeyForPresence(peer)))

	// someone else's presence does not move the indicator
	env.Broker.Publish(stomp.PresenceTopic, []byte(`{"userId":99,"online":false}`))
	env.Broker.Publish(stomp.PresenceTopic, []byte(fmt.Sprintf(`{"userId":%d,"online":false}`, peer)))
	require.Eventually(t, func() bool { return !s.PeerOnline() }, time.Second, 10*time.Millisecond)
}

func TestSwitchRoomSupersedes(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	api := &fakeAPI{history: map[int64][]models.Message{
		7: {msg(1, peer, base, "in seven")},
		8: {msg(9, peer, base, "in eight")},
	}}
	env := fixture.New(t, self, api.handler())
	s := openSession(t, env, 7)
	old := s.Handle()

	require.NoError(t, s.SwitchRoom(context.Background(), 8))
	<-old.Done()

	require.Eventually(t, func() bool {
		return env.Broker.Subscribers(stomp.ChatTopic(8)) == 1 && env.Broker.Subscribers(stomp.ChatTopic(7)) == 0
	}, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(8), s.MatchID())
	assert.Equal(t, []string{"in eight"}, contents(s))

	// a late message for the old room is not shown
	body, _ := json.Marshal(msg(3, peer, base, "late"))
	env.Broker.Publish(stomp.ChatTopic(7), body)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, []string{"in eight"}, contents(s))
}

func TestSwitchToSameRoomKeepsOneSubscription(t *testing.T) {
	base := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	api := &fakeAPI{history: map[int64][]models.Message{7: {msg(1, peer, base, "hello")}}}
	env := fixture.New(t, self, api.handler())
	s := openSession(t, env, 7)
	h := s.Handle()

	require.NoError(t, s.SwitchRoom(context.Background(), 7))
	assert.Same(t, h, s.Handle())

	require.Eventually(t, func() bool {
		return env.Broker.Subscribers(stomp.ChatTopic(7)) == 1 && env.Broker.Subscribers(stomp.PresenceTopic) == 1
	}, 3*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, env.Broker.Subscribers(stomp.ChatTopic(7)))

	// a live message still arrives exactly once
	body, _ := json.Marshal(msg(5, peer, base.Add(time.Minute), "again"))
	env.Broker.Publish(stomp.ChatTopic(7), body)
	require.Eventually(t, func() bool { return len(s.Timeline().Messages) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"hello", "again"}, contents(s))
}
