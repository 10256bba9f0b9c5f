package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/jobswipe/internal/auth"
	svcErr "github.com/oggyb/jobswipe/internal/errors"
	"github.com/oggyb/jobswipe/internal/models"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", auth.Static("tok"), srv.Client())
}

func TestFetchMessages(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/chats/7/messages", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "10", r.URL.Query().Get("size"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"content":[{"id":2,"content":"b","createdAt":"2025-01-01T10:00:00"},{"id":1,"content":"a"}],"last":true,"number":2,"size":10}`))
	})

	page, err := c.FetchMessages(context.Background(), 7, 2, 10)
	require.NoError(t, err)
	require.Len(t, page.Content, 2)
	assert.Equal(t, int64(2), page.Content[0].ID)
	assert.True(t, page.Last)
	assert.Equal(t, 10, page.Content[0].CreatedAt.Hour())
}

func TestChatRooms(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chats", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":70,"matchId":7,"otherUserName":"Ada","otherUserId":2,"unreadCount":3,"jobTitle":"Go dev"}]`))
	})

	rooms, err := c.ChatRooms(context.Background())
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, int64(7), rooms[0].MatchID)
	assert.Equal(t, "Ada", rooms[0].OtherUserName)
	assert.Equal(t, int64(3), rooms[0].UnreadCount)
}

func TestSendMessage(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/chats/3/messages", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body["content"])
		_, _ = w.Write([]byte(`{"id":99,"content":"hello","status":"SENT"}`))
	})

	m, err := c.SendMessage(context.Background(), 3, "hello")
	require.NoError(t, err)
	assert.Equal(t, int64(99), m.ID)
	assert.Equal(t, models.StatusSent, m.Status)
}

func TestNotificationEndpoints(t *testing.T) {
	var calls []string
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/api/notifications":
			_, _ = w.Write([]byte(`[{"id":1,"type":"MATCH","read":false}]`))
		case "/api/notifications/unread-count":
			_, _ = w.Write([]byte(`{"count":4}`))
		default:
			w.WriteHeader(http.StatusOK)
		}
	})
	ctx := context.Background()

	list, err := c.Notifications(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := c.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.NoError(t, c.MarkNotificationRead(ctx, 5))
	require.NoError(t, c.MarkAllNotificationsRead(ctx))
	require.NoError(t, c.MarkRoomRead(ctx, 8))

	assert.Equal(t, []string{
		"GET /api/notifications",
		"GET /api/notifications/unread-count",
		"PUT /api/notifications/5/read",
		"PUT /api/notifications/read-all",
		"PUT /api/chats/8/read",
	}, calls)
}

func TestSwipe(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		switch r.URL.Path {
		case "/api/swipes/job":
			assert.Equal(t, float64(11), body["jobId"])
			assert.Equal(t, "RIGHT", body["direction"])
			_, _ = w.Write([]byte(`{"success":true,"isMatch":true}`))
		case "/api/swipes/applicant":
			assert.Equal(t, float64(12), body["applicationId"])
			_, _ = w.Write([]byte(`{"success":true,"isMatch":false}`))
		}
	})

	res, err := c.SwipeJob(context.Background(), 11, models.SwipeRight)
	require.NoError(t, err)
	assert.True(t, res.IsMatch)

	res, err = c.SwipeApplicant(context.Background(), 12, models.SwipeLeft)
	require.NoError(t, err)
	assert.False(t, res.IsMatch)
}

func TestErrorsAreClassified(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/chats/404":
			http.NotFound(w, r)
		case "/api/notifications":
			w.WriteHeader(http.StatusUnauthorized)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	_, err := c.ChatRoom(context.Background(), 404)
	assert.ErrorIs(t, err, svcErr.ErrFetch)
	assert.ErrorIs(t, err, svcErr.ErrNotFound)

	_, err = c.SendMessage(context.Background(), 1, "x")
	assert.ErrorIs(t, err, svcErr.ErrSend)
	assert.NotErrorIs(t, err, svcErr.ErrNotFound)

	_, err = c.Notifications(context.Background())
	assert.ErrorIs(t, err, svcErr.ErrFetch)
	assert.ErrorIs(t, err, svcErr.ErrAuthRejected)
}
