// Package api is the REST side of the JobSwipe server: message history,
// chat rooms, notifications and swipe decisions.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/carlmjohnson/requests"

	"github.com/oggyb/jobswipe/internal/auth"
	"github.com/oggyb/jobswipe/internal/config"
	svcErr "github.com/oggyb/jobswipe/internal/errors"
	"github.com/oggyb/jobswipe/internal/models"
)

// Client calls the REST API with the bearer token of creds.
type Client struct {
	base  string
	http  *http.Client
	creds auth.CredentialSource
}

// New builds a client for baseURL. A nil httpClient uses a client with no
// timeout.
func New(baseURL string, creds auth.CredentialSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		base:  strings.TrimSuffix(baseURL, "/") + "/",
		http:  httpClient,
		creds: creds,
	}
}

// NewFromConfig builds a client from the API section of cfg.
func NewFromConfig(cfg *config.Config, creds auth.CredentialSource) *Client {
	return New(cfg.API.BaseURL, creds, &http.Client{Timeout: cfg.API.Timeout})
}

func (c *Client) request(path string) *requests.Builder {
	rb := requests.URL(c.base).
		Client(c.http).
		Path(strings.TrimPrefix(path, "/")).
		Accept("application/json")
	if token := c.token(); token != "" {
		rb = rb.Bearer(token)
	}
	return rb
}

func (c *Client) token() string {
	if c.creds == nil {
		return ""
	}
	return c.creds.Token()
}

// classify adds the error kind; a 404 becomes ErrNotFound as well and a
// 401/403 ErrAuthRejected.
func classify(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case requests.HasStatusErr(err, http.StatusNotFound):
		err = fmt.Errorf("%w: %w", svcErr.ErrNotFound, err)
	case requests.HasStatusErr(err, http.StatusUnauthorized, http.StatusForbidden):
		err = fmt.Errorf("%w: %w", svcErr.ErrAuthRejected, err)
	}
	return svcErr.Wrap(kind, op, err)
}

// FetchMessages returns one page of a room's history, newest first.
func (c *Client) FetchMessages(ctx context.Context, matchID int64, page, size int) (models.Page[models.Message], error) {
	var out models.Page[models.Message]
	err := c.request(fmt.Sprintf("chats/%d/messages", matchID)).
		Param("page", strconv.Itoa(page)).
		Param("size", strconv.Itoa(size)).
		ToJSON(&out).
		Fetch(ctx)
	return out, classify(svcErr.ErrFetch, "fetch messages", err)
}

// ChatRoom returns the metadata of the room of matchID.
func (c *Client) ChatRoom(ctx context.Context, matchID int64) (models.ChatRoom, error) {
	var out models.ChatRoom
	err := c.request(fmt.Sprintf("chats/%d", matchID)).
		ToJSON(&out).
		Fetch(ctx)
	return out, classify(svcErr.ErrFetch, "fetch chat room", err)
}

// ChatRooms lists the rooms of the current user.
func (c *Client) ChatRooms(ctx context.Context) ([]models.ChatRoom, error) {
	var out []models.ChatRoom
	err := c.request("chats").
		ToJSON(&out).
		Fetch(ctx)
	return out, classify(svcErr.ErrFetch, "fetch chat rooms", err)
}

// SendMessage stores a message through REST and returns it.
func (c *Client) SendMessage(ctx context.Context, matchID int64, content string) (models.Message, error) {
	var out models.Message
	err := c.request(fmt.Sprintf("chats/%d/messages", matchID)).
		BodyJSON(map[string]string{"content": content}).
		ToJSON(&out).
		Fetch(ctx)
	return out, classify(svcErr.ErrSend, "send message", err)
}

// MarkRoomRead marks every message of the room as read by the current user.
func (c *Client) MarkRoomRead(ctx context.Context, matchID int64) error {
	err := c.request(fmt.Sprintf("chats/%d/read", matchID)).
		Put().
		Fetch(ctx)
	return classify(svcErr.ErrSend, "mark room read", err)
}

// Notifications lists the notifications of the current user, newest first.
func (c *Client) Notifications(ctx context.Context) ([]models.Notification, error) {
	var out []models.Notification
	err := c.request("notifications").
		ToJSON(&out).
		Fetch(ctx)
	return out, classify(svcErr.ErrFetch, "fetch notifications", err)
}

// UnreadCount returns the server-side unread notification count.
func (c *Client) UnreadCount(ctx context.Context) (int64, error) {
	var out models.UnreadCount
	err := c.request("notifications/unread-count").
		ToJSON(&out).
		Fetch(ctx)
	return out.Count, classify(svcErr.ErrFetch, "fetch unread count", err)
}

// MarkNotificationRead marks one notification as read.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	err := c.request(fmt.Sprintf("notifications/%d/read", id)).
		Put().
		Fetch(ctx)
	return classify(svcErr.ErrSend, "mark notification read", err)
}

// MarkAllNotificationsRead marks every notification as read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	err := c.request("notifications/read-all").
		Put().
		Fetch(ctx)
	return classify(svcErr.ErrSend, "mark all notifications read", err)
}

// SwipeJob records a seeker's decision on a job.
func (c *Client) SwipeJob(ctx context.Context, jobID int64, dir models.SwipeDirection) (models.SwipeResult, error) {
	var out models.SwipeResult
	err := c.request("swipes/job").
		BodyJSON(map[string]any{"jobId": jobID, "direction": dir}).
		ToJSON(&out).
		Fetch(ctx)
	return out, classify(svcErr.ErrSend, "swipe job", err)
}

// SwipeApplicant records a company's decision on an application.
func (c *Client) SwipeApplicant(ctx context.Context, applicationID int64, dir models.SwipeDirection) (models.SwipeResult, error) {
	var out models.SwipeResult
	err := c.request("swipes/applicant").
		BodyJSON(map[string]any{"applicationId": applicationID, "direction": dir}).
		ToJSON(&out).
		Fetch(ctx)
	return out, classify(svcErr.ErrSend, "swipe applicant", err)
}
