// Package models holds the wire shapes exchanged with the JobSwipe API server,
// both over REST and over the live STOMP channel.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// MessageStatus is the delivery state of a chat message. Transitions are
// monotonic: SENT -> DELIVERED -> READ.
type MessageStatus string

const (
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
)

// Rank orders statuses so callers can refuse regressions.
func (s MessageStatus) Rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Message is a single chat message in a room.
type Message struct {
	ID         int64         `json:"id"`
	ChatRoomID int64         `json:"chatRoomId"`
	SenderID   int64         `json:"senderId"`
	SenderName string        `json:"senderName,omitempty"`
	Content    string        `json:"content"`
	Status     MessageStatus `json:"status"`
	CreatedAt  Timestamp     `json:"createdAt"`
	Own        bool          `json:"isOwn,omitempty"`
}

// Before reports whether m sorts ahead of o in a room timeline: creation time
// first, id as the tie breaker.
func (m Message) Before(o Message) bool {
	if !m.CreatedAt.Equal(o.CreatedAt.Time) {
		return m.CreatedAt.Before(o.CreatedAt.Time)
	}
	return m.ID < o.ID
}

// SendMessageRequest is the body published to /app/chat.send.
type SendMessageRequest struct {
	MatchID int64  `json:"matchId"`
	Content string `json:"content"`
}

// NotificationType selects the navigation target of a notification.
type NotificationType string

const (
	NotificationMatch             NotificationType = "MATCH"
	NotificationMessage           NotificationType = "MESSAGE"
	NotificationApplication       NotificationType = "APPLICATION"
	NotificationApplicationStatus NotificationType = "APPLICATION_STATUS"
	NotificationProfileView       NotificationType = "PROFILE_VIEW"
)

// Notification is one entry of the notification dropdown.
type Notification struct {
	ID        int64            `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	RelatedID int64            `json:"relatedId,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt Timestamp        `json:"createdAt"`
}

// UnreadCount is the body of GET /notifications/unread-count.
type UnreadCount struct {
	Count int64 `json:"count"`
}

// ChatRoom is the room metadata shown in the chat header and chat list.
type ChatRoom struct {
	ID              int64  `json:"id"`
	MatchID         int64  `json:"matchId"`
	OtherUserName   string `json:"otherUserName"`
	OtherUserID     int64  `json:"otherUserId"`
	LastMessage     string `json:"lastMessage,omitempty"`
	LastMessageTime string `json:"lastMessageTime,omitempty"`
	UnreadCount     int64  `json:"unreadCount"`
	JobTitle        string `json:"jobTitle,omitempty"`
}

// Presence is broadcast on /topic/presence when a user's first session
// connects or last session disconnects.
type Presence struct {
	UserID int64 `json:"userId"`
	Online bool  `json:"online"`
}

// SwipeDirection is the wire value of a swipe decision.
type SwipeDirection string

const (
	SwipeLeft  SwipeDirection = "LEFT"
	SwipeRight SwipeDirection = "RIGHT"
)

// SwipeResult is returned by the swipe endpoints.
type SwipeResult struct {
	Success bool   `json:"success"`
	IsMatch bool   `json:"isMatch"`
	Message string `json:"message,omitempty"`
}

// Page is a Spring-style page envelope. Content is ordered however the
// endpoint orders it; message pages come newest first.
type Page[T any] struct {
	Content []T  `json:"content"`
	Last    bool `json:"last"`
	Number  int  `json:"number"`
	Size    int  `json:"size"`
}

// Timestamp accepts both RFC 3339 values and the zone-less ISO local
// date-times the server emits for LocalDateTime fields (read as UTC).
type Timestamp struct {
	time.Time
}

var localLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

func (ts *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		ts.Time = time.Time{}
		return nil
	}
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognised value %q", s)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.UTC().Format(time.RFC3339Nano))
}
