// Package router classifies inbound frames by the topic they arrived on and
// hands them to typed channels, one per category.
package router

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	svcErr "github.com/oggyb/jobswipe/internal/errors"
	"github.com/oggyb/jobswipe/internal/logger"
	"github.com/oggyb/jobswipe/internal/metrics"
	"github.com/oggyb/jobswipe/internal/models"
	"github.com/oggyb/jobswipe/internal/realtime"
	"github.com/oggyb/jobswipe/internal/stomp"
)

// Category of an inbound event.
type Category string

const (
	CategoryChat         Category = "chat"
	CategoryPresence     Category = "presence"
	CategoryNotification Category = "notification"
)

// Event is a classified inbound payload. Exactly one of the pointers is set,
// matching Category.
type Event struct {
	Category     Category
	Topic        string
	Message      *models.Message
	Presence     *models.Presence
	Notification *models.Notification
}

// Classify maps a destination to its category. The topic alone decides;
// payload content is never consulted.
func Classify(topic string) (Category, bool) {
	switch {
	case strings.HasPrefix(topic, stomp.ChatTopicPrefix):
		return CategoryChat, true
	case topic == stomp.PresenceTopic:
		return CategoryPresence, true
	case strings.HasPrefix(topic, stomp.NotificationTopicPrefix):
		return CategoryNotification, true
	}
	return "", false
}

// Route decodes body according to the category of topic.
func Route(topic string, body []byte) (Event, error) {
	cat, ok := Classify(topic)
	if !ok {
		return Event{}, svcErr.Parse("route", fmt.Errorf("unknown topic %q", topic))
	}

	ev := Event{Category: cat, Topic: topic}
	var err error
	switch cat {
	case CategoryChat:
		ev.Message = &models.Message{}
		err = json.Unmarshal(body, ev.Message)
	case CategoryPresence:
		ev.Presence = &models.Presence{}
		err = json.Unmarshal(body, ev.Presence)
	case CategoryNotification:
		ev.Notification = &models.Notification{}
		err = json.Unmarshal(body, ev.Notification)
	}
	if err != nil {
		return Event{}, svcErr.Parse("route "+string(cat), err)
	}
	return ev, nil
}

// Subscriber is the part of a connection handle the router needs.
type Subscriber interface {
	Subscribe(topic string, handler realtime.Handler) (*realtime.Subscription, error)
}

// Router writes classified events to its channels. Delivery blocks while a
// channel is full so events are never dropped or reordered; Close releases
// any blocked delivery.
type Router struct {
	log     *slog.Logger
	metrics *metrics.Metrics

	chat          chan models.Message
	presence      chan models.Presence
	notifications chan models.Notification

	done      chan struct{}
	closeOnce sync.Once
}

// Option customises a Router.
type Option func(*Router)

func WithLogger(l *slog.Logger) Option { return func(r *Router) { r.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(r *Router) { r.metrics = m } }

// New builds a router whose channels hold buffer events each.
func New(buffer int, opts ...Option) *Router {
	r := &Router{
		chat:          make(chan models.Message, buffer),
		presence:      make(chan models.Presence, buffer),
		notifications: make(chan models.Notification, buffer),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Subsystem("router")
	}
	return r
}

func (r *Router) Chat() <-chan models.Message { return r.chat }
func (r *Router) Presence() <-chan models.Presence { return r.presence }
func (r *Router) Notifications() <-chan models.Notification { return r.notifications }

// Done is closed by Close.
func (r *Router) Done() <-chan struct{} { return r.done }

// Close stops delivery. Events arriving afterwards are discarded.
func (r *Router) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// Attach subscribes every topic on sub with this router as the handler.
func (r *Router) Attach(sub Subscriber, topics ...string) ([]*realtime.Subscription, error) {
	subs := make([]*realtime.Subscription, 0, len(topics))
	for _, topic := range topics {
		s, err := sub.Subscribe(topic, r.Handler(topic))
		if err != nil {
			for _, prev := range subs {
				prev.Unsubscribe()
			}
			return nil, fmt.Errorf("subscribe %s: %w", topic, err)
		}
		subs = append(subs, s)
	}
	return subs, nil
}

// Handler returns the frame handler for topic.
func (r *Router) Handler(topic string) realtime.Handler {
	return func(f *stomp.Frame) {
		r.Dispatch(topic, f.Body)
	}
}

// Dispatch routes one payload. A malformed payload is logged and dropped.
func (r *Router) Dispatch(topic string, body []byte) {
	ev, err := Route(topic, body)
	if err != nil {
		cat, _ := Classify(topic)
		r.metrics.RecordParseError(string(cat))
		r.log.Error("dropping inbound payload", "topic", topic, "error", err)
		return
	}
	r.metrics.RecordFrame(string(ev.Category))

	switch ev.Category {
	case CategoryChat:
		deliver(r.chat, *ev.Message, r.done)
	case CategoryPresence:
		deliver(r.presence, *ev.Presence, r.done)
	case CategoryNotification:
		deliver(r.notifications, *ev.Notification, r.done)
	}
}

func deliver[T any](ch chan T, v T, done <-chan struct{}) {
	select {
	case <-done:
		return
	default:
	}
	select {
	case ch <- v:
	case <-done:
	}
}
