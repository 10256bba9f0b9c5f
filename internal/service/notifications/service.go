// Package notifications drives the notification dropdown of the signed-in
// user: the live push channel feeding the feed, plus the panel actions.
package notifications

import (
	"context"
	"log/slog"
	"strconv"
	"sync"

	"github.com/oggyb/jobswipe/internal/app"
	"github.com/oggyb/jobswipe/internal/feed"
	"github.com/oggyb/jobswipe/internal/models"
	"github.com/oggyb/jobswipe/internal/realtime"
	"github.com/oggyb/jobswipe/internal/router"
	"github.com/oggyb/jobswipe/internal/stomp"
)

// Owner is the connection owner name of the dropdown.
const Owner = "notifications"

// Service owns the notification connection and feed of one user.
type Service struct {
	appCtx *app.AppContext
	log    *slog.Logger
	userID int64
	feed   *feed.Feed

	onPush func(models.Notification)
	toast  func(string)

	handle   *realtime.Handle
	router   *router.Router
	consumer sync.WaitGroup
}

// Option customises a Service.
type Option func(*Service)

// WithPushHook is called for every new pushed notification.
func WithPushHook(fn func(models.Notification)) Option {
	return func(s *Service) { s.onPush = fn }
}

// WithToast forwards the toast text of every push.
func WithToast(fn func(string)) Option {
	return func(s *Service) { s.toast = fn }
}

// Start opens the live channel for the signed-in user and loads the
// initial list and count. A failed initial load is logged; the live
// channel stays up and the next Open retries.
func Start(ctx context.Context, appCtx *app.AppContext, opts ...Option) (*Service, error) {
	userID, err := appCtx.UserID()
	if err != nil {
		return nil, err
	}

	s := &Service{
		appCtx: appCtx,
		log:    appCtx.Logger.With("subsystem", "notifications", "user", userID),
		userID: userID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.feed = feed.New(appCtx.API, userID, s.feedOptions()...)

	h, err := appCtx.Realtime.Open(context.WithoutCancel(ctx), realtime.Options{
		Owner: Owner,
		Scope: strconv.FormatInt(userID, 10),
	})
	if err != nil {
		return nil, err
	}
	s.handle = h
	s.router = router.New(32, router.WithLogger(s.log), router.WithMetrics(appCtx.Metrics))
	if _, err := s.router.Attach(h, stomp.NotificationTopic(userID)); err != nil {
		s.router.Close()
		h.Close()
		return nil, err
	}

	s.consumer.Add(1)
	go s.consume()

	if err := s.feed.Bootstrap(ctx); err != nil {
		s.log.Warn("initial notification load failed", "error", err)
	}
	return s, nil
}

func (s *Service) feedOptions() []feed.Option {
	opts := []feed.Option{
		feed.WithLogger(s.log),
		feed.WithOutbox(s.appCtx.Outbox),
	}
	if s.appCtx.RedisCache != nil {
		opts = append(opts, feed.WithMirror(s.appCtx.RedisCache))
	}
	if s.toast != nil {
		opts = append(opts, feed.WithToast(s.toast))
	}
	return opts
}

func (s *Service) consume() {
	defer s.consumer.Done()
	for {
		select {
		case <-s.router.Done():
			return
		case n := <-s.router.Notifications():
			if s.feed.OnPush(n) && s.onPush != nil {
				s.onPush(n)
			}
		}
	}
}

// Open refreshes the list as the dropdown opens, retrying confirmations
// that failed earlier.
func (s *Service) Open(ctx context.Context) error {
	err := s.feed.Open(ctx)
	if n, cerr := s.appCtx.Outbox.Count(ctx); cerr == nil {
		s.appCtx.Metrics.SetOutboxPending(n)
	}
	return err
}

// MarkRead marks one notification as read.
func (s *Service) MarkRead(ctx context.Context, id int64) error {
	return s.feed.MarkRead(ctx, id)
}

// MarkAllRead marks every listed notification as read.
func (s *Service) MarkAllRead(ctx context.Context) error {
	return s.feed.MarkAllRead(ctx)
}

// Click marks n read when needed and returns where the UI should navigate.
// ok is false for types without a destination.
func (s *Service) Click(ctx context.Context, n models.Notification) (path string, ok bool, err error) {
	if !n.Read {
		err = s.feed.MarkRead(ctx, n.ID)
	}
	path, ok = feed.Route(n)
	return path, ok, err
}

// UnreadCount is the badge value.
func (s *Service) UnreadCount() int64 { return s.feed.UnreadCount() }

// Snapshot returns the list and badge for rendering.
func (s *Service) Snapshot() feed.Snapshot { return s.feed.Snapshot() }

// UserID returns the user the service was started for.
func (s *Service) UserID() int64 { return s.userID }

// Handle returns the live connection.
func (s *Service) Handle() *realtime.Handle { return s.handle }

// Close releases the connection and stops the push consumer.
func (s *Service) Close() {
	s.router.Close()
	s.handle.Close()
	s.consumer.Wait()
}
