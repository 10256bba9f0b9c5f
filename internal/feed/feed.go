// Package feed keeps the notification list and unread badge of one user,
// merging REST snapshots with live pushes.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oggyb/jobswipe/internal/db"
	"github.com/oggyb/jobswipe/internal/logger"
	"github.com/oggyb/jobswipe/internal/models"
)

// Client is the REST surface the feed reads and confirms through.
type Client interface {
	Notifications(ctx context.Context) ([]models.Notification, error)
	UnreadCount(ctx context.Context) (int64, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context) error
}

// Mirror persists the badge count between runs.
type Mirror interface {
	UpdateUnreadCount(ctx context.Context, userID int64, count int64) error
	GetUnreadCount(ctx context.Context, userID int64) (int64, bool, error)
}

// Outbox keeps confirmations that failed.
type Outbox interface {
	Record(ctx context.Context, kind string, targetID int64, direction string, cause error) error
	All(ctx context.Context, kinds ...string) ([]db.PendingAction, error)
	Delete(ctx context.Context, kind string, targetID int64) error
}

// Snapshot is a copy of the feed for rendering.
type Snapshot struct {
	Notifications []models.Notification
	UnreadCount   int64
	Badge         string
	Refreshing    bool
}

// Option customises a Feed.
type Option func(*Feed)

func WithMirror(m Mirror) Option { return func(f *Feed) { f.mirror = m } }
func WithOutbox(o Outbox) Option { return func(f *Feed) { f.outbox = o } }
func WithLogger(l *slog.Logger) Option { return func(f *Feed) { f.log = l } }

// WithToast receives "title: message" for every push.
func WithToast(fn func(string)) Option { return func(f *Feed) { f.toast = fn } }

// Feed is safe for concurrent use.
type Feed struct {
	client Client
	mirror Mirror
	outbox Outbox
	userID int64
	log    *slog.Logger
	toast  func(string)

	mu         sync.Mutex
	items      []models.Notification
	unread     int64
	epoch      uint64
	refreshing bool
	// Changes since the last reconciliation, re-applied to the next REST
	// snapshot whatever order the two complete in.
	pushed      []models.Notification
	locallyRead map[int64]struct{}
}

// New builds an empty feed for userID.
func New(client Client, userID int64, opts ...Option) *Feed {
	f := &Feed{client: client, userID: userID, locallyRead: make(map[int64]struct{})}
	for _, opt := range opts {
		opt(f)
	}
	if f.log == nil {
		f.log = logger.Subsystem("feed")
	}
	f.log = f.log.With("user", userID)
	return f
}

// Bootstrap primes the badge from the mirror, then loads the REST baseline.
// If REST fails the badge falls back to the unread items actually held.
func (f *Feed) Bootstrap(ctx context.Context) error {
	if f.mirror != nil {
		n, ok, err := f.mirror.GetUnreadCount(ctx, f.userID)
		if err != nil {
			f.log.Warn("unread mirror unavailable", "error", err)
		}
		if ok {
			f.mu.Lock()
			if len(f.items) == 0 {
				f.unread = n
			}
			f.mu.Unlock()
		}
	}
	return f.refresh(ctx)
}

// Open is called when the panel opens: failed read confirmations are retried,
// then count and list are fetched again to correct drift.
func (f *Feed) Open(ctx context.Context) error {
	f.flushOutbox(ctx)
	return f.refresh(ctx)
}

func (f *Feed) refresh(ctx context.Context) error {
	f.mu.Lock()
	f.epoch++
	epoch := f.epoch
	f.refreshing = true
	f.mu.Unlock()

	var (
		list  []models.Notification
		count int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		list, err = f.client.Notifications(gctx)
		return err
	})
	g.Go(func() (err error) {
		count, err = f.client.UnreadCount(gctx)
		return err
	})
	err := g.Wait()

	f.mu.Lock()
	if f.epoch != epoch {
		f.mu.Unlock()
		return err
	}
	f.refreshing = false
	if err != nil {
		// a badge primed from the mirror has no list behind it
		f.unread = countUnread(f.items)
		f.mu.Unlock()
		f.log.Warn("notification refresh failed", "error", err)
		return err
	}

	f.items = f.reconcileLocked(list)
	f.unread = countUnread(f.items)
	if f.unread != count {
		f.log.Debug("unread count drift", "server", count, "derived", f.unread)
	}
	unread := f.unread
	f.mu.Unlock()

	f.mirrorCount(unread)
	return nil
}

// reconcileLocked applies the pushes and marks recorded since the last
// reconciliation to a fresh REST list.
func (f *Feed) reconcileLocked(list []models.Notification) []models.Notification {
	seen := make(map[int64]struct{}, len(list))
	for _, n := range list {
		seen[n.ID] = struct{}{}
	}

	merged := make([]models.Notification, 0, len(list)+len(f.pushed))
	for i := len(f.pushed) - 1; i >= 0; i-- {
		n := f.pushed[i]
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		merged = append(merged, n)
	}
	merged = append(merged, list...)

	for i := range merged {
		if _, ok := f.locallyRead[merged[i].ID]; ok {
			merged[i].Read = true
		}
	}

	f.pushed = nil
	f.locallyRead = make(map[int64]struct{})
	return merged
}

// OnPush applies a live notification. A push for a known id is a no-op.
func (f *Feed) OnPush(n models.Notification) bool {
	f.mu.Lock()
	for _, have := range f.items {
		if have.ID == n.ID {
			f.mu.Unlock()
			return false
		}
	}
	f.items = append([]models.Notification{n}, f.items...)
	if !n.Read {
		f.unread++
	}
	f.pushed = append(f.pushed, n)
	unread := f.unread
	f.mu.Unlock()

	if f.toast != nil {
		f.toast(n.Title + ": " + n.Message)
	}
	f.mirrorCount(unread)
	return true
}

// MarkRead flips id to read and confirms with the server. The local change
// is never rolled back; a failed confirmation goes to the outbox and is
// retried by the next Open.
func (f *Feed) MarkRead(ctx context.Context, id int64) error {
	f.mu.Lock()
	changed := false
	for i := range f.items {
		if f.items[i].ID == id && !f.items[i].Read {
			f.items[i].Read = true
			changed = true
			break
		}
	}
	if changed {
		f.unread = max(0, f.unread-1)
	}
	f.locallyRead[id] = struct{}{}
	unread := f.unread
	f.mu.Unlock()

	if !changed {
		return nil
	}
	f.mirrorCount(unread)

	if err := f.client.MarkNotificationRead(ctx, id); err != nil {
		f.park(ctx, db.KindNotificationRead, id, err)
		return err
	}
	return nil
}

// MarkAllRead flips every notification to read and zeroes the badge.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	f.mu.Lock()
	for i := range f.items {
		f.items[i].Read = true
		f.locallyRead[f.items[i].ID] = struct{}{}
	}
	f.unread = 0
	f.mu.Unlock()

	f.mirrorCount(0)

	if err := f.client.MarkAllNotificationsRead(ctx); err != nil {
		f.park(ctx, db.KindNotificationReadAll, 0, err)
		return err
	}
	return nil
}

func (f *Feed) park(ctx context.Context, kind string, id int64, cause error) {
	f.log.Warn("read confirmation failed", "kind", kind, "id", id, "error", cause)
	if f.outbox == nil {
		return
	}
	if err := f.outbox.Record(context.WithoutCancel(ctx), kind, id, "", cause); err != nil {
		f.log.Error("failed to record pending read", "kind", kind, "id", id, "error", err)
	}
}

// flushOutbox re-sends pending read confirmations once.
func (f *Feed) flushOutbox(ctx context.Context) {
	if f.outbox == nil {
		return
	}
	pending, err := f.outbox.All(ctx, db.KindNotificationRead, db.KindNotificationReadAll)
	if err != nil {
		f.log.Error("failed to list pending reads", "error", err)
		return
	}
	for _, p := range pending {
		var err error
		if p.Kind == db.KindNotificationReadAll {
			err = f.client.MarkAllNotificationsRead(ctx)
		} else {
			err = f.client.MarkNotificationRead(ctx, p.TargetID)
		}
		if err != nil {
			f.park(ctx, p.Kind, p.TargetID, err)
			continue
		}
		if err := f.outbox.Delete(ctx, p.Kind, p.TargetID); err != nil {
			f.log.Error("failed to clear pending read", "kind", p.Kind, "id", p.TargetID, "error", err)
		}
	}
}

func (f *Feed) mirrorCount(n int64) {
	if f.mirror == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.mirror.UpdateUnreadCount(ctx, f.userID, n); err != nil {
		f.log.Debug("unread mirror update failed", "error", err)
	}
}

// UnreadCount returns the badge value.
func (f *Feed) UnreadCount() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// Snapshot returns a copy of the feed.
func (f *Feed) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Snapshot{
		Notifications: append([]models.Notification(nil), f.items...),
		UnreadCount:   f.unread,
		Badge:         BadgeLabel(f.unread),
		Refreshing:    f.refreshing,
	}
}

func countUnread(items []models.Notification) int64 {
	var n int64
	for _, it := range items {
		if !it.Read {
			n++
		}
	}
	return n
}

// Route returns the page a notification opens. Unknown types navigate
// nowhere.
func Route(n models.Notification) (string, bool) {
	switch n.Type {
	case models.NotificationMatch:
		return "/seeker/matches", true
	case models.NotificationMessage:
		return fmt.Sprintf("/chat/room/%d", n.RelatedID), true
	case models.NotificationApplication:
		return fmt.Sprintf("/company/applicants/%d", n.RelatedID), true
	case models.NotificationApplicationStatus:
		return "/seeker/applications", true
	case models.NotificationProfileView:
		return "/seeker/views", true
	}
	return "", false
}

// BadgeLabel renders the unread badge: nothing at zero, "9+" past nine.
func BadgeLabel(n int64) string {
	switch {
	case n <= 0:
		return ""
	case n > 9:
		return "9+"
	}
	return fmt.Sprint(n)
}

// Age renders how long ago t was, relative to now.
func Age(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "Just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}
