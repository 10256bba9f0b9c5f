package feed

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oggyb/jobswipe/internal/cache"
	"github.com/oggyb/jobswipe/internal/db"
	"github.com/oggyb/jobswipe/internal/logger"
	"github.com/oggyb/jobswipe/internal/models"
	"github.com/oggyb/jobswipe/internal/repository"
)

type fakeClient struct {
	mu        sync.Mutex
	list      []models.Notification
	count     int64
	gate      chan struct{}
	listErr   error
	markErr   error
	marked    []int64
	markedAll int
}

func (c *fakeClient) Notifications(ctx context.Context) ([]models.Notification, error) {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listErr != nil {
		return nil, c.listErr
	}
	return append([]models.Notification(nil), c.list...), nil
}

func (c *fakeClient) UnreadCount(context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count, nil
}

func (c *fakeClient) MarkNotificationRead(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markErr != nil {
		return c.markErr
	}
	c.marked = append(c.marked, id)
	return nil
}

func (c *fakeClient) MarkAllNotificationsRead(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.markErr != nil {
		return c.markErr
	}
	c.markedAll++
	return nil
}

func (c *fakeClient) setMarkErr(err error) {
	c.mu.Lock()
	c.markErr = err
	c.mu.Unlock()
}

func note(id int64, read bool) models.Notification {
	return models.Notification{ID: id, Type: models.NotificationMatch, Title: "Match", Message: "new", Read: read}
}

func ids(ns []models.Notification) []int64 {
	out := make([]int64, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func TestBootstrapDerivesUnread(t *testing.T) {
	c := &fakeClient{list: []models.Notification{note(3, false), note(2, true), note(1, false)}, count: 5}
	f := New(c, 1, WithLogger(logger.Discard()))

	require.NoError(t, f.Bootstrap(context.Background()))
	snap := f.Snapshot()
	assert.Equal(t, []int64{3, 2, 1}, ids(snap.Notifications))
	assert.Equal(t, int64(2), snap.UnreadCount)
	assert.Equal(t, "2", snap.Badge)
}

func TestPushBeforeBootstrapResolves(t *testing.T) {
	c := &fakeClient{
		list:  []models.Notification{note(42, false), note(7, true)},
		count: 1,
		gate:  make(chan struct{}),
	}
	f := New(c, 1, WithLogger(logger.Discard()))

	done := make(chan error)
	go func() { done <- f.Bootstrap(context.Background()) }()
	require.Eventually(t, func() bool { return f.Snapshot().Refreshing }, time.Second, 5*time.Millisecond)

	assert.True(t, f.OnPush(note(42, false)))
	assert.Equal(t, int64(1), f.UnreadCount())

	close(c.gate)
	require.NoError(t, <-done)

	snap := f.Snapshot()
	assert.Equal(t, []int64{42, 7}, ids(snap.Notifications))
	assert.Equal(t, int64(1), snap.UnreadCount)
}

func TestPushNotInSnapshotSurvivesRefresh(t *testing.T) {
	c := &fakeClient{list: []models.Notification{note(1, false)}, count: 1}
	f := New(c, 1, WithLogger(logger.Discard()))

	f.OnPush(note(2, false))
	require.NoError(t, f.Bootstrap(context.Background()))

	snap := f.Snapshot()
	assert.Equal(t, []int64{2, 1}, ids(snap.Notifications))
	assert.Equal(t, int64(2), snap.UnreadCount)
}

func TestOnPushDedupesAndToasts(t *testing.T) {
	var toasts []string
	f := New(&fakeClient{}, 1, WithLogger(logger.Discard()), WithToast(func(s string) { toasts = append(toasts, s) }))

	assert.True(t, f.OnPush(note(1, false)))
	assert.False(t, f.OnPush(note(1, false)))
	assert.Equal(t, int64(1), f.UnreadCount())
	assert.Equal(t, []string{"Match: new"}, toasts)
}

func TestMarkReadNeverNegative(t *testing.T) {
	c := &fakeClient{list: []models.Notification{note(1, false), note(2, true)}}
	f := New(c, 1, WithLogger(logger.Discard()))
	require.NoError(t, f.Bootstrap(context.Background()))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, f.MarkRead(ctx, 1))
		require.NoError(t, f.MarkRead(ctx, 2))
		require.NoError(t, f.MarkRead(ctx, 99))
		assert.GreaterOrEqual(t, f.UnreadCount(), int64(0))
	}
	assert.Zero(t, f.UnreadCount())
	assert.Equal(t, []int64{1}, c.marked, "only unread notifications are confirmed")
}

func TestMarkReadDuringRefreshIsReapplied(t *testing.T) {
	c := &fakeClient{list: []models.Notification{note(1, false), note(2, false)}}
	f := New(c, 1, WithLogger(logger.Discard()))
	require.NoError(t, f.Bootstrap(context.Background()))

	c.gate = make(chan struct{})
	done := make(chan error)
	go func() { done <- f.Open(context.Background()) }()
	require.Eventually(t, func() bool { return f.Snapshot().Refreshing }, time.Second, 5*time.Millisecond)

	require.NoError(t, f.MarkRead(context.Background(), 1))
	close(c.gate)
	require.NoError(t, <-done)

	snap := f.Snapshot()
	assert.True(t, snap.Notifications[0].Read)
	assert.Equal(t, int64(1), snap.UnreadCount)
}

func TestMarkAllRead(t *testing.T) {
	c := &fakeClient{list: []models.Notification{note(1, false), note(2, false)}}
	f := New(c, 1, WithLogger(logger.Discard()))
	require.NoError(t, f.Bootstrap(context.Background()))

	require.NoError(t, f.MarkAllRead(context.Background()))
	assert.Zero(t, f.UnreadCount())
	assert.Equal(t, 1, c.markedAll)

	// a push after the mark is still unread
	f.OnPush(note(3, false))
	assert.Equal(t, int64(1), f.UnreadCount())
}

func TestRefreshFailureKeepsState(t *testing.T) {
	c := &fakeClient{list: []models.Notification{note(1, false)}}
	f := New(c, 1, WithLogger(logger.Discard()))
	require.NoError(t, f.Bootstrap(context.Background()))

	c.listErr = errors.New("down")
	require.Error(t, f.Open(context.Background()))
	assert.Equal(t, []int64{1}, ids(f.Snapshot().Notifications))
	assert.False(t, f.Snapshot().Refreshing)
}

func TestFailedConfirmationRetriedOnOpen(t *testing.T) {
	database, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "outbox.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(database))
	outbox := repository.NewOutboxRepository(database)

	c := &fakeClient{list: []models.Notification{note(1, false), note(2, false)}}
	f := New(c, 1, WithLogger(logger.Discard()), WithOutbox(outbox))
	require.NoError(t, f.Bootstrap(context.Background()))

	c.setMarkErr(errors.New("503"))
	assert.Error(t, f.MarkRead(context.Background(), 1))
	assert.Equal(t, int64(1), f.UnreadCount(), "no rollback")

	n, err := outbox.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	c.setMarkErr(nil)
	require.NoError(t, f.Open(context.Background()))
	assert.Equal(t, []int64{1}, c.marked)

	n, err = outbox.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMirror(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := &cache.RedisCache{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	require.NoError(t, rc.UpdateUnreadCount(context.Background(), 9, 4))

	c := &fakeClient{list: []models.Notification{note(1, false)}, gate: make(chan struct{})}
	f := New(c, 9, WithLogger(logger.Discard()), WithMirror(rc))

	done := make(chan error)
	go func() { done <- f.Bootstrap(context.Background()) }()
	require.Eventually(t, func() bool { return f.UnreadCount() == 4 }, time.Second, 5*time.Millisecond)

	close(c.gate)
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), f.UnreadCount())

	n, ok, err := rc.GetUnreadCount(context.Background(), 9)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), n)
}

func TestMirrorPrimeDroppedWhenBootstrapFails(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := &cache.RedisCache{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	require.NoError(t, rc.UpdateUnreadCount(context.Background(), 9, 4))

	c := &fakeClient{listErr: errors.New("down"), gate: make(chan struct{})}
	f := New(c, 9, WithLogger(logger.Discard()), WithMirror(rc))

	done := make(chan error)
	go func() { done <- f.Bootstrap(context.Background()) }()
	require.Eventually(t, func() bool { return f.UnreadCount() == 4 }, time.Second, 5*time.Millisecond)
	f.OnPush(note(7, false))

	close(c.gate)
	require.Error(t, <-done)
	snap := f.Snapshot()
	assert.Equal(t, []int64{7}, ids(snap.Notifications))
	assert.Equal(t, int64(1), f.UnreadCount())
}

func TestRoute(t *testing.T) {
	tests := []struct {
		n    models.Notification
		want string
		ok   bool
	}{
		{models.Notification{Type: models.NotificationMatch}, "/seeker/matches", true},
		{models.Notification{Type: models.NotificationMessage, RelatedID: 4}, "/chat/room/4", true},
		{models.Notification{Type: models.NotificationApplication, RelatedID: 8}, "/company/applicants/8", true},
		{models.Notification{Type: models.NotificationApplicationStatus}, "/seeker/applications", true},
		{models.Notification{Type: models.NotificationProfileView}, "/seeker/views", true},
		{models.Notification{Type: "SOMETHING_ELSE"}, "", false},
	}
	for _, tt := range tests {
		got, ok := Route(tt.n)
		assert.Equal(t, tt.ok, ok, tt.n.Type)
		assert.Equal(t, tt.want, got, tt.n.Type)
	}
}

func TestBadgeLabel(t *testing.T) {
	assert.Equal(t, "", BadgeLabel(0))
	assert.Equal(t, "1", BadgeLabel(1))
	assert.Equal(t, "9", BadgeLabel(9))
	assert.Equal(t, "9+", BadgeLabel(10))
}

func TestAge(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "Just now", Age(now.Add(-30*time.Second), now))
	assert.Equal(t, "5m ago", Age(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", Age(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", Age(now.Add(-49*time.Hour), now))
	assert.Equal(t, "", Age(time.Time{}, now))
}
