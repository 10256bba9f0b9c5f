// Package timeline merges paginated history and live pushes of one chat room
// into a single ascending, de-duplicated message list.
package timeline

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/oggyb/jobswipe/internal/logger"
	"github.com/oggyb/jobswipe/internal/models"
)

// MessageFetcher returns one page of a room's history, newest first.
type MessageFetcher interface {
	FetchMessages(ctx context.Context, matchID int64, page, size int) (models.Page[models.Message], error)
}

// Snapshot is a copy of the timeline state for rendering.
type Snapshot struct {
	Room        int64
	Messages    []models.Message
	HasMore     bool
	LoadingMore bool
	Cursor      int
}

// Timeline is safe for concurrent use.
type Timeline struct {
	fetcher  MessageFetcher
	pageSize int
	log      *slog.Logger

	mu       sync.Mutex
	room     int64
	gen      uint64
	messages []models.Message
	ids      map[int64]struct{}
	cursor   int
	hasMore  bool
	loading  bool
}

// New builds an empty timeline. Call SwitchRoom before loading.
func New(fetcher MessageFetcher, pageSize int, log *slog.Logger) *Timeline {
	if pageSize <= 0 {
		pageSize = 20
	}
	if log == nil {
		log = logger.Subsystem("timeline")
	}
	return &Timeline{
		fetcher:  fetcher,
		pageSize: pageSize,
		log:      log,
		ids:      make(map[int64]struct{}),
		hasMore:  true,
	}
}

// SwitchRoom clears the timeline for room. Loads still in flight for the
// previous room are discarded when they complete.
func (t *Timeline) SwitchRoom(room int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.room = room
	t.gen++
	t.messages = nil
	t.ids = make(map[int64]struct{})
	t.cursor = 0
	t.hasMore = true
	t.loading = false
}

// Room returns the active room.
func (t *Timeline) Room() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.room
}

// LoadPage fetches page cursor of room and returns its messages oldest
// first. It does not touch the timeline.
func (t *Timeline) LoadPage(ctx context.Context, room int64, cursor int) (models.Page[models.Message], error) {
	page, err := t.fetcher.FetchMessages(ctx, room, cursor, t.pageSize)
	if err != nil {
		return page, err
	}
	slices.Reverse(page.Content)
	return page, nil
}

// LoadOlder loads the next older page into the timeline. It is a no-op once
// the last page was seen or while another load is running. The returned
// bool reports whether messages were merged.
func (t *Timeline) LoadOlder(ctx context.Context) (bool, error) {
	t.mu.Lock()
	if !t.hasMore || t.loading {
		t.mu.Unlock()
		return false, nil
	}
	room, gen, cursor := t.room, t.gen, t.cursor
	t.loading = true
	t.mu.Unlock()

	page, err := t.LoadPage(ctx, room, cursor)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		t.log.Debug("discarding page of previous room", "room", room, "page", cursor)
		return false, nil
	}
	t.loading = false
	if err != nil {
		return false, err
	}

	t.prependLocked(page.Content)
	t.cursor++
	t.hasMore = !page.Last
	return true, nil
}

// Prepend merges older messages into the timeline, dropping ids already
// held. The caller restores the scroll offset with ScrollTopAfterPrepend.
func (t *Timeline) Prepend(msgs []models.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prependLocked(msgs)
}

func (t *Timeline) prependLocked(msgs []models.Message) {
	fresh := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if _, ok := t.ids[m.ID]; ok {
			continue
		}
		t.ids[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return
	}
	t.messages = append(fresh, t.messages...)
	slices.SortStableFunc(t.messages, compare)
}

// Append adds a live or locally sent message at its place in the timeline,
// normally the tail. A known id is a no-op and returns false.
func (t *Timeline) Append(m models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.appendLocked(m)
}

// AppendIn appends m only while room is still the active room.
func (t *Timeline) AppendIn(room int64, m models.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.room != room {
		return false
	}
	return t.appendLocked(m)
}

func (t *Timeline) appendLocked(m models.Message) bool {
	if _, ok := t.ids[m.ID]; ok {
		return false
	}
	t.ids[m.ID] = struct{}{}

	i := len(t.messages)
	for i > 0 && m.Before(t.messages[i-1]) {
		i--
	}
	t.messages = slices.Insert(t.messages, i, m)
	return true
}

// UpdateStatus promotes the status of message id. Regressions are ignored.
func (t *Timeline) UpdateStatus(id int64, status models.MessageStatus) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.messages {
		if t.messages[i].ID != id {
			continue
		}
		if status.Rank() <= t.messages[i].Status.Rank() {
			return false
		}
		t.messages[i].Status = status
		return true
	}
	return false
}

// MarkRead promotes every message not sent by self to READ and returns how
// many changed.
func (t *Timeline) MarkRead(self int64) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for i := range t.messages {
		m := &t.messages[i]
		if m.SenderID == self || m.Status == models.StatusRead {
			continue
		}
		m.Status = models.StatusRead
		n++
	}
	return n
}

// Snapshot returns a copy of the current state.
func (t *Timeline) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		Room:        t.room,
		Messages:    slices.Clone(t.messages),
		HasMore:     t.hasMore,
		LoadingMore: t.loading,
		Cursor:      t.cursor,
	}
}

// ScrollTopAfterPrepend keeps the message the user was looking at in place:
// capture the scroll height before a prepend, pass both heights after it.
func ScrollTopAfterPrepend(oldScrollHeight, newScrollHeight int) int {
	return newScrollHeight - oldScrollHeight
}

func compare(a, b models.Message) int {
	switch {
	case a.Before(b):
		return -1
	case b.Before(a):
		return 1
	}
	return 0
}
