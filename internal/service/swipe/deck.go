// Package swipe runs a deck of cards through the swipe engine and sends
// each decision to the server without holding up the next card.
package swipe

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oggyb/jobswipe/internal/app"
	"github.com/oggyb/jobswipe/internal/db"
	"github.com/oggyb/jobswipe/internal/models"
	"github.com/oggyb/jobswipe/internal/service/outbox"
	engine "github.com/oggyb/jobswipe/internal/swipe"
)

// Mode selects what the deck holds.
type Mode string

const (
	// Jobs is the seeker's deck.
	Jobs Mode = "jobs"
	// Applicants is the company's deck.
	Applicants Mode = "applicants"
)

func (m Mode) outboxKind() string {
	if m == Applicants {
		return db.KindSwipeApplicant
	}
	return db.KindSwipeJob
}

// Outcome of one decision once the server answered.
type Outcome string

const (
	Applied Outcome = "applied"
	Matched Outcome = "matched"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// Card is one candidate: a job for seekers, an application for companies.
type Card struct {
	ID    int64
	Title string
}

// Result reports the server's answer for a card.
type Result struct {
	Card      Card
	Direction models.SwipeDirection
	Outcome   Outcome
	Message   string
	Err       error
}

// Deck is safe for concurrent use.
type Deck struct {
	appCtx *app.AppContext
	log    *slog.Logger
	mode   Mode
	engine *engine.Engine

	mu      sync.Mutex
	cards   []Card
	index   int
	closed  bool
	results chan Result
	pending sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

// Option customises a Deck.
type Option func(*deckOptions)

type deckOptions struct {
	engine []engine.Option
}

// WithEngineOptions passes options to the underlying engine.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(o *deckOptions) { o.engine = append(o.engine, opts...) }
}

// NewDeck builds a deck over cards. Results are delivered on Results, one
// per committed card.
func NewDeck(appCtx *app.AppContext, mode Mode, cards []Card, opts ...Option) *Deck {
	var o deckOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Deck{
		appCtx:  appCtx,
		log:     appCtx.Logger.With("subsystem", "swipe", "mode", string(mode)),
		mode:    mode,
		cards:   append([]Card(nil), cards...),
		results: make(chan Result, len(cards)),
		ctx:     ctx,
		cancel:  cancel,
	}
	d.engine = engine.New(engine.Handlers{
		OnSwipeLeft:  func() { d.decide(models.SwipeLeft) },
		OnSwipeRight: func() { d.decide(models.SwipeRight) },
	}, o.engine...)
	if len(d.cards) == 0 {
		d.engine.SetDisabled(true)
	}
	return d
}

// Engine exposes the pointer interface of the top card.
func (d *Deck) Engine() *engine.Engine { return d.engine }

// Swipe is the button path for the top card.
func (d *Deck) Swipe(dir models.SwipeDirection) bool {
	return d.engine.Commit(engine.Direction(dir))
}

// Current returns the top card. ok is false once the deck is exhausted.
func (d *Deck) Current() (card Card, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.index >= len(d.cards) {
		return Card{}, false
	}
	return d.cards[d.index], true
}

// Remaining counts the cards not yet decided.
func (d *Deck) Remaining() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.cards) - d.index
}

// Results delivers one Result per decided card.
func (d *Deck) Results() <-chan Result { return d.results }

// decide runs inside the engine's commit handler: the card advances before
// the engine accepts the next drag, the server call runs in the background.
func (d *Deck) decide(dir models.SwipeDirection) {
	d.mu.Lock()
	if d.closed || d.index >= len(d.cards) {
		d.mu.Unlock()
		return
	}
	card := d.cards[d.index]
	d.index++
	if d.index == len(d.cards) {
		d.engine.SetDisabled(true)
	}
	d.pending.Add(1)
	d.mu.Unlock()

	go d.submit(card, dir)
}

func (d *Deck) submit(card Card, dir models.SwipeDirection) {
	defer d.pending.Done()

	ctx := d.ctx
	if timeout := d.appCtx.Config.API.Timeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var (
		res models.SwipeResult
		err error
	)
	switch d.mode {
	case Applicants:
		res, err = d.appCtx.API.SwipeApplicant(ctx, card.ID, dir)
	default:
		res, err = d.appCtx.API.SwipeJob(ctx, card.ID, dir)
	}

	r := Result{Card: card, Direction: dir, Message: res.Message, Err: err}
	switch {
	case err != nil:
		r.Outcome = Failed
		d.log.Warn("swipe not confirmed", "card", card.ID, "direction", dir, "error", err)
		if rerr := d.appCtx.Outbox.Record(context.WithoutCancel(ctx), d.mode.outboxKind(), card.ID, string(dir), err); rerr != nil {
			d.log.Error("outbox write failed", "card", card.ID, "error", rerr)
		}
	case dir == models.SwipeLeft:
		r.Outcome = Skipped
	case res.IsMatch:
		r.Outcome = Matched
		d.log.Info("match", "card", card.ID, "title", card.Title)
	default:
		r.Outcome = Applied
	}
	d.appCtx.Metrics.RecordSwipe(string(r.Outcome))
	d.results <- r
}

// Replay re-sends the decisions of this deck's kind that were never
// confirmed.
func (d *Deck) Replay(ctx context.Context) (outbox.Summary, error) {
	return outbox.Replay(ctx, d.appCtx, d.mode.outboxKind())
}

// Close stops the engine, waits for in-flight decisions and closes Results.
func (d *Deck) Close() {
	d.once.Do(func() {
		d.engine.Close()
		d.mu.Lock()
		d.closed = true
		d.mu.Unlock()
		d.pending.Wait()
		d.cancel()
		close(d.results)
	})
}
