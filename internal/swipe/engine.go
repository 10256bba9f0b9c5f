// Package swipe turns pointer input on a card into a LEFT or RIGHT decision.
//
// A card moves IDLE -> DRAGGING -> RETURNING or COMMITTING -> IDLE. A commit
// plays a fixed off-screen animation, then calls the direction's handler
// exactly once. The engine performs no I/O; the caller decides what a
// decision means and which card comes next.
package swipe

import (
	"sync"
	"time"

	"github.com/oggyb/jobswipe/internal/models"
)

// State of the card.
type State string

const (
	Idle       State = "IDLE"
	Dragging   State = "DRAGGING"
	Returning  State = "RETURNING"
	Committing State = "COMMITTING"
)

// Direction of a decision. None means no decision.
type Direction string

const (
	None  Direction = ""
	Left  Direction = Direction(models.SwipeLeft)
	Right Direction = Direction(models.SwipeRight)
)

// Geometry of the interaction, in pixels and degrees.
const (
	IndicatorThreshold = 50.0
	CommitThreshold    = 100.0
	RotationPerPixel   = 0.1
	OffscreenX         = 500.0
	OffscreenRotation  = 30.0

	DefaultAnimation = 300 * time.Millisecond
)

// Point is a pointer position or an offset.
type Point struct {
	X, Y float64
}

// Handlers are invoked once per committed card. Either may be nil.
type Handlers struct {
	OnSwipeLeft  func()
	OnSwipeRight func()
}

// Snapshot is what the card renders.
type Snapshot struct {
	State     State
	Offset    Point
	Rotation  float64
	Indicator Direction
	Committed Direction
	Disabled  bool
}

// Animating reports whether a commit animation is in flight.
func (s Snapshot) Animating() bool { return s.State == Committing }

// Option customises an Engine.
type Option func(*Engine)

// WithAnimation sets the duration of the commit and return animations.
func WithAnimation(d time.Duration) Option {
	return func(e *Engine) { e.animation = d }
}

// WithDisabled starts the engine disabled.
func WithDisabled(v bool) Option {
	return func(e *Engine) { e.disabled = v }
}

// Engine is safe for concurrent use. Handlers run on a timer goroutine.
type Engine struct {
	handlers  Handlers
	animation time.Duration

	mu        sync.Mutex
	state     State
	disabled  bool
	closed    bool
	start     Point
	offset    Point
	indicator Direction
	committed Direction
	timer     *time.Timer
	gen       uint64
}

// New builds an idle engine.
func New(h Handlers, opts ...Option) *Engine {
	e := &Engine{handlers: h, animation: DefaultAnimation, state: Idle}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetDisabled blocks or allows new drags and button commits. A commit
// already animating still completes.
func (e *Engine) SetDisabled(v bool) {
	e.mu.Lock()
	e.disabled = v
	e.mu.Unlock()
}

// PointerDown starts a drag. It is ignored while disabled or animating.
// A down during a drag that never saw its release restarts from p.
func (e *Engine) PointerDown(p Point) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.disabled || e.state == Committing {
		return false
	}
	e.stopTimerLocked()
	e.state = Dragging
	e.start = p
	e.offset = Point{}
	e.indicator = None
	return true
}

// PointerMove updates the drag offset and the advisory indicator.
func (e *Engine) PointerMove(p Point) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Dragging || e.disabled {
		return
	}
	e.offset = Point{X: p.X - e.start.X, Y: p.Y - e.start.Y}
	e.indicator = indicatorFor(e.offset.X)
}

// PointerUp ends the drag. Past the commit threshold the card commits in
// that direction, otherwise it returns to neutral and None is returned.
// A drag released while disabled always returns to neutral.
func (e *Engine) PointerUp() Direction {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Dragging {
		return None
	}
	if e.disabled {
		e.returnLocked()
		return None
	}

	switch dir := decisionFor(e.offset.X); dir {
	case None:
		e.returnLocked()
		return None
	default:
		e.commitLocked(dir)
		return dir
	}
}

// PointerLeave ends a drag the same way a release does.
func (e *Engine) PointerLeave() Direction {
	return e.PointerUp()
}

// Commit is the button path: it enters COMMITTING directly, honouring the
// same disabled and animating guards as a drag.
func (e *Engine) Commit(dir Direction) bool {
	if dir != Left && dir != Right {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.disabled || e.state == Committing {
		return false
	}
	e.stopTimerLocked()
	e.commitLocked(dir)
	return true
}

// Close suppresses any pending handler call. The engine accepts no more
// input afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.gen++
	e.stopTimerLocked()
}

// Snapshot returns the render state of the card.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{
		State:     e.state,
		Offset:    e.offset,
		Rotation:  e.offset.X * RotationPerPixel,
		Indicator: e.indicator,
		Committed: e.committed,
		Disabled:  e.disabled,
	}
	if e.state == Committing {
		sign := 1.0
		if e.committed == Left {
			sign = -1
		}
		s.Offset = Point{X: sign * OffscreenX}
		s.Rotation = sign * OffscreenRotation
	}
	return s
}

func (e *Engine) commitLocked(dir Direction) {
	e.state = Committing
	e.committed = dir
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(e.animation, func() { e.finishCommit(gen, dir) })
}

// finishCommit runs when the commit animation ends. The handler is called
// while the state is still COMMITTING, so no drag can start before it
// returns.
func (e *Engine) finishCommit(gen uint64, dir Direction) {
	e.mu.Lock()
	if e.gen != gen || e.closed {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	switch dir {
	case Left:
		if e.handlers.OnSwipeLeft != nil {
			e.handlers.OnSwipeLeft()
		}
	case Right:
		if e.handlers.OnSwipeRight != nil {
			e.handlers.OnSwipeRight()
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return
	}
	e.resetLocked()
}

func (e *Engine) returnLocked() {
	e.state = Returning
	e.offset = Point{}
	e.indicator = None
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(e.animation, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.gen == gen && e.state == Returning {
			e.resetLocked()
		}
	})
}

func (e *Engine) resetLocked() {
	e.state = Idle
	e.offset = Point{}
	e.indicator = None
	e.committed = None
	e.timer = nil
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func indicatorFor(x float64) Direction {
	switch {
	case x > IndicatorThreshold:
		return Right
	case x < -IndicatorThreshold:
		return Left
	}
	return None
}

func decisionFor(x float64) Direction {
	switch {
	case x > CommitThreshold:
		return Right
	case x < -CommitThreshold:
		return Left
	}
	return None
}
