package client

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/vovakirdan/boardsync/internal/board"
)

// CaptureState is the lifecycle of the stroke under the pointer.
type CaptureState int

const (
	Idle CaptureState = iota
	Drawing
	Committed
)

func (s CaptureState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case Committed:
		return "committed"
	default:
		return "unknown"
	}
}

const (
	// DefaultBatchSize is the number of buffered points that triggers a send.
	DefaultBatchSize = 20
	// DefaultSendInterval throttles sends for one stroke.
	DefaultSendInterval = 30 * time.Millisecond
)

// Emitter accepts outgoing events without blocking the input path.
type Emitter interface {
	Emit(ev board.Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev board.Event)

func (f EmitterFunc) Emit(ev board.Event) { f(ev) }

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	BatchSize    int
	SendInterval time.Duration
	Color        string
	StrokeWidth  float64
	Mode         board.StrokeMode
	Clock        clock.Clock
	NewID        func() string
	// Canvas receives the local render. Optional.
	Canvas *Canvas
	// OnStart is told the id of each stroke this recorder begins. Optional.
	OnStart func(id string)
}

// Recorder turns pointer input into batched stroke events.
// Points are rounded to integers before they leave the recorder.
type Recorder struct {
	mu       sync.Mutex
	opts     RecorderOptions
	emit     Emitter
	state    CaptureState
	stroke   board.Stroke
	buffer   []board.Point
	lastSend time.Time
}

// NewRecorder constructs an idle recorder.
func NewRecorder(emit Emitter, opts RecorderOptions) *Recorder {
	if opts.BatchSize <= 1 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.SendInterval <= 0 {
		opts.SendInterval = DefaultSendInterval
	}
	if opts.Color == "" {
		opts.Color = board.DefaultColor
	}
	if opts.StrokeWidth <= 0 {
		opts.StrokeWidth = board.DefaultStrokeWidth
	}
	if opts.Mode == "" {
		opts.Mode = board.ModeDraw
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Recorder{opts: opts, emit: emit}
}

// State returns the current capture state.
func (r *Recorder) State() CaptureState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SetStyle changes the style used by the next stroke.
func (r *Recorder) SetStyle(color string, width float64, mode board.StrokeMode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if color != "" {
		r.opts.Color = color
	}
	if width > 0 {
		r.opts.StrokeWidth = width
	}
	if mode != "" {
		r.opts.Mode = mode
	}
}

func round(x, y float64) board.Point {
	return board.Point{X: math.Round(x), Y: math.Round(y)}
}

// Down starts a stroke and returns its id. A stroke still in progress is committed first.
func (r *Recorder) Down(x, y float64) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Drawing {
		r.finishLocked()
	}

	p := round(x, y)
	r.state = Drawing
	r.stroke = board.Stroke{
		ID:          r.opts.NewID(),
		Points:      []board.Point{p},
		Color:       r.opts.Color,
		StrokeWidth: r.opts.StrokeWidth,
		Mode:        r.opts.Mode,
	}
	r.buffer = []board.Point{p}
	r.lastSend = r.opts.Clock.Now()

	if r.opts.OnStart != nil {
		r.opts.OnStart(r.stroke.ID)
	}
	if r.opts.Canvas != nil {
		r.opts.Canvas.DrawActive(r.stroke, r.stroke.Points)
	}
	start := r.stroke.Clone()
	r.emit.Emit(board.StrokeStart{Stroke: start})
	return r.stroke.ID
}

// Move extends the current stroke. It is ignored unless drawing.
func (r *Recorder) Move(x, y float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Drawing {
		return
	}
	p := round(x, y)
	last := r.stroke.Points[len(r.stroke.Points)-1]
	if p == last {
		return
	}
	r.stroke.Points = append(r.stroke.Points, p)
	r.buffer = append(r.buffer, p)
	if r.opts.Canvas != nil {
		r.opts.Canvas.DrawActive(r.stroke, []board.Point{last, p})
	}

	if len(r.buffer) >= r.opts.BatchSize {
		r.sendLocked(false)
	}
}

// Tick flushes a buffered segment once the throttle window has passed.
func (r *Recorder) Tick() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Drawing && len(r.buffer) > 1 {
		r.sendLocked(false)
	}
}

// Up completes the stroke.
func (r *Recorder) Up() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == Drawing {
		r.finishLocked()
	}
}

// Cancel completes the stroke like Up. Points already sent cannot be recalled,
// so the partial stroke is committed rather than dropped.
func (r *Recorder) Cancel() {
	r.Up()
}

// Run calls Tick at the send interval until ctx is done.
func (r *Recorder) Run(ctx context.Context) {
	ticker := r.opts.Clock.Ticker(r.opts.SendInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Tick()
		}
	}
}

// sendLocked emits the buffered segment unless throttled. The buffer keeps the
// last point so the next segment joins this one.
func (r *Recorder) sendLocked(final bool) {
	now := r.opts.Clock.Now()
	if !final && now.Sub(r.lastSend) < r.opts.SendInterval {
		return
	}
	segment := make([]board.Point, len(r.buffer))
	copy(segment, r.buffer)

	r.emit.Emit(board.StrokeUpdate{
		StrokeID: r.stroke.ID,
		Points:   segment,
		Append:   true,
		Final:    final,
	})
	r.lastSend = now
	r.buffer = r.buffer[:0]
	r.buffer = append(r.buffer, segment[len(segment)-1])
}

func (r *Recorder) finishLocked() {
	r.sendLocked(true)
	r.state = Committed
	if r.opts.Canvas != nil {
		r.opts.Canvas.Commit()
	}
	r.buffer = nil
}
