package state

import (
	"log"
	"sync"
	"time"
)

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	SpacingFactor float64
	Now           func() time.Time
	// OnChange is called after every mutation with the persisted form of the
	// session. It runs without the recorder lock held.
	OnChange func(DrawingData)
}

// Recorder captures pointer events into a drawing session and derives its
// letters. All methods are safe for concurrent use; events are applied in
// the order the lock is acquired.
type Recorder struct {
	mu       sync.RWMutex
	now      func() time.Time
	onChange func(DrawingData)

	placer   *Placer
	points   []Point
	letters  []Letter
	strokes  []StrokeInfo
	start    *time.Time
	active   float64
	version  uint64
	style    Style
	dragging bool
	enabled  bool
	last     time.Time

	history history
}

// NewRecorder returns an empty recorder with drawing enabled.
func NewRecorder(opts RecorderOptions) *Recorder {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		now:      now,
		onChange: opts.OnChange,
		placer:   NewPlacer(opts.SpacingFactor),
		enabled:  true,
		style:    DefaultStyle(),
	}
}

// SpacingFactor returns the placer's spacing factor.
func (r *Recorder) SpacingFactor() float64 {
	return r.placer.SpacingFactor()
}

// PointerDown starts a stroke at (x, y) drawn with style.
func (r *Recorder) PointerDown(x, y float64, style Style) {
	r.mu.Lock()
	if !r.enabled {
		r.mu.Unlock()
		return
	}
	now := r.now()
	if len(r.points) == 0 {
		start := now
		r.start = &start
		r.active = 0
		r.letters = nil
		r.strokes = nil
		r.placer.Reset()
	}
	r.dragging = true
	r.last = now
	r.style = style
	r.history.truncate()

	r.strokes = append(r.strokes, StrokeInfo{Start: len(r.points), Style: style})
	r.appendLocked(Point{X: x, Y: y, T: r.active, IsNewSegment: true})
	data := r.dataLocked()
	r.mu.Unlock()

	r.notify(data)
}

// PointerMove extends the active stroke. It is a no-op when not dragging.
func (r *Recorder) PointerMove(x, y float64) {
	r.mu.Lock()
	if !r.dragging || !r.enabled {
		r.mu.Unlock()
		return
	}
	now := r.now()
	if dt := now.Sub(r.last).Seconds(); dt > 0 {
		r.active += dt
	}
	r.last = now
	r.appendLocked(Point{X: x, Y: y, T: r.active})
	data := r.dataLocked()
	r.mu.Unlock()

	r.notify(data)
}

// PointerUp ends the active stroke without appending a point.
func (r *Recorder) PointerUp() {
	r.mu.Lock()
	if !r.dragging {
		r.mu.Unlock()
		return
	}
	r.dragging = false
	r.version++
	data := r.dataLocked()
	r.mu.Unlock()

	r.notify(data)
}

// SetEnabled toggles drawing. Disabling ends any stroke in progress; points
// already appended are kept.
func (r *Recorder) SetEnabled(enabled bool) {
	r.mu.Lock()
	r.enabled = enabled
	flushed := false
	if !enabled && r.dragging {
		r.dragging = false
		r.version++
		flushed = true
	}
	data := r.dataLocked()
	r.mu.Unlock()

	if flushed {
		log.Printf("[RECORDER] Stroke flushed, drawing disabled")
		r.notify(data)
	}
}

// Enabled reports whether pointer events are accepted.
func (r *Recorder) Enabled() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled
}

// Dragging reports whether a stroke is in progress.
func (r *Recorder) Dragging() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dragging
}

// Clear drops all points, letters and accumulators in one step.
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.points = nil
	r.letters = nil
	r.strokes = nil
	r.start = nil
	r.active = 0
	r.dragging = false
	r.placer.Reset()
	r.history.reset()
	r.version++
	data := r.dataLocked()
	r.mu.Unlock()

	log.Printf("[RECORDER] Session cleared")
	r.notify(data)
}

// Load replaces the session with persisted data. Letters missing from data
// are re-derived from its points; strokes saved without a style use fallback.
func (r *Recorder) Load(data DrawingData, fallback Style) {
	r.mu.Lock()
	r.style = fallback
	r.points = clonePoints(data.Points)
	r.strokes = cloneStrokes(data.Strokes)
	if len(r.strokes) == 0 {
		r.strokes = strokesFromPoints(r.points, fallback)
	}
	r.start = data.StartTime
	r.active = data.ActiveDrawingTime
	if n := len(r.points); n > 0 && r.points[n-1].T > r.active {
		r.active = r.points[n-1].T
	}
	r.dragging = false
	r.history.reset()
	r.rebuildLocked()
	if len(data.Letters) > 0 {
		r.letters = cloneLetters(data.Letters)
	}
	if data.Version > r.version {
		r.version = data.Version
	}
	r.version++
	r.mu.Unlock()
}

// Snapshot returns an immutable copy of the session.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		Points:    clonePoints(r.points),
		Letters:   cloneLetters(r.letters),
		StartTime: r.start,
		Duration:  r.active,
		Drawing:   r.dragging,
		Version:   r.version,
	}
}

// Data returns the persisted form of the session.
func (r *Recorder) Data() DrawingData {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dataLocked()
}

// Duration returns the active drawing time in seconds.
func (r *Recorder) Duration() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Version returns the mutation counter.
func (r *Recorder) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func (r *Recorder) appendLocked(pt Point) {
	r.points = append(r.points, pt)
	if l, ok := r.placer.Place(pt, r.style); ok {
		r.letters = append(r.letters, l)
	}
	r.version++
}

// rebuildLocked re-derives letters and placer state from the current points.
func (r *Recorder) rebuildLocked() {
	r.letters, r.style = r.placer.replay(r.points, r.strokes, r.style)
}

func (r *Recorder) dataLocked() DrawingData {
	return DrawingData{
		Points:            clonePoints(r.points),
		Strokes:           cloneStrokes(r.strokes),
		Letters:           cloneLetters(r.letters),
		StartTime:         r.start,
		ActiveDrawingTime: r.active,
		Version:           r.version,
	}
}

func (r *Recorder) notify(data DrawingData) {
	if r.onChange != nil {
		r.onChange(data)
	}
}

// strokesFromPoints rebuilds stroke boundaries for data saved without them.
func strokesFromPoints(points []Point, style Style) []StrokeInfo {
	var out []StrokeInfo
	for i, p := range points {
		if p.IsNewSegment || i == 0 {
			out = append(out, StrokeInfo{Start: i, Style: style})
		}
	}
	return out
}
