package state

import (
	"log"
)

// removedStroke is an undone stroke kept for redo.
type removedStroke struct {
	info   StrokeInfo
	points []Point
	active float64
}

type history struct {
	redo []removedStroke
}

func (h *history) push(s removedStroke) {
	h.redo = append(h.redo, s)
}

func (h *history) pop() (removedStroke, bool) {
	if len(h.redo) == 0 {
		return removedStroke{}, false
	}
	s := h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	return s, true
}

// truncate drops redo entries once a new stroke is drawn.
func (h *history) truncate() {
	h.redo = nil
}

func (h *history) reset() {
	h.redo = nil
}

// Undo removes the last stroke and re-derives the letters. It returns false
// when there is nothing to undo or a stroke is in progress.
func (r *Recorder) Undo() bool {
	r.mu.Lock()
	if r.dragging || len(r.strokes) == 0 {
		r.mu.Unlock()
		return false
	}
	last := r.strokes[len(r.strokes)-1]
	removed := removedStroke{
		info:   last,
		points: clonePoints(r.points[last.Start:]),
		active: r.active,
	}
	r.history.push(removed)
	r.points = r.points[:last.Start]
	r.strokes = r.strokes[:len(r.strokes)-1]
	r.active = 0
	if n := len(r.points); n > 0 {
		r.active = r.points[n-1].T
	}
	r.rebuildLocked()
	r.version++
	data := r.dataLocked()
	r.mu.Unlock()

	log.Printf("[RECORDER] Undo stroke with %d points", len(removed.points))
	r.notify(data)
	return true
}

// Redo restores the most recently undone stroke.
func (r *Recorder) Redo() bool {
	r.mu.Lock()
	if r.dragging {
		r.mu.Unlock()
		return false
	}
	s, ok := r.history.pop()
	if !ok {
		r.mu.Unlock()
		return false
	}
	s.info.Start = len(r.points)
	r.strokes = append(r.strokes, s.info)
	r.points = append(r.points, s.points...)
	if s.active > r.active {
		r.active = s.active
	}
	r.rebuildLocked()
	r.version++
	data := r.dataLocked()
	r.mu.Unlock()

	log.Printf("[RECORDER] Redo stroke with %d points", len(s.points))
	r.notify(data)
	return true
}

// CanUndo reports whether a stroke can be undone.
func (r *Recorder) CanUndo() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.dragging && len(r.strokes) > 0
}

// CanRedo reports whether an undone stroke is available.
func (r *Recorder) CanRedo() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history.redo) > 0
}
