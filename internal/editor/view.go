package editor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"Storyboard/internal/export"
	"Storyboard/internal/render"
	"Storyboard/internal/state"
)

var renderIdle = render.Idle()

// RenderLive draws the on-screen frame. It reports false while an export
// owns the renderer; the caller keeps its previous frame.
func (e *Editor) RenderLive() (*image.RGBA, bool) {
	if e.exporting.Load() {
		return nil, false
	}
	snap := e.rec.Snapshot()
	var overlay []string
	if e.cfg.ShowDebugOverlay {
		overlay = e.DebugLines(snap)
	}
	return e.renderer.Render(snap, e.liveView(snap), overlay), true
}

func (e *Editor) liveView(snap state.Snapshot) render.View {
	if e.play.Playing() {
		return render.Playing(e.play.Position(snap.Duration))
	}
	if e.DrawingMode() {
		return render.Drawing()
	}
	return render.Idle()
}

// DebugLines describes the session for the debug overlay.
func (e *Editor) DebugLines(snap state.Snapshot) []string {
	w, h := e.renderer.Size()
	playing := e.play.Playing()
	lines := []string{
		fmt.Sprintf("Canvas Size: %dx%d", w, h),
		fmt.Sprintf("Points: %d", len(snap.Points)),
		fmt.Sprintf("Letters: %d", len(snap.Letters)),
		fmt.Sprintf("Drawing: %t", e.DrawingMode()),
		fmt.Sprintf("Playing: %t", playing),
		fmt.Sprintf("Recording: %t", e.exporting.Load()),
		fmt.Sprintf("Speed: %.1fx", e.play.Speed()),
		fmt.Sprintf("Duration: %.2fs", snap.Duration),
	}
	if playing {
		elapsed := e.play.Elapsed()
		pos := state.Position(elapsed, e.play.Speed(), snap.Duration)
		lines = append(lines, fmt.Sprintf("Time: %.2f/%.2fs (%s)",
			pos, snap.Duration, state.Direction(elapsed, e.play.Speed(), snap.Duration)))
	}
	return lines
}

// Exporting reports whether this editor's export is running.
func (e *Editor) Exporting() bool {
	return e.exporting.Load()
}

// Export records one forward-then-reverse cycle at the current speed.
// Playback stops first. While it runs RenderLive is suspended.
func (e *Editor) Export(ctx context.Context) (export.Result, error) {
	if e.deps.Exporter == nil {
		return export.Result{}, errors.New("no exporter configured")
	}
	snap := e.rec.Snapshot()
	if snap.Empty() {
		return export.Result{}, ErrNothingToExport
	}
	if !e.exporting.CompareAndSwap(false, true) {
		return export.Result{}, export.ErrBusy
	}
	defer e.exporting.Store(false)

	e.play.Stop()
	speed := e.play.Speed()
	log.Printf("[EDITOR] Exporting %s at %.1fx", e.cfg.FrameID, speed)
	res, err := e.deps.Exporter.Export(ctx, e.renderer, export.Request{Snapshot: snap, Speed: speed, Name: e.cfg.FrameID})
	if err != nil {
		log.Printf("[EDITOR] Export of %s failed: %v", e.cfg.FrameID, err)
		return res, err
	}
	log.Printf("[EDITOR] Exported %s: %d frames to %s", e.cfg.FrameID, res.Frames, res.Path)
	return res, nil
}

// Clear erases the drawing and stops playback.
func (e *Editor) Clear() {
	e.play.Stop()
	e.rec.Clear()
}

// Undo reverts the last stroke.
func (e *Editor) Undo() bool {
	return e.rec.Undo()
}

// Redo reapplies an undone stroke.
func (e *Editor) Redo() bool {
	return e.rec.Redo()
}
