package ui

import (
	"context"
	"image"
	"log"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"Storyboard/internal/editor"
	"Storyboard/internal/render"
)

const frameInterval = time.Second / 60

// EditorWidget shows the editor's live canvas and forwards pointer input to
// it. Positions are mapped from widget space into canvas pixels.
type EditorWidget struct {
	widget.BaseWidget
	ed *editor.Editor

	mu       sync.Mutex
	last     *image.RGBA
	version  uint64
	dragging bool

	statusBar *widget.Label
	// OnStatus, if set, receives status text instead of the built-in label.
	OnStatus func(string)
}

var _ fyne.Widget = (*EditorWidget)(nil)
var _ fyne.Draggable = (*EditorWidget)(nil)
var _ desktop.Mouseable = (*EditorWidget)(nil)

// NewEditorWidget wraps ed.
func NewEditorWidget(ed *editor.Editor) *EditorWidget {
	w := &EditorWidget{
		ed:        ed,
		statusBar: widget.NewLabel("Ready"),
	}
	w.ExtendBaseWidget(w)
	return w
}

// Editor returns the wrapped editor.
func (w *EditorWidget) Editor() *editor.Editor {
	return w.ed
}

// StatusBar is the label SetStatus writes to.
func (w *EditorWidget) StatusBar() *widget.Label {
	return w.statusBar
}

// SetStatus updates the status text from any goroutine.
func (w *EditorWidget) SetStatus(text string) {
	if w.OnStatus != nil {
		w.OnStatus(text)
		return
	}
	fyne.Do(func() { w.statusBar.SetText(text) })
}

// canvasPos converts a widget position to canvas coordinates. ok is false
// outside the letterboxed canvas.
func (w *EditorWidget) canvasPos(p fyne.Position) (x, y float64, ok bool) {
	cw, ch := w.ed.Renderer().Size()
	size := w.Size()
	r := render.FitRect(cw, ch, int(size.Width), int(size.Height))
	if r.Empty() {
		return 0, 0, false
	}
	x = (float64(p.X) - r.X) * float64(cw) / r.Width
	y = (float64(p.Y) - r.Y) * float64(ch) / r.Height
	ok = x >= 0 && y >= 0 && x <= float64(cw) && y <= float64(ch)
	return x, y, ok
}

func (w *EditorWidget) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary || !w.ed.DrawingMode() {
		return
	}
	x, y, ok := w.canvasPos(e.Position)
	if !ok {
		return
	}
	w.mu.Lock()
	w.dragging = true
	w.mu.Unlock()
	w.ed.PointerDown(x, y)
	w.Refresh()
}

func (w *EditorWidget) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	w.endStroke()
}

func (w *EditorWidget) Dragged(e *fyne.DragEvent) {
	w.mu.Lock()
	dragging := w.dragging
	w.mu.Unlock()
	if !dragging {
		return
	}
	x, y, _ := w.canvasPos(e.Position)
	w.ed.PointerMove(x, y)
	w.Refresh()
}

func (w *EditorWidget) DragEnd() {
	w.endStroke()
}

// MouseOut ends the stroke when the pointer leaves the canvas.
func (w *EditorWidget) MouseOut() {
	w.endStroke()
}

func (w *EditorWidget) MouseIn(*desktop.MouseEvent)    {}
func (w *EditorWidget) MouseMoved(*desktop.MouseEvent) {}

func (w *EditorWidget) endStroke() {
	w.mu.Lock()
	was := w.dragging
	w.dragging = false
	w.mu.Unlock()
	if was {
		w.ed.PointerUp()
		w.Refresh()
	}
}

// Animate refreshes the canvas at display rate while playback runs or the
// session changes, until ctx ends.
func (w *EditorWidget) Animate(ctx context.Context) {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.needsFrame() {
				fyne.Do(w.Refresh)
			}
		}
	}
}

func (w *EditorWidget) needsFrame() bool {
	if w.ed.Playing() || w.ed.Config().ShowDebugOverlay {
		return true
	}
	v := w.ed.Recorder().Version()
	drag := w.ed.Recorder().Dragging()
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := v != w.version
	w.version = v
	return changed || drag
}

// frame produces the image for the raster. While an export owns the
// renderer the previous frame is shown again.
func (w *EditorWidget) frame(_, _ int) image.Image {
	img, ok := w.ed.RenderLive()
	w.mu.Lock()
	defer w.mu.Unlock()
	if ok {
		w.last = img
	}
	if w.last == nil {
		cw, ch := w.ed.Renderer().Size()
		w.last = image.NewRGBA(image.Rect(0, 0, cw, ch))
	}
	return w.last
}

func (w *EditorWidget) CreateRenderer() fyne.WidgetRenderer {
	log.Printf("[UI] Editor canvas ready for %s", w.ed.FrameID())
	return newEditorWidgetRenderer(w)
}
