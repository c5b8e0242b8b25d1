// Package editor is the frame editor shared by the desktop app and the HTTP
// server: one drawing session, its playback, background and exports.
package editor

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"Storyboard/internal/export"
	"Storyboard/internal/generate"
	"Storyboard/internal/linedraw"
	"Storyboard/internal/render"
	"Storyboard/internal/state"
	"Storyboard/internal/store"
)

// Control limits, matching the editor sliders.
const (
	MinFontSize  = 6.0
	MaxFontSize  = 72.0
	MinThickness = 1.0
	MaxThickness = 10.0
)

var (
	ErrDrawingMode     = errors.New("turn off drawing mode to play")
	ErrNothingToPlay   = errors.New("draw something before playing")
	ErrNothingToExport = errors.New("nothing drawn to export")
	ErrNotImage        = errors.New("please upload an image file")
	ErrClosed          = errors.New("editor closed")
)

// Layout selects which controls a front end shows.
type Layout string

const (
	LayoutFull    Layout = "full"
	LayoutCompact Layout = "compact"
	LayoutMinimal Layout = "minimal"
)

// Config parameterizes one editor variant.
type Config struct {
	FrameID          string
	Theme            string
	ShowDebugOverlay bool
	AvailableFonts   []string
	ControlLayout    Layout

	Width         int
	Height        int
	SpacingFactor float64
	Detail        linedraw.Detail
	Image         generate.Request
}

// Deps are the collaborators an editor calls. Any of Images, Lines and
// Dialogue may be nil; the matching operations then fail or are skipped.
type Deps struct {
	Repo     store.Repository
	Fonts    *render.FontCatalog
	Exporter *export.Exporter
	Images   generate.ImageGenerator
	Lines    linedraw.Processor
	Dialogue generate.DialogueGenerator
	Now      func() time.Time
	// OnChange runs after every session mutation, once it is persisted.
	OnChange func(state.DrawingData)
}

// Editor owns one frame's drawing session.
type Editor struct {
	cfg  Config
	deps Deps

	rec      *state.Recorder
	play     *state.Playback
	renderer *render.Renderer

	mu          sync.Mutex
	style       state.Style
	drawingMode bool
	bg          render.Background

	exporting atomic.Bool
	closed    atomic.Bool
	commands  chan Command
	wg        sync.WaitGroup
}

// New opens frame cfg.FrameID from the repository, or starts it empty.
func New(cfg Config, deps Deps) *Editor {
	if cfg.ControlLayout == "" {
		cfg.ControlLayout = LayoutFull
	}
	if cfg.Detail == "" {
		cfg.Detail = linedraw.DetailMedium
	}
	if len(cfg.AvailableFonts) == 0 && deps.Fonts != nil {
		cfg.AvailableFonts = deps.Fonts.Names()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	e := &Editor{
		cfg:      cfg,
		deps:     deps,
		play:     state.NewPlayback(deps.Now),
		renderer: render.New(render.Options{Width: cfg.Width, Height: cfg.Height, Fonts: deps.Fonts}),
		style:    state.DefaultStyle(),
		commands: make(chan Command),
	}
	e.style.Font = render.DefaultFont
	e.rec = state.NewRecorder(state.RecorderOptions{
		SpacingFactor: cfg.SpacingFactor,
		Now:           deps.Now,
		OnChange:      e.persist,
	})
	e.rec.SetEnabled(false)
	e.load()
	return e
}

func (e *Editor) load() {
	if e.deps.Repo == nil {
		return
	}
	f, err := e.deps.Repo.Get(e.cfg.FrameID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		log.Printf("[EDITOR] Load frame %s: %v", e.cfg.FrameID, err)
		return
	}
	e.style.Text = f.CharacterDialogue
	if f.DrawingData != nil {
		e.rec.Load(*f.DrawingData, e.style)
	}
	var orig, processed = decodeBackground(f.ImageData), decodeBackground(f.LineDrawing)
	e.bg.Original = orig
	e.bg.Processed = processed
	e.renderer.SetBackground(e.bg)
	log.Printf("[EDITOR] Opened frame %s with %d points", e.cfg.FrameID, len(e.rec.Snapshot().Points))
}

// Config returns the editor variant.
func (e *Editor) Config() Config {
	return e.cfg
}

// FrameID is the frame this editor writes to.
func (e *Editor) FrameID() string {
	return e.cfg.FrameID
}

// Recorder exposes the drawing session.
func (e *Editor) Recorder() *state.Recorder {
	return e.rec
}

// Renderer exposes the renderer, for sizing by the front end.
func (e *Editor) Renderer() *render.Renderer {
	return e.renderer
}

// update writes patch to the frame. A closed editor writes nothing, so a
// deleted frame stays deleted.
func (e *Editor) update(patch store.FramePatch) (store.Frame, error) {
	if e.deps.Repo == nil {
		return store.Frame{}, errors.New("no frame repository")
	}
	if e.closed.Load() {
		return store.Frame{}, ErrClosed
	}
	return e.deps.Repo.Update(e.cfg.FrameID, patch)
}

func (e *Editor) persist(data state.DrawingData) {
	if e.closed.Load() {
		return
	}
	if e.deps.Repo != nil {
		if _, err := e.update(store.FramePatch{DrawingData: &data}); err != nil {
			log.Printf("[EDITOR] Persist drawing for %s: %v", e.cfg.FrameID, err)
		}
	}
	if e.deps.OnChange != nil {
		e.deps.OnChange(data)
	}
}

// PointerDown starts a stroke with the current style. It is ignored outside
// drawing mode and off the canvas.
func (e *Editor) PointerDown(x, y float64) {
	e.mu.Lock()
	on, style := e.drawingMode, e.style
	e.mu.Unlock()
	if !on || !e.canvas().Contains(x, y) {
		return
	}
	e.rec.PointerDown(x, y, style)
}

func (e *Editor) canvas() state.Rect {
	w, h := e.renderer.Size()
	return state.Rect{Width: float64(w), Height: float64(h)}
}

// PointerMove extends the current stroke.
func (e *Editor) PointerMove(x, y float64) {
	e.rec.PointerMove(x, y)
}

// PointerUp ends the current stroke.
func (e *Editor) PointerUp() {
	e.rec.PointerUp()
}

// SetDrawingMode switches pointer capture. Turning it on stops playback;
// turning it off flushes any stroke in progress.
func (e *Editor) SetDrawingMode(on bool) {
	e.mu.Lock()
	e.drawingMode = on
	e.mu.Unlock()
	if on {
		e.play.Stop()
	}
	e.rec.SetEnabled(on)
}

// DrawingMode reports whether pointer events are recorded.
func (e *Editor) DrawingMode() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drawingMode
}

// TogglePlay starts or stops playback and reports whether it is now playing.
func (e *Editor) TogglePlay() (bool, error) {
	if e.play.Playing() {
		e.play.Stop()
		return false, nil
	}
	if e.DrawingMode() {
		return false, ErrDrawingMode
	}
	if len(e.rec.Snapshot().Points) < 2 {
		return false, ErrNothingToPlay
	}
	e.play.Start()
	return true, nil
}

// Playing reports whether playback runs.
func (e *Editor) Playing() bool {
	return e.play.Playing()
}

// SetSpeed sets the playback multiplier and returns the clamped value.
func (e *Editor) SetSpeed(speed float64) float64 {
	return e.play.SetSpeed(speed)
}

// Speed returns the playback multiplier.
func (e *Editor) Speed() float64 {
	return e.play.Speed()
}

// Style returns the style new strokes will use.
func (e *Editor) Style() state.Style {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.style
}

// SetStyle bounds s to the slider ranges and applies it to future strokes.
// Existing letters keep the style they were drawn with.
func (e *Editor) SetStyle(s state.Style) state.Style {
	s.FontSize = clamp(s.FontSize, MinFontSize, MaxFontSize)
	s.Thickness = clamp(s.Thickness, MinThickness, MaxThickness)
	if s.Color == "" {
		s.Color = "#000000"
	}
	if s.Border == "" {
		s.Border = "#ffffff"
	}
	if s.Font == "" || (e.deps.Fonts != nil && !e.deps.Fonts.Has(s.Font)) {
		s.Font = render.DefaultFont
	}
	e.mu.Lock()
	textChanged := s.Text != e.style.Text
	e.style = s
	e.mu.Unlock()
	if textChanged {
		e.saveText(s.Text)
	}
	return s
}

// SetText changes the drawing text and stores it as the frame's dialogue.
func (e *Editor) SetText(text string) {
	e.mu.Lock()
	changed := e.style.Text != text
	e.style.Text = text
	e.mu.Unlock()
	if changed {
		e.saveText(text)
	}
}

func (e *Editor) saveText(text string) {
	if e.deps.Repo == nil {
		return
	}
	if _, err := e.update(store.FramePatch{CharacterDialogue: &text}); err != nil {
		log.Printf("[EDITOR] Save text for %s: %v", e.cfg.FrameID, err)
	}
}

// Fields are the frame's free-text inputs. Nil fields are unchanged.
type Fields struct {
	SceneDescription *string
	VisualPrompt     *string
	Sequence         *string
}

// SetFields stores the frame's text inputs.
func (e *Editor) SetFields(f Fields) (store.Frame, error) {
	return e.update(store.FramePatch{
		SceneDescription: f.SceneDescription,
		VisualPrompt:     f.VisualPrompt,
		Sequence:         f.Sequence,
	})
}

// SetShowBackground hides or shows the background image.
func (e *Editor) SetShowBackground(show bool) {
	e.mu.Lock()
	e.bg.Hidden = !show
	bg := e.bg
	e.mu.Unlock()
	e.renderer.SetBackground(bg)
}

// SetUseProcessed switches between the original and line-drawing images.
func (e *Editor) SetUseProcessed(use bool) {
	e.mu.Lock()
	e.bg.UseProcessed = use
	bg := e.bg
	e.mu.Unlock()
	e.renderer.SetBackground(bg)
}

// Background returns the background layer state.
func (e *Editor) Background() render.Background {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bg
}

// Close ends any stroke and stops playback, e.g. before switching frames.
// The open stroke is saved; after that the editor no longer writes to the
// repository.
func (e *Editor) Close() {
	e.play.Stop()
	e.SetDrawingMode(false)
	e.closed.Store(true)
}

func clamp(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
