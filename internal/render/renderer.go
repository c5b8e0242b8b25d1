// Package render rasterizes a drawing session over its background image.
package render

import (
	"image"
	"image/color"
	"math"
	"sync"

	"github.com/gogpu/gg"
	xdraw "golang.org/x/image/draw"

	"Storyboard/internal/state"
)

// Mode selects which letters a render pass shows.
type Mode int

const (
	ModeIdle Mode = iota
	ModeDrawing
	ModePlaying
	ModeExporting
)

func (m Mode) String() string {
	switch m {
	case ModeDrawing:
		return "drawing"
	case ModePlaying:
		return "playing"
	case ModeExporting:
		return "exporting"
	default:
		return "idle"
	}
}

// View is a render mode plus the playback time cutoff for timed modes.
type View struct {
	Mode Mode
	T    float64
}

func Idle() View {
	return View{Mode: ModeIdle}
}

func Drawing() View {
	return View{Mode: ModeDrawing}
}

func Playing(t float64) View {
	return View{Mode: ModePlaying, T: t}
}

func Exporting(t float64) View {
	return View{Mode: ModeExporting, T: t}
}

// Timed reports whether the view reveals letters up to T only.
func (v View) Timed() bool {
	return v.Mode == ModePlaying || v.Mode == ModeExporting
}

// VisibleLetters returns the letters a view shows. Untimed views show all.
func VisibleLetters(letters []state.Letter, v View) []state.Letter {
	if !v.Timed() {
		return letters
	}
	out := make([]state.Letter, 0, len(letters))
	for _, l := range letters {
		if l.Time <= v.T {
			out = append(out, l)
		}
	}
	return out
}

// Background is the image layer under the letters.
type Background struct {
	Original     image.Image
	Processed    image.Image
	UseProcessed bool
	Hidden       bool
}

// Current returns the image to draw, or nil for a solid fill.
func (b Background) Current() image.Image {
	if b.Hidden {
		return nil
	}
	if b.UseProcessed && b.Processed != nil {
		return b.Processed
	}
	return b.Original
}

// Options configures a Renderer.
type Options struct {
	Width  int
	Height int
	Fonts  *FontCatalog
	Fill   color.Color
}

// Renderer draws backgrounds and letters into RGBA frames. Rendering never
// mutates the snapshot it is given.
type Renderer struct {
	mu     sync.Mutex
	width  int
	height int
	fonts  *FontCatalog
	fill   gg.RGBA
	bg     Background

	bufFor image.Image
	buf    *gg.ImageBuf
}

// New returns a renderer of the given size.
func New(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = 720
	}
	if opts.Height <= 0 {
		opts.Height = 1280
	}
	fill := gg.White
	if opts.Fill != nil {
		fill = gg.FromColor(opts.Fill)
	}
	return &Renderer{
		width:  opts.Width,
		height: opts.Height,
		fonts:  opts.Fonts,
		fill:   fill,
	}
}

// Size returns the output dimensions.
func (r *Renderer) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

// SetBackground replaces the background layer.
func (r *Renderer) SetBackground(bg Background) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bg = bg
}

// Background returns the background layer.
func (r *Renderer) Background() Background {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.bg
}

// Render draws one frame. Overlay lines are printed top-left when non-empty.
func (r *Renderer) Render(snap state.Snapshot, v View, overlay []string) *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContext(r.width, r.height)
	defer func() { _ = dc.Close() }()

	r.drawBackground(dc)
	for _, l := range VisibleLetters(snap.Letters, v) {
		r.drawLetter(dc, l)
	}
	if len(overlay) > 0 {
		r.drawOverlay(dc, overlay)
	}
	return toRGBA(dc.Image())
}

func (r *Renderer) drawBackground(dc *gg.Context) {
	dc.ClearWithColor(r.fill)
	img := r.bg.Current()
	if img == nil {
		return
	}
	b := img.Bounds()
	if b.Empty() {
		return
	}
	if r.bufFor != img {
		r.buf = gg.ImageBufFromImage(img)
		r.bufFor = img
	}
	fit := FitRect(b.Dx(), b.Dy(), r.width, r.height)
	dc.DrawImageEx(r.buf, gg.DrawImageOptions{
		X:         fit.X,
		Y:         fit.Y,
		DstWidth:  fit.Width,
		DstHeight: fit.Height,
	})
}

func (r *Renderer) drawLetter(dc *gg.Context, l state.Letter) {
	if r.fonts == nil || l.Character == "" {
		return
	}
	dc.Push()
	defer dc.Pop()

	dc.Translate(l.X, l.Y)
	dc.Rotate(l.Angle)
	dc.SetFont(r.fonts.Face(l.Font, l.FontSize))

	if l.Thickness > 0 && l.Border != "" {
		dc.SetHexColor(l.Border)
		for _, o := range outlineOffsets(l.Thickness) {
			dc.DrawStringAnchored(l.Character, o.X, o.Y, 0.5, 0.5)
		}
	}
	if l.Color == "" {
		dc.SetColor(color.Black)
	} else {
		dc.SetHexColor(l.Color)
	}
	dc.DrawStringAnchored(l.Character, 0, 0, 0.5, 0.5)
}

func (r *Renderer) drawOverlay(dc *gg.Context, lines []string) {
	if r.fonts == nil {
		return
	}
	const (
		size    = 13.0
		lineH   = 17.0
		padding = 8.0
	)
	dc.SetFont(r.fonts.Face("Go Mono", size))
	w := 0.0
	for _, s := range lines {
		if lw, _ := dc.MeasureString(s); lw > w {
			w = lw
		}
	}
	dc.SetRGBA(0, 0, 0, 0.5)
	dc.DrawRectangle(padding, padding, w+2*padding, float64(len(lines))*lineH+padding)
	_ = dc.Fill()
	dc.SetRGB(1, 1, 1)
	for i, s := range lines {
		dc.DrawString(s, 2*padding, padding+float64(i+1)*lineH)
	}
}

// outlineOffsets samples a ring of radius thickness/2 used to fake a glyph
// stroke by stamping the border color around the fill.
func outlineOffsets(thickness float64) []gg.Point {
	radius := thickness / 2
	steps := 8
	if thickness > 4 {
		steps = 16
	}
	out := make([]gg.Point, 0, steps)
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		out = append(out, gg.Point{X: radius * math.Cos(a), Y: radius * math.Sin(a)})
	}
	return out
}

// FitRect scales an image of iw x ih to fit inside vw x vh, centered, keeping
// its aspect ratio.
func FitRect(iw, ih, vw, vh int) state.Rect {
	if iw <= 0 || ih <= 0 || vw <= 0 || vh <= 0 {
		return state.Rect{}
	}
	scale := math.Min(float64(vw)/float64(iw), float64(vh)/float64(ih))
	w := float64(iw) * scale
	h := float64(ih) * scale
	return state.Rect{
		X:      (float64(vw) - w) / 2,
		Y:      (float64(vh) - h) / 2,
		Width:  w,
		Height: h,
	}
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(out, out.Bounds(), img, b.Min, xdraw.Src)
	return out
}
