package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Storyboard/internal/state"
)

func letterAt(ch string, t float64) state.Letter {
	return state.Letter{
		Character: ch, X: 50, Y: 50, FontSize: 40, Thickness: 2,
		Color: "#000000", Border: "#ffffff", Font: DefaultFont, Time: t,
	}
}

func TestVisibleLettersUntimedShowsAll(t *testing.T) {
	letters := []state.Letter{letterAt("A", 1), letterAt("B", 5)}
	assert.Len(t, VisibleLetters(letters, Idle()), 2)
	assert.Len(t, VisibleLetters(letters, Drawing()), 2)
}

func TestVisibleLettersCutoffIsInclusive(t *testing.T) {
	letters := []state.Letter{letterAt("A", 1), letterAt("B", 2), letterAt("C", 3)}

	got := VisibleLetters(letters, Playing(2))
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Character)
	assert.Equal(t, "B", got[1].Character)

	assert.Empty(t, VisibleLetters(letters, Exporting(0.5)))
	assert.Len(t, VisibleLetters(letters, Exporting(3)), 3)
}

func TestFitRectContainsAndCenters(t *testing.T) {
	r := FitRect(100, 50, 200, 200)
	assert.InDelta(t, 200, r.Width, 1e-9)
	assert.InDelta(t, 100, r.Height, 1e-9)
	assert.InDelta(t, 0, r.X, 1e-9)
	assert.InDelta(t, 50, r.Y, 1e-9)

	r = FitRect(90, 160, 720, 1280)
	assert.InDelta(t, 720, r.Width, 1e-9)
	assert.InDelta(t, 1280, r.Height, 1e-9)

	assert.True(t, FitRect(0, 10, 10, 10).Empty())
}

func TestBackgroundCurrent(t *testing.T) {
	orig := image.NewRGBA(image.Rect(0, 0, 4, 4))
	proc := image.NewRGBA(image.Rect(0, 0, 4, 4))

	bg := Background{Original: orig, Processed: proc}
	assert.Same(t, orig, bg.Current())

	bg.UseProcessed = true
	assert.Same(t, proc, bg.Current())

	bg.Processed = nil
	assert.Same(t, orig, bg.Current(), "missing processed image falls back to original")

	bg.Hidden = true
	assert.Nil(t, bg.Current())
}

func newTestRenderer(t *testing.T, w, h int) *Renderer {
	t.Helper()
	fonts, err := NewFontCatalog(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fonts.Close() })
	return New(Options{Width: w, Height: h, Fonts: fonts})
}

func isWhite(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r > 0xfe00 && g > 0xfe00 && b > 0xfe00
}

func TestRenderHiddenBackgroundIsWhite(t *testing.T) {
	r := newTestRenderer(t, 64, 48)
	red := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for i := range red.Pix {
		if i%4 == 0 || i%4 == 3 {
			red.Pix[i] = 0xff
		}
	}
	r.SetBackground(Background{Original: red, Hidden: true})

	img := r.Render(state.Snapshot{}, Idle(), nil)
	require.Equal(t, image.Rect(0, 0, 64, 48), img.Bounds())
	for _, p := range []image.Point{{0, 0}, {32, 24}, {63, 47}} {
		assert.True(t, isWhite(img.At(p.X, p.Y)), "pixel %v", p)
	}
}

func TestRenderDrawsBackgroundImage(t *testing.T) {
	r := newTestRenderer(t, 40, 40)
	blue := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for i := 0; i < len(blue.Pix); i += 4 {
		blue.Pix[i+2] = 0xff
		blue.Pix[i+3] = 0xff
	}
	r.SetBackground(Background{Original: blue})

	img := r.Render(state.Snapshot{}, Idle(), nil)
	assert.False(t, isWhite(img.At(20, 20)))
}

func TestRenderTimedViewHidesFutureLetters(t *testing.T) {
	r := newTestRenderer(t, 100, 100)
	snap := state.Snapshot{Letters: []state.Letter{letterAt("W", 5)}}

	before := r.Render(snap, Playing(1), nil)
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			require.True(t, isWhite(before.At(x, y)), "no letter expected at t=1")
		}
	}

	after := r.Render(snap, Playing(5), nil)
	dark := 0
	for y := 0; y < 100; y++ {
		for x := 0; x < 100; x++ {
			if !isWhite(after.At(x, y)) {
				dark++
			}
		}
	}
	assert.Positive(t, dark)
}

func TestFontCatalogFallback(t *testing.T) {
	fonts, err := NewFontCatalog(map[string]string{"Missing": "/nonexistent/font.ttf"})
	require.NoError(t, err)
	defer fonts.Close()

	assert.False(t, fonts.Has("Missing"))
	assert.True(t, fonts.Has(DefaultFont))
	assert.Contains(t, fonts.Names(), "Go Mono")
	assert.NotNil(t, fonts.Face("Missing", 24))
	assert.Same(t, fonts.Face(DefaultFont, 24), fonts.Face("Missing", 24))
}
