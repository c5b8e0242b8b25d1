package ui

import (
	"bytes"
	"errors"
	"image/color"
	"io"
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"fyne.io/fyne/v2/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Storyboard/internal/editor"
)

func newTestBoard(t *testing.T, layout editor.Layout) (*EditorWidget, *[]string) {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)

	ed := editor.New(editor.Config{
		FrameID:        "opening",
		Width:          36,
		Height:         64,
		ControlLayout:  layout,
		AvailableFonts: []string{"Go Regular", "Go Bold"},
	}, editor.Deps{})
	board := NewEditorWidget(ed)
	var statuses []string
	board.OnStatus = func(s string) { statuses = append(statuses, s) }
	board.Resize(fyne.NewSize(180, 320))
	return board, &statuses
}

func press(x, y float32) *desktop.MouseEvent {
	return &desktop.MouseEvent{
		PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)},
		Button:     desktop.MouseButtonPrimary,
	}
}

func TestEditorWidgetMapsStrokesToCanvas(t *testing.T) {
	board, _ := newTestBoard(t, editor.LayoutFull)
	ed := board.Editor()
	ed.SetDrawingMode(true)

	board.MouseDown(press(50, 50))
	board.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(100, 150)}})
	board.MouseUp(press(100, 150))

	pts := ed.Recorder().Snapshot().Points
	require.Len(t, pts, 2)
	assert.InDelta(t, 10, pts[0].X, 1e-6)
	assert.InDelta(t, 10, pts[0].Y, 1e-6)
	assert.True(t, pts[0].IsNewSegment)
	assert.InDelta(t, 20, pts[1].X, 1e-6)
	assert.InDelta(t, 30, pts[1].Y, 1e-6)
	assert.False(t, ed.Recorder().Dragging())
}

func TestEditorWidgetIgnoresInputOutsideDrawingMode(t *testing.T) {
	board, _ := newTestBoard(t, editor.LayoutFull)
	board.MouseDown(press(50, 50))
	board.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(60, 60)}})
	board.DragEnd()
	assert.Empty(t, board.Editor().Recorder().Snapshot().Points)
}

func TestEditorWidgetIgnoresLetterbox(t *testing.T) {
	board, _ := newTestBoard(t, editor.LayoutFull)
	board.Resize(fyne.NewSize(400, 320))
	board.Editor().SetDrawingMode(true)

	board.MouseDown(press(50, 50))
	assert.Empty(t, board.Editor().Recorder().Snapshot().Points)

	board.MouseDown(press(200, 160))
	board.MouseOut()
	pts := board.Editor().Recorder().Snapshot().Points
	require.Len(t, pts, 1)
	assert.InDelta(t, 18, pts[0].X, 1e-6)
	assert.InDelta(t, 32, pts[0].Y, 1e-6)
}

func TestToolbarPlayNeedsDrawingOff(t *testing.T) {
	board, statuses := newTestBoard(t, editor.LayoutFull)
	tb := NewToolbar(board, Actions{})
	ed := board.Editor()

	tb.Draw.SetChecked(true)
	assert.True(t, ed.DrawingMode())
	board.MouseDown(press(50, 50))
	board.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(120, 200)}})
	board.DragEnd()

	test.Tap(tb.Play)
	assert.False(t, ed.Playing())
	require.NotEmpty(t, *statuses)
	assert.Equal(t, editor.ErrDrawingMode.Error(), (*statuses)[len(*statuses)-1])

	tb.Draw.SetChecked(false)
	test.Tap(tb.Play)
	assert.True(t, ed.Playing())
	assert.Equal(t, "Stop", tb.Play.Text)

	test.Tap(tb.Play)
	assert.False(t, ed.Playing())
	assert.Equal(t, "Play", tb.Play.Text)
}

func TestToolbarSlidersUpdateEditor(t *testing.T) {
	board, _ := newTestBoard(t, editor.LayoutFull)
	tb := NewToolbar(board, Actions{})
	ed := board.Editor()

	tb.Speed.SetValue(4)
	assert.Equal(t, 4.0, ed.Speed())
	assert.Equal(t, "Speed: 4.0x", tb.SpeedLabel.Text)

	tb.FontSize.SetValue(48)
	tb.Thickness.SetValue(5)
	tb.Font.SetSelected("Go Bold")
	tb.Text.SetText("Hey")

	s := ed.Style()
	assert.Equal(t, 48.0, s.FontSize)
	assert.Equal(t, 5.0, s.Thickness)
	assert.Equal(t, "Hey", s.Text)

	tb.ShowBackground.SetChecked(false)
	assert.True(t, ed.Background().Hidden)
}

func TestMinimalLayoutShowsOneRow(t *testing.T) {
	board, _ := newTestBoard(t, editor.LayoutMinimal)
	tb := NewToolbar(board, Actions{Export: func() {}})
	box, ok := tb.Content.(*fyne.Container)
	require.True(t, ok)
	assert.Len(t, box.Objects, 1)
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, "#000000", hexColor(color.Black))
	assert.Equal(t, "#ff0000", hexColor(color.NRGBA{R: 255, A: 255}))
	assert.Equal(t, "#ffffff", hexColor(color.White))
}

type closeBuffer struct {
	bytes.Buffer
	closed bool
}

func (c *closeBuffer) Close() error {
	c.closed = true
	return nil
}

func TestSavePDFClosesWriter(t *testing.T) {
	board, statuses := newTestBoard(t, editor.LayoutFull)

	out := &closeBuffer{}
	err := savePDF(out, board, func(w io.Writer) error {
		_, err := w.Write([]byte("%PDF-1.3"))
		return err
	})
	require.NoError(t, err)
	assert.True(t, out.closed)
	assert.Equal(t, "%PDF-1.3", out.String())
	assert.Equal(t, "Saved storyboard PDF", (*statuses)[len(*statuses)-1])

	out = &closeBuffer{}
	err = savePDF(out, board, func(io.Writer) error { return errors.New("boom") })
	assert.ErrorContains(t, err, "boom")
	assert.True(t, out.closed)
}

func TestThemeVariant(t *testing.T) {
	assert.Equal(t, theme.VariantDark, themeFor("dark").(variantTheme).variant)
	assert.Equal(t, theme.VariantLight, themeFor("light").(variantTheme).variant)
}
