package ui

import (
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"

	"Storyboard/internal/render"
)

// editorWidgetRenderer letterboxes the raster inside the widget so the
// canvas keeps its aspect ratio.
type editorWidgetRenderer struct {
	board      *EditorWidget
	background *canvas.Rectangle
	raster     *canvas.Raster
}

func newEditorWidgetRenderer(w *EditorWidget) *editorWidgetRenderer {
	raster := canvas.NewRaster(w.frame)
	raster.ScaleMode = canvas.ImageScaleSmooth
	return &editorWidgetRenderer{
		board:      w,
		background: canvas.NewRectangle(color.NRGBA{R: 245, G: 246, B: 248, A: 255}),
		raster:     raster,
	}
}

func (r *editorWidgetRenderer) Layout(size fyne.Size) {
	r.background.Resize(size)

	cw, ch := r.board.ed.Renderer().Size()
	fit := render.FitRect(cw, ch, int(size.Width), int(size.Height))
	r.raster.Move(fyne.NewPos(float32(fit.X), float32(fit.Y)))
	r.raster.Resize(fyne.NewSize(float32(fit.Width), float32(fit.Height)))
}

func (r *editorWidgetRenderer) MinSize() fyne.Size {
	cw, ch := r.board.ed.Renderer().Size()
	return fyne.NewSize(float32(cw)/4, float32(ch)/4)
}

func (r *editorWidgetRenderer) Objects() []fyne.CanvasObject {
	return []fyne.CanvasObject{r.background, r.raster}
}

func (r *editorWidgetRenderer) Refresh() {
	r.raster.Refresh()
}

func (r *editorWidgetRenderer) Destroy() {}
