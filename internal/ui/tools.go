package ui

import (
	"fmt"
	"image/color"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"Storyboard/internal/editor"
	"Storyboard/internal/state"
)

// --- Custom Widget for Color Swatches ---
type colorSwatch struct {
	widget.BaseWidget
	Color    color.Color
	OnTapped func(color.Color)
}

func newColorSwatch(c color.Color, tapped func(color.Color)) *colorSwatch {
	s := &colorSwatch{Color: c, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	rect := canvas.NewRectangle(s.Color)
	rect.SetMinSize(fyne.NewSize(28, 28))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Color)
	}
}

var palette = []color.Color{
	color.Black,
	color.White,
	color.NRGBA{R: 255, A: 255},
	color.NRGBA{G: 160, A: 255},
	color.NRGBA{B: 255, A: 255},
	color.NRGBA{R: 255, G: 200, A: 255},
}

func hexColor(c color.Color) string {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return fmt.Sprintf("#%02x%02x%02x", n.R, n.G, n.B)
}

// Actions are the toolbar buttons that need the window or a background
// context. Nil actions hide their button.
type Actions struct {
	Export           func()
	GenerateImage    func()
	GenerateDialogue func()
	SavePDF          func()
}

// Toolbar holds the editor controls.
type Toolbar struct {
	board *EditorWidget

	Play           *widget.Button
	Draw           *widget.Check
	Speed          *widget.Slider
	SpeedLabel     *widget.Label
	FontSize       *widget.Slider
	Thickness      *widget.Slider
	Font           *widget.Select
	Text           *widget.Entry
	ShowBackground *widget.Check
	UseProcessed   *widget.Check
	Clear          *widget.Button
	Undo           *widget.Button
	Redo           *widget.Button

	Content fyne.CanvasObject
}

// NewToolbar builds the controls for board's editor, laid out per the
// editor's control layout.
func NewToolbar(board *EditorWidget, actions Actions) *Toolbar {
	ed := board.Editor()
	t := &Toolbar{board: board}

	t.Play = widget.NewButtonWithIcon("Play", theme.MediaPlayIcon(), t.togglePlay)
	t.Draw = widget.NewCheck("Drawing", func(on bool) {
		ed.SetDrawingMode(on)
		t.syncPlay()
	})

	t.SpeedLabel = widget.NewLabel(speedText(ed.Speed()))
	t.Speed = widget.NewSlider(state.MinSpeed, state.MaxSpeed)
	t.Speed.Step = 0.1
	t.Speed.SetValue(ed.Speed())
	t.Speed.OnChanged = func(v float64) {
		t.SpeedLabel.SetText(speedText(ed.SetSpeed(v)))
	}

	style := ed.Style()
	t.FontSize = widget.NewSlider(editor.MinFontSize, editor.MaxFontSize)
	t.FontSize.SetValue(style.FontSize)
	t.FontSize.OnChanged = func(v float64) {
		t.updateStyle(func(s *state.Style) { s.FontSize = v })
	}
	t.Thickness = widget.NewSlider(editor.MinThickness, editor.MaxThickness)
	t.Thickness.SetValue(style.Thickness)
	t.Thickness.OnChanged = func(v float64) {
		t.updateStyle(func(s *state.Style) { s.Thickness = v })
	}

	t.Font = widget.NewSelect(ed.Config().AvailableFonts, func(name string) {
		t.updateStyle(func(s *state.Style) { s.Font = name })
	})
	t.Font.SetSelected(style.Font)

	t.Text = widget.NewEntry()
	t.Text.SetPlaceHolder("Drawing text")
	t.Text.SetText(style.Text)
	t.Text.OnChanged = ed.SetText

	bg := ed.Background()
	t.ShowBackground = widget.NewCheck("Background", ed.SetShowBackground)
	t.ShowBackground.SetChecked(!bg.Hidden)
	t.UseProcessed = widget.NewCheck("Line drawing", ed.SetUseProcessed)
	t.UseProcessed.SetChecked(bg.UseProcessed)

	t.Clear = widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
		ed.Clear()
		t.syncPlay()
		board.Refresh()
	})
	t.Undo = widget.NewButtonWithIcon("", theme.ContentUndoIcon(), func() {
		ed.Undo()
		board.Refresh()
	})
	t.Redo = widget.NewButtonWithIcon("", theme.ContentRedoIcon(), func() {
		ed.Redo()
		board.Refresh()
	})

	colors := func(apply func(*state.Style, string)) fyne.CanvasObject {
		box := container.NewHBox()
		for _, c := range palette {
			box.Add(newColorSwatch(c, func(c color.Color) {
				t.updateStyle(func(s *state.Style) { apply(s, hexColor(c)) })
			}))
		}
		return box
	}

	playback := container.NewHBox(t.Play, t.Draw, t.SpeedLabel,
		container.New(layout.NewGridWrapLayout(fyne.NewSize(150, 35)), t.Speed))
	history := container.NewHBox(t.Clear, t.Undo, t.Redo)

	layoutKind := ed.Config().ControlLayout
	rows := []fyne.CanvasObject{container.NewHBox(playback, widget.NewSeparator(), history, layout.NewSpacer())}
	if layoutKind != editor.LayoutMinimal {
		rows = append(rows, container.NewBorder(nil, nil, widget.NewLabel("Text:"), nil, t.Text))
		styleRow := container.NewHBox(
			widget.NewLabel("Size:"),
			container.New(layout.NewGridWrapLayout(fyne.NewSize(120, 35)), t.FontSize),
			widget.NewLabel("Outline:"),
			container.New(layout.NewGridWrapLayout(fyne.NewSize(100, 35)), t.Thickness),
			widget.NewLabel("Color:"),
			colors(func(s *state.Style, hex string) { s.Color = hex }),
		)
		if layoutKind == editor.LayoutFull {
			styleRow.Add(widget.NewLabel("Border:"))
			styleRow.Add(colors(func(s *state.Style, hex string) { s.Border = hex }))
			styleRow.Add(t.Font)
		}
		rows = append(rows, styleRow, container.NewHBox(t.ShowBackground, t.UseProcessed, layout.NewSpacer(), t.actionButtons(actions)))
	}
	t.Content = container.NewVBox(rows...)
	return t
}

func (t *Toolbar) actionButtons(a Actions) fyne.CanvasObject {
	box := container.NewHBox()
	add := func(label string, icon fyne.Resource, fn func()) {
		if fn != nil {
			box.Add(widget.NewButtonWithIcon(label, icon, fn))
		}
	}
	add("Image", theme.MediaPhotoIcon(), a.GenerateImage)
	add("Dialogue", theme.MailComposeIcon(), a.GenerateDialogue)
	add("Export", theme.MediaRecordIcon(), a.Export)
	if t.board.Editor().Config().ControlLayout == editor.LayoutFull {
		add("PDF", theme.DocumentSaveIcon(), a.SavePDF)
	}
	return box
}

func (t *Toolbar) updateStyle(change func(*state.Style)) {
	ed := t.board.Editor()
	s := ed.Style()
	change(&s)
	ed.SetStyle(s)
}

func (t *Toolbar) togglePlay() {
	if _, err := t.board.Editor().TogglePlay(); err != nil {
		t.board.SetStatus(err.Error())
	}
	t.syncPlay()
}

// syncPlay updates the play button to the playback state.
func (t *Toolbar) syncPlay() {
	if t.board.Editor().Playing() {
		t.Play.SetText("Stop")
		t.Play.SetIcon(theme.MediaStopIcon())
	} else {
		t.Play.SetText("Play")
		t.Play.SetIcon(theme.MediaPlayIcon())
	}
}

// SetText shows text in the entry, e.g. after dialogue generation.
func (t *Toolbar) SetText(text string) {
	t.Text.SetText(text)
}

func speedText(v float64) string {
	return fmt.Sprintf("Speed: %.1fx", v)
}
