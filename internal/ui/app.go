package ui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"io"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"Storyboard/internal/editor"
	"Storyboard/internal/export"
)

// AppOptions configures the desktop shell.
type AppOptions struct {
	Title string
	// ShareURL, if set, is shown so other devices can open the live view.
	ShareURL string
	// WritePDF renders the storyboard PDF. Nil hides the PDF button.
	WritePDF func(io.Writer) error
}

// variantTheme pins the default theme to one variant.
type variantTheme struct {
	fyne.Theme
	variant fyne.ThemeVariant
}

func (t variantTheme) Color(n fyne.ThemeColorName, _ fyne.ThemeVariant) color.Color {
	return t.Theme.Color(n, t.variant)
}

func themeFor(name string) fyne.Theme {
	if name == "dark" {
		return variantTheme{Theme: theme.DefaultTheme(), variant: theme.VariantDark}
	}
	return variantTheme{Theme: theme.DefaultTheme(), variant: theme.VariantLight}
}

// RunApp opens the editor window and blocks until it is closed.
func RunApp(ed *editor.Editor, opts AppOptions) {
	if opts.Title == "" {
		opts.Title = "Storyboard"
	}
	myApp := app.New()
	myApp.Settings().SetTheme(themeFor(ed.Config().Theme))
	myWindow := myApp.NewWindow(opts.Title + " - " + ed.FrameID())
	myWindow.Resize(fyne.NewSize(1024, 900))

	ctx, cancel := context.WithCancel(context.Background())
	board := NewEditorWidget(ed)
	var toolbar *Toolbar
	toolbar = NewToolbar(board, appActions(ctx, myWindow, board, opts, func(line string) {
		toolbar.SetText(line)
	}))

	go func() { _ = ed.Run(ctx) }()
	go board.Animate(ctx)

	status := []fyne.CanvasObject{board.StatusBar()}
	if opts.ShareURL != "" {
		link := widget.NewEntry()
		link.SetText(opts.ShareURL)
		status = append(status, widget.NewLabel("Share:"), link)
	}
	content := container.NewBorder(toolbar.Content, container.NewHBox(status...), nil, nil, board)

	myWindow.SetContent(content)
	myWindow.SetOnClosed(func() {
		cancel()
		ed.Close()
	})
	myWindow.ShowAndRun()
}

// appActions wires the toolbar buttons that run in the background.
// onDialogue runs on the UI goroutine with each generated line.
func appActions(ctx context.Context, win fyne.Window, board *EditorWidget, opts AppOptions, onDialogue func(string)) Actions {
	ed := board.Editor()
	a := Actions{
		Export: func() {
			go func() {
				board.SetStatus("Recording...")
				res, err := ed.Do(ctx, editor.CmdExport)
				switch {
				case errors.Is(err, export.ErrBusy):
					log.Println("[UI] Export already running")
				case err != nil:
					board.SetStatus("Export failed: " + err.Error())
				default:
					board.SetStatus(fmt.Sprintf("Saved %s (%d frames)", res.Export.Path, res.Export.Frames))
				}
			}()
		},
		GenerateImage: func() {
			go func() {
				board.SetStatus("Generating image...")
				out, err := ed.GenerateImage(ctx)
				switch {
				case err != nil:
					board.SetStatus("Image generation failed: " + err.Error())
				case !out.LineDrawing:
					board.SetStatus("Image ready (line drawing unavailable)")
				default:
					board.SetStatus("Image ready")
				}
				fyne.Do(board.Refresh)
			}()
		},
		GenerateDialogue: func() {
			go func() {
				board.SetStatus("Writing dialogue...")
				line, err := ed.GenerateDialogue(ctx)
				if err != nil {
					board.SetStatus("Dialogue failed: " + err.Error())
					return
				}
				fyne.Do(func() { onDialogue(line) })
				board.SetStatus("Dialogue ready")
			}()
		},
	}
	if opts.WritePDF != nil {
		a.SavePDF = func() { showSavePDF(win, board, opts.WritePDF) }
	}
	return a
}
