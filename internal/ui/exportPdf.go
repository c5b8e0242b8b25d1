package ui

import (
	"fmt"
	"io"
	"log"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
)

// showSavePDF asks for a destination and writes the storyboard PDF there.
func showSavePDF(win fyne.Window, board *EditorWidget, write func(io.Writer) error) {
	d := dialog.NewFileSave(func(wc fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, win)
			return
		}
		if wc == nil {
			return
		}
		if err := savePDF(wc, board, write); err != nil {
			dialog.ShowError(err, win)
		}
	}, win)
	d.SetFileName("storyboard.pdf")
	d.SetFilter(storage.NewExtensionFileFilter([]string{".pdf"}))
	d.Show()
}

func savePDF(wc io.WriteCloser, board *EditorWidget, write func(io.Writer) error) error {
	defer func() {
		if err := wc.Close(); err != nil {
			log.Printf("[UI] Error closing PDF writer: %v", err)
		}
	}()

	log.Println("[UI] Writing storyboard PDF")
	if err := write(wc); err != nil {
		board.SetStatus("Error saving PDF")
		return fmt.Errorf("save storyboard pdf: %w", err)
	}
	board.SetStatus("Saved storyboard PDF")
	return nil
}
