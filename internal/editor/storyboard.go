package editor

import (
	"errors"
	"io"

	"Storyboard/internal/export"
	"Storyboard/internal/store"
)

// StoryboardPages collects one PDF page per outline scene that has a stored
// frame, in outline order. open returns the editor used to render a scene.
func StoryboardPages(repo store.Repository, open func(id string) *Editor) ([]export.Page, error) {
	var pages []export.Page
	for _, sc := range store.Outline {
		f, err := repo.Get(sc.ID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		ed := open(sc.ID)
		snap := ed.Recorder().Snapshot()
		pages = append(pages, export.Page{
			Label:       sc.Label,
			Title:       sc.Description,
			Description: f.SceneDescription,
			Dialogue:    f.CharacterDialogue,
			Still:       ed.StillImage(),
			Points:      snap.Points,
			Duration:    snap.Duration,
		})
	}
	return pages, nil
}

// WriteStoryboard renders every stored outline scene into a PDF.
func WriteStoryboard(w io.Writer, repo store.Repository, open func(id string) *Editor) error {
	pages, err := StoryboardPages(repo, open)
	if err != nil {
		return err
	}
	return export.WriteStoryboardPDF(w, "Storyboard", pages)
}
