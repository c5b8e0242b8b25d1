package export

import (
	"bytes"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Storyboard/internal/state"
)

func TestWriteStoryboardPDF(t *testing.T) {
	still := image.NewRGBA(image.Rect(0, 0, 900, 1600))
	pages := []Page{
		{
			Label:       "Opening",
			Title:       "The harbor",
			Description: "A **quiet** morning at the *docks*.",
			Dialogue:    "Where is everyone?",
			Still:       still,
			Points: []state.Point{
				{X: 0, Y: 0, IsNewSegment: true},
				{X: 100, Y: 40},
				{X: 50, Y: 200, IsNewSegment: true},
				{X: 60, Y: 220},
			},
			Duration: 1.5,
		},
		{Label: "But 1"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteStoryboardPDF(&buf, "Storyboard", pages))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestWriteStoryboardPDFEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteStoryboardPDF(&buf, "Nothing yet", nil))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
}

func TestMarkdownToBasicHTML(t *testing.T) {
	html, err := markdownToBasicHTML("Hello **bold** and *soft*\n\n- one\n- two")
	require.NoError(t, err)
	assert.Equal(t, "Hello <b>bold</b> and <i>soft</i><br>- one<br>- two", html)
}

func TestThumbnailKeepsAspect(t *testing.T) {
	img := thumbnail(image.NewRGBA(image.Rect(0, 0, 960, 1280)), 480)
	assert.Equal(t, image.Rect(0, 0, 480, 640), img.Bounds())

	small := image.NewRGBA(image.Rect(0, 0, 100, 100))
	assert.Same(t, small, thumbnail(small, 480))
}
