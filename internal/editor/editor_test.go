package editor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Storyboard/internal/export"
	"Storyboard/internal/generate"
	"Storyboard/internal/linedraw"
	"Storyboard/internal/state"
	"Storyboard/internal/store"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fakeLines struct {
	err   error
	image []byte
	calls int
}

func (f *fakeLines) Process(_ context.Context, _ []byte, _ linedraw.Detail) (linedraw.Result, error) {
	f.calls++
	if f.err != nil {
		return linedraw.Result{}, f.err
	}
	return linedraw.Result{Success: true, Images: [][]byte{f.image}}, nil
}

func pngBytes(t *testing.T, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newEditor(t *testing.T, repo store.Repository, deps Deps) (*Editor, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	deps.Repo = repo
	deps.Now = clock.Now
	e := New(Config{FrameID: "opening", Width: 40, Height: 60, SpacingFactor: 1.2}, deps)
	return e, clock
}

func drawStroke(e *Editor, clock *fakeClock) {
	e.PointerDown(5, 5)
	for i := 1; i <= 4; i++ {
		clock.Advance(100 * time.Millisecond)
		e.PointerMove(5+float64(i)*10, 5+float64(i)*10)
	}
	e.PointerUp()
}

func TestPointerIgnoredOutsideDrawingMode(t *testing.T) {
	e, clock := newEditor(t, nil, Deps{})
	assert.False(t, e.DrawingMode())

	drawStroke(e, clock)
	assert.Empty(t, e.Recorder().Snapshot().Points)

	e.SetDrawingMode(true)
	drawStroke(e, clock)
	snap := e.Recorder().Snapshot()
	assert.Len(t, snap.Points, 5)
	assert.InDelta(t, 0.4, snap.Duration, 1e-9)
}

func TestPointerDownOffCanvasIgnored(t *testing.T) {
	e, clock := newEditor(t, nil, Deps{})
	e.SetDrawingMode(true)

	e.PointerDown(-1, 10)
	e.PointerDown(41, 10)
	e.PointerDown(20, 61)
	clock.Advance(100 * time.Millisecond)
	e.PointerMove(20, 20)
	e.PointerUp()
	assert.Empty(t, e.Recorder().Snapshot().Points)

	e.PointerDown(40, 60)
	e.PointerUp()
	assert.Len(t, e.Recorder().Snapshot().Points, 1)
}

func TestPlayRequiresDrawingModeOff(t *testing.T) {
	e, clock := newEditor(t, nil, Deps{})

	_, err := e.TogglePlay()
	assert.ErrorIs(t, err, ErrNothingToPlay)

	e.SetDrawingMode(true)
	drawStroke(e, clock)
	_, err = e.TogglePlay()
	assert.ErrorIs(t, err, ErrDrawingMode)

	e.SetDrawingMode(false)
	playing, err := e.TogglePlay()
	require.NoError(t, err)
	assert.True(t, playing)

	e.SetDrawingMode(true)
	assert.False(t, e.Playing(), "entering drawing mode stops playback")
}

func TestSetSpeedClamps(t *testing.T) {
	e, _ := newEditor(t, nil, Deps{})
	assert.Equal(t, 20.0, e.SetSpeed(50))
	assert.Equal(t, 0.1, e.SetSpeed(0))
	assert.Equal(t, 2.5, e.SetSpeed(2.5))
}

func TestSetStyleBoundsControls(t *testing.T) {
	e, _ := newEditor(t, nil, Deps{})
	s := e.SetStyle(state.Style{FontSize: 200, Thickness: 0, Font: "Missing"})
	assert.Equal(t, MaxFontSize, s.FontSize)
	assert.Equal(t, MinThickness, s.Thickness)
	assert.Equal(t, "#000000", s.Color)
	assert.Equal(t, "#ffffff", s.Border)
	assert.Equal(t, "Go Regular", s.Font)
}

func TestDrawingPersistsAndReloads(t *testing.T) {
	repo, err := store.NewFileStore("")
	require.NoError(t, err)
	_, err = repo.Update("opening", store.FramePatch{CharacterDialogue: store.String("Look out")})
	require.NoError(t, err)

	var changes int
	e, clock := newEditor(t, repo, Deps{OnChange: func(state.DrawingData) { changes++ }})
	assert.Equal(t, "Look out", e.Style().Text)

	e.SetDrawingMode(true)
	drawStroke(e, clock)
	assert.Equal(t, 6, changes, "down, four moves and up")

	f, err := repo.Get("opening")
	require.NoError(t, err)
	require.NotNil(t, f.DrawingData)
	assert.Len(t, f.DrawingData.Points, 5)

	reopened, _ := newEditor(t, repo, Deps{})
	snap := reopened.Recorder().Snapshot()
	assert.Len(t, snap.Points, 5)
	assert.NotEmpty(t, snap.Letters)
	assert.Equal(t, "L", snap.Letters[0].Character)
}

func TestSetTextStoresDialogue(t *testing.T) {
	repo, err := store.NewFileStore("")
	require.NoError(t, err)
	e, _ := newEditor(t, repo, Deps{})
	e.SetText("Run!")

	f, err := repo.Get("opening")
	require.NoError(t, err)
	assert.Equal(t, "Run!", f.CharacterDialogue)
}

func TestClosedEditorStopsWriting(t *testing.T) {
	repo, err := store.NewFileStore("")
	require.NoError(t, err)
	e, clock := newEditor(t, repo, Deps{})
	e.SetDrawingMode(true)
	e.PointerDown(5, 5)
	clock.Advance(100 * time.Millisecond)
	e.PointerMove(30, 30)

	e.Close()
	f, err := repo.Get("opening")
	require.NoError(t, err)
	require.NotNil(t, f.DrawingData)
	assert.Len(t, f.DrawingData.Points, 2, "open stroke saved on close")

	require.NoError(t, repo.Delete("opening"))
	e.SetDrawingMode(true)
	drawStroke(e, clock)
	e.SetText("Still here?")
	_, err = e.SetFields(Fields{Sequence: store.String("1")})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = repo.Get("opening")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLineDrawingFailureKeepsOriginal(t *testing.T) {
	repo, err := store.NewFileStore("")
	require.NoError(t, err)
	_, err = repo.Update("opening", store.FramePatch{LineDrawing: []byte("stale")})
	require.NoError(t, err)

	lines := &fakeLines{err: linedraw.ErrFailed}
	e, _ := newEditor(t, repo, Deps{Lines: lines})
	e.SetUseProcessed(true)

	img := pngBytes(t, color.RGBA{R: 200, A: 255})
	out, err := e.UploadImage(context.Background(), img)
	require.NoError(t, err)
	assert.False(t, out.LineDrawing)
	assert.Equal(t, 1, lines.calls)

	f, err := repo.Get("opening")
	require.NoError(t, err)
	assert.Equal(t, img, f.ImageData)
	assert.Nil(t, f.LineDrawing)

	bg := e.Background()
	assert.NotNil(t, bg.Original)
	assert.Nil(t, bg.Processed)
	assert.Equal(t, bg.Original, bg.Current(), "falls back to the original")
}

func TestGenerateImageWithLineDrawing(t *testing.T) {
	repo, err := store.NewFileStore("")
	require.NoError(t, err)
	_, err = repo.Update("opening", store.FramePatch{SceneDescription: store.String("A lighthouse")})
	require.NoError(t, err)

	lines := &fakeLines{image: pngBytes(t, color.Black)}
	e, _ := newEditor(t, repo, Deps{Images: generate.Mock{Width: 36}, Lines: lines})

	out, err := e.GenerateImage(context.Background())
	require.NoError(t, err)
	assert.True(t, out.LineDrawing)
	assert.NotEmpty(t, out.Frame.ImageData)
	assert.Equal(t, lines.image, out.Frame.LineDrawing)
	assert.NotNil(t, e.Background().Processed)
}

func TestGenerateImageNeedsPrompt(t *testing.T) {
	e, _ := newEditor(t, nil, Deps{Images: generate.Mock{}})
	_, err := e.GenerateImage(context.Background())
	assert.ErrorIs(t, err, generate.ErrEmptyPrompt)
}

func TestUploadRejectsNonImage(t *testing.T) {
	e, _ := newEditor(t, nil, Deps{})
	_, err := e.UploadImage(context.Background(), []byte("plain text"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestGenerateDialogueSetsText(t *testing.T) {
	repo, err := store.NewFileStore("")
	require.NoError(t, err)
	e, _ := newEditor(t, repo, Deps{Dialogue: generate.MockDialogue{}})

	line, err := e.GenerateDialogue(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, line)
	assert.Equal(t, line, e.Style().Text)

	f, err := repo.Get("opening")
	require.NoError(t, err)
	assert.Equal(t, line, f.CharacterDialogue)
}

func TestDebugLines(t *testing.T) {
	e, clock := newEditor(t, nil, Deps{})
	e.SetDrawingMode(true)
	drawStroke(e, clock)

	lines := e.DebugLines(e.Recorder().Snapshot())
	assert.Equal(t, []string{
		"Canvas Size: 40x60",
		"Points: 5",
		"Letters: 0",
		"Drawing: true",
		"Playing: false",
		"Recording: false",
		"Speed: 1.0x",
		"Duration: 0.40s",
	}, lines)
}

// gatedEncoder holds every frame until release is closed.
type gatedEncoder struct {
	path    string
	release chan struct{}
	frames  int
}

func (g *gatedEncoder) WriteFrame(*image.RGBA) error {
	<-g.release
	g.frames++
	return nil
}

func (g *gatedEncoder) Close() error { return os.WriteFile(g.path, []byte("video"), 0o644) }
func (g *gatedEncoder) Abort()       {}

func TestSecondExportIsRejectedWhileRecording(t *testing.T) {
	enc := &gatedEncoder{release: make(chan struct{})}
	started := make(chan struct{})
	ex := export.NewExporter(export.Options{
		FPS: 10,
		Dir: t.TempDir(),
		NewEncoder: func(path string, w, h, fps int) (export.Encoder, error) {
			enc.path = path
			close(started)
			return enc, nil
		},
	})
	e, clock := newEditor(t, nil, Deps{Exporter: ex})
	e.SetDrawingMode(true)
	drawStroke(e, clock)
	e.SetDrawingMode(false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	first := make(chan Result, 1)
	e.Commands() <- Command{Kind: CmdExport, Reply: first}
	<-started

	_, ok := e.RenderLive()
	assert.False(t, ok, "live rendering pauses during export")

	second, err := e.Do(ctx, CmdExport)
	assert.ErrorIs(t, err, export.ErrBusy)
	assert.Zero(t, second.Export.Frames)

	close(enc.release)
	res := <-first
	require.NoError(t, res.Err)
	assert.Equal(t, export.FrameCount(0.4, 1, 10), res.Export.Frames)
	assert.FileExists(t, res.Export.Path)

	_, ok = e.RenderLive()
	assert.True(t, ok)
}

func TestExportNeedsDrawing(t *testing.T) {
	ex := export.NewExporter(export.Options{Dir: t.TempDir()})
	e, _ := newEditor(t, nil, Deps{Exporter: ex})
	_, err := e.Export(context.Background())
	assert.True(t, errors.Is(err, ErrNothingToExport))
}

func TestClearUndoRedoCommands(t *testing.T) {
	e, clock := newEditor(t, nil, Deps{})
	e.SetDrawingMode(true)
	drawStroke(e, clock)
	drawStroke(e, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	r, err := e.Do(ctx, CmdUndo)
	require.NoError(t, err)
	assert.True(t, r.Changed)
	assert.Len(t, e.Recorder().Snapshot().Points, 5)

	r, err = e.Do(ctx, CmdRedo)
	require.NoError(t, err)
	assert.True(t, r.Changed)
	assert.Len(t, e.Recorder().Snapshot().Points, 10)

	_, err = e.Do(ctx, CmdClear)
	require.NoError(t, err)
	assert.True(t, e.Recorder().Snapshot().Empty())
}
