package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Storyboard/internal/state"
)

func TestUpdateMergesFields(t *testing.T) {
	s, err := NewFileStore("")
	require.NoError(t, err)

	_, err = s.Update("opening", FramePatch{SceneDescription: String("A harbor at dawn")})
	require.NoError(t, err)
	f, err := s.Update("opening", FramePatch{ImageData: []byte{1, 2, 3}})
	require.NoError(t, err)

	assert.Equal(t, "opening", f.ID)
	assert.Equal(t, "A harbor at dawn", f.SceneDescription)
	assert.Equal(t, []byte{1, 2, 3}, f.ImageData)
	assert.False(t, f.LastUpdated.IsZero())
}

func TestUpdateStampsLastUpdated(t *testing.T) {
	s, err := NewFileStore("")
	require.NoError(t, err)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	f, err := s.Update("but1", FramePatch{})
	require.NoError(t, err)
	assert.Equal(t, now, f.LastUpdated)

	now = now.Add(time.Minute)
	f, err = s.Update("but1", FramePatch{})
	require.NoError(t, err)
	assert.Equal(t, now, f.LastUpdated)
}

func TestGetUnknownFrame(t *testing.T) {
	s, err := NewFileStore("")
	require.NoError(t, err)
	_, err = s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete("nope"), ErrNotFound)
}

func TestClearLineDrawing(t *testing.T) {
	s, err := NewFileStore("")
	require.NoError(t, err)
	_, err = s.Update("end", FramePatch{ImageData: []byte("a"), LineDrawing: []byte("b")})
	require.NoError(t, err)

	f, err := s.Update("end", FramePatch{ImageData: []byte("c"), ClearLineDrawing: true})
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), f.ImageData)
	assert.Nil(t, f.LineDrawing)
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "frames.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	data := &state.DrawingData{
		Points:            []state.Point{{X: 1, Y: 2, IsNewSegment: true}, {X: 3, Y: 4, T: 0.5}},
		ActiveDrawingTime: 0.5,
	}
	_, err = s.Update("final", FramePatch{DrawingData: data, CharacterDialogue: String("Hi")})
	require.NoError(t, err)
	_, err = s.Update("opening", FramePatch{})
	require.NoError(t, err)
	require.NoError(t, s.Delete("opening"))

	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	all := reopened.All()
	require.Len(t, all, 1)
	f := all[0]
	assert.Equal(t, "final", f.ID)
	assert.Equal(t, "Hi", f.CharacterDialogue)
	require.NotNil(t, f.DrawingData)
	assert.Equal(t, data.Points, f.DrawingData.Points)
	assert.Equal(t, 0.5, f.DrawingData.ActiveDrawingTime)
}

func TestUpdateCopiesDrawingData(t *testing.T) {
	s, err := NewFileStore("")
	require.NoError(t, err)
	data := &state.DrawingData{ActiveDrawingTime: 1}
	_, err = s.Update("x", FramePatch{DrawingData: data})
	require.NoError(t, err)

	data.ActiveDrawingTime = 99
	f, err := s.Get("x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, f.DrawingData.ActiveDrawingTime)
}

func TestOverview(t *testing.T) {
	s, err := NewFileStore("")
	require.NoError(t, err)
	_, err = s.Update("but2", FramePatch{
		ImageData:         []byte("png"),
		CharacterDialogue: String("Wait"),
		DrawingData:       &state.DrawingData{Points: []state.Point{{IsNewSegment: true}}},
	})
	require.NoError(t, err)

	ov := Overview(s)
	require.Len(t, ov, 9)
	assert.Equal(t, "opening", ov[0].ID)
	assert.False(t, ov[0].Started)

	st := ov[SceneIndex("but2")]
	assert.True(t, st.Started)
	assert.True(t, st.HasImage)
	assert.True(t, st.HasDrawing)
	assert.True(t, st.HasDialogue)

	assert.InDelta(t, 1.0/9, Progress("opening"), 1e-9)
	assert.InDelta(t, 1.0, Progress("final"), 1e-9)
	assert.Zero(t, Progress("unknown"))
}

func TestWriteBehindFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.json")
	s, err := NewFileStore(path, WithWriteBehind(time.Hour))
	require.NoError(t, err)

	_, err = s.Update("opening", FramePatch{Sequence: String("1")})
	require.NoError(t, err)
	assert.NoFileExists(t, path, "write is deferred")

	f, err := s.Get("opening")
	require.NoError(t, err)
	assert.Equal(t, "1", f.Sequence)

	require.NoError(t, s.Close())
	reopened, err := NewFileStore(path)
	require.NoError(t, err)
	f, err = reopened.Get("opening")
	require.NoError(t, err)
	assert.Equal(t, "1", f.Sequence)
}
