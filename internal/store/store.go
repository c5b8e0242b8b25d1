// Package store keeps storyboard frames keyed by frame id.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"Storyboard/internal/state"
)

// ErrNotFound is returned for unknown frame ids.
var ErrNotFound = errors.New("frame not found")

// Frame is one storyboard panel.
type Frame struct {
	ID                string             `json:"id"`
	SceneDescription  string             `json:"sceneDescription,omitempty"`
	CharacterDialogue string             `json:"characterDialogue,omitempty"`
	Sequence          string             `json:"sequence,omitempty"`
	VisualPrompt      string             `json:"visualPrompt,omitempty"`
	ImageData         []byte             `json:"imageData,omitempty"`
	LineDrawing       []byte             `json:"lineDrawing,omitempty"`
	DrawingData       *state.DrawingData `json:"drawingData,omitempty"`
	LastUpdated       time.Time          `json:"lastUpdated"`
}

// FramePatch carries the fields to merge into a stored frame. Nil fields are
// left untouched. ClearLineDrawing drops a stale processed image.
type FramePatch struct {
	SceneDescription  *string
	CharacterDialogue *string
	Sequence          *string
	VisualPrompt      *string
	ImageData         []byte
	LineDrawing       []byte
	ClearLineDrawing  bool
	DrawingData       *state.DrawingData
}

// Repository is the frame persistence contract. Writes merge into the stored
// record and stamp LastUpdated; the last write wins.
type Repository interface {
	Get(id string) (Frame, error)
	Update(id string, patch FramePatch) (Frame, error)
	All() []Frame
	Delete(id string) error
}

// FileStore is a Repository backed by one JSON file. An empty path keeps
// frames in memory only.
type FileStore struct {
	mu     sync.RWMutex
	path   string
	frames map[string]Frame
	now    func() time.Time

	delay time.Duration
	dirty bool
	timer *time.Timer
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithWriteBehind batches disk writes, flushing at most once per d. Reads
// always see the latest merge.
func WithWriteBehind(d time.Duration) Option {
	return func(s *FileStore) { s.delay = d }
}

// NewFileStore opens path, creating it on the first write.
func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		frames: make(map[string]Frame),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read frames: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.frames); err != nil {
			return nil, fmt.Errorf("decode frames %s: %w", path, err)
		}
	}
	log.Printf("[STORE] Loaded %d frames from %s", len(s.frames), path)
	return s, nil
}

// Get returns a copy of the frame.
func (s *FileStore) Get(id string) (Frame, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.frames[id]
	if !ok {
		return Frame{}, ErrNotFound
	}
	return f, nil
}

// Update merges patch into frame id, creating it if needed.
func (s *FileStore) Update(id string, patch FramePatch) (Frame, error) {
	if id == "" {
		return Frame{}, errors.New("frame id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f := s.frames[id]
	f.ID = id
	patch.apply(&f)
	f.LastUpdated = s.now().UTC()
	s.frames[id] = f

	if err := s.saveLocked(); err != nil {
		return f, err
	}
	return f, nil
}

// All returns every frame ordered by id.
func (s *FileStore) All() []Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Frame, 0, len(s.frames))
	for _, f := range s.frames {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Delete removes frame id.
func (s *FileStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.frames[id]; !ok {
		return ErrNotFound
	}
	delete(s.frames, id)
	log.Printf("[STORE] Deleted frame %s", id)
	return s.saveLocked()
}

// Flush writes pending changes now.
func (s *FileStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.dirty {
		return nil
	}
	return s.persistLocked()
}

// Close flushes pending changes.
func (s *FileStore) Close() error {
	return s.Flush()
}

func (s *FileStore) saveLocked() error {
	if s.delay <= 0 {
		return s.persistLocked()
	}
	s.dirty = true
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.flushLater)
	}
	return nil
}

func (s *FileStore) flushLater() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timer = nil
	if !s.dirty {
		return
	}
	if err := s.persistLocked(); err != nil {
		log.Printf("[STORE] Background save failed: %v", err)
	}
}

func (p FramePatch) apply(f *Frame) {
	if p.SceneDescription != nil {
		f.SceneDescription = *p.SceneDescription
	}
	if p.CharacterDialogue != nil {
		f.CharacterDialogue = *p.CharacterDialogue
	}
	if p.Sequence != nil {
		f.Sequence = *p.Sequence
	}
	if p.VisualPrompt != nil {
		f.VisualPrompt = *p.VisualPrompt
	}
	if p.ImageData != nil {
		f.ImageData = p.ImageData
	}
	if p.ClearLineDrawing {
		f.LineDrawing = nil
	}
	if p.LineDrawing != nil {
		f.LineDrawing = p.LineDrawing
	}
	if p.DrawingData != nil {
		d := *p.DrawingData
		f.DrawingData = &d
	}
}

// persistLocked writes the whole map through a temp file so a crash never
// leaves a truncated store behind.
func (s *FileStore) persistLocked() error {
	if s.path == "" {
		s.dirty = false
		return nil
	}
	data, err := json.Marshal(s.frames)
	if err != nil {
		return fmt.Errorf("encode frames: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".frames-*.json")
	if err != nil {
		return fmt.Errorf("write frames: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write frames: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write frames: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write frames: %w", err)
	}
	s.dirty = false
	return nil
}

// String returns a pointer to v, for building patches.
func String(v string) *string { return &v }
