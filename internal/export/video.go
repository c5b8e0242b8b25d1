// Package export turns drawing sessions into video files and storyboards.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"Storyboard/internal/render"
	"Storyboard/internal/state"
)

// DefaultFPS is the capture rate of exported animations.
const DefaultFPS = 60

var (
	// ErrBusy is returned when an export is already running.
	ErrBusy = errors.New("export already in progress")
	// ErrEncoderUnavailable is returned when no encoder could be started.
	ErrEncoderUnavailable = errors.New("video encoder unavailable")
)

// State is the exporter lifecycle.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

// Pace controls how elapsed time advances between captured frames.
type Pace int

const (
	// PaceOffline advances exactly 1/fps per frame, as fast as frames render.
	PaceOffline Pace = iota
	// PaceRealTime samples the wall clock on a ticker at the capture rate.
	PaceRealTime
)

// Encoder consumes rendered frames and writes a container file.
type Encoder interface {
	WriteFrame(img *image.RGBA) error
	// Close finalizes the container. It must be called at most once.
	Close() error
	// Abort stops encoding and releases resources without finalizing.
	Abort()
}

// EncoderFactory starts an encoder writing to path.
type EncoderFactory func(path string, width, height, fps int) (Encoder, error)

// FrameRenderer is the part of render.Renderer an export drives.
type FrameRenderer interface {
	Render(snap state.Snapshot, v render.View, overlay []string) *image.RGBA
	Size() (int, int)
}

// Options configures an Exporter.
type Options struct {
	FPS        int
	Pace       Pace
	Dir        string
	Filename   string
	NewEncoder EncoderFactory
	Now        func() time.Time
}

// Request is one export job.
type Request struct {
	Snapshot state.Snapshot
	Speed    float64
	// Name keeps exports of different frames apart: the file is written
	// under a subdirectory of that name. Empty writes into the export dir.
	Name string
}

// Result describes a finished export.
type Result struct {
	ID       string
	Path     string
	Frames   int
	Duration float64
	Speed    float64
}

// Exporter runs one forward-then-reverse cycle of a session through a
// renderer into an encoder. Only one export runs at a time.
type Exporter struct {
	mu    sync.Mutex
	state State

	fps        int
	pace       Pace
	dir        string
	filename   string
	newEncoder EncoderFactory
	now        func() time.Time
}

// NewExporter returns an idle exporter. Without an encoder factory it
// writes WebM through ffmpeg.
func NewExporter(opts Options) *Exporter {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Filename == "" {
		opts.Filename = "animation.webm"
	}
	if opts.Dir == "" {
		opts.Dir = os.TempDir()
	}
	if opts.NewEncoder == nil {
		opts.NewEncoder = FFmpegEncoderFactory("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Exporter{
		fps:        opts.FPS,
		pace:       opts.Pace,
		dir:        opts.Dir,
		filename:   opts.Filename,
		newEncoder: opts.NewEncoder,
		now:        opts.Now,
	}
}

// State returns the current lifecycle state.
func (e *Exporter) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Busy reports whether an export is running.
func (e *Exporter) Busy() bool {
	return e.State() != StateIdle
}

func (e *Exporter) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// FrameCount is the number of frames one full cycle takes at fps.
func FrameCount(duration, speed float64, fps int) int {
	if duration <= 0 || fps <= 0 {
		return 1
	}
	speed = state.ClampSpeed(speed)
	n := 0
	for float64(n)/float64(fps)*speed < duration*2 {
		n++
	}
	return n
}

// Export renders one full cycle and returns the written file. A call made
// while another export runs returns ErrBusy and leaves the running export
// untouched. On any error the partial file is removed.
func (e *Exporter) Export(ctx context.Context, r FrameRenderer, req Request) (Result, error) {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		log.Printf("[EXPORT] Ignoring export request, %s", e.state)
		return Result{}, ErrBusy
	}
	e.state = StateRecording
	e.mu.Unlock()
	defer e.setState(StateIdle)

	id := uuid.NewString()
	speed := state.ClampSpeed(req.Speed)
	duration := req.Snapshot.Duration
	w, h := r.Size()

	dir := e.outputDir(req.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("create export dir: %w", err)
	}
	final := filepath.Join(dir, e.filename)
	tmp := filepath.Join(dir, "."+id+"-"+e.filename)

	enc, err := e.newEncoder(tmp, w, h, e.fps)
	if err != nil {
		_ = os.Remove(tmp)
		log.Printf("[EXPORT] Encoder start failed: %v", err)
		return Result{}, fmt.Errorf("%w: %v", ErrEncoderUnavailable, err)
	}

	log.Printf("[EXPORT] %s started: %.2fs at %.1fx, %dx%d@%d", id[:8], duration, speed, w, h, e.fps)

	frames, err := e.capture(ctx, r, enc, req.Snapshot, speed)
	if err != nil {
		enc.Abort()
		_ = os.Remove(tmp)
		log.Printf("[EXPORT] %s aborted after %d frames: %v", id[:8], frames, err)
		return Result{}, err
	}

	e.setState(StateFinalizing)
	if err := enc.Close(); err != nil {
		_ = os.Remove(tmp)
		return Result{}, fmt.Errorf("finalize video: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.Remove(tmp)
		return Result{}, fmt.Errorf("move video into place: %w", err)
	}

	log.Printf("[EXPORT] %s wrote %d frames to %s", id[:8], frames, final)
	return Result{ID: id, Path: final, Frames: frames, Duration: duration, Speed: speed}, nil
}

// outputDir is the directory an export named name is written to. Names
// that are not a single path element fall back to the export dir.
func (e *Exporter) outputDir(name string) string {
	if name == "" || name == "." || name == ".." || name != filepath.Base(name) {
		return e.dir
	}
	return filepath.Join(e.dir, name)
}

func (e *Exporter) capture(ctx context.Context, r FrameRenderer, enc Encoder, snap state.Snapshot, speed float64) (int, error) {
	duration := snap.Duration
	cycle := duration * 2

	emit := func(elapsed float64) error {
		t := state.Position(elapsed, speed, duration)
		return enc.WriteFrame(r.Render(snap, render.Exporting(t), nil))
	}

	if e.pace == PaceRealTime {
		return e.captureRealTime(ctx, emit, speed, cycle)
	}

	frames := 0
	for {
		if err := ctx.Err(); err != nil {
			return frames, err
		}
		elapsed := float64(frames) / float64(e.fps)
		if frames > 0 && elapsed*speed >= cycle {
			return frames, nil
		}
		if err := emit(elapsed); err != nil {
			return frames, fmt.Errorf("write frame %d: %w", frames, err)
		}
		frames++
	}
}

func (e *Exporter) captureRealTime(ctx context.Context, emit func(float64) error, speed, cycle float64) (int, error) {
	ticker := time.NewTicker(time.Second / time.Duration(e.fps))
	defer ticker.Stop()

	start := e.now()
	frames := 0
	for {
		elapsed := e.now().Sub(start).Seconds()
		if frames > 0 && elapsed*speed >= cycle {
			return frames, nil
		}
		if err := emit(elapsed); err != nil {
			return frames, fmt.Errorf("write frame %d: %w", frames, err)
		}
		frames++

		select {
		case <-ctx.Done():
			return frames, ctx.Err()
		case <-ticker.C:
		}
	}
}
