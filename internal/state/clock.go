package state

import (
	"errors"
	"math"
	"sync"
	"time"
)

// Speed limits for playback and export.
const (
	MinSpeed = 0.1
	MaxSpeed = 20.0
)

// ErrInvalidSpeed is returned for non-positive or non-finite speeds.
var ErrInvalidSpeed = errors.New("playback speed must be a positive number")

// Position maps elapsed wall time onto a forward-then-reverse traversal of
// [0, duration]. A zero duration always yields 0.
func Position(elapsed, speed, duration float64) float64 {
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0
	}
	speed = ClampSpeed(speed)
	if elapsed < 0 {
		elapsed = 0
	}
	cycle := duration * 2
	phase := math.Mod(elapsed*speed, cycle)
	if phase <= duration {
		return phase
	}
	return cycle - phase
}

// Forward reports whether the cycle is in its forward half at elapsed.
func Forward(elapsed, speed, duration float64) bool {
	if duration <= 0 {
		return true
	}
	return math.Mod(elapsed*ClampSpeed(speed), duration*2) <= duration
}

// Direction returns "Forward" or "Reverse" for display.
func Direction(elapsed, speed, duration float64) string {
	if Forward(elapsed, speed, duration) {
		return "Forward"
	}
	return "Reverse"
}

// ClampSpeed bounds speed to [MinSpeed, MaxSpeed]. Invalid values become MinSpeed.
func ClampSpeed(speed float64) float64 {
	if math.IsNaN(speed) || speed <= 0 {
		return MinSpeed
	}
	if speed < MinSpeed {
		return MinSpeed
	}
	if speed > MaxSpeed {
		return MaxSpeed
	}
	return speed
}

// ValidateSpeed rejects speeds that ClampSpeed would have to replace.
func ValidateSpeed(speed float64) error {
	if math.IsNaN(speed) || math.IsInf(speed, 0) || speed <= 0 {
		return ErrInvalidSpeed
	}
	return nil
}

// Playback tracks live playback against the wall clock.
type Playback struct {
	mu      sync.Mutex
	now     func() time.Time
	started time.Time
	playing bool
	speed   float64
}

// NewPlayback returns a stopped playback at 1x. A nil now uses time.Now.
func NewPlayback(now func() time.Time) *Playback {
	if now == nil {
		now = time.Now
	}
	return &Playback{now: now, speed: 1}
}

// Start begins playback from the start of the cycle.
func (p *Playback) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = p.now()
	p.playing = true
}

// Stop halts playback.
func (p *Playback) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

// Playing reports whether playback is running.
func (p *Playback) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// SetSpeed clamps and stores the speed multiplier.
func (p *Playback) SetSpeed(speed float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.speed = ClampSpeed(speed)
	return p.speed
}

// Speed returns the current multiplier.
func (p *Playback) Speed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.speed
}

// Elapsed returns seconds since Start.
func (p *Playback) Elapsed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return 0
	}
	return p.now().Sub(p.started).Seconds()
}

// Position returns the animation time to render for duration.
func (p *Playback) Position(duration float64) float64 {
	return Position(p.Elapsed(), p.Speed(), duration)
}
