package state

import (
	"time"
)

// Point is one recorded pointer sample. T is active drawing time in seconds,
// not wall-clock time.
type Point struct {
	X            float64 `json:"x"`
	Y            float64 `json:"y"`
	T            float64 `json:"t"`
	IsNewSegment bool    `json:"isNewSegment"`
}

// Style is the letter styling in effect when a stroke begins.
type Style struct {
	Text      string  `json:"text"`
	FontSize  float64 `json:"fontSize"`
	Thickness float64 `json:"thickness"`
	Color     string  `json:"color"`
	Border    string  `json:"border"`
	Font      string  `json:"font,omitempty"`
}

// DefaultStyle matches the editor's initial controls.
func DefaultStyle() Style {
	return Style{
		FontSize:  24,
		Thickness: 2,
		Color:     "#000000",
		Border:    "#ffffff",
	}
}

// Letter is a character placed along the drawn path.
type Letter struct {
	Character string  `json:"character"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Angle     float64 `json:"angle"`
	FontSize  float64 `json:"fontSize"`
	Thickness float64 `json:"thickness"`
	Color     string  `json:"color"`
	Border    string  `json:"border"`
	Font      string  `json:"font,omitempty"`
	Time      float64 `json:"time"`
}

// StrokeInfo records where a stroke starts in the point sequence and the
// style it was drawn with.
type StrokeInfo struct {
	Start int   `json:"start"`
	Style Style `json:"style"`
}

// DrawingData is the persisted form of a drawing session.
type DrawingData struct {
	Points            []Point      `json:"timePoints"`
	Strokes           []StrokeInfo `json:"strokes,omitempty"`
	Letters           []Letter     `json:"letters,omitempty"`
	StartTime         *time.Time   `json:"startTime"`
	ActiveDrawingTime float64      `json:"activeDrawingTime"`
	Version           uint64       `json:"version"`
}

// Snapshot is an immutable view of a session handed to the renderer and
// exporter.
type Snapshot struct {
	Points    []Point
	Letters   []Letter
	StartTime *time.Time
	Duration  float64
	Drawing   bool
	Version   uint64
}

// Empty reports whether nothing has been drawn.
func (s Snapshot) Empty() bool {
	return len(s.Points) == 0
}

func clonePoints(p []Point) []Point {
	if p == nil {
		return nil
	}
	out := make([]Point, len(p))
	copy(out, p)
	return out
}

func cloneLetters(l []Letter) []Letter {
	if l == nil {
		return nil
	}
	out := make([]Letter, len(l))
	copy(out, l)
	return out
}

func cloneStrokes(s []StrokeInfo) []StrokeInfo {
	if s == nil {
		return nil
	}
	out := make([]StrokeInfo, len(s))
	copy(out, s)
	return out
}
