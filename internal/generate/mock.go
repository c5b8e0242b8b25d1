package generate

import (
	"bytes"
	"context"
	"hash/fnv"
	"image/png"
	"strconv"
	"strings"

	"github.com/gogpu/gg"
)

// Mock draws a deterministic placeholder instead of calling a remote model.
// Each prompt yields its own colors.
type Mock struct {
	Width  int
	Height int
}

// Generate renders a gradient placeholder sized to the aspect ratio.
func (m Mock) Generate(_ context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	req = req.withDefaults()
	w, h := m.size(req.AspectRatio)

	hash := fnv.New32a()
	_, _ = hash.Write([]byte(req.Prompt))
	seed := hash.Sum32()
	hue := float64(seed % 360)

	dc := gg.NewContext(w, h)
	defer func() { _ = dc.Close() }()
	dc.ClearWithColor(gg.HSL(hue, 0.35, 0.85))

	bands := 6
	for i := 0; i < bands; i++ {
		dc.SetColor(gg.HSL(hue, 0.4, 0.75-float64(i)*0.08).Color())
		y := float64(h) * float64(i+1) / float64(bands+1)
		dc.DrawRectangle(0, y, float64(w), float64(h)/float64(bands+1))
		_ = dc.Fill()
	}
	dc.SetRGBA(1, 1, 1, 0.6)
	dc.DrawCircle(float64(w)/2, float64(h)/3, float64(w)/5)
	_ = dc.Fill()

	var buf bytes.Buffer
	if err := png.Encode(&buf, dc.Image()); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m Mock) size(ratio string) (int, int) {
	w := m.Width
	if w <= 0 {
		w = 360
	}
	h := m.Height
	if h > 0 {
		return w, h
	}
	a, b, ok := strings.Cut(ratio, ":")
	if ok {
		rw, err1 := strconv.Atoi(a)
		rh, err2 := strconv.Atoi(b)
		if err1 == nil && err2 == nil && rw > 0 && rh > 0 {
			return w, w * rh / rw
		}
	}
	return w, w
}

// MockDialogue answers with canned lines.
type MockDialogue struct{}

var mockLines = []string{
	"Did that cloud just wink at me?",
	"Told you the map was upside down.",
	"Nobody panic. Especially not the trees.",
}

// Dialogue picks a line that differs from previous.
func (MockDialogue) Dialogue(_ context.Context, still []byte, previous string) (string, error) {
	i := len(still) % len(mockLines)
	if mockLines[i] == previous {
		i = (i + 1) % len(mockLines)
	}
	return mockLines[i], nil
}
