package export

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/gif"
	"os"

	xdraw "golang.org/x/image/draw"
)

// maxGIFRate is the highest frame rate browsers honor for GIF delays.
const maxGIFRate = 50

// GIFEncoderFactory writes animated GIFs. It needs no external tools.
func GIFEncoderFactory() EncoderFactory {
	return func(path string, width, height, fps int) (Encoder, error) {
		return NewGIFEncoder(path, width, height, fps)
	}
}

// GIFEncoder buffers paletted frames and writes them on Close.
type GIFEncoder struct {
	path   string
	width  int
	height int
	step   int
	delay  int
	n      int
	anim   gif.GIF
}

// NewGIFEncoder returns an encoder that writes path on Close. Frame rates
// above 50 fps are decimated.
func NewGIFEncoder(path string, width, height, fps int) (*GIFEncoder, error) {
	if width <= 0 || height <= 0 || fps <= 0 {
		return nil, fmt.Errorf("invalid gif geometry %dx%d@%d", width, height, fps)
	}
	step := 1
	for fps/step > maxGIFRate {
		step++
	}
	delay := (100*step + fps/2) / fps
	if delay < 2 {
		delay = 2
	}
	return &GIFEncoder{
		path:   path,
		width:  width,
		height: height,
		step:   step,
		delay:  delay,
		anim:   gif.GIF{LoopCount: 0},
	}, nil
}

// WriteFrame quantizes img to the web palette.
func (e *GIFEncoder) WriteFrame(img *image.RGBA) error {
	defer func() { e.n++ }()
	if e.n%e.step != 0 {
		return nil
	}
	b := img.Bounds()
	if b.Dx() != e.width || b.Dy() != e.height {
		return fmt.Errorf("frame is %dx%d, encoder expects %dx%d", b.Dx(), b.Dy(), e.width, e.height)
	}
	p := image.NewPaletted(image.Rect(0, 0, e.width, e.height), palette.WebSafe)
	xdraw.FloydSteinberg.Draw(p, p.Bounds(), img, b.Min)
	e.anim.Image = append(e.anim.Image, p)
	e.anim.Delay = append(e.anim.Delay, e.delay)
	return nil
}

// Frames returns how many frames will be written.
func (e *GIFEncoder) Frames() int {
	return len(e.anim.Image)
}

// Close encodes every buffered frame to the output file.
func (e *GIFEncoder) Close() error {
	f, err := os.Create(e.path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, &e.anim); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Abort drops the buffered frames.
func (e *GIFEncoder) Abort() {
	e.anim = gif.GIF{}
}
