package export

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os/exec"
	"strconv"
)

// FFmpegEncoderFactory pipes raw RGBA frames into ffmpeg, producing VP9 WebM
// at 8 Mbit/s. An empty binary uses "ffmpeg" from PATH.
func FFmpegEncoderFactory(binary string) EncoderFactory {
	if binary == "" {
		binary = "ffmpeg"
	}
	return func(path string, width, height, fps int) (Encoder, error) {
		return NewFFmpegEncoder(binary, path, width, height, fps)
	}
}

// FFmpegEncoder is a running ffmpeg process fed through stdin.
type FFmpegEncoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	width  int
	height int
}

// NewFFmpegEncoder starts ffmpeg writing a WebM file to path.
func NewFFmpegEncoder(binary, path string, width, height, fps int) (*FFmpegEncoder, error) {
	bin, err := exec.LookPath(binary)
	if err != nil {
		return nil, err
	}
	e := &FFmpegEncoder{width: width, height: height}
	e.cmd = exec.Command(bin,
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", strconv.Itoa(width)+"x"+strconv.Itoa(height),
		"-r", strconv.Itoa(fps),
		"-i", "-",
		"-c:v", "libvpx-vp9",
		"-b:v", "8M",
		"-pix_fmt", "yuv420p",
		"-f", "webm",
		path,
	)
	e.cmd.Stderr = &e.stderr
	if e.stdin, err = e.cmd.StdinPipe(); err != nil {
		return nil, err
	}
	if err := e.cmd.Start(); err != nil {
		return nil, err
	}
	return e, nil
}

// WriteFrame sends one frame. Frames of the wrong size are rejected.
func (e *FFmpegEncoder) WriteFrame(img *image.RGBA) error {
	b := img.Bounds()
	if b.Dx() != e.width || b.Dy() != e.height {
		return fmt.Errorf("frame is %dx%d, encoder expects %dx%d", b.Dx(), b.Dy(), e.width, e.height)
	}
	if img.Stride == e.width*4 {
		_, err := e.stdin.Write(img.Pix[:e.width*4*e.height])
		return err
	}
	for y := 0; y < e.height; y++ {
		off := y * img.Stride
		if _, err := e.stdin.Write(img.Pix[off : off+e.width*4]); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes stdin and waits for ffmpeg to finish the container.
func (e *FFmpegEncoder) Close() error {
	_ = e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, bytes.TrimSpace(e.stderr.Bytes()))
	}
	return nil
}

// Abort kills ffmpeg.
func (e *FFmpegEncoder) Abort() {
	_ = e.stdin.Close()
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	_ = e.cmd.Wait()
}
