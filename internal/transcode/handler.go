// Package transcode converts exported WebM clips into MP4 downloads.
package transcode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
)

// MaxUpload bounds the accepted clip size.
const MaxUpload = 512 << 20

// Runner converts the file at in to the file at out.
type Runner interface {
	Run(ctx context.Context, in, out string) error
}

// FFmpegRunner transcodes to H.264/AAC with ffmpeg.
type FFmpegRunner struct {
	Binary string
}

// Run invokes ffmpeg and includes its stderr in the error.
func (f FFmpegRunner) Run(ctx context.Context, in, out string) error {
	bin := f.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, bin,
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", in,
		"-c:v", "libx264", "-preset", "fast", "-crf", "22",
		"-c:a", "aac", "-b:a", "128k",
		out,
	)
	if msg, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, msg)
	}
	return nil
}

// Handler accepts a multipart "video" field and answers with animation.mp4.
// Both temp files are removed after every request, whatever the outcome.
type Handler struct {
	Runner Runner
	TmpDir string
}

// NewHandler returns a handler running r. An empty tmpDir uses the OS default.
func NewHandler(r Runner, tmpDir string) *Handler {
	if r == nil {
		r = FFmpegRunner{}
	}
	return &Handler{Runner: r, TmpDir: tmpDir}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}
	video, _, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing 'video' field")
		return
	}
	defer video.Close()

	if h.TmpDir != "" {
		if err := os.MkdirAll(h.TmpDir, 0o755); err != nil {
			log.Printf("[TRANSCODE] tmp dir: %v", err)
			writeError(w, http.StatusInternalServerError, "Conversion failed")
			return
		}
	}

	in, err := os.CreateTemp(h.TmpDir, "upload-*.webm")
	if err != nil {
		log.Printf("[TRANSCODE] create input: %v", err)
		writeError(w, http.StatusInternalServerError, "Conversion failed")
		return
	}
	inPath := in.Name()
	outPath := inPath[:len(inPath)-len(".webm")] + ".mp4"
	defer func() {
		_ = os.Remove(inPath)
		_ = os.Remove(outPath)
	}()

	_, err = io.Copy(in, video)
	if cerr := in.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.Printf("[TRANSCODE] write input: %v", err)
		writeError(w, http.StatusInternalServerError, "Conversion failed")
		return
	}

	if err := h.Runner.Run(r.Context(), inPath, outPath); err != nil {
		log.Printf("[TRANSCODE] Conversion error: %v", err)
		writeError(w, http.StatusInternalServerError, "Conversion failed")
		return
	}

	out, err := os.Open(outPath)
	if err != nil {
		log.Printf("[TRANSCODE] open output: %v", err)
		writeError(w, http.StatusInternalServerError, "Conversion failed")
		return
	}
	defer out.Close()

	w.Header().Set("Content-Type", "video/mp4")
	w.Header().Set("Content-Disposition", `attachment; filename="animation.mp4"`)
	if info, err := out.Stat(); err == nil {
		w.Header().Set("Content-Length", fmt.Sprint(info.Size()))
	}
	if _, err := io.Copy(w, out); err != nil {
		log.Printf("[TRANSCODE] send output: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
