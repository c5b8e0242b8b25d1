package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"log"

	_ "golang.org/x/image/webp"

	"Storyboard/internal/generate"
	"Storyboard/internal/store"
)

// ImageOutcome reports what an image change stored.
type ImageOutcome struct {
	Frame       store.Frame
	LineDrawing bool
}

// GenerateImage builds a prompt from the frame's scene description and visual
// prompt, asks the image generator for a still and installs it as the
// background.
func (e *Editor) GenerateImage(ctx context.Context) (ImageOutcome, error) {
	if e.deps.Images == nil {
		return ImageOutcome{}, errors.New("no image generator configured")
	}
	var f store.Frame
	if e.deps.Repo != nil {
		got, err := e.deps.Repo.Get(e.cfg.FrameID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return ImageOutcome{}, err
		}
		f = got
	}
	prompt, err := generate.BuildPrompt(f.SceneDescription, f.VisualPrompt)
	if err != nil {
		return ImageOutcome{}, err
	}
	req := e.cfg.Image
	req.Prompt = prompt
	log.Printf("[EDITOR] Generating image for %s", e.cfg.FrameID)
	data, err := e.deps.Images.Generate(ctx, req)
	if err != nil {
		log.Printf("[EDITOR] Image generation for %s failed: %v", e.cfg.FrameID, err)
		return ImageOutcome{}, err
	}
	return e.applyImage(ctx, data)
}

// UploadImage installs a user supplied image as the background.
func (e *Editor) UploadImage(ctx context.Context, data []byte) (ImageOutcome, error) {
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return ImageOutcome{}, ErrNotImage
	}
	return e.applyImage(ctx, data)
}

// applyImage stores data as the frame image and tries to derive a line
// drawing. A failed line drawing keeps the original and leaves the processed
// slot empty.
func (e *Editor) applyImage(ctx context.Context, data []byte) (ImageOutcome, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return ImageOutcome{}, fmt.Errorf("decode image: %w", err)
	}

	var out ImageOutcome
	patch := store.FramePatch{ImageData: data, ClearLineDrawing: true}
	var processed image.Image
	if e.deps.Lines != nil {
		res, err := e.deps.Lines.Process(ctx, data, e.cfg.Detail)
		switch {
		case err != nil:
			log.Printf("[EDITOR] Line drawing failed, keeping original image: %v", err)
		case len(res.Images) == 0:
			log.Printf("[EDITOR] Line drawing returned no images")
		default:
			if p, _, derr := image.Decode(bytes.NewReader(res.Images[0])); derr != nil {
				log.Printf("[EDITOR] Line drawing is not an image: %v", derr)
			} else {
				processed = p
				patch.LineDrawing = res.Images[0]
				out.LineDrawing = true
			}
		}
	}

	if e.deps.Repo != nil {
		f, err := e.update(patch)
		if err != nil {
			return out, err
		}
		out.Frame = f
	}

	e.mu.Lock()
	e.bg.Original = img
	e.bg.Processed = processed
	bg := e.bg
	e.mu.Unlock()
	e.renderer.SetBackground(bg)
	return out, nil
}

// GenerateDialogue asks for a short line matching the current still and
// makes it the drawing text.
func (e *Editor) GenerateDialogue(ctx context.Context) (string, error) {
	if e.deps.Dialogue == nil {
		return "", errors.New("no dialogue generator configured")
	}
	still, err := e.Still()
	if err != nil {
		return "", err
	}
	line, err := e.deps.Dialogue.Dialogue(ctx, still, e.Style().Text)
	if err != nil {
		log.Printf("[EDITOR] Dialogue generation for %s failed: %v", e.cfg.FrameID, err)
		return "", err
	}
	e.SetText(line)
	return line, nil
}

// StillImage renders the whole drawing without overlay.
func (e *Editor) StillImage() *image.RGBA {
	return e.renderer.Render(e.rec.Snapshot(), renderIdle, nil)
}

// Still is StillImage encoded as PNG.
func (e *Editor) Still() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, e.StillImage()); err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeBackground(data []byte) image.Image {
	if len(data) == 0 {
		return nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		log.Printf("[EDITOR] Background image failed to load: %v", err)
		return nil
	}
	return img
}
