// Package generate talks to the remote image and dialogue models.
package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Generation defaults.
const (
	DefaultModel        = "sd3.5-large"
	DefaultAspectRatio  = "9:16"
	DefaultOutputFormat = "png"
)

var (
	// ErrEmptyPrompt is returned before any remote call when there is
	// nothing to generate from.
	ErrEmptyPrompt = errors.New("please enter a scene description or visual prompt")
	// ErrGenerationFailed is the generic remote failure.
	ErrGenerationFailed = errors.New("generation failed")
)

// StatusError is a remote failure with its HTTP status.
type StatusError struct {
	Provider string
	Status   int
	Body     string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: generation failed with status %d", e.Provider, e.Status)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

func (e *StatusError) Unwrap() error { return ErrGenerationFailed }

// Request describes one image generation.
type Request struct {
	Prompt       string
	Model        string
	AspectRatio  string
	OutputFormat string
}

// withDefaults fills unset parameters.
func (r Request) withDefaults() Request {
	if r.Model == "" {
		r.Model = DefaultModel
	}
	if r.AspectRatio == "" {
		r.AspectRatio = DefaultAspectRatio
	}
	if r.OutputFormat == "" {
		r.OutputFormat = DefaultOutputFormat
	}
	return r
}

// ImageGenerator returns encoded image bytes for a prompt.
type ImageGenerator interface {
	Generate(ctx context.Context, req Request) ([]byte, error)
}

// DialogueGenerator writes the next line of dialogue for a rendered still.
type DialogueGenerator interface {
	Dialogue(ctx context.Context, still []byte, previous string) (string, error)
}

// BuildPrompt combines the scene description and visual prompt. Either may
// be empty but not both.
func BuildPrompt(scene, visual string) (string, error) {
	scene = strings.TrimSpace(scene)
	visual = strings.TrimSpace(visual)
	if scene == "" && visual == "" {
		return "", ErrEmptyPrompt
	}
	var b strings.Builder
	b.WriteString("Scene: ")
	b.WriteString(scene)
	if visual != "" {
		b.WriteString("\nAdditional details: ")
		b.WriteString(visual)
	}
	return b.String(), nil
}

// dialoguePrompt asks for a single witty line that answers previous.
func dialoguePrompt(previous string) string {
	p := "Generate a single short line of dialogue between these two characters in a movie scene. " +
		"Use the facial expressions in the image to inform the tone of the dialogue and what you say. "
	if previous != "" {
		p += fmt.Sprintf("The other character just said: '%s'. Respond to their statement. "+
			"Make sure it is a new response as if this was a movie scene dialogue. ", previous)
	}
	p += "Incorporate the doodles in the image as if they are real in the surrounding environment. " +
		"Make it brief and witty. Don't repeat the same sentiment or themes from previous dialogue."
	return p
}
