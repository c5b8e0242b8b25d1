package generate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// DefaultStabilityURL is the SD3 endpoint.
const DefaultStabilityURL = "https://api.stability.ai/v2beta/stable-image/generate/sd3"

// Stability generates images with the Stability AI REST API.
type Stability struct {
	URL    string
	APIKey string
	Client *http.Client
}

// NewStability returns a client for apiKey. An empty url uses DefaultStabilityURL.
func NewStability(url, apiKey string) *Stability {
	if url == "" {
		url = DefaultStabilityURL
	}
	return &Stability{
		URL:    url,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Generate posts the prompt as multipart form data and returns the image body.
func (s *Stability) Generate(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	req = req.withDefaults()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range [][2]string{
		{"prompt", req.Prompt},
		{"output_format", req.OutputFormat},
		{"model", req.Model},
		{"aspect_ratio", req.AspectRatio},
	} {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	hr, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, &body)
	if err != nil {
		return nil, err
	}
	hr.Header.Set("Authorization", "Bearer "+s.APIKey)
	hr.Header.Set("Accept", "image/*")
	hr.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.Client.Do(hr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read stability response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Provider: "stability", Status: resp.StatusCode, Body: snippet(data)}
	}
	return data, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
