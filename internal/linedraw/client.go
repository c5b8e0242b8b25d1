// Package linedraw is a client for the line-drawing processing service.
package linedraw

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultURL is where the processing service listens by default.
const DefaultURL = "http://localhost:5000/process-line-drawing"

// ErrFailed is returned when the service reports failure or returns nothing.
var ErrFailed = errors.New("line drawing processing failed")

// Detail selects how many edges the service keeps.
type Detail string

const (
	DetailLow    Detail = "low"
	DetailMedium Detail = "medium"
	DetailHigh   Detail = "high"
)

// ParseDetail maps a config value onto a Detail, defaulting to medium.
func ParseDetail(s string) Detail {
	switch Detail(strings.ToLower(strings.TrimSpace(s))) {
	case DetailLow:
		return DetailLow
	case DetailHigh:
		return DetailHigh
	default:
		return DetailMedium
	}
}

// Result is the decoded service response.
type Result struct {
	Success bool
	Images  [][]byte
}

type request struct {
	Image       string `json:"image"`
	DetailLevel Detail `json:"detail_level"`
}

type response struct {
	Success bool     `json:"success"`
	Images  []string `json:"images"`
	Error   string   `json:"error,omitempty"`
}

// Processor turns an image into line drawing variants.
type Processor interface {
	Process(ctx context.Context, img []byte, detail Detail) (Result, error)
}

// Client posts images to the service as data URIs.
type Client struct {
	URL    string
	HTTP   *http.Client
	Detail Detail
}

// NewClient returns a client for url, or DefaultURL when empty.
func NewClient(url string) *Client {
	if url == "" {
		url = DefaultURL
	}
	return &Client{
		URL:    url,
		HTTP:   &http.Client{Timeout: 90 * time.Second},
		Detail: DetailMedium,
	}
}

// Process sends img and returns the decoded variants. Any failure, including
// a success flag of false, wraps ErrFailed.
func (c *Client) Process(ctx context.Context, img []byte, detail Detail) (Result, error) {
	if detail == "" {
		detail = c.Detail
	}
	body, err := json.Marshal(request{Image: DataURI(img), DetailLevel: detail})
	if err != nil {
		return Result{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrFailed, err)
	}
	defer resp.Body.Close()

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("%w: status %d: %v", ErrFailed, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{}, fmt.Errorf("%w: %s", ErrFailed, msg)
	}
	if len(out.Images) == 0 {
		return Result{}, fmt.Errorf("%w: no images returned", ErrFailed)
	}

	res := Result{Success: true}
	for i, s := range out.Images {
		b, err := DecodeDataURI(s)
		if err != nil {
			return Result{}, fmt.Errorf("%w: image %d: %v", ErrFailed, i, err)
		}
		res.Images = append(res.Images, b)
	}
	return res, nil
}

// DataURI encodes img as a base64 data URI, sniffing its content type.
func DataURI(img []byte) string {
	return "data:" + http.DetectContentType(img) + ";base64," + base64.StdEncoding.EncodeToString(img)
}

// DecodeDataURI accepts either a data URI or bare base64.
func DecodeDataURI(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if _, payload, ok := strings.Cut(s, ","); ok {
			s = payload
		}
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}
