package linedraw

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n0000")

func TestProcessDecodesImages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, strings.HasPrefix(req.Image, "data:image/png;base64,"))
		assert.Equal(t, DetailHigh, req.DetailLevel)
		_ = json.NewEncoder(w).Encode(response{
			Success: true,
			Images: []string{
				base64.StdEncoding.EncodeToString([]byte("lines")),
				"data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("more")),
			},
		})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Process(context.Background(), pngHeader, DetailHigh)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, [][]byte{[]byte("lines"), []byte("more")}, res.Images)
}

func TestProcessFailureFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(response{Success: false, Error: "model files not found"})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Process(context.Background(), pngHeader, "")
	assert.ErrorIs(t, err, ErrFailed)
	assert.Contains(t, err.Error(), "model files not found")
}

func TestProcessUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).Process(context.Background(), pngHeader, DetailLow)
	assert.ErrorIs(t, err, ErrFailed)
}

func TestParseDetail(t *testing.T) {
	assert.Equal(t, DetailLow, ParseDetail("LOW"))
	assert.Equal(t, DetailHigh, ParseDetail(" high "))
	assert.Equal(t, DetailMedium, ParseDetail(""))
	assert.Equal(t, DetailMedium, ParseDetail("extreme"))
}
