// Package config loads storyboard settings from TOML or JSON files.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds every tunable of the editor and server.
type Config struct {
	ServerAddr  string `toml:"server_addr" json:"server_addr"`
	DataFile    string `toml:"data_file" json:"data_file"`
	DownloadDir string `toml:"download_dir" json:"download_dir"`
	TmpDir      string `toml:"tmp_dir" json:"tmp_dir"`
	MDNS        bool   `toml:"mdns" json:"mdns"`

	Canvas    CanvasConfig    `toml:"canvas" json:"canvas"`
	Export    ExportConfig    `toml:"export" json:"export"`
	Image     ImageConfig     `toml:"image" json:"image"`
	Dialogue  DialogueConfig  `toml:"dialogue" json:"dialogue"`
	LineDraw  LineDrawConfig  `toml:"line_drawing" json:"line_drawing"`
	Editor    EditorConfig    `toml:"editor" json:"editor"`
	CORS      []string        `toml:"cors_origins" json:"cors_origins"`
	OpenAI    OpenAIConfig    `toml:"openai" json:"openai"`
	Stability StabilityConfig `toml:"stability" json:"stability"`
}

type CanvasConfig struct {
	Width         int     `toml:"width" json:"width"`
	Height        int     `toml:"height" json:"height"`
	SpacingFactor float64 `toml:"spacing_factor" json:"spacing_factor"`
}

type ExportConfig struct {
	FPS      int    `toml:"fps" json:"fps"`
	Encoder  string `toml:"encoder" json:"encoder"` // "webm" or "gif"
	FFmpeg   string `toml:"ffmpeg" json:"ffmpeg"`
	RealTime bool   `toml:"real_time" json:"real_time"`
}

type ImageConfig struct {
	Provider     string `toml:"provider" json:"provider"` // "stability", "openai" or "mock"
	Model        string `toml:"model" json:"model"`
	AspectRatio  string `toml:"aspect_ratio" json:"aspect_ratio"`
	OutputFormat string `toml:"output_format" json:"output_format"`
}

type DialogueConfig struct {
	Provider string `toml:"provider" json:"provider"` // "openai" or "mock"
	Model    string `toml:"model" json:"model"`
}

type LineDrawConfig struct {
	URL    string `toml:"url" json:"url"`
	Detail string `toml:"detail" json:"detail"`
}

// EditorConfig selects the editor variant.
type EditorConfig struct {
	Theme            string            `toml:"theme" json:"theme"`
	ShowDebugOverlay bool              `toml:"show_debug_overlay" json:"show_debug_overlay"`
	Fonts            map[string]string `toml:"fonts" json:"fonts"`
	ControlLayout    string            `toml:"control_layout" json:"control_layout"`
}

type OpenAIConfig struct {
	APIKey  string `toml:"api_key" json:"api_key"`
	BaseURL string `toml:"base_url" json:"base_url"`
}

type StabilityConfig struct {
	APIKey string `toml:"api_key" json:"api_key"`
	URL    string `toml:"url" json:"url"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		ServerAddr:  ":8888",
		DataFile:    "storyboard-frames.json",
		DownloadDir: ".",
		MDNS:        true,
		Canvas: CanvasConfig{
			Width:         720,
			Height:        1280,
			SpacingFactor: 1.2,
		},
		Export: ExportConfig{
			FPS:     60,
			Encoder: "webm",
		},
		Image: ImageConfig{
			Provider:     "stability",
			Model:        "sd3.5-large",
			AspectRatio:  "9:16",
			OutputFormat: "png",
		},
		Dialogue: DialogueConfig{Provider: "openai"},
		LineDraw: LineDrawConfig{
			URL:    "http://localhost:5000/process-line-drawing",
			Detail: "medium",
		},
		Editor: EditorConfig{
			Theme:         "light",
			ControlLayout: "full",
		},
		CORS: []string{"http://localhost:3000", "http://localhost:3001"},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty or missing path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, err
		default:
			if err := decode(path, data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return json.Unmarshal(data, cfg)
	}
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := getenv("STABILITY_API_KEY"); v != "" {
		c.Stability.APIKey = v
	}
	if v := getenv("STORYBOARD_ADDR"); v != "" {
		c.ServerAddr = v
	}
	if v := getenv("LINE_DRAWING_URL"); v != "" {
		c.LineDraw.URL = v
	}
}

// Validate rejects settings the editor cannot run with.
func (c Config) Validate() error {
	if c.Canvas.Width <= 0 || c.Canvas.Height <= 0 {
		return fmt.Errorf("canvas size must be positive, got %dx%d", c.Canvas.Width, c.Canvas.Height)
	}
	if c.Canvas.SpacingFactor <= 0 {
		return errors.New("canvas.spacing_factor must be positive")
	}
	if c.Export.FPS <= 0 || c.Export.FPS > 120 {
		return fmt.Errorf("export.fps must be in 1..120, got %d", c.Export.FPS)
	}
	switch c.Export.Encoder {
	case "webm", "gif":
	default:
		return fmt.Errorf("unknown export.encoder %q", c.Export.Encoder)
	}
	switch c.Image.Provider {
	case "stability", "openai", "mock":
	default:
		return fmt.Errorf("unknown image.provider %q", c.Image.Provider)
	}
	switch c.Dialogue.Provider {
	case "openai", "mock":
	default:
		return fmt.Errorf("unknown dialogue.provider %q", c.Dialogue.Provider)
	}
	return nil
}

// ExportFilename is the download name for the configured encoder.
func (c Config) ExportFilename() string {
	if c.Export.Encoder == "gif" {
		return "animation.gif"
	}
	return "animation.webm"
}
