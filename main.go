package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gogpu/gg"
	"github.com/google/uuid"

	"Storyboard/internal/config"
	"Storyboard/internal/editor"
	"Storyboard/internal/export"
	"Storyboard/internal/generate"
	"Storyboard/internal/linedraw"
	snet "Storyboard/internal/net"
	"Storyboard/internal/render"
	"Storyboard/internal/server"
	"Storyboard/internal/state"
	"Storyboard/internal/store"
	"Storyboard/internal/transcode"
	"Storyboard/internal/ui"
)

func main() {
	configPath := flag.String("config", "storyboard.toml", "settings file (TOML or JSON)")
	serve := flag.Bool("serve", false, "run the HTTP server without a window")
	addr := flag.String("addr", "", "listen address, overrides server_addr")
	frameID := flag.String("frame", "opening", `frame to edit; "new" starts a fresh one`)
	discover := flag.Bool("discover", false, "list storyboard servers on the local network and exit")
	offline := flag.Bool("offline", false, "do not share the desktop editor over HTTP")
	verbose := flag.Bool("v", false, "log rasterizer internals")
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if *verbose {
		gg.SetLogger(slog.Default())
	}

	if *discover {
		runDiscover()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.ServerAddr = *addr
	}

	repo, err := store.NewFileStore(cfg.DataFile, store.WithWriteBehind(500*time.Millisecond))
	if err != nil {
		log.Fatalf("Failed to open frame store: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			log.Printf("[STORE] Flush on exit: %v", err)
		}
	}()

	fonts, err := render.NewFontCatalog(cfg.Editor.Fonts)
	if err != nil {
		log.Fatalf("Failed to load fonts: %v", err)
	}
	defer fonts.Close()

	opts := server.Options{
		Repo:      repo,
		Fonts:     fonts,
		Exporter:  newExporter(cfg),
		Images:    newImages(cfg),
		Lines:     linedraw.NewClient(cfg.LineDraw.URL),
		Dialogue:  newDialogue(cfg),
		Editor:    editorConfig(cfg, fonts),
		Transcode: transcode.NewHandler(transcode.FFmpegRunner{Binary: cfg.Export.FFmpeg}, cfg.TmpDir),
		CORS:      cfg.CORS,
	}

	if *serve {
		runServer(cfg, opts)
		return
	}

	id := *frameID
	if id == "new" {
		id = uuid.NewString()
	}
	runDesktop(cfg, opts, id, *offline)
}

func editorConfig(cfg config.Config, fonts *render.FontCatalog) editor.Config {
	return editor.Config{
		Theme:            cfg.Editor.Theme,
		ShowDebugOverlay: cfg.Editor.ShowDebugOverlay,
		AvailableFonts:   fonts.Names(),
		ControlLayout:    editor.Layout(cfg.Editor.ControlLayout),
		Width:            cfg.Canvas.Width,
		Height:           cfg.Canvas.Height,
		SpacingFactor:    cfg.Canvas.SpacingFactor,
		Detail:           linedraw.ParseDetail(cfg.LineDraw.Detail),
		Image: generate.Request{
			Model:        cfg.Image.Model,
			AspectRatio:  cfg.Image.AspectRatio,
			OutputFormat: cfg.Image.OutputFormat,
		},
	}
}

func newExporter(cfg config.Config) *export.Exporter {
	opts := export.Options{
		FPS:      cfg.Export.FPS,
		Dir:      cfg.DownloadDir,
		Filename: cfg.ExportFilename(),
	}
	if cfg.Export.RealTime {
		opts.Pace = export.PaceRealTime
	}
	switch cfg.Export.Encoder {
	case "gif":
		opts.NewEncoder = export.GIFEncoderFactory()
	default:
		opts.NewEncoder = export.FFmpegEncoderFactory(cfg.Export.FFmpeg)
	}
	return export.NewExporter(opts)
}

func newImages(cfg config.Config) generate.ImageGenerator {
	switch cfg.Image.Provider {
	case "openai":
		gen, err := generate.NewOpenAIImages(generate.OpenAISettings{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
		})
		if err == nil {
			return gen
		}
		log.Printf("[MAIN] OpenAI images unavailable, using placeholders: %v", err)
	case "stability":
		if cfg.Stability.APIKey != "" {
			return generate.NewStability(cfg.Stability.URL, cfg.Stability.APIKey)
		}
		log.Println("[MAIN] No Stability API key, using placeholder images")
	}
	return generate.Mock{Width: cfg.Canvas.Width, Height: cfg.Canvas.Height}
}

func newDialogue(cfg config.Config) generate.DialogueGenerator {
	if cfg.Dialogue.Provider == "openai" {
		gen, err := generate.NewOpenAIDialogue(generate.OpenAISettings{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.Dialogue.Model,
		})
		if err == nil {
			return gen
		}
		log.Printf("[MAIN] OpenAI dialogue unavailable, using placeholder lines: %v", err)
	}
	return generate.MockDialogue{}
}

// listen starts the HTTP server, and the mDNS advertisement if enabled.
// The returned function shuts both down.
func listen(cfg config.Config, srv *server.Server) (port int, shutdown func(), err error) {
	ln, err := net.Listen("tcp", cfg.ServerAddr)
	if err != nil {
		return 0, nil, fmt.Errorf("listen on %s: %w", cfg.ServerAddr, err)
	}
	_, p, _ := net.SplitHostPort(ln.Addr().String())
	port, _ = strconv.Atoi(p)

	httpServer := &http.Server{
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("[SERVER] Serve: %v", err)
		}
	}()
	log.Printf("[SERVER] Listening on %s, share %s", ln.Addr(), snet.ShareURL(port))

	stopMDNS := func() error { return nil }
	if cfg.MDNS {
		zone, err := snet.Advertise(port)
		if err != nil {
			log.Printf("[MDNS] Advertise failed: %v", err)
		} else {
			stopMDNS = zone.Shutdown
		}
	}

	shutdown = func() {
		if err := stopMDNS(); err != nil {
			log.Printf("[MDNS] Shutdown: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.Printf("[SERVER] Shutdown: %v", err)
		}
		srv.Close()
	}
	return port, shutdown, nil
}

func runServer(cfg config.Config, opts server.Options) {
	srv, err := server.New(opts)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}
	_, shutdown, err := listen(cfg, srv)
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	log.Println("[SERVER] Shutting down")
	shutdown()
}

func runDesktop(cfg config.Config, opts server.Options, frameID string, offline bool) {
	var srv *server.Server
	var ed *editor.Editor
	var lastVersion atomic.Uint64
	edCfg := opts.Editor
	edCfg.FrameID = frameID
	ed = editor.New(edCfg, editor.Deps{
		Repo:     opts.Repo,
		Fonts:    opts.Fonts,
		Exporter: opts.Exporter,
		Images:   opts.Images,
		Lines:    opts.Lines,
		Dialogue: opts.Dialogue,
		OnChange: func(data state.DrawingData) {
			// Viewers get the session once a stroke ends, not on every move.
			if srv == nil || ed == nil || ed.Recorder().Dragging() {
				return
			}
			if lastVersion.Swap(data.Version) == data.Version {
				return
			}
			srv.Publish(frameID, data)
		},
	})

	appOpts := ui.AppOptions{
		WritePDF: func(w io.Writer) error {
			return editor.WriteStoryboard(w, opts.Repo, func(id string) *editor.Editor {
				if id == frameID {
					return ed
				}
				other := edCfg
				other.FrameID = id
				return editor.New(other, editor.Deps{Repo: opts.Repo, Fonts: opts.Fonts})
			})
		},
	}

	if !offline {
		s, err := server.New(opts)
		if err != nil {
			log.Fatalf("Failed to create server: %v", err)
		}
		s.Attach(ed)
		port, shutdown, err := listen(cfg, s)
		if err != nil {
			log.Printf("[MAIN] Sharing disabled: %v", err)
		} else {
			srv = s
			defer shutdown()
			appOpts.ShareURL = snet.ShareURL(port)
		}
	}

	ui.RunApp(ed, appOpts)
}

func runDiscover() {
	fmt.Println("Looking for storyboard servers...")
	found := 0
	err := snet.Browse(3*time.Second, func(addr string) {
		found++
		fmt.Printf("  http://%s/\n", addr)
	})
	if err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}
	if found == 0 {
		fmt.Println("No servers found.")
	}
}
