// Package server exposes frames, generation, export and live drawing over
// HTTP for browser front ends.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"Storyboard/internal/editor"
	"Storyboard/internal/export"
	"Storyboard/internal/generate"
	"Storyboard/internal/linedraw"
	snet "Storyboard/internal/net"
	"Storyboard/internal/render"
	"Storyboard/internal/state"
	"Storyboard/internal/store"
)

const (
	maxUpload     = 32 << 20
	remoteTimeout = 90 * time.Second
)

// Options wires the server to its collaborators. Editor is the template
// every frame editor is created from; its FrameID is ignored.
type Options struct {
	Repo      store.Repository
	Fonts     *render.FontCatalog
	Exporter  *export.Exporter
	Images    generate.ImageGenerator
	Lines     linedraw.Processor
	Dialogue  generate.DialogueGenerator
	Editor    editor.Config
	Transcode http.Handler
	CORS      []string
	Hub       *snet.Hub
}

type Server struct {
	opts Options
	hub  *snet.Hub

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	editors map[string]*editor.Editor
	stops   map[string]context.CancelFunc
	exports map[string]export.Result
}

// New returns a server. Close stops the editors it opened.
func New(opts Options) (*Server, error) {
	if opts.Repo == nil {
		return nil, errors.New("frame repository required")
	}
	hub := opts.Hub
	if hub == nil {
		hub = snet.NewHub()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		opts:    opts,
		hub:     hub,
		ctx:     ctx,
		cancel:  cancel,
		editors: make(map[string]*editor.Editor),
		stops:   make(map[string]context.CancelFunc),
		exports: make(map[string]export.Result),
	}, nil
}

// Close ends every open editor.
func (s *Server) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ed := range s.editors {
		ed.Close()
	}
}

// editor returns the frame's editor, opening it on first use.
func (s *Server) editor(id string) *editor.Editor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ed, ok := s.editors[id]; ok {
		return ed
	}
	cfg := s.opts.Editor
	cfg.FrameID = id
	ed := editor.New(cfg, editor.Deps{
		Repo:     s.opts.Repo,
		Fonts:    s.opts.Fonts,
		Exporter: s.opts.Exporter,
		Images:   s.opts.Images,
		Lines:    s.opts.Lines,
		Dialogue: s.opts.Dialogue,
	})
	ctx, stop := context.WithCancel(s.ctx)
	go func() { _ = ed.Run(ctx) }()
	s.editors[id] = ed
	s.stops[id] = stop
	return ed
}

// serving reports whether ed is still the editor of frame id.
func (s *Server) serving(id string, ed *editor.Editor) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editors[id] == ed
}

// drop stops frame id's editor and disconnects its live viewers.
func (s *Server) drop(id string) {
	s.mu.Lock()
	ed, ok := s.editors[id]
	stop := s.stops[id]
	delete(s.editors, id)
	delete(s.stops, id)
	delete(s.exports, id)
	s.mu.Unlock()

	s.hub.CloseRoom(id)
	if stop != nil {
		stop()
	}
	if ok {
		ed.Close()
	}
}

// Attach serves an editor opened elsewhere, e.g. by the desktop window,
// so live viewers share its session. The caller runs its command loop.
func (s *Server) Attach(ed *editor.Editor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editors[ed.FrameID()] = ed
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleOverviewPage)
	mux.HandleFunc("GET /api/outline", s.handleOutline)
	mux.HandleFunc("GET /api/frames", s.handleFrames)
	mux.HandleFunc("GET /api/frames/{id}", s.handleFrameGet)
	mux.HandleFunc("PATCH /api/frames/{id}", s.handleFramePatch)
	mux.HandleFunc("DELETE /api/frames/{id}", s.handleFrameDelete)
	mux.HandleFunc("POST /api/frames/{id}/generate-image", s.handleGenerateImage)
	mux.HandleFunc("POST /api/frames/{id}/image", s.handleUpload)
	mux.HandleFunc("POST /api/frames/{id}/dialogue", s.handleDialogue)
	mux.HandleFunc("POST /api/frames/{id}/speed", s.handleSpeed)
	mux.HandleFunc("POST /api/frames/{id}/{command}", s.handleCommand)
	mux.HandleFunc("GET /api/frames/{id}/still.png", s.handleStill)
	mux.HandleFunc("GET /api/frames/{id}/export", s.handleExportDownload)
	mux.HandleFunc("GET /api/frames/{id}/live", s.handleLive)
	mux.HandleFunc("GET /api/storyboard.pdf", s.handleStoryboardPDF)
	if s.opts.Transcode != nil {
		mux.Handle("/convert-to-mp4", s.opts.Transcode)
	}
	return logMiddleware(corsMiddleware(s.opts.CORS, mux))
}

// --- Handlers ---

func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, store.Overview(s.opts.Repo))
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.Repo.All())
}

func (s *Server) handleFrameGet(w http.ResponseWriter, r *http.Request) {
	f, err := s.opts.Repo.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type framePatchReq struct {
	SceneDescription  *string `json:"sceneDescription"`
	CharacterDialogue *string `json:"characterDialogue"`
	Sequence          *string `json:"sequence"`
	VisualPrompt      *string `json:"visualPrompt"`
}

func (s *Server) handleFramePatch(w http.ResponseWriter, r *http.Request) {
	var req framePatchReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	ed := s.editor(r.PathValue("id"))
	if req.CharacterDialogue != nil {
		ed.SetText(*req.CharacterDialogue)
	}
	f, err := ed.SetFields(editor.Fields{
		SceneDescription: req.SceneDescription,
		VisualPrompt:     req.VisualPrompt,
		Sequence:         req.Sequence,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleFrameDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.drop(id)
	if err := s.opts.Repo.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type imageResp struct {
	Frame       store.Frame `json:"frame"`
	LineDrawing bool        `json:"lineDrawing"`
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()
	out, err := s.editor(r.PathValue("id")).GenerateImage(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResp{Frame: out.Frame, LineDrawing: out.LineDrawing})
}

// handleUpload accepts a multipart "image" field or a raw image body.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	var data []byte
	var err error
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		file, _, ferr := r.FormFile("image")
		if ferr != nil {
			writeJSON(w, http.StatusBadRequest, errorResp{Error: "No image file provided"})
			return
		}
		defer file.Close()
		data, err = io.ReadAll(file)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()
	out, err := s.editor(r.PathValue("id")).UploadImage(ctx, data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imageResp{Frame: out.Frame, LineDrawing: out.LineDrawing})
}

type dialogueResp struct {
	Dialogue string `json:"dialogue"`
}

func (s *Server) handleDialogue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), remoteTimeout)
	defer cancel()
	line, err := s.editor(r.PathValue("id")).GenerateDialogue(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dialogueResp{Dialogue: line})
}

type speedReq struct {
	Speed float64 `json:"speed"`
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if err := state.ValidateSpeed(req.Speed); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, speedReq{Speed: s.editor(r.PathValue("id")).SetSpeed(req.Speed)})
}

type commandResp struct {
	Changed  bool    `json:"changed"`
	Export   string  `json:"export,omitempty"`
	Frames   int     `json:"frames,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

var commands = map[string]editor.CommandKind{
	"export": editor.CmdExport,
	"clear":  editor.CmdClear,
	"undo":   editor.CmdUndo,
	"redo":   editor.CmdRedo,
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	kind, ok := commands[r.PathValue("command")]
	if !ok {
		http.NotFound(w, r)
		return
	}
	id := r.PathValue("id")
	ed := s.editor(id)
	res, err := ed.Do(r.Context(), kind)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := commandResp{Changed: res.Changed}
	if kind == editor.CmdExport {
		s.mu.Lock()
		s.exports[id] = res.Export
		s.mu.Unlock()
		resp.Export = "/api/frames/" + id + "/export"
		resp.Frames = res.Export.Frames
		resp.Duration = res.Export.Duration
	} else if res.Changed {
		s.broadcastSession(id, ed, nil)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStill(w http.ResponseWriter, r *http.Request) {
	png, err := s.editor(r.PathValue("id")).Still()
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	res, ok := s.exports[r.PathValue("id")]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResp{Error: "no export for this frame"})
		return
	}
	name := filepath.Base(res.Path)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeFile(w, r, res.Path)
}

// --- Helpers ---

type errorResp struct {
	Error string `json:"error"`
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, editor.ErrClosed):
		return http.StatusGone
	case errors.Is(err, export.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, generate.ErrEmptyPrompt),
		errors.Is(err, editor.ErrNotImage),
		errors.Is(err, editor.ErrNothingToExport),
		errors.Is(err, state.ErrInvalidSpeed):
		return http.StatusBadRequest
	case errors.Is(err, generate.ErrGenerationFailed),
		errors.Is(err, linedraw.ErrFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= 500 {
		log.Printf("[SERVER] %v", err)
	}
	writeJSON(w, status, errorResp{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection to the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[SERVER] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); allowed[origin] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
