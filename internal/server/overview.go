package server

import (
	"bytes"
	"html/template"
	"log"
	"net/http"

	"github.com/yuin/goldmark"

	"Storyboard/internal/editor"
	"Storyboard/internal/store"
)

var overviewPage = template.Must(template.New("overview").Parse(`<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>Storyboard</title>
<style>
body { font-family: sans-serif; margin: 2rem; background: #fafafa; }
.scene { background: #fff; border: 1px solid #ddd; border-radius: 6px; padding: 1rem; margin-bottom: 1rem; }
.scene img { float: right; width: 90px; margin-left: 1rem; }
.label { font-weight: bold; }
.pending { color: #999; }
progress { width: 100%; }
</style>
</head>
<body>
<h1>Storyboard</h1>
<p><a href="/api/storyboard.pdf">Download PDF</a></p>
{{range .}}
<div class="scene">
  {{if .HasImage}}<img src="/api/frames/{{.ID}}/still.png" alt="{{.Label}}">{{end}}
  <div class="label">{{.Label}}</div>
  <div>{{.Description}}</div>
  <progress value="{{.Progress}}" max="1"></progress>
  {{if .Started}}
    {{.Body}}
    {{if .Dialogue}}<p><em>&ldquo;{{.Dialogue}}&rdquo;</em></p>{{end}}
  {{else}}
    <p class="pending">Not started</p>
  {{end}}
</div>
{{end}}
</body>
</html>
`))

type overviewRow struct {
	store.SceneStatus
	Progress float64
	Body     template.HTML
	Dialogue string
}

// handleOverviewPage renders the outline with each scene description as
// markdown.
func (s *Server) handleOverviewPage(w http.ResponseWriter, r *http.Request) {
	var rows []overviewRow
	for _, st := range store.Overview(s.opts.Repo) {
		row := overviewRow{SceneStatus: st, Progress: store.Progress(st.ID)}
		if f, err := s.opts.Repo.Get(st.ID); err == nil {
			var buf bytes.Buffer
			if err := goldmark.Convert([]byte(f.SceneDescription), &buf); err != nil {
				log.Printf("[SERVER] Render description for %s: %v", st.ID, err)
			}
			row.Body = template.HTML(buf.String())
			row.Dialogue = f.CharacterDialogue
		}
		rows = append(rows, row)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := overviewPage.Execute(w, rows); err != nil {
		log.Printf("[SERVER] Overview page: %v", err)
	}
}

// handleStoryboardPDF writes every started outline scene as one PDF page.
func (s *Server) handleStoryboardPDF(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := editor.WriteStoryboard(&buf, s.opts.Repo, s.editor); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="storyboard.pdf"`)
	_, _ = w.Write(buf.Bytes())
}
