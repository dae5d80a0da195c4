// Package webui serves the debug inspection surface: a build endpoint that
// returns the four stage snapshots for a channel. It is read-only; preset
// and channel editing happen elsewhere.
package webui

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/kayz/fable/internal/service"
)

// Builder is the one pipeline operation the debug surface needs.
type Builder interface {
	Build(opts service.BuildOptions) (*service.BuildOutput, error)
}

type Server struct {
	builder   Builder
	startedAt time.Time
}

func NewServer(builder Builder) *Server {
	return &Server{
		builder:   builder,
		startedAt: time.Now().UTC(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/build", s.handleBuild)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(defaultIndexHTML))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"started_at": s.startedAt.Format(time.RFC3339),
		"uptime_sec": int(time.Since(s.startedAt).Seconds()),
	})
}

type buildRequest struct {
	ChannelID        string `json:"channel_id"`
	Format           string `json:"format,omitempty"`
	Viewpoint        string `json:"viewpoint,omitempty"`
	IncludeSummary   bool   `json:"include_summary,omitempty"`
	UnsummarizedOnly bool   `json:"unsummarized_only,omitempty"`
}

type buildResponse struct {
	Result *service.BuildOutput `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.builder == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "pipeline is not initialized"})
		return
	}

	var req buildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	req.ChannelID = strings.TrimSpace(req.ChannelID)
	if req.ChannelID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "channel_id is required"})
		return
	}

	out, err := s.builder.Build(service.BuildOptions{
		ChannelID:        req.ChannelID,
		Format:           req.Format,
		Viewpoint:        req.Viewpoint,
		IncludeSummary:   req.IncludeSummary,
		UnsummarizedOnly: req.UnsummarizedOnly,
	})
	if err != nil {
		if out != nil {
			// Render failed but the stages are still inspectable.
			writeJSON(w, http.StatusUnprocessableEntity, buildResponse{Result: out, Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, buildResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, buildResponse{Result: out})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

const defaultIndexHTML = `<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>fable prompt inspector</title>
  <style>
    body { font-family: "Segoe UI", sans-serif; margin: 0; background: linear-gradient(145deg,#f7fafc,#e9eef7); color: #1f2937; }
    .wrap { max-width: 1000px; margin: 0 auto; padding: 20px; }
    .panel { background: #fff; border-radius: 12px; box-shadow: 0 8px 30px rgba(15,23,42,.08); padding: 16px; }
    #out { min-height: 320px; max-height: 65vh; overflow: auto; white-space: pre-wrap; border: 1px solid #d1d5db; border-radius: 8px; padding: 12px; background: #f9fafb; font-family: monospace; }
    .row { display: flex; gap: 8px; margin-top: 10px; }
    input, select { padding: 10px; border: 1px solid #cbd5e1; border-radius: 8px; }
    input { flex: 1; }
    button { padding: 10px 16px; border: 0; border-radius: 8px; background: #0f766e; color: #fff; cursor: pointer; }
    button:hover { background: #0d9488; }
  </style>
</head>
<body>
  <div class="wrap">
    <div class="panel">
      <h2>fable prompt inspector</h2>
      <div id="out"></div>
      <div class="row">
        <input id="channel" placeholder="channel id" />
        <select id="format">
          <option>openai</option>
          <option>anthropic</option>
          <option>gemini</option>
          <option>tagged</option>
          <option>text</option>
        </select>
        <select id="view">
          <option>model</option>
          <option>user</option>
        </select>
        <button id="build">Build</button>
      </div>
    </div>
  </div>
  <script>
    const out = document.getElementById('out');
    document.getElementById('build').addEventListener('click', async () => {
      const body = JSON.stringify({
        channel_id: document.getElementById('channel').value.trim(),
        format: document.getElementById('format').value,
        viewpoint: document.getElementById('view').value,
        include_summary: true
      });
      const resp = await fetch('/api/build', { method:'POST', headers:{'Content-Type':'application/json'}, body });
      const data = await resp.json();
      out.textContent = JSON.stringify(data, null, 2);
    });
  </script>
</body>
</html>`
