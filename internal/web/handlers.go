package web

import (
	"database/sql"
	"html/template"
	"net/http"
	"strings"

	"github.com/hpungsan/burrow/internal/config"
	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/ops"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// Handlers contains HTTP route handlers for the web UI. The UI is read-only:
// it browses the durable store and never touches sandboxes.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleAgents handles GET /agents: list agents with workspace summaries.
func (h *Handlers) HandleAgents(w http.ResponseWriter, r *http.Request) {
	names, err := db.ListAgents(h.db)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	agents := make([]AgentSummary, 0, len(names))
	for _, name := range names {
		snap, err := db.SnapshotSummary(h.db, name)
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		agents = append(agents, AgentSummary{Name: name, Snapshot: snap})
	}

	h.renderer.renderPage(w, r, "agents", AgentsPageData{
		PageData: PageData{
			Title:   "Agents",
			Version: h.renderer.version,
			Nav:     "agents",
		},
		Agents: agents,
	})
}

// HandleFiles handles GET /agents/{agent}: list an agent's stored files.
func (h *Handlers) HandleFiles(w http.ResponseWriter, r *http.Request) {
	agentNorm, err := ops.ValidateAgent(r.PathValue("agent"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	files, err := db.ListFileMeta(h.db, agentNorm)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	snap, err := db.SnapshotSummary(h.db, agentNorm)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "files", FilesPageData{
		PageData: PageData{
			Title:   agentNorm,
			Version: h.renderer.version,
			Nav:     "agents",
		},
		Agent:    agentNorm,
		Files:    files,
		Snapshot: snap,
	})
}

// HandleFileDetail handles GET /agents/{agent}/file?path=...: view one file.
// Markdown files are rendered; everything else is shown verbatim.
func (h *Handlers) HandleFileDetail(w http.ResponseWriter, r *http.Request) {
	agentNorm, err := ops.ValidateAgent(r.PathValue("agent"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	path := wsfile.CleanPath(r.URL.Query().Get("path"))
	if path == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("path query parameter is required and must be absolute"))
		return
	}

	file, err := db.GetFile(h.db, agentNorm, path)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	isMarkdown := strings.HasSuffix(strings.ToLower(path), ".md")
	var rendered template.HTML
	if isMarkdown {
		rendered = renderMarkdown(file.Content)
	}

	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   path,
			Version: h.renderer.version,
			Nav:     "agents",
		},
		Agent:        agentNorm,
		File:         file,
		RenderedHTML: rendered,
		IsMarkdown:   isMarkdown,
	})
}

// HandleSearch handles GET /agents/{agent}/search: content search.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	agentNorm, err := ops.ValidateAgent(r.PathValue("agent"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	query := r.URL.Query().Get("q")

	data := SearchPageData{
		PageData: PageData{
			Title:   "Search",
			Version: h.renderer.version,
			Nav:     "search",
		},
		Agent:    agentNorm,
		Query:    query,
		HasQuery: query != "",
	}

	if query == "" {
		// If htmx targets #results (user cleared the search box), return just the results fragment
		if r.Header.Get("HX-Target") == "results" {
			h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
			return
		}
		h.renderer.renderPage(w, r, "search", data)
		return
	}

	result, err := ops.Search(h.db, ops.SearchInput{
		Agent:   agentNorm,
		Pattern: query,
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data.Matches = result.Matches
	data.Truncated = result.Truncated

	// If htmx targets #results, render only the results fragment
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
		return
	}

	h.renderer.renderPage(w, r, "search", data)
}
