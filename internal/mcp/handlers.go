package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/burrow/internal/config"
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/ops"
	"github.com/hpungsan/burrow/internal/sandbox"
	"github.com/hpungsan/burrow/internal/syncer"
)

// Handlers holds dependencies for MCP tool handlers. mgr, exec, and sched
// are nil when no sandbox provider is configured; handlers that need them
// return SANDBOX_UNAVAILABLE instead.
type Handlers struct {
	db    *sql.DB
	cfg   *config.Config
	mgr   *sandbox.Manager
	exec  *sandbox.Executor
	sched *syncer.Scheduler
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, mgr *sandbox.Manager, exec *sandbox.Executor, sched *syncer.Scheduler) *Handlers {
	return &Handlers{db: db, cfg: cfg, mgr: mgr, exec: exec, sched: sched}
}

// Request types for each tool

// ReadRequest represents the arguments for file_read.
type ReadRequest struct {
	Agent  string `json:"agent"`
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// WriteRequest represents the arguments for file_write.
type WriteRequest struct {
	Agent   string `json:"agent"`
	Path    string `json:"path"`
	Content string `json:"content"`
}

// EditRequest represents the arguments for file_edit.
type EditRequest struct {
	Agent      string `json:"agent"`
	Path       string `json:"path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

// ListRequest represents the arguments for file_list.
type ListRequest struct {
	Agent string `json:"agent"`
	Dir   string `json:"dir,omitempty"`
}

// GlobRequest represents the arguments for file_glob.
type GlobRequest struct {
	Agent    string `json:"agent"`
	Pattern  string `json:"pattern"`
	BasePath string `json:"base_path,omitempty"`
}

// SearchRequest represents the arguments for file_search.
type SearchRequest struct {
	Agent   string `json:"agent"`
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Glob    string `json:"glob,omitempty"`
}

// DeleteRequest represents the arguments for file_delete.
type DeleteRequest struct {
	Agent string `json:"agent"`
	Path  string `json:"path"`
}

// UploadRequest represents the arguments for file_upload.
type UploadRequest struct {
	Agent string          `json:"agent"`
	Files []UploadFileRef `json:"files"`
}

// UploadFileRef is one file in an upload batch.
type UploadFileRef struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// DownloadRequest represents the arguments for file_download.
type DownloadRequest struct {
	Agent string   `json:"agent"`
	Paths []string `json:"paths"`
}

// ExecRequest represents the arguments for exec_run.
type ExecRequest struct {
	Agent       string `json:"agent"`
	Command     string `json:"command"`
	Cwd         string `json:"cwd,omitempty"`
	TimeoutSecs int    `json:"timeout_secs,omitempty"`
}

// StatusRequest represents the arguments for workspace_status.
type StatusRequest struct {
	Agent string `json:"agent"`
}

// SyncRequest represents the arguments for workspace_sync.
type SyncRequest struct {
	Agent string `json:"agent"`
}

// ClearRequest represents the arguments for workspace_clear.
type ClearRequest struct {
	Agent string `json:"agent"`
}

// ExportRequest represents the arguments for workspace_export.
type ExportRequest struct {
	Path  string  `json:"path,omitempty"`
	Agent *string `json:"agent,omitempty"`
}

// ImportRequest represents the arguments for workspace_import.
type ImportRequest struct {
	Path string `json:"path"`
	Mode string `json:"mode,omitempty"`
}

// Handler implementations

// HandleRead handles the file_read tool call.
func (h *Handlers) HandleRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ReadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Read(h.db, ops.ReadInput{
		Agent:  input.Agent,
		Path:   input.Path,
		Offset: input.Offset,
		Limit:  input.Limit,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleWrite handles the file_write tool call.
func (h *Handlers) HandleWrite(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WriteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Write(ctx, h.db, h.mgr, ops.WriteInput{
		Agent:   input.Agent,
		Path:    input.Path,
		Content: input.Content,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleEdit handles the file_edit tool call.
func (h *Handlers) HandleEdit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[EditRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Edit(ctx, h.db, h.mgr, ops.EditInput{
		Agent:      input.Agent,
		Path:       input.Path,
		Old:        input.OldString,
		New:        input.NewString,
		ReplaceAll: input.ReplaceAll,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleList handles the file_list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.List(h.db, ops.ListInput{
		Agent: input.Agent,
		Dir:   input.Dir,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGlob handles the file_glob tool call.
func (h *Handlers) HandleGlob(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GlobRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Glob(h.db, ops.GlobInput{
		Agent:    input.Agent,
		Pattern:  input.Pattern,
		BasePath: input.BasePath,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSearch handles the file_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Search(h.db, ops.SearchInput{
		Agent:   input.Agent,
		Pattern: input.Pattern,
		Path:    input.Path,
		Glob:    input.Glob,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDelete handles the file_delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Delete(h.db, ops.DeleteInput{
		Agent: input.Agent,
		Path:  input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUpload handles the file_upload tool call.
func (h *Handlers) HandleUpload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[UploadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	files := make([]ops.UploadFile, len(input.Files))
	for i, f := range input.Files {
		files[i] = ops.UploadFile{Path: f.Path, Content: f.Content}
	}

	result, err := ops.Upload(ctx, h.db, h.mgr, ops.UploadInput{
		Agent: input.Agent,
		Files: files,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDownload handles the file_download tool call.
func (h *Handlers) HandleDownload(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DownloadRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Download(h.db, ops.DownloadInput{
		Agent: input.Agent,
		Paths: input.Paths,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExec handles the exec_run tool call.
func (h *Handlers) HandleExec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExecRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if h.exec == nil {
		return errorResult(errors.NewSandboxUnavailable("no sandbox provider configured")), nil
	}

	agentNorm, err := ops.ValidateAgent(input.Agent)
	if err != nil {
		return errorResult(err), nil
	}

	timeout := time.Duration(input.TimeoutSecs) * time.Second
	result, err := h.exec.Execute(ctx, agentNorm, input.Agent, input.Command, input.Cwd, timeout)
	if err != nil {
		return errorResult(err), nil
	}

	// The command may have changed sandbox files; schedule a capture.
	if h.sched != nil {
		h.sched.Notify(agentNorm)
	}

	return successResult(result)
}

// HandleStatus handles the workspace_status tool call.
func (h *Handlers) HandleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[StatusRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Status(h.db, h.mgr, ops.StatusInput{Agent: input.Agent})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleSync handles the workspace_sync tool call.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SyncRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if h.sched == nil {
		return errorResult(errors.NewSandboxUnavailable("no sandbox provider configured")), nil
	}

	agentNorm, err := ops.ValidateAgent(input.Agent)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := h.sched.Sync(ctx, agentNorm)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleClear handles the workspace_clear tool call.
func (h *Handlers) HandleClear(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ClearRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Clear(h.db, ops.ClearInput{Agent: input.Agent})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the workspace_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, h.cfg, ops.ExportInput{
		Path:  input.Path,
		Agent: input.Agent,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleImport handles the workspace_import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Import(h.db, h.cfg, ops.ImportInput{
		Path: input.Path,
		Mode: ops.ImportMode(input.Mode),
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	var burrowErr *errors.BurrowError
	if stderrors.As(err, &burrowErr) {
		// Preserve wrapper context ("items[2]: ...") when the structured
		// error arrives wrapped.
		message := burrowErr.Message
		if full, inner := err.Error(), burrowErr.Error(); full != inner && strings.HasSuffix(full, inner) {
			message = strings.TrimSuffix(full, inner) + burrowErr.Message
		}

		errorObj := map[string]any{
			"code":    burrowErr.Code,
			"message": message,
			"status":  burrowErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if burrowErr.Code != errors.ErrInternal && burrowErr.Details != nil {
			errorObj["details"] = burrowErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
