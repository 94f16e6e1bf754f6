package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/burrow/internal/config"
	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/sandbox"
	"github.com/hpungsan/burrow/internal/sandbox/sandboxtest"
	"github.com/hpungsan/burrow/internal/syncer"
)

// testSetup creates a temporary database and config for testing.
func testSetup(t *testing.T) (*sql.DB, *config.Config, func()) {
	t.Helper()

	tmpDir := t.TempDir()
	database, err := db.Init(tmpDir)
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true // Allow temp dirs in tests

	cleanup := func() {
		database.Close()
	}

	return database, cfg, cleanup
}

// storeHandlers builds handlers with no sandbox provider attached.
func storeHandlers(database *sql.DB, cfg *config.Config) *Handlers {
	return NewHandlers(database, cfg, nil, nil, nil)
}

// sandboxHandlers builds handlers over a fake provider, with an executor and
// scheduler wired in.
func sandboxHandlers(database *sql.DB, cfg *config.Config) (*Handlers, *sandboxtest.FakeProvider, *sandbox.Manager) {
	provider := sandboxtest.NewFakeProvider()
	mgr := sandbox.NewManager(database, provider, 2)
	exec := sandbox.NewExecutor(mgr, 0, 0)
	sched := syncer.NewScheduler(database, mgr, 2, 0, 0)
	return NewHandlers(database, cfg, mgr, exec, sched), provider, mgr
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// TestHandleWrite tests the file_write handler.
func TestHandleWrite(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "write valid file",
			args: map[string]any{
				"agent":   "bot",
				"path":    "/src/main.go",
				"content": "package main\n",
			},
			wantError: false,
		},
		{
			name: "write with relative path",
			args: map[string]any{
				"agent":   "bot",
				"path":    "src/main.go",
				"content": "x",
			},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name: "write with empty agent",
			args: map[string]any{
				"agent":   "   ",
				"path":    "/a.txt",
				"content": "x",
			},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name: "overwrite existing file",
			args: map[string]any{
				"agent":   "bot",
				"path":    "/src/main.go",
				"content": "package main\n\nfunc main() {}\n",
			},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := makeRequest(tt.args)
			result, err := h.HandleWrite(ctx, req)

			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else {
				if result.IsError {
					t.Errorf("expected success, got error: %v", extractErrorMessage(result))
				}
			}
		})
	}
}

// TestHandleRead tests the file_read handler.
func TestHandleRead(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	writeReq := makeRequest(map[string]any{
		"agent":   "bot",
		"path":    "/notes.md",
		"content": "alpha\nbeta\ngamma",
	})
	writeResult, _ := h.HandleWrite(ctx, writeReq)
	if writeResult.IsError {
		t.Fatalf("setup write failed: %v", extractErrorMessage(writeResult))
	}

	t.Run("read returns numbered lines", func(t *testing.T) {
		req := makeRequest(map[string]any{"agent": "bot", "path": "/notes.md"})
		result, err := h.HandleRead(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		content := output["content"].(string)
		if !strings.Contains(content, "1\talpha") || !strings.Contains(content, "3\tgamma") {
			t.Errorf("content not numbered as expected: %q", content)
		}
		if int(output["total_lines"].(float64)) != 3 {
			t.Errorf("total_lines = %v, want 3", output["total_lines"])
		}
	})

	t.Run("read with offset and limit", func(t *testing.T) {
		req := makeRequest(map[string]any{
			"agent":  "bot",
			"path":   "/notes.md",
			"offset": 1,
			"limit":  1,
		})
		result, err := h.HandleRead(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		if content := output["content"].(string); content != "2\tbeta" {
			t.Errorf("content = %q, want %q", content, "2\tbeta")
		}
	})

	t.Run("read missing file", func(t *testing.T) {
		req := makeRequest(map[string]any{"agent": "bot", "path": "/missing.md"})
		result, err := h.HandleRead(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		if !result.IsError {
			t.Fatal("expected error result for missing file")
		}
		assertErrorCode(t, result, "NOT_FOUND")
	})
}

// TestHandleEdit tests the file_edit handler.
func TestHandleEdit(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	writeReq := makeRequest(map[string]any{
		"agent":   "bot",
		"path":    "/main.go",
		"content": "foo bar foo",
	})
	if _, err := h.HandleWrite(ctx, writeReq); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name: "edit first occurrence",
			args: map[string]any{
				"agent":      "bot",
				"path":       "/main.go",
				"old_string": "foo",
				"new_string": "baz",
			},
			wantError: false,
		},
		{
			name: "edit string not found",
			args: map[string]any{
				"agent":      "bot",
				"path":       "/main.go",
				"old_string": "nothing like this",
				"new_string": "x",
			},
			wantError: true,
			errorCode: "STRING_NOT_FOUND",
		},
		{
			name: "edit missing file",
			args: map[string]any{
				"agent":      "bot",
				"path":       "/gone.go",
				"old_string": "a",
				"new_string": "b",
			},
			wantError: true,
			errorCode: "NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := makeRequest(tt.args)
			result, err := h.HandleEdit(ctx, req)

			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}

			if tt.wantError {
				if !result.IsError {
					t.Errorf("expected error result, got success")
				}
				if tt.errorCode != "" {
					assertErrorCode(t, result, tt.errorCode)
				}
			} else {
				if result.IsError {
					t.Errorf("expected success, got error: %v", extractErrorMessage(result))
				}
			}
		})
	}
}

// TestHandleListGlobSearch tests the read-only query handlers together.
func TestHandleListGlobSearch(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	for path, content := range map[string]string{
		"/src/main.go":  "package main // entry",
		"/src/util.go":  "package main // helpers",
		"/docs/plan.md": "# plan\nentry point notes",
	} {
		req := makeRequest(map[string]any{"agent": "bot", "path": path, "content": content})
		result, _ := h.HandleWrite(ctx, req)
		if result.IsError {
			t.Fatalf("setup write %s failed: %v", path, extractErrorMessage(result))
		}
	}

	t.Run("list root", func(t *testing.T) {
		req := makeRequest(map[string]any{"agent": "bot"})
		result, err := h.HandleList(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		if int(output["count"].(float64)) != 2 {
			t.Errorf("count = %v, want 2 (docs, src)", output["count"])
		}
	})

	t.Run("glob go files", func(t *testing.T) {
		req := makeRequest(map[string]any{"agent": "bot", "pattern": "**/*.go"})
		result, err := h.HandleGlob(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		paths := output["paths"].([]any)
		if len(paths) != 2 {
			t.Errorf("got %d paths, want 2", len(paths))
		}
	})

	t.Run("search across files", func(t *testing.T) {
		req := makeRequest(map[string]any{"agent": "bot", "pattern": "entry"})
		result, err := h.HandleSearch(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		matches := output["matches"].([]any)
		if len(matches) != 2 {
			t.Errorf("got %d matches, want 2", len(matches))
		}
	})

	t.Run("search with glob filter", func(t *testing.T) {
		req := makeRequest(map[string]any{
			"agent":   "bot",
			"pattern": "entry",
			"glob":    "**/*.md",
		})
		result, err := h.HandleSearch(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		matches := output["matches"].([]any)
		if len(matches) != 1 {
			t.Errorf("got %d matches, want 1 (markdown only)", len(matches))
		}
	})
}

// TestHandleDelete tests the file_delete handler.
func TestHandleDelete(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	writeReq := makeRequest(map[string]any{
		"agent":   "bot",
		"path":    "/tmp.txt",
		"content": "x",
	})
	if _, err := h.HandleWrite(ctx, writeReq); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	t.Run("delete existing", func(t *testing.T) {
		req := makeRequest(map[string]any{"agent": "bot", "path": "/tmp.txt"})
		result, err := h.HandleDelete(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		if output["existed"] != true {
			t.Error("existed = false, want true")
		}
	})

	t.Run("delete missing is not an error", func(t *testing.T) {
		req := makeRequest(map[string]any{"agent": "bot", "path": "/tmp.txt"})
		result, err := h.HandleDelete(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		if output["existed"] != false {
			t.Error("existed = true, want false")
		}
	})
}

// TestHandleUpload tests the file_upload handler.
func TestHandleUpload(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	t.Run("batch with one bad item", func(t *testing.T) {
		req := makeRequest(map[string]any{
			"agent": "bot",
			"files": []any{
				map[string]any{"path": "/ok.txt", "content": "fine"},
				map[string]any{"path": "bad-relative.txt", "content": "nope"},
				map[string]any{"path": "/also-ok.txt", "content": "fine too"},
			},
		})
		result, err := h.HandleUpload(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)

		if int(output["succeeded"].(float64)) != 2 {
			t.Errorf("succeeded = %v, want 2", output["succeeded"])
		}
		if int(output["failed"].(float64)) != 1 {
			t.Errorf("failed = %v, want 1", output["failed"])
		}

		items := output["items"].([]any)
		second := items[1].(map[string]any)
		if second["code"] != "INVALID_PATH" {
			t.Errorf("items[1].code = %v, want INVALID_PATH", second["code"])
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		req := makeRequest(map[string]any{"agent": "bot", "files": []any{}})
		result, err := h.HandleUpload(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		if !result.IsError {
			t.Fatal("expected error result for empty batch")
		}
		assertErrorCode(t, result, "INVALID_REQUEST")
	})
}

// TestHandleDownload tests the file_download handler.
func TestHandleDownload(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	writeReq := makeRequest(map[string]any{
		"agent":   "bot",
		"path":    "/data.json",
		"content": `{"ok":true}`,
	})
	if _, err := h.HandleWrite(ctx, writeReq); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	req := makeRequest(map[string]any{
		"agent": "bot",
		"paths": []any{"/data.json", "/missing.json"},
	})
	result, err := h.HandleDownload(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	items := output["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}

	first := items[0].(map[string]any)
	if first["ok"] != true || first["content"] != `{"ok":true}` {
		t.Errorf("items[0] = %v, want ok with content", first)
	}

	second := items[1].(map[string]any)
	if second["ok"] != false || second["code"] != "FILE_NOT_FOUND" {
		t.Errorf("items[1] = %v, want FILE_NOT_FOUND", second)
	}
}

// TestHandleExec tests the exec_run handler against a fake sandbox.
func TestHandleExec(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h, provider, _ := sandboxHandlers(database, cfg)
	ctx := context.Background()

	provider.OnCreate = func(sb *sandboxtest.FakeSandbox) {
		sb.RunFunc = func(ctx context.Context, command, cwd string, timeout time.Duration) (*sandbox.RunResult, error) {
			return &sandbox.RunResult{Stdout: "hello\n", ExitCode: 0}, nil
		}
	}

	req := makeRequest(map[string]any{"agent": "bot", "command": "echo hello"})
	result, err := h.HandleExec(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if output["output"] != "hello\n" {
		t.Errorf("output = %q, want %q", output["output"], "hello\n")
	}
	if int(output["exit_code"].(float64)) != 0 {
		t.Errorf("exit_code = %v, want 0", output["exit_code"])
	}
	if provider.CreateCount() != 1 {
		t.Errorf("CreateCount = %d, want 1", provider.CreateCount())
	}
}

// TestHandleExec_NoProvider tests exec_run without a sandbox provider.
func TestHandleExec_NoProvider(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	req := makeRequest(map[string]any{"agent": "bot", "command": "ls"})
	result, err := h.HandleExec(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result without a provider")
	}
	assertErrorCode(t, result, "SANDBOX_UNAVAILABLE")
}

// TestHandleSync tests the workspace_sync handler.
func TestHandleSync(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h, provider, mgr := sandboxHandlers(database, cfg)
	ctx := context.Background()

	handle, err := mgr.Acquire(ctx, "bot", "bot")
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	provider.Get(handle.Sandbox.ID()).PutFile("/out/result.txt", "computed")

	req := makeRequest(map[string]any{"agent": "bot"})
	result, err := h.HandleSync(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)

	if output["live"] != true {
		t.Error("live = false, want true")
	}
	if int(output["captured"].(float64)) != 1 {
		t.Errorf("captured = %v, want 1", output["captured"])
	}

	// The captured file must now be durable.
	readReq := makeRequest(map[string]any{"agent": "bot", "path": "/out/result.txt"})
	readResult, err := h.HandleRead(ctx, readReq)
	if err != nil {
		t.Fatalf("read handler returned error: %v", err)
	}
	readOutput := parseOutput(t, readResult)
	if !strings.Contains(readOutput["content"].(string), "computed") {
		t.Errorf("captured content missing: %q", readOutput["content"])
	}
}

// TestHandleSync_NoProvider tests workspace_sync without a sandbox provider.
func TestHandleSync_NoProvider(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	req := makeRequest(map[string]any{"agent": "bot"})
	result, err := h.HandleSync(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result without a provider")
	}
	assertErrorCode(t, result, "SANDBOX_UNAVAILABLE")
}

// TestHandleStatus tests the workspace_status handler.
func TestHandleStatus(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h, _, mgr := sandboxHandlers(database, cfg)
	ctx := context.Background()

	writeReq := makeRequest(map[string]any{
		"agent":   "bot",
		"path":    "/a.txt",
		"content": "12345",
	})
	if _, err := h.HandleWrite(ctx, writeReq); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	t.Run("without live sandbox", func(t *testing.T) {
		req := makeRequest(map[string]any{"agent": "bot"})
		result, err := h.HandleStatus(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		if int(output["file_count"].(float64)) != 1 {
			t.Errorf("file_count = %v, want 1", output["file_count"])
		}
		if int(output["total_bytes"].(float64)) != 5 {
			t.Errorf("total_bytes = %v, want 5", output["total_bytes"])
		}
		if output["live"] != false {
			t.Error("live = true, want false")
		}
	})

	t.Run("with live sandbox", func(t *testing.T) {
		if _, err := mgr.Acquire(ctx, "bot", "bot"); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		req := makeRequest(map[string]any{"agent": "bot"})
		result, err := h.HandleStatus(ctx, req)
		if err != nil {
			t.Fatalf("handler returned error: %v", err)
		}
		output := parseOutput(t, result)
		if output["live"] != true {
			t.Error("live = false, want true")
		}
		if output["sandbox_id"] == "" {
			t.Error("sandbox_id should be set for a live sandbox")
		}
	})
}

// TestHandleClear tests the workspace_clear handler.
func TestHandleClear(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	for _, path := range []string{"/a.txt", "/b.txt"} {
		req := makeRequest(map[string]any{"agent": "bot", "path": path, "content": "x"})
		if _, err := h.HandleWrite(ctx, req); err != nil {
			t.Fatalf("setup write failed: %v", err)
		}
	}

	req := makeRequest(map[string]any{"agent": "bot"})
	result, err := h.HandleClear(ctx, req)
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	output := parseOutput(t, result)
	if int(output["removed"].(float64)) != 2 {
		t.Errorf("removed = %v, want 2", output["removed"])
	}

	readReq := makeRequest(map[string]any{"agent": "bot", "path": "/a.txt"})
	readResult, _ := h.HandleRead(ctx, readReq)
	if !readResult.IsError {
		t.Error("cleared file should not be readable")
	}
}

// TestHandleExportImport tests the export and import handlers.
func TestHandleExportImport(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	h := storeHandlers(database, cfg)
	ctx := context.Background()

	writeReq := makeRequest(map[string]any{
		"agent":   "bot",
		"path":    "/keep.md",
		"content": "worth keeping",
	})
	if _, err := h.HandleWrite(ctx, writeReq); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	// Export
	exportPath := filepath.Join(t.TempDir(), "export.jsonl")
	exportReq := makeRequest(map[string]any{
		"path": exportPath,
	})
	exportResult, err := h.HandleExport(ctx, exportReq)
	if err != nil {
		t.Fatalf("export handler returned error: %v", err)
	}
	if exportResult.IsError {
		t.Fatalf("export failed: %v", extractErrorMessage(exportResult))
	}

	// Verify export file exists
	if _, err := os.Stat(exportPath); os.IsNotExist(err) {
		t.Fatal("export file not created")
	}

	// Create new database for import test
	database2, cfg2, cleanup2 := testSetup(t)
	defer cleanup2()
	h2 := storeHandlers(database2, cfg2)

	// Import
	importReq := makeRequest(map[string]any{
		"path": exportPath,
		"mode": "error",
	})
	importResult, err := h2.HandleImport(ctx, importReq)
	if err != nil {
		t.Fatalf("import handler returned error: %v", err)
	}
	if importResult.IsError {
		t.Fatalf("import failed: %v", extractErrorMessage(importResult))
	}

	// Verify imported file exists
	readReq := makeRequest(map[string]any{"agent": "bot", "path": "/keep.md"})
	readResult, _ := h2.HandleRead(ctx, readReq)
	if readResult.IsError {
		t.Error("imported file not found")
	}
}

func TestServerRegistration(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	s := NewServer(database, cfg, nil, nil, nil, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	expectedTools := []string{
		"file_read",
		"file_write",
		"file_edit",
		"file_list",
		"file_glob",
		"file_search",
		"file_delete",
		"file_upload",
		"file_download",
		"exec_run",
		"workspace_status",
		"workspace_sync",
		"workspace_clear",
		"workspace_export",
		"workspace_import",
	}

	if len(tools) != len(expectedTools) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(expectedTools))
	}

	for _, name := range expectedTools {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTools = []string{"workspace_export", "workspace_import"}
	s := NewServer(database, cfg, nil, nil, nil, "test")
	tools := s.ListTools()

	// Should have 13 tools (15 - 2 disabled)
	if len(tools) != 13 {
		t.Errorf("registered tool count = %d, want 13", len(tools))
	}

	// Disabled tools should not be registered
	for _, name := range []string{"workspace_export", "workspace_import"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}

	// Core tools should still be registered
	for _, name := range []string{"file_read", "file_write", "workspace_status"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("core tool %q should be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	cfg.DisabledTypes = []string{"exec", "workspace"}
	s := NewServer(database, cfg, nil, nil, nil, "test")
	tools := s.ListTools()

	// Only the 9 file tools remain
	if len(tools) != 9 {
		t.Errorf("registered tool count = %d, want 9", len(tools))
	}

	for name := range tools {
		if GetTypeForTool(name) != "file" {
			t.Errorf("tool %q should have been disabled by type", name)
		}
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	// Disable all tools
	cfg.DisabledTools = AllToolNames()
	s := NewServer(database, cfg, nil, nil, nil, "test")
	tools := s.ListTools()

	if len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0 (all disabled)", len(tools))
	}
}

func TestServerRegistration_DuplicateDisabled(t *testing.T) {
	database, cfg, cleanup := testSetup(t)
	defer cleanup()

	// Duplicates should be handled gracefully (map lookup)
	cfg.DisabledTools = []string{"exec_run", "exec_run", "exec_run"}
	s := NewServer(database, cfg, nil, nil, nil, "test")
	tools := s.ListTools()

	// Should have 14 tools (15 - 1 disabled, duplicates ignored)
	if len(tools) != 14 {
		t.Errorf("registered tool count = %d, want 14", len(tools))
	}

	if _, ok := tools["exec_run"]; ok {
		t.Error("disabled tool 'exec_run' should not be registered")
	}
}

func TestValidateDisabledTools(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		wantLen int
	}{
		{
			name:    "all valid",
			input:   []string{"file_read", "exec_run"},
			wantLen: 0,
		},
		{
			name:    "one unknown",
			input:   []string{"file_read", "fake_tool"},
			wantLen: 1,
		},
		{
			name:    "all unknown",
			input:   []string{"foo", "bar", "baz"},
			wantLen: 3,
		},
		{
			name:    "empty list",
			input:   []string{},
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unknown := ValidateDisabledTools(tt.input)
			if len(unknown) != tt.wantLen {
				t.Errorf("ValidateDisabledTools() returned %d unknown, want %d", len(unknown), tt.wantLen)
			}
		})
	}
}

func TestValidateDisabledTypes(t *testing.T) {
	unknown := ValidateDisabledTypes([]string{"file", "capsule", "workspace"})
	if len(unknown) != 1 || unknown[0] != "capsule" {
		t.Errorf("ValidateDisabledTypes() = %v, want [capsule]", unknown)
	}
}

func TestGetTypeForTool(t *testing.T) {
	tests := []struct {
		tool string
		want string
	}{
		{"file_read", "file"},
		{"exec_run", "exec"},
		{"workspace_status", "workspace"},
		{"noseparator", ""},
	}

	for _, tt := range tests {
		if got := GetTypeForTool(tt.tool); got != tt.want {
			t.Errorf("GetTypeForTool(%q) = %q, want %q", tt.tool, got, tt.want)
		}
	}
}

func TestExpandTypesToTools(t *testing.T) {
	tools := ExpandTypesToTools([]string{"exec"})
	if len(tools) != 1 || tools[0] != "exec_run" {
		t.Errorf("ExpandTypesToTools(exec) = %v, want [exec_run]", tools)
	}

	tools = ExpandTypesToTools([]string{"workspace"})
	if len(tools) != 5 {
		t.Errorf("ExpandTypesToTools(workspace) returned %d tools, want 5", len(tools))
	}

	if tools := ExpandTypesToTools(nil); tools != nil {
		t.Errorf("ExpandTypesToTools(nil) = %v, want nil", tools)
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()

	// Should return 15 tool names
	if len(names) != 15 {
		t.Errorf("AllToolNames() returned %d names, want 15", len(names))
	}

	// All returned names should be valid
	unknown := ValidateDisabledTools(names)
	if len(unknown) != 0 {
		t.Errorf("AllToolNames() returned invalid names: %v", unknown)
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	originalErr := errors.NewNotFound("/x.txt")
	wrappedErr := fmt.Errorf("items[2]: %w", originalErr)

	r := errorResult(wrappedErr)
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	// Should extract the correct code from wrapped error
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}

	// Message should include the wrapper context "items[2]:"
	msg := errObj["message"].(string)
	if !strings.Contains(msg, "items[2]") {
		t.Errorf("message should contain wrapper context 'items[2]', got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	r := errorResult(errors.NewNotFound("/x.txt"))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	errObj := payload["error"].(map[string]any)

	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

// Helper functions

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}

	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}

	code, ok := errorObj["code"].(string)
	if !ok {
		t.Errorf("no code in error object")
		return
	}

	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}

	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}

	return text.Text
}
