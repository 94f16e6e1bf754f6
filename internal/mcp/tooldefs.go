package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// Tool definitions. Every tool takes an agent name; the agent's workspace is
// the durable store, with a live sandbox attached lazily for exec.

var readToolDef = mcp.NewTool("file_read",
	mcp.WithDescription("Read a file from the agent's workspace. Returns numbered lines. Use offset/limit to window large files."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
	mcp.WithString("path", mcp.Required(), mcp.Description("Absolute file path, e.g. /src/main.go")),
	mcp.WithNumber("offset", mcp.Description("0-based first line of the window (default 0)")),
	mcp.WithNumber("limit", mcp.Description("Maximum number of lines to return (default 2000)")),
)

var writeToolDef = mcp.NewTool("file_write",
	mcp.WithDescription("Create or overwrite a file in the agent's workspace. The write is durable; any live sandbox is mirrored best-effort."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
	mcp.WithString("path", mcp.Required(), mcp.Description("Absolute file path")),
	mcp.WithString("content", mcp.Required(), mcp.Description("Full file content")),
)

var editToolDef = mcp.NewTool("file_edit",
	mcp.WithDescription("Replace a literal string in a file. Fails if old_string is not found; set replace_all to replace every occurrence."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
	mcp.WithString("path", mcp.Required(), mcp.Description("Absolute file path")),
	mcp.WithString("old_string", mcp.Required(), mcp.Description("Exact text to replace (matched literally)")),
	mcp.WithString("new_string", mcp.Required(), mcp.Description("Replacement text")),
	mcp.WithBoolean("replace_all", mcp.Description("Replace every occurrence instead of the first (default false)")),
)

var listToolDef = mcp.NewTool("file_list",
	mcp.WithDescription("List the direct children of a workspace directory. Directories sort before files."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
	mcp.WithString("dir", mcp.Description("Directory to list (default /)")),
)

var globToolDef = mcp.NewTool("file_glob",
	mcp.WithDescription("Find workspace files matching a glob pattern. * stays within a path segment, ** crosses segments."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
	mcp.WithString("pattern", mcp.Required(), mcp.Description("Glob pattern, e.g. **/*.go")),
	mcp.WithString("base_path", mcp.Description("Directory to scope the match to (default /)")),
)

var searchToolDef = mcp.NewTool("file_search",
	mcp.WithDescription("Search workspace file contents by regular expression. An invalid regexp is matched literally instead."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
	mcp.WithString("pattern", mcp.Required(), mcp.Description("Regular expression to search for")),
	mcp.WithString("path", mcp.Description("Directory to scope the search to (default /)")),
	mcp.WithString("glob", mcp.Description("Optional filename filter, e.g. **/*.md")),
)

var deleteToolDef = mcp.NewTool("file_delete",
	mcp.WithDescription("Delete a file from the agent's workspace. Deleting a missing file is not an error."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
	mcp.WithString("path", mcp.Required(), mcp.Description("Absolute file path")),
)

var uploadToolDef = mcp.NewTool("file_upload",
	mcp.WithDescription("Write a batch of files into the agent's workspace. Items succeed or fail independently."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
	mcp.WithArray("files", mcp.Required(), mcp.Description("Files to write"),
		mcp.Items(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path":    map[string]any{"type": "string", "description": "Absolute file path"},
				"content": map[string]any{"type": "string", "description": "Full file content"},
			},
			"required": []string{"path", "content"},
		}),
	),
)

var downloadToolDef = mcp.NewTool("file_download",
	mcp.WithDescription("Read a batch of files from the agent's workspace. Items succeed or fail independently."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
	mcp.WithArray("paths", mcp.Required(), mcp.Description("Absolute file paths to read"),
		mcp.Items(map[string]any{"type": "string"}),
	),
)

var execToolDef = mcp.NewTool("exec_run",
	mcp.WithDescription("Run a shell command in the agent's sandbox, creating one from the stored workspace if needed. Returns combined output with stderr lines prefixed."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
	mcp.WithString("command", mcp.Required(), mcp.Description("Shell command to run")),
	mcp.WithString("cwd", mcp.Description("Working directory inside the sandbox")),
	mcp.WithNumber("timeout_secs", mcp.Description("Command timeout in seconds (default from config)")),
)

var statusToolDef = mcp.NewTool("workspace_status",
	mcp.WithDescription("Summarize an agent's workspace: file count, total bytes, last update, and whether a live sandbox is attached."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
)

var syncToolDef = mcp.NewTool("workspace_sync",
	mcp.WithDescription("Capture the agent's live sandbox files back into the durable store. A no-op when no sandbox is live."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
)

var clearToolDef = mcp.NewTool("workspace_clear",
	mcp.WithDescription("Remove every stored file for an agent. Clearing an empty workspace is not an error."),
	mcp.WithString("agent", mcp.Required(), mcp.Description("Agent workspace name")),
)

var exportToolDef = mcp.NewTool("workspace_export",
	mcp.WithDescription("Export stored workspace files to a JSONL file. Defaults to a timestamped file under ~/.burrow/exports."),
	mcp.WithString("path", mcp.Description("Destination path (.jsonl). Must be in an allowed directory.")),
	mcp.WithString("agent", mcp.Description("Only export this agent's files (default: all agents)")),
)

var importToolDef = mcp.NewTool("workspace_import",
	mcp.WithDescription("Import workspace files from a JSONL export. Mode 'error' aborts atomically on any collision; 'replace' overwrites."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Source path (.jsonl). Must be in an allowed directory.")),
	mcp.WithString("mode", mcp.Description("Collision behavior (default error)"), mcp.Enum("error", "replace")),
)
