// Package wsfile holds the workspace file domain types and the path, glob,
// and line-window helpers shared by the store, the file operations, and the
// background synchronizer.
package wsfile

// Record is one file's durable content for an agent. The backup store is the
// source of truth: absence of a Record means the file does not exist,
// regardless of what any live sandbox contains.
type Record struct {
	Agent     string `json:"agent"`
	Path      string `json:"path"` // absolute, cleaned, no trailing slash
	Content   string `json:"content"`
	Size      int64  `json:"size_bytes"` // len(Content)
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Snapshot summarizes an agent's stored file set. It is derived from the
// current Record set on every request and never stored.
type Snapshot struct {
	FileCount  int   `json:"file_count"`
	TotalBytes int64 `json:"total_bytes"`
	UpdatedAt  int64 `json:"updated_at"` // most recent file update, 0 when empty
}

// Entry is one row of a directory listing or glob result. Directories are
// synthesized from path prefixes, never stored, so they carry no size.
type Entry struct {
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
	Size  *int64 `json:"size_bytes,omitempty"` // files only
}
