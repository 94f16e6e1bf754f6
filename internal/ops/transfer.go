package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/sandbox"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// UploadFile is one file in an Upload batch.
type UploadFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// TransferItem is the per-file outcome of an Upload or Download batch. A
// failed item carries a code and message; it never aborts the batch.
type TransferItem struct {
	Path    string `json:"path"`
	OK      bool   `json:"ok"`
	Content string `json:"content,omitempty"` // download only
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// UploadInput contains parameters for the Upload operation.
type UploadInput struct {
	Agent string
	Files []UploadFile
}

// UploadOutput contains the result of the Upload operation.
type UploadOutput struct {
	Items     []TransferItem `json:"items"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// Upload stores a batch of files, mirroring each committed write like Write
// does. Item failures are reported per path.
func Upload(ctx context.Context, database *sql.DB, mgr *sandbox.Manager, input UploadInput) (*UploadOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}
	if len(input.Files) == 0 {
		return nil, errors.NewInvalidRequest("files must not be empty")
	}

	out := &UploadOutput{Items: make([]TransferItem, 0, len(input.Files))}
	for _, f := range input.Files {
		path := wsfile.CleanPath(f.Path)
		if path == "" {
			out.Items = append(out.Items, TransferItem{
				Path:    f.Path,
				Code:    errors.ItemInvalidPath,
				Message: "path must be an absolute file path",
			})
			out.Failed++
			continue
		}
		if isDirectory(database, agentNorm, path) {
			out.Items = append(out.Items, TransferItem{
				Path:    path,
				Code:    errors.ItemIsDirectory,
				Message: "path is a directory",
			})
			out.Failed++
			continue
		}

		if _, err := db.PutFile(database, agentNorm, path, f.Content); err != nil {
			out.Items = append(out.Items, TransferItem{
				Path:    path,
				Code:    string(errors.ErrInternal),
				Message: "failed to store file",
			})
			out.Failed++
			continue
		}

		mirrorWrite(ctx, mgr, agentNorm, path, f.Content)
		out.Items = append(out.Items, TransferItem{Path: path, OK: true})
		out.Succeeded++
	}

	if out.Succeeded > 0 {
		if err := db.TouchAgent(database, agentNorm, input.Agent); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// DownloadInput contains parameters for the Download operation.
type DownloadInput struct {
	Agent string
	Paths []string
}

// DownloadOutput contains the result of the Download operation.
type DownloadOutput struct {
	Items     []TransferItem `json:"items"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
}

// Download returns the stored content of a batch of paths. Missing files and
// directory paths are per-item failures.
func Download(database *sql.DB, input DownloadInput) (*DownloadOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}
	if len(input.Paths) == 0 {
		return nil, errors.NewInvalidRequest("paths must not be empty")
	}

	out := &DownloadOutput{Items: make([]TransferItem, 0, len(input.Paths))}
	for _, raw := range input.Paths {
		path := wsfile.CleanPath(raw)
		if path == "" {
			out.Items = append(out.Items, TransferItem{
				Path:    raw,
				Code:    errors.ItemInvalidPath,
				Message: "path must be an absolute file path",
			})
			out.Failed++
			continue
		}

		rec, err := db.GetFile(database, agentNorm, path)
		if err != nil {
			if errors.Is(err, errors.ErrNotFound) {
				item := TransferItem{Path: path, Code: errors.ItemFileNotFound, Message: "file not found"}
				if isDirectory(database, agentNorm, path) {
					item.Code = errors.ItemIsDirectory
					item.Message = "path is a directory"
				}
				out.Items = append(out.Items, item)
				out.Failed++
				continue
			}
			return nil, err
		}

		out.Items = append(out.Items, TransferItem{Path: path, OK: true, Content: rec.Content})
		out.Succeeded++
	}

	return out, nil
}

// isDirectory reports whether path is a synthesized directory: some stored
// file lives strictly under it.
func isDirectory(database *sql.DB, agentNorm, path string) bool {
	records, err := db.ListFileMeta(database, agentNorm)
	if err != nil {
		return false
	}
	prefix := path + "/"
	for _, rec := range records {
		if len(rec.Path) > len(prefix) && rec.Path[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}
