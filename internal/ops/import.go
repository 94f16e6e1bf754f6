package ops

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hpungsan/burrow/internal/config"
	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError   ImportMode = "error"   // fail on collision (atomic)
	ImportModeReplace ImportMode = "replace" // overwrite on collision
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	Agent   string `json:"agent,omitempty"`
	Path    string `json:"path,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import loads workspace files from a JSONL export file.
func Import(database *sql.DB, cfg *config.Config, input ImportInput) (*ImportOutput, error) {
	// Validate input
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeReplace {
		return nil, errors.NewInvalidRequest("mode must be one of: error, replace")
	}

	// Full path validation: extension, directory restrictions, symlinks,
	// file existence.
	if err := ValidatePath(input.Path, PathCheckRead, cfg); err != nil {
		return nil, err
	}

	// O_NOFOLLOW guards the final component against symlink swaps after
	// validation.
	file, err := openFileNoFollowRead(input.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// Parse all records first
	records, parseErrors := parseExportFile(file)

	// For mode:error, fail on any parse errors
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{
			Imported: 0,
			Skipped:  0,
			Errors:   parseErrors,
		}, nil
	}

	switch input.Mode {
	case ImportModeError:
		return importModeError(database, records)
	default:
		return importModeReplace(database, records, parseErrors)
	}
}

// importedFile is a parsed, validated export line ready for insertion.
type importedFile struct {
	agentRaw  string
	agentNorm string
	path      string
	content   string
	createdAt int64
	updatedAt int64
}

// parseExportFile parses a JSONL export file into validated records.
func parseExportFile(file *os.File) ([]importedFile, []ImportError) {
	var records []importedFile
	var parseErrors []ImportError

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()

		var record ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		// Skip header line
		if record.BurrowExport {
			continue
		}

		agentNorm := wsfile.NormalizeAgent(record.Agent)
		if agentNorm == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "INVALID_RECORD",
				Message: "missing agent field",
			})
			continue
		}

		path := wsfile.CleanPath(record.Path)
		if path == "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Agent:   record.Agent,
				Path:    record.Path,
				Code:    errors.ItemInvalidPath,
				Message: "path must be an absolute file path",
			})
			continue
		}

		records = append(records, importedFile{
			agentRaw:  record.Agent,
			agentNorm: agentNorm,
			path:      path,
			content:   record.Content,
			createdAt: record.CreatedAt,
			updatedAt: record.UpdatedAt,
		})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

// importModeError imports all records atomically, aborting on any collision.
func importModeError(database *sql.DB, records []importedFile) (*ImportOutput, error) {
	tx, err := database.Begin()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	imported := 0
	for _, rec := range records {
		exists, err := db.FileExists(database, rec.agentNorm, rec.path)
		if err != nil {
			return nil, err
		}
		if exists {
			// Abort on first collision for mode:error
			return &ImportOutput{
				Imported: 0,
				Skipped:  0,
				Errors: []ImportError{{
					Agent:   rec.agentRaw,
					Path:    rec.path,
					Code:    "PATH_COLLISION",
					Message: fmt.Sprintf("file %q already exists for agent %q", rec.path, rec.agentRaw),
				}},
			}, nil
		}

		if err := insertWithTx(tx, rec); err != nil {
			return nil, err
		}
		imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	if err := touchImportedAgents(database, records); err != nil {
		return nil, err
	}

	return &ImportOutput{
		Imported: imported,
		Skipped:  0,
		Errors:   nil,
	}, nil
}

// importModeReplace imports records, overwriting existing files on collision.
func importModeReplace(database *sql.DB, records []importedFile, parseErrors []ImportError) (*ImportOutput, error) {
	imported := 0
	skipped := len(parseErrors)

	var importErrors []ImportError
	importErrors = append(importErrors, parseErrors...)

	for _, rec := range records {
		if _, err := db.PutFile(database, rec.agentNorm, rec.path, rec.content); err != nil {
			importErrors = append(importErrors, ImportError{
				Agent:   rec.agentRaw,
				Path:    rec.path,
				Code:    "INSERT_FAILED",
				Message: fmt.Sprintf("failed to store: %v", err),
			})
			skipped++
			continue
		}
		imported++
	}

	if err := touchImportedAgents(database, records); err != nil {
		return nil, err
	}

	return &ImportOutput{
		Imported: imported,
		Skipped:  skipped,
		Errors:   importErrors,
	}, nil
}

// insertWithTx inserts a workspace file within a transaction. Timestamps from
// the export are preserved when present.
func insertWithTx(tx *sql.Tx, rec importedFile) error {
	now := time.Now().Unix()
	createdAt := rec.createdAt
	if createdAt == 0 {
		createdAt = now
	}
	updatedAt := rec.updatedAt
	if updatedAt == 0 {
		updatedAt = now
	}

	query := `
		INSERT INTO files (agent_norm, path, content, size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := tx.Exec(query, rec.agentNorm, rec.path, rec.content, len(rec.content), createdAt, updatedAt)
	if err != nil {
		return errors.NewInternal(err)
	}

	return nil
}

// touchImportedAgents records every distinct agent seen in the import.
func touchImportedAgents(database *sql.DB, records []importedFile) error {
	seen := make(map[string]bool)
	for _, rec := range records {
		if seen[rec.agentNorm] {
			continue
		}
		seen[rec.agentNorm] = true
		if err := db.TouchAgent(database, rec.agentNorm, rec.agentRaw); err != nil {
			return err
		}
	}
	return nil
}
