package ops

import (
	"context"
	"database/sql"
	"strings"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/sandbox"
)

// EditInput contains parameters for the Edit operation. Old is matched
// literally, never as a regular expression.
type EditInput struct {
	Agent      string
	Path       string
	Old        string
	New        string
	ReplaceAll bool
}

// EditOutput contains the result of the Edit operation.
type EditOutput struct {
	Path         string `json:"path"`
	Replacements int    `json:"replacements"`
	SizeBytes    int64  `json:"size_bytes"`
	Mirrored     bool   `json:"mirrored"`
}

// Edit replaces occurrences of a literal string in a stored file. Zero
// occurrences is STRING_NOT_FOUND and leaves the content byte-for-byte
// untouched. Successful edits mirror like Write.
func Edit(ctx context.Context, database *sql.DB, mgr *sandbox.Manager, input EditInput) (*EditOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}
	path, err := ValidateFilePath(input.Path)
	if err != nil {
		return nil, err
	}
	if input.Old == "" {
		return nil, errors.NewInvalidRequest("old_string must not be empty")
	}
	if input.Old == input.New {
		return nil, errors.NewInvalidRequest("old_string and new_string are identical")
	}

	rec, err := db.GetFile(database, agentNorm, path)
	if err != nil {
		return nil, err
	}

	count := strings.Count(rec.Content, input.Old)
	if count == 0 {
		return nil, errors.NewStringNotFound(path)
	}

	var updated string
	replacements := count
	if input.ReplaceAll {
		updated = strings.ReplaceAll(rec.Content, input.Old, input.New)
	} else {
		updated = strings.Replace(rec.Content, input.Old, input.New, 1)
		replacements = 1
	}

	saved, err := db.PutFile(database, agentNorm, path, updated)
	if err != nil {
		return nil, err
	}

	mirrored := mirrorWrite(ctx, mgr, agentNorm, path, updated)

	return &EditOutput{
		Path:         path,
		Replacements: replacements,
		SizeBytes:    saved.Size,
		Mirrored:     mirrored,
	}, nil
}
