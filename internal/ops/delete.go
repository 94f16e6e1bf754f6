package ops

import (
	"database/sql"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/errors"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	Agent string
	Path  string
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	Path    string `json:"path"`
	Existed bool   `json:"existed"`
}

// Delete removes a file from the store. Removal from any live sandbox is the
// synchronizer's concern, not ours; the store is authoritative either way.
func Delete(database *sql.DB, input DeleteInput) (*DeleteOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}
	path, err := ValidateFilePath(input.Path)
	if err != nil {
		return nil, err
	}

	err = db.DeleteFile(database, agentNorm, path)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return &DeleteOutput{Path: path, Existed: false}, nil
		}
		return nil, err
	}

	return &DeleteOutput{Path: path, Existed: true}, nil
}
