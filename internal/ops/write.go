package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/sandbox"
)

// WriteInput contains parameters for the Write operation.
type WriteInput struct {
	Agent   string
	Path    string
	Content string
}

// WriteOutput contains the result of the Write operation.
type WriteOutput struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Mirrored  bool   `json:"mirrored"`
}

// Write commits content to the store, then mirrors it into a live sandbox if
// one exists. The mirror never affects the outcome: once the store has the
// bytes, the write succeeded.
func Write(ctx context.Context, database *sql.DB, mgr *sandbox.Manager, input WriteInput) (*WriteOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}
	path, err := ValidateFilePath(input.Path)
	if err != nil {
		return nil, err
	}

	rec, err := db.PutFile(database, agentNorm, path, input.Content)
	if err != nil {
		return nil, err
	}
	if err := db.TouchAgent(database, agentNorm, input.Agent); err != nil {
		return nil, err
	}

	mirrored := mirrorWrite(ctx, mgr, agentNorm, path, input.Content)

	return &WriteOutput{
		Path:      rec.Path,
		SizeBytes: rec.Size,
		Mirrored:  mirrored,
	}, nil
}
