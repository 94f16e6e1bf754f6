package ops

import (
	"database/sql"

	"github.com/hpungsan/burrow/internal/db"
)

// ClearInput contains parameters for the Clear operation.
type ClearInput struct {
	Agent string
}

// ClearOutput contains the result of the Clear operation.
type ClearOutput struct {
	Agent   string `json:"agent"`
	Removed int    `json:"removed"`
}

// Clear removes every stored file for an agent. An empty workspace clears to
// zero removals, not an error.
func Clear(database *sql.DB, input ClearInput) (*ClearOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}

	removed, err := db.ClearFiles(database, agentNorm)
	if err != nil {
		return nil, err
	}

	return &ClearOutput{Agent: agentNorm, Removed: removed}, nil
}
