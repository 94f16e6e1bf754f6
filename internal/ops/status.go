package ops

import (
	"database/sql"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/sandbox"
)

// StatusInput contains parameters for the Status operation.
type StatusInput struct {
	Agent string
}

// StatusOutput summarizes an agent's stored workspace and live environment.
// The snapshot is computed from the current file set on every call.
type StatusOutput struct {
	Agent      string `json:"agent"`
	FileCount  int    `json:"file_count"`
	TotalBytes int64  `json:"total_bytes"`
	UpdatedAt  int64  `json:"updated_at"`
	Live       bool   `json:"live"`
	SandboxID  string `json:"sandbox_id,omitempty"` // provider ID of the live sandbox
}

// Status reports the workspace snapshot plus whether a live sandbox handle
// exists. Never acquires one.
func Status(database *sql.DB, mgr *sandbox.Manager, input StatusInput) (*StatusOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}

	snap, err := db.SnapshotSummary(database, agentNorm)
	if err != nil {
		return nil, err
	}

	out := &StatusOutput{
		Agent:      agentNorm,
		FileCount:  snap.FileCount,
		TotalBytes: snap.TotalBytes,
		UpdatedAt:  snap.UpdatedAt,
	}

	if mgr != nil {
		if h := mgr.Peek(agentNorm); h != nil {
			out.Live = true
			out.SandboxID = h.Sandbox.ID()
		}
	}

	return out, nil
}
