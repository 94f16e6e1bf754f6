package ops

import (
	"context"
	"log"

	"github.com/hpungsan/burrow/internal/sandbox"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// mirrorWrite pushes committed content into the agent's live sandbox, if one
// exists. Strictly best-effort: never creates a sandbox, never fails the
// calling operation. A gone sandbox is marked lost so the next acquisition
// recreates it. The durable commit has already happened by the time this runs.
func mirrorWrite(ctx context.Context, mgr *sandbox.Manager, agentNorm, path, content string) bool {
	if mgr == nil {
		return false
	}
	h := mgr.Peek(agentNorm)
	if h == nil {
		return false
	}

	if err := h.Sandbox.MakeDirs(ctx, wsfile.Dir(path)); err != nil {
		mirrorFailed(mgr, h, agentNorm, path, err)
		return false
	}
	if err := h.Sandbox.WriteFile(ctx, path, content); err != nil {
		mirrorFailed(mgr, h, agentNorm, path, err)
		return false
	}
	return true
}

func mirrorFailed(mgr *sandbox.Manager, h *sandbox.Handle, agentNorm, path string, err error) {
	if sandbox.IsGone(err) {
		mgr.MarkLost(agentNorm, h.ID)
	}
	log.Printf("mirror %s %s: %v", agentNorm, path, err)
}
