package ops

import (
	"context"
	"testing"
)

func TestStatus_EmptyWorkspace(t *testing.T) {
	database := setupTestDB(t)

	output, err := Status(database, nil, StatusInput{Agent: "agent-a"})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if output.FileCount != 0 || output.TotalBytes != 0 || output.UpdatedAt != 0 {
		t.Errorf("empty workspace should yield a zero snapshot, got %+v", output)
	}
	if output.Live {
		t.Error("Live = true, want false")
	}
}

func TestStatus_CountsAndBytes(t *testing.T) {
	database := setupTestDB(t)
	mustWrite(t, database, "agent-a", "/a.txt", "12345")
	mustWrite(t, database, "agent-a", "/b.txt", "123")

	output, err := Status(database, nil, StatusInput{Agent: "agent-a"})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if output.FileCount != 2 {
		t.Errorf("FileCount = %d, want 2", output.FileCount)
	}
	if output.TotalBytes != 8 {
		t.Errorf("TotalBytes = %d, want 8", output.TotalBytes)
	}
	if output.UpdatedAt == 0 {
		t.Error("UpdatedAt should be set")
	}
}

func TestStatus_LiveSandbox(t *testing.T) {
	database := setupTestDB(t)
	mgr, provider := setupManager(t, database)

	ctx := context.Background()
	if _, err := mgr.Acquire(ctx, "agent-a", "agent-a"); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	output, err := Status(database, mgr, StatusInput{Agent: "agent-a"})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if !output.Live {
		t.Error("Live = false, want true")
	}
	if output.SandboxID != "sbx-1" {
		t.Errorf("SandboxID = %q, want sbx-1", output.SandboxID)
	}

	// Status never creates sandboxes for other agents.
	other, err := Status(database, mgr, StatusInput{Agent: "agent-b"})
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if other.Live {
		t.Error("agent-b should not be live")
	}
	if provider.CreateCount() != 1 {
		t.Errorf("CreateCount = %d, want 1", provider.CreateCount())
	}
}
