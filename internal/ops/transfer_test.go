package ops

import (
	"context"
	"testing"

	"github.com/hpungsan/burrow/internal/errors"
)

func TestUpload_Batch(t *testing.T) {
	database := setupTestDB(t)

	output, err := Upload(context.Background(), database, nil, UploadInput{
		Agent: "agent-a",
		Files: []UploadFile{
			{Path: "/a.txt", Content: "a"},
			{Path: "/sub/b.txt", Content: "b"},
		},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if output.Succeeded != 2 || output.Failed != 0 {
		t.Errorf("Succeeded/Failed = %d/%d, want 2/0", output.Succeeded, output.Failed)
	}

	if _, err := Read(database, ReadInput{Agent: "agent-a", Path: "/sub/b.txt"}); err != nil {
		t.Errorf("uploaded file should be readable: %v", err)
	}
}

func TestUpload_BadItemDoesNotAbortBatch(t *testing.T) {
	database := setupTestDB(t)

	output, err := Upload(context.Background(), database, nil, UploadInput{
		Agent: "agent-a",
		Files: []UploadFile{
			{Path: "/good.txt", Content: "ok"},
			{Path: "relative.txt", Content: "bad"},
			{Path: "/also-good.txt", Content: "ok"},
		},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if output.Succeeded != 2 || output.Failed != 1 {
		t.Fatalf("Succeeded/Failed = %d/%d, want 2/1 (items: %+v)", output.Succeeded, output.Failed, output.Items)
	}
	if output.Items[1].Code != errors.ItemInvalidPath {
		t.Errorf("Items[1].Code = %q, want %q", output.Items[1].Code, errors.ItemInvalidPath)
	}
	if output.Items[2].OK != true {
		t.Error("item after the failure should still succeed")
	}
}

func TestUpload_DirectoryCollision(t *testing.T) {
	database := setupTestDB(t)
	mustWrite(t, database, "agent-a", "/src/main.go", "m")

	output, err := Upload(context.Background(), database, nil, UploadInput{
		Agent: "agent-a",
		Files: []UploadFile{{Path: "/src", Content: "not a file"}},
	})
	if err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	if output.Failed != 1 || output.Items[0].Code != errors.ItemIsDirectory {
		t.Errorf("items = %+v, want IS_DIRECTORY failure", output.Items)
	}
}

func TestUpload_EmptyBatch(t *testing.T) {
	database := setupTestDB(t)

	_, err := Upload(context.Background(), database, nil, UploadInput{Agent: "agent-a"})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got: %v", err)
	}
}

func TestDownload_Batch(t *testing.T) {
	database := setupTestDB(t)
	mustWrite(t, database, "agent-a", "/a.txt", "content a")
	mustWrite(t, database, "agent-a", "/sub/b.txt", "content b")

	output, err := Download(database, DownloadInput{
		Agent: "agent-a",
		Paths: []string{"/a.txt", "/sub/b.txt"},
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if output.Succeeded != 2 {
		t.Fatalf("Succeeded = %d, want 2", output.Succeeded)
	}
	if output.Items[0].Content != "content a" {
		t.Errorf("Items[0].Content = %q, want %q", output.Items[0].Content, "content a")
	}
}

func TestDownload_PerItemFailures(t *testing.T) {
	database := setupTestDB(t)
	mustWrite(t, database, "agent-a", "/src/main.go", "m")

	output, err := Download(database, DownloadInput{
		Agent: "agent-a",
		Paths: []string{"/missing.txt", "/src", "relative", "/src/main.go"},
	})
	if err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if output.Succeeded != 1 || output.Failed != 3 {
		t.Fatalf("Succeeded/Failed = %d/%d, want 1/3 (items: %+v)", output.Succeeded, output.Failed, output.Items)
	}
	if output.Items[0].Code != errors.ItemFileNotFound {
		t.Errorf("Items[0].Code = %q, want %q", output.Items[0].Code, errors.ItemFileNotFound)
	}
	if output.Items[1].Code != errors.ItemIsDirectory {
		t.Errorf("Items[1].Code = %q, want %q", output.Items[1].Code, errors.ItemIsDirectory)
	}
	if output.Items[2].Code != errors.ItemInvalidPath {
		t.Errorf("Items[2].Code = %q, want %q", output.Items[2].Code, errors.ItemInvalidPath)
	}
	if !output.Items[3].OK {
		t.Error("last item should succeed despite earlier failures")
	}
}
