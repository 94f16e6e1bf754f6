package ops

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// ListInput contains parameters for the List operation.
type ListInput struct {
	Agent string
	Dir   string // default "/"
}

// ListOutput contains the result of the List operation.
type ListOutput struct {
	Dir     string         `json:"dir"`
	Entries []wsfile.Entry `json:"entries"`
	Count   int            `json:"count"`
}

// List returns the direct children of a directory. Only files are stored;
// directories are synthesized from path prefixes and carry no size.
func List(database *sql.DB, input ListInput) (*ListOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}
	dir, err := ValidateDirPath(input.Dir)
	if err != nil {
		return nil, err
	}

	records, err := db.ListFileMeta(database, agentNorm)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []wsfile.Entry
	for _, rec := range records {
		rel, under := wsfile.RelativeTo(dir, rec.Path)
		if !under {
			continue
		}
		if idx := strings.IndexByte(rel, '/'); idx >= 0 {
			// Deeper file: its first segment is a direct child directory.
			childDir := joinDir(dir, rel[:idx])
			if !seen[childDir] {
				seen[childDir] = true
				entries = append(entries, wsfile.Entry{Path: childDir, IsDir: true})
			}
			continue
		}
		size := rec.Size
		entries = append(entries, wsfile.Entry{Path: rec.Path, IsDir: false, Size: &size})
	}

	// Directories first, then files, each alphabetical.
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir != entries[j].IsDir {
			return entries[i].IsDir
		}
		return entries[i].Path < entries[j].Path
	})

	return &ListOutput{Dir: dir, Entries: entries, Count: len(entries)}, nil
}

func joinDir(dir, child string) string {
	if dir == "/" {
		return "/" + child
	}
	return dir + "/" + child
}
