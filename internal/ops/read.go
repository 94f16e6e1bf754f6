package ops

import (
	"database/sql"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// ReadInput contains parameters for the Read operation.
type ReadInput struct {
	Agent  string
	Path   string
	Offset int // 0-based first line of the window
	Limit  int // max lines, default wsfile.DefaultReadLimit
}

// ReadOutput contains the result of the Read operation.
type ReadOutput struct {
	Path       string `json:"path"`
	Content    string `json:"content"` // numbered lines, "{n}\t{line}"
	TotalLines int    `json:"total_lines"`
	Offset     int    `json:"offset"`
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"has_more"`
}

// Read returns a numbered line window of a stored file.
func Read(database *sql.DB, input ReadInput) (*ReadOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}
	path, err := ValidateFilePath(input.Path)
	if err != nil {
		return nil, err
	}

	rec, err := db.GetFile(database, agentNorm, path)
	if err != nil {
		return nil, err
	}

	offset := input.Offset
	if offset < 0 {
		offset = 0
	}
	limit := input.Limit
	if limit <= 0 {
		limit = wsfile.DefaultReadLimit
	}

	content, total := wsfile.NumberLines(rec.Content, offset, limit)

	return &ReadOutput{
		Path:       path,
		Content:    content,
		TotalLines: total,
		Offset:     offset,
		Limit:      limit,
		HasMore:    offset+limit < total,
	}, nil
}
