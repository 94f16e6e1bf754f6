package ops

import (
	"database/sql"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// GlobInput contains parameters for the Glob operation.
type GlobInput struct {
	Agent    string
	Pattern  string
	BasePath string // default "/"
}

// GlobOutput contains the result of the Glob operation.
type GlobOutput struct {
	Pattern string   `json:"pattern"`
	Base    string   `json:"base"`
	Paths   []string `json:"paths"`
	Count   int      `json:"count"`
}

// Glob returns stored file paths matching a glob pattern under a base
// directory. "*" stays within one path segment; "**" crosses segments.
func Glob(database *sql.DB, input GlobInput) (*GlobOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}
	if input.Pattern == "" {
		return nil, errors.NewInvalidRequest("pattern is required")
	}
	base, err := ValidateDirPath(input.BasePath)
	if err != nil {
		return nil, err
	}

	matcher, err := wsfile.CompileGlob(input.Pattern)
	if err != nil {
		return nil, errors.NewInvalidRequest("invalid glob pattern: " + input.Pattern)
	}

	records, err := db.ListFileMeta(database, agentNorm)
	if err != nil {
		return nil, err
	}

	paths := []string{}
	for _, rec := range records {
		if matcher.MatchPath(base, rec.Path) {
			paths = append(paths, rec.Path)
		}
	}

	return &GlobOutput{
		Pattern: input.Pattern,
		Base:    base,
		Paths:   paths,
		Count:   len(paths),
	}, nil
}
