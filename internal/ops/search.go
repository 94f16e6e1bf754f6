package ops

import (
	"database/sql"
	"regexp"
	"strings"

	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// MaxSearchResults caps how many matching lines one search returns.
const MaxSearchResults = 500

// SearchInput contains parameters for the Search operation.
type SearchInput struct {
	Agent   string
	Pattern string // regexp; falls back to literal when it does not compile
	Path    string // directory scope, default "/"
	Glob    string // optional filename filter, same matcher as Glob
}

// SearchMatch is one matching line.
type SearchMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"` // 1-based
	Text string `json:"text"`
}

// SearchOutput contains the result of the Search operation.
type SearchOutput struct {
	Pattern   string        `json:"pattern"`
	Literal   bool          `json:"literal,omitempty"` // pattern did not compile, matched literally
	Matches   []SearchMatch `json:"matches"`
	Count     int           `json:"count"`
	Truncated bool          `json:"truncated,omitempty"`
}

// Search scans stored file contents for a pattern. An invalid regular
// expression is not an error: the pattern is quoted and matched literally.
func Search(database *sql.DB, input SearchInput) (*SearchOutput, error) {
	agentNorm, err := ValidateAgent(input.Agent)
	if err != nil {
		return nil, err
	}
	if input.Pattern == "" {
		return nil, errors.NewInvalidRequest("pattern is required")
	}
	scope, err := ValidateDirPath(input.Path)
	if err != nil {
		return nil, err
	}

	literal := false
	re, err := regexp.Compile(input.Pattern)
	if err != nil {
		re = regexp.MustCompile(regexp.QuoteMeta(input.Pattern))
		literal = true
	}

	var fileFilter *wsfile.Matcher
	if input.Glob != "" {
		fileFilter, err = wsfile.CompileGlob(input.Glob)
		if err != nil {
			return nil, errors.NewInvalidRequest("invalid glob pattern: " + input.Glob)
		}
	}

	records, err := db.ListFiles(database, agentNorm)
	if err != nil {
		return nil, err
	}

	matches := []SearchMatch{}
	truncated := false
scan:
	for _, rec := range records {
		if _, under := wsfile.RelativeTo(scope, rec.Path); !under {
			continue
		}
		if fileFilter != nil && !fileFilter.MatchPath(scope, rec.Path) {
			continue
		}

		for i, line := range strings.Split(rec.Content, "\n") {
			if !re.MatchString(line) {
				continue
			}
			if len(matches) >= MaxSearchResults {
				truncated = true
				break scan
			}
			matches = append(matches, SearchMatch{
				Path: rec.Path,
				Line: i + 1,
				Text: line,
			})
		}
	}

	return &SearchOutput{
		Pattern:   input.Pattern,
		Literal:   literal,
		Matches:   matches,
		Count:     len(matches),
		Truncated: truncated,
	}, nil
}
