package wsfile

import (
	"fmt"
	"strings"
)

// DefaultReadLimit is the number of lines a read returns when no limit is given.
const DefaultReadLimit = 500

// NumberLines renders the window [offset, offset+limit) of content's lines,
// each prefixed with its 1-based line number and a tab. Offset is 0-based.
// The second return is the total line count of the content.
func NumberLines(content string, offset, limit int) (string, int) {
	lines := strings.Split(content, "\n")

	// A trailing newline produces one empty trailing element; that element is
	// not a line of its own.
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	total := len(lines)

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	if offset >= total {
		return "", total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	var b strings.Builder
	for i := offset; i < end; i++ {
		if i > offset {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%d\t%s", i+1, lines[i])
	}
	return b.String(), total
}
