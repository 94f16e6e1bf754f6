package wsfile

import (
	"regexp"
	"strings"
)

// Matcher is the single glob implementation shared by the glob operation,
// search file filters, and the synchronizer's capture filter. Keeping one
// translator avoids the classic trap of two codepaths disagreeing on "**".
//
// Pattern semantics:
//   - "**" matches any sequence of characters including "/";
//     a leading "**/" also matches zero directories, so "**/*.ts"
//     matches both "a.ts" and "sub/a.ts"
//   - "*" matches any sequence of characters excluding "/"
//   - "?" matches exactly one character excluding "/"
//   - every other character, "." included, matches literally
type Matcher struct {
	pattern string
	re      *regexp.Regexp
	literal bool // pattern has no wildcard characters
}

// CompileGlob translates a glob pattern into a Matcher.
func CompileGlob(pattern string) (*Matcher, error) {
	var b strings.Builder
	b.WriteString("^")

	literal := true
	for i := 0; i < len(pattern); {
		c := pattern[i]
		switch c {
		case '*':
			literal = false
			if strings.HasPrefix(pattern[i:], "**/") {
				b.WriteString(`(?:.*/)?`)
				i += 3
			} else if strings.HasPrefix(pattern[i:], "**") {
				b.WriteString(`.*`)
				i += 2
			} else {
				b.WriteString(`[^/]*`)
				i++
			}
		case '?':
			literal = false
			b.WriteString(`[^/]`)
			i++
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
			i++
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, err
	}

	return &Matcher{pattern: pattern, re: re, literal: literal}, nil
}

// Pattern returns the original glob pattern.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match reports whether a single candidate string satisfies the pattern.
func (m *Matcher) Match(s string) bool {
	return m.re.MatchString(s)
}

// MatchPath reports whether a stored path satisfies the pattern relative to
// base (a cleaned directory). The pattern is tried against the base-relative
// path and the full path. For wildcard-free patterns the bare filename is
// also tried, so an exact name like "notes.md" can be looked up at any depth;
// wildcard patterns stay anchored ("*.ts" never reaches into subdirectories).
func (m *Matcher) MatchPath(base, full string) bool {
	rel, under := RelativeTo(base, full)
	if !under {
		return false
	}
	if m.re.MatchString(rel) || m.re.MatchString(full) {
		return true
	}
	if m.literal && m.re.MatchString(Base(full)) {
		return true
	}
	return false
}
