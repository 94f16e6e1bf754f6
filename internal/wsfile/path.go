package wsfile

import (
	gopath "path"
	"regexp"
	"strings"
)

// whitespaceRegex matches one or more whitespace characters
var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeAgent normalizes an agent identifier:
// 1. Trim leading/trailing whitespace
// 2. Lowercase
// 3. Collapse internal whitespace to single spaces
func NormalizeAgent(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ToLower(s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return s
}

// CleanPath validates and canonicalizes a workspace path. Workspace paths are
// always POSIX-style and absolute; the result is cleaned (no ".", "..", or
// duplicate separators) and carries no trailing slash. Returns "" for
// anything that cannot be canonicalized to an absolute path.
func CleanPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || !strings.HasPrefix(p, "/") {
		return ""
	}
	if strings.ContainsRune(p, '\x00') {
		return ""
	}
	cleaned := gopath.Clean(p)
	if cleaned == "/" {
		// The root is a directory, never a file path.
		return ""
	}
	return cleaned
}

// CleanDir is like CleanPath but accepts "/" (listings may target the root).
func CleanDir(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") || strings.ContainsRune(p, '\x00') {
		return ""
	}
	return gopath.Clean(p)
}

// Dir returns the parent directory of a cleaned workspace path.
func Dir(p string) string {
	return gopath.Dir(p)
}

// Base returns the final element of a cleaned workspace path.
func Base(p string) string {
	return gopath.Base(p)
}

// RelativeTo strips base (a cleaned directory) from p. The second return is
// false when p is not under base. RelativeTo("/a", "/a/b/c.txt") = "b/c.txt".
func RelativeTo(base, p string) (string, bool) {
	if base == "/" {
		return strings.TrimPrefix(p, "/"), true
	}
	prefix := base + "/"
	if !strings.HasPrefix(p, prefix) {
		return "", false
	}
	return p[len(prefix):], true
}
