// Package ops implements the workspace file operations. Every operation is
// served from the durable store; a live sandbox only ever receives
// best-effort mirrors of committed writes.
package ops

import (
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// ValidateAgent normalizes an agent identifier and rejects empty ones.
func ValidateAgent(agent string) (string, error) {
	norm := wsfile.NormalizeAgent(agent)
	if norm == "" {
		return "", errors.NewInvalidRequest("agent is required")
	}
	return norm, nil
}

// ValidateFilePath canonicalizes an absolute workspace file path.
func ValidateFilePath(path string) (string, error) {
	cleaned := wsfile.CleanPath(path)
	if cleaned == "" {
		return "", errors.NewInvalidRequest("path must be an absolute file path")
	}
	return cleaned, nil
}

// ValidateDirPath canonicalizes an absolute workspace directory path.
// Defaults to "/" when empty.
func ValidateDirPath(path string) (string, error) {
	cleaned := wsfile.CleanDir(path)
	if cleaned == "" {
		return "", errors.NewInvalidRequest("path must be an absolute directory path")
	}
	return cleaned, nil
}
