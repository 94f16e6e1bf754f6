package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/wsfile"
)

// PutFile inserts or replaces the file at (agentNorm, path).
// created_at is preserved across overwrites; updated_at is always refreshed.
func PutFile(db *sql.DB, agentNorm, path, content string) (*wsfile.Record, error) {
	now := time.Now().Unix()

	query := `
		INSERT INTO files (agent_norm, path, content, size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_norm, path) DO UPDATE SET
			content = excluded.content,
			size = excluded.size,
			updated_at = excluded.updated_at
	`

	if _, err := db.Exec(query, agentNorm, path, content, len(content), now, now); err != nil {
		return nil, errors.NewInternal(err)
	}

	return GetFile(db, agentNorm, path)
}

// GetFile retrieves a single file by exact path.
func GetFile(db *sql.DB, agentNorm, path string) (*wsfile.Record, error) {
	query := `
		SELECT agent_norm, path, content, size, created_at, updated_at
		FROM files
		WHERE agent_norm = ? AND path = ?
	`

	row := db.QueryRow(query, agentNorm, path)
	rec, err := scanFile(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(path)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return rec, nil
}

// FileExists reports whether a file exists at the exact path.
func FileExists(db *sql.DB, agentNorm, path string) (bool, error) {
	query := `SELECT 1 FROM files WHERE agent_norm = ? AND path = ? LIMIT 1`

	var exists int
	err := db.QueryRow(query, agentNorm, path).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}

	return true, nil
}

// DeleteFile removes the file at (agentNorm, path).
// Returns NOT_FOUND if no row matched.
func DeleteFile(db *sql.DB, agentNorm, path string) error {
	result, err := db.Exec(`DELETE FROM files WHERE agent_norm = ? AND path = ?`, agentNorm, path)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound(path)
	}

	return nil
}

// ListFiles returns all files for an agent, content included, ordered by path.
func ListFiles(db *sql.DB, agentNorm string) ([]*wsfile.Record, error) {
	query := `
		SELECT agent_norm, path, content, size, created_at, updated_at
		FROM files
		WHERE agent_norm = ?
		ORDER BY path ASC
	`

	rows, err := db.Query(query, agentNorm)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var records []*wsfile.Record
	for rows.Next() {
		rec, err := scanFileRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return records, nil
}

// ListFileMeta returns path and size for every file of an agent, ordered by
// path, without loading content. Used by listings and glob matching.
func ListFileMeta(db *sql.DB, agentNorm string) ([]*wsfile.Record, error) {
	query := `
		SELECT agent_norm, path, size, created_at, updated_at
		FROM files
		WHERE agent_norm = ?
		ORDER BY path ASC
	`

	rows, err := db.Query(query, agentNorm)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var records []*wsfile.Record
	for rows.Next() {
		var rec wsfile.Record
		if err := rows.Scan(&rec.Agent, &rec.Path, &rec.Size, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		records = append(records, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return records, nil
}

// ClearFiles removes every file for an agent. Returns the number of rows removed.
func ClearFiles(db *sql.DB, agentNorm string) (int, error) {
	result, err := db.Exec(`DELETE FROM files WHERE agent_norm = ?`, agentNorm)
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	return int(rowsAffected), nil
}

// ReplaceFiles atomically swaps an agent's file set for the given records.
// Used by sandbox capture so partial captures never leave a mixed state.
func ReplaceFiles(db *sql.DB, agentNorm string, records []*wsfile.Record) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	// Preserve created_at for paths that already exist.
	created := make(map[string]int64)
	rows, err := tx.Query(`SELECT path, created_at FROM files WHERE agent_norm = ?`, agentNorm)
	if err != nil {
		return errors.NewInternal(err)
	}
	for rows.Next() {
		var path string
		var at int64
		if err := rows.Scan(&path, &at); err != nil {
			rows.Close()
			return errors.NewInternal(err)
		}
		created[path] = at
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return errors.NewInternal(err)
	}
	rows.Close()

	if _, err := tx.Exec(`DELETE FROM files WHERE agent_norm = ?`, agentNorm); err != nil {
		return errors.NewInternal(err)
	}

	now := time.Now().Unix()
	insert := `
		INSERT INTO files (agent_norm, path, content, size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	for _, rec := range records {
		createdAt := now
		if at, ok := created[rec.Path]; ok {
			createdAt = at
		}
		if _, err := tx.Exec(insert, agentNorm, rec.Path, rec.Content, len(rec.Content), createdAt, now); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}

	return nil
}

// StreamForExport returns a cursor over stored files, optionally filtered to
// one agent, ordered by agent then path. Callers must Close the rows.
func StreamForExport(ctx context.Context, db *sql.DB, agentNorm *string) (*sql.Rows, error) {
	query := `
		SELECT agent_norm, path, content, size, created_at, updated_at
		FROM files
	`
	var args []any
	if agentNorm != nil && *agentNorm != "" {
		query += ` WHERE agent_norm = ?`
		args = append(args, *agentNorm)
	}
	query += ` ORDER BY agent_norm ASC, path ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return rows, nil
}

// ScanExportRow scans one row produced by StreamForExport.
func ScanExportRow(rows *sql.Rows) (*wsfile.Record, error) {
	return scanFileRows(rows)
}

// SnapshotSummary returns the file count, total bytes, and most recent
// updated_at for an agent. A workspace with no files yields a zero snapshot.
func SnapshotSummary(db *sql.DB, agentNorm string) (*wsfile.Snapshot, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(size), 0), COALESCE(MAX(updated_at), 0)
		FROM files
		WHERE agent_norm = ?
	`

	var snap wsfile.Snapshot
	if err := db.QueryRow(query, agentNorm).Scan(&snap.FileCount, &snap.TotalBytes, &snap.UpdatedAt); err != nil {
		return nil, errors.NewInternal(err)
	}

	return &snap, nil
}

// ListAgents returns the normalized names of every agent with a row in the
// agents table, ordered by most recent activity.
func ListAgents(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT agent_norm FROM agents ORDER BY updated_at DESC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var agents []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewInternal(err)
		}
		agents = append(agents, name)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return agents, nil
}

// TouchAgent records the agent in the agents table, updating updated_at if
// it already exists. Raw spelling from the first sighting is kept.
func TouchAgent(db *sql.DB, agentNorm, agentRaw string) error {
	now := time.Now().Unix()

	query := `
		INSERT INTO agents (agent_norm, agent_raw, sandbox_id, created_at, updated_at)
		VALUES (?, ?, NULL, ?, ?)
		ON CONFLICT(agent_norm) DO UPDATE SET updated_at = excluded.updated_at
	`

	if _, err := db.Exec(query, agentNorm, agentRaw, now, now); err != nil {
		return errors.NewInternal(err)
	}

	return nil
}

// GetSandboxID returns the stored live-sandbox ID for an agent, or empty
// string when no sandbox is recorded.
func GetSandboxID(db *sql.DB, agentNorm string) (string, error) {
	var sandboxID sql.NullString
	err := db.QueryRow(`SELECT sandbox_id FROM agents WHERE agent_norm = ?`, agentNorm).Scan(&sandboxID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if !sandboxID.Valid {
		return "", nil
	}

	return sandboxID.String, nil
}

// SetSandboxID records the live-sandbox ID for an agent, creating the agent
// row if needed.
func SetSandboxID(db *sql.DB, agentNorm, agentRaw, sandboxID string) error {
	now := time.Now().Unix()

	query := `
		INSERT INTO agents (agent_norm, agent_raw, sandbox_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(agent_norm) DO UPDATE SET
			sandbox_id = excluded.sandbox_id,
			updated_at = excluded.updated_at
	`

	if _, err := db.Exec(query, agentNorm, agentRaw, sandboxID, now, now); err != nil {
		return errors.NewInternal(err)
	}

	return nil
}

// ClearSandboxID forgets the recorded sandbox for an agent. A missing agent
// row is not an error.
func ClearSandboxID(db *sql.DB, agentNorm string) error {
	now := time.Now().Unix()

	_, err := db.Exec(`UPDATE agents SET sandbox_id = NULL, updated_at = ? WHERE agent_norm = ?`, now, agentNorm)
	if err != nil {
		return errors.NewInternal(err)
	}

	return nil
}

// scanFile scans a single row into a Record.
func scanFile(row *sql.Row) (*wsfile.Record, error) {
	var rec wsfile.Record
	err := row.Scan(&rec.Agent, &rec.Path, &rec.Content, &rec.Size, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func scanFileRows(rows *sql.Rows) (*wsfile.Record, error) {
	var rec wsfile.Record
	err := rows.Scan(&rec.Agent, &rec.Path, &rec.Content, &rec.Size, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
