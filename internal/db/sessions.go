package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SessionRow is the persisted shape of one session row.
type SessionRow struct {
	ID             string
	ProjectID      int64
	Agent          string
	Model          string
	BaseBranch     string
	Status         string
	Prompt         string
	Title          sql.NullString
	Summary        sql.NullString
	InputTokens    int64
	OutputTokens   int64
	PermissionMode string
	CreatedAt      int64
	UpdatedAt      int64
}

// InsertSession creates a new session row in the given status.
func (d *DB) InsertSession(ctx context.Context, id, agent, model, baseBranch, status, prompt string, projectID int64) error {
	now := time.Now().Unix()

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO sessions (
			id, project_id, agent, model, base_branch, status, prompt,
			permission_mode, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, 'auto_edit', ?, ?)
	`, id, projectID, agent, model, baseBranch, status, prompt, now, now)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", id, err)
	}

	return nil
}

// LoadSessions returns every session row, ordered by most recently updated.
func (d *DB) LoadSessions(ctx context.Context) ([]SessionRow, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, project_id, agent, model, base_branch, status, prompt,
			title, summary, input_tokens, output_tokens, permission_mode,
			created_at, updated_at
		FROM sessions ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var s SessionRow
		if err := rows.Scan(
			&s.ID, &s.ProjectID, &s.Agent, &s.Model, &s.BaseBranch, &s.Status, &s.Prompt,
			&s.Title, &s.Summary, &s.InputTokens, &s.OutputTokens, &s.PermissionMode,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		sessions = append(sessions, s)
	}

	return sessions, rows.Err()
}

// LoadSessionsMetadata returns the row count and max(updated_at) across all
// sessions, used by the Session Manager's low-frequency refresh fallback
// timer to detect whether a re-hydration is needed.
func (d *DB) LoadSessionsMetadata(ctx context.Context) (rowCount int64, updatedAtMax int64, err error) {
	row := d.conn.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(updated_at), 0) FROM sessions
	`)
	if err := row.Scan(&rowCount, &updatedAtMax); err != nil {
		return 0, 0, fmt.Errorf("loading session metadata: %w", err)
	}

	return rowCount, updatedAtMax, nil
}

// UpdateSessionStatus sets a session's persisted status.
func (d *DB) UpdateSessionStatus(ctx context.Context, sessionID, status string) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?
	`, status, time.Now().Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("updating session %s status: %w", sessionID, err)
	}

	return nil
}

// AddSessionTokens accumulates input/output token counts for a session.
func (d *DB) AddSessionTokens(ctx context.Context, sessionID string, inputTokens, outputTokens int64) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE sessions
		SET input_tokens = input_tokens + ?, output_tokens = output_tokens + ?, updated_at = ?
		WHERE id = ?
	`, inputTokens, outputTokens, time.Now().Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("accumulating tokens for session %s: %w", sessionID, err)
	}

	return nil
}

// UpdateSessionTitleSummary sets a session's title/summary fields.
func (d *DB) UpdateSessionTitleSummary(ctx context.Context, sessionID string, title, summary string) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE sessions SET title = ?, summary = ?, updated_at = ? WHERE id = ?
	`, title, summary, time.Now().Unix(), sessionID)
	if err != nil {
		return fmt.Errorf("updating session %s title/summary: %w", sessionID, err)
	}

	return nil
}

// DeleteSession removes a session row. Callers are responsible for the
// associated worktree and operation rows.
func (d *DB) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := d.conn.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}

	return nil
}
