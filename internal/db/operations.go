package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Operation states, per spec §3/§4.5. Terminal rows are immutable once
// reached.
const (
	OpQueued   = "Queued"
	OpRunning  = "Running"
	OpDone     = "Done"
	OpFailed   = "Failed"
	OpCanceled = "Canceled"
)

// Operation is one row of the operations log.
type Operation struct {
	OpID            string
	SessionID       string
	Kind            string
	State           string
	CancelRequested bool
	FailureReason   sql.NullString
	CreatedAt       int64
	UpdatedAt       int64
}

// InsertSessionOperation creates a row in the Queued state.
func (d *DB) InsertSessionOperation(ctx context.Context, opID, sessionID, kind string) error {
	now := time.Now().Unix()

	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO session_operations (op_id, session_id, kind, state, cancel_requested, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
	`, opID, sessionID, kind, OpQueued, now, now)
	if err != nil {
		return fmt.Errorf("inserting session operation %s: %w", opID, err)
	}

	return nil
}

// MarkSessionOperationRunning transitions Queued -> Running using a
// conditional update so a concurrent cancellation request cannot be lost:
// the WHERE clause only succeeds while the row is still Queued.
func (d *DB) MarkSessionOperationRunning(ctx context.Context, opID string) error {
	result, err := d.conn.ExecContext(ctx, `
		UPDATE session_operations SET state = ?, updated_at = ?
		WHERE op_id = ? AND state = ?
	`, OpRunning, time.Now().Unix(), opID, OpQueued)
	if err != nil {
		return fmt.Errorf("marking operation %s running: %w", opID, err)
	}

	return checkRowAffected(result, opID, "mark running")
}

// MarkSessionOperationDone sets a terminal Done state.
func (d *DB) MarkSessionOperationDone(ctx context.Context, opID string) error {
	return d.markTerminal(ctx, opID, OpDone, "")
}

// MarkSessionOperationFailed sets a terminal Failed state with a reason.
func (d *DB) MarkSessionOperationFailed(ctx context.Context, opID, reason string) error {
	return d.markTerminal(ctx, opID, OpFailed, reason)
}

// MarkSessionOperationCanceled sets a terminal Canceled state with a reason.
func (d *DB) MarkSessionOperationCanceled(ctx context.Context, opID, reason string) error {
	return d.markTerminal(ctx, opID, OpCanceled, reason)
}

func (d *DB) markTerminal(ctx context.Context, opID, state, reason string) error {
	result, err := d.conn.ExecContext(ctx, `
		UPDATE session_operations SET state = ?, failure_reason = ?, updated_at = ?
		WHERE op_id = ? AND state IN (?, ?)
	`, state, nullableString(reason), time.Now().Unix(), opID, OpQueued, OpRunning)
	if err != nil {
		return fmt.Errorf("marking operation %s %s: %w", opID, state, err)
	}

	return checkRowAffected(result, opID, "mark "+state)
}

// RequestCancelForSessionOperations sets cancel_requested on every
// non-terminal operation belonging to a session. Idempotent: calling it
// twice leaves the same set of rows flagged.
func (d *DB) RequestCancelForSessionOperations(ctx context.Context, sessionID string) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE session_operations SET cancel_requested = 1, updated_at = ?
		WHERE session_id = ? AND state IN (?, ?)
	`, time.Now().Unix(), sessionID, OpQueued, OpRunning)
	if err != nil {
		return fmt.Errorf("requesting cancel for session %s: %w", sessionID, err)
	}

	return nil
}

// IsSessionOperationUnfinished reports whether opID is Queued or Running.
func (d *DB) IsSessionOperationUnfinished(ctx context.Context, opID string) (bool, error) {
	var state string
	row := d.conn.QueryRowContext(ctx, `SELECT state FROM session_operations WHERE op_id = ?`, opID)
	if err := row.Scan(&state); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("loading operation %s state: %w", opID, err)
	}

	return state == OpQueued || state == OpRunning, nil
}

// IsCancelRequestedForSessionOperations reports whether any non-terminal
// operation for sessionID has the cancel flag set.
func (d *DB) IsCancelRequestedForSessionOperations(ctx context.Context, sessionID string) (bool, error) {
	var count int
	row := d.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM session_operations
		WHERE session_id = ? AND state IN (?, ?) AND cancel_requested = 1
	`, sessionID, OpQueued, OpRunning)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("checking cancel request for session %s: %w", sessionID, err)
	}

	return count > 0, nil
}

// LoadUnfinishedSessionOperations returns every Queued or Running row,
// used only by startup recovery (component K).
func (d *DB) LoadUnfinishedSessionOperations(ctx context.Context) ([]Operation, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT op_id, session_id, kind, state, cancel_requested, failure_reason, created_at, updated_at
		FROM session_operations WHERE state IN (?, ?)
	`, OpQueued, OpRunning)
	if err != nil {
		return nil, fmt.Errorf("loading unfinished operations: %w", err)
	}
	defer rows.Close()

	var ops []Operation
	for rows.Next() {
		var op Operation
		var cancelRequested int
		if err := rows.Scan(&op.OpID, &op.SessionID, &op.Kind, &op.State, &cancelRequested,
			&op.FailureReason, &op.CreatedAt, &op.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning operation row: %w", err)
		}
		op.CancelRequested = cancelRequested != 0
		ops = append(ops, op)
	}

	return ops, rows.Err()
}

// FailUnfinishedSessionOperations transitions every Queued/Running row to
// Failed(reason), used only by startup recovery (component K) to restore
// the invariant that no unfinished operation survives a crash.
func (d *DB) FailUnfinishedSessionOperations(ctx context.Context, reason string) error {
	_, err := d.conn.ExecContext(ctx, `
		UPDATE session_operations SET state = ?, failure_reason = ?, updated_at = ?
		WHERE state IN (?, ?)
	`, OpFailed, reason, time.Now().Unix(), OpQueued, OpRunning)
	if err != nil {
		return fmt.Errorf("failing unfinished operations: %w", err)
	}

	return nil
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// checkRowAffected surfaces only driver errors. Zero rows affected is not
// an error: it means the row was already terminal or already in the target
// state, which is how a race between a worker and a concurrent
// cancellation resolves without double-applying state.
func checkRowAffected(result sql.Result, opID, action string) error {
	if _, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("checking rows affected for %s on %s: %w", action, opID, err)
	}

	return nil
}
