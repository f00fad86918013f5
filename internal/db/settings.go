package db

import (
	"context"
	"database/sql"
	"fmt"
)

// GetSetting returns the stored value for name, and false if unset.
func (d *DB) GetSetting(ctx context.Context, name string) (string, bool, error) {
	var value string
	row := d.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE name = ?`, name)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("loading setting %s: %w", name, err)
	}

	return value, true, nil
}

// SetSetting upserts a single name/value pair.
func (d *DB) SetSetting(ctx context.Context, name, value string) error {
	_, err := d.conn.ExecContext(ctx, `
		INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value
	`, name, value)
	if err != nil {
		return fmt.Errorf("setting %s: %w", name, err)
	}

	return nil
}
