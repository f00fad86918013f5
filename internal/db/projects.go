package db

import (
	"context"
	"fmt"
	"time"
)

// Project is one discovered or registered repository root.
type Project struct {
	ID        int64
	Path      string
	GitBranch string
	CreatedAt int64
	UpdatedAt int64
}

// UpsertProject inserts a project row for path if absent, or refreshes its
// git branch and updated_at if present. Returns the project id.
func (d *DB) UpsertProject(ctx context.Context, path string, gitBranch string) (int64, error) {
	now := time.Now().Unix()

	result, err := d.conn.ExecContext(ctx, `
		INSERT INTO projects (path, git_branch, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			git_branch = excluded.git_branch,
			updated_at = excluded.updated_at
	`, path, gitBranch, now, now)
	if err != nil {
		return 0, fmt.Errorf("upserting project %s: %w", path, err)
	}

	id, err := result.LastInsertId()
	if err == nil && id != 0 {
		return id, nil
	}

	var existingID int64
	row := d.conn.QueryRowContext(ctx, `SELECT id FROM projects WHERE path = ?`, path)
	if err := row.Scan(&existingID); err != nil {
		return 0, fmt.Errorf("loading project id for %s: %w", path, err)
	}

	return existingID, nil
}

// LoadProjects returns every registered project.
func (d *DB) LoadProjects(ctx context.Context) ([]Project, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT id, path, COALESCE(git_branch, ''), created_at, updated_at
		FROM projects ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Path, &p.GitBranch, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning project row: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}
