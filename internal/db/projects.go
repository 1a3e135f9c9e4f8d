package db

import (
	"context"
	"fmt"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/google/uuid"
)

func (t *Tx) CreateProject(ctx context.Context, project *models.Project) error {
	query := `
		INSERT INTO projects (id, user_id, title, script_raw)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err := t.tx.QueryRowContext(
		ctx, query,
		project.ID, project.UserID, project.Title, project.ScriptRaw,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
	return translate(err, "create project")
}

func (t *Tx) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `
		SELECT id, user_id, title, script_raw, created_at, updated_at
		FROM projects
		WHERE id = $1
	`

	project := &models.Project{}
	err := t.tx.QueryRowContext(ctx, query, id).Scan(
		&project.ID, &project.UserID, &project.Title, &project.ScriptRaw,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, translate(err, fmt.Sprintf("get project %s", id))
	}

	return project, nil
}

// ListProjects returns a user's projects, newest first.
func (t *Tx) ListProjects(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Project, error) {
	query := `
		SELECT id, user_id, title, script_raw, created_at, updated_at
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := t.tx.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.Title, &p.ScriptRaw,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, p)
	}

	return projects, rows.Err()
}

func (t *Tx) CountProjects(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count projects: %w", err)
	}
	return count, nil
}

func (t *Tx) UpdateProject(ctx context.Context, project *models.Project) error {
	query := `
		UPDATE projects
		SET title = $1, script_raw = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := t.tx.QueryRowContext(ctx, query, project.Title, project.ScriptRaw, project.ID).Scan(&project.UpdatedAt)
	return translate(err, fmt.Sprintf("update project %s", project.ID))
}

// DeleteProject relies on ON DELETE CASCADE for blocks, links and jobs.
func (t *Tx) DeleteProject(ctx context.Context, id uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	return execAffected(res, err, fmt.Sprintf("delete project %s", id))
}

