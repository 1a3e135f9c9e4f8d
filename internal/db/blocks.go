package db

import (
	"context"
	"fmt"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const blockColumns = `id, project_id, sort_order, text, keywords, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlock(row rowScanner, b *models.Block) error {
	return row.Scan(
		&b.ID, &b.ProjectID, &b.Order, &b.Text, pq.Array(&b.Keywords),
		&b.Status, &b.CreatedAt, &b.UpdatedAt,
	)
}

func keywordsArg(keywords []string) any {
	if keywords == nil {
		keywords = []string{}
	}
	return pq.Array(keywords)
}

func (t *Tx) CreateBlock(ctx context.Context, block *models.Block) error {
	query := `
		INSERT INTO blocks (id, project_id, sort_order, text, keywords, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := t.tx.QueryRowContext(
		ctx, query,
		block.ID, block.ProjectID, block.Order, block.Text,
		keywordsArg(block.Keywords), block.Status,
	).Scan(&block.CreatedAt, &block.UpdatedAt)
	if block.Keywords == nil {
		block.Keywords = []string{}
	}
	return translate(err, "create block")
}

func (t *Tx) GetBlock(ctx context.Context, id uuid.UUID) (*models.Block, error) {
	query := `SELECT ` + blockColumns + ` FROM blocks WHERE id = $1`

	block := &models.Block{}
	if err := scanBlock(t.tx.QueryRowContext(ctx, query, id), block); err != nil {
		return nil, translate(err, fmt.Sprintf("get block %s", id))
	}
	return block, nil
}

func (t *Tx) ListBlocks(ctx context.Context, projectID uuid.UUID) ([]models.Block, error) {
	query := `SELECT ` + blockColumns + ` FROM blocks WHERE project_id = $1 ORDER BY sort_order, id`

	rows, err := t.tx.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query blocks: %w", err)
	}
	defer rows.Close()

	var blocks []models.Block
	for rows.Next() {
		var b models.Block
		if err := scanBlock(rows, &b); err != nil {
			return nil, fmt.Errorf("failed to scan block: %w", err)
		}
		blocks = append(blocks, b)
	}

	return blocks, rows.Err()
}

func (t *Tx) UpdateBlock(ctx context.Context, block *models.Block) error {
	query := `
		UPDATE blocks
		SET text = $1, keywords = $2, status = $3, sort_order = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at
	`
	err := t.tx.QueryRowContext(
		ctx, query,
		block.Text, keywordsArg(block.Keywords), block.Status, block.Order, block.ID,
	).Scan(&block.UpdatedAt)
	return translate(err, fmt.Sprintf("update block %s", block.ID))
}

// DeleteBlock removes the block's candidate links before the block itself.
func (t *Tx) DeleteBlock(ctx context.Context, id uuid.UUID) error {
	if _, err := t.DeleteBlockAssets(ctx, id); err != nil {
		return err
	}
	res, err := t.tx.ExecContext(ctx, `DELETE FROM blocks WHERE id = $1`, id)
	return execAffected(res, err, fmt.Sprintf("delete block %s", id))
}

func (t *Tx) DeleteProjectBlocks(ctx context.Context, projectID uuid.UUID) (int64, error) {
	_, err := t.tx.ExecContext(ctx, `
		DELETE FROM block_assets
		WHERE block_id IN (SELECT id FROM blocks WHERE project_id = $1)
	`, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project block assets: %w", err)
	}

	res, err := t.tx.ExecContext(ctx, `DELETE FROM blocks WHERE project_id = $1`, projectID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete project blocks: %w", err)
	}
	return res.RowsAffected()
}
