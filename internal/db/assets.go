package db

import (
	"context"
	"fmt"

	"github.com/bobarin/photoscript/internal/models"
	"github.com/google/uuid"
)

const assetColumns = `id, provider, asset_type, source_url, thumbnail_url, title, license, meta, created_at`

func scanAsset(row rowScanner, a *models.Asset) error {
	return row.Scan(
		&a.ID, &a.Provider, &a.AssetType, &a.SourceURL, &a.ThumbnailURL,
		&a.Title, &a.License, &a.Meta, &a.CreatedAt,
	)
}

func (t *Tx) GetAssetBySourceURL(ctx context.Context, sourceURL string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE source_url = $1`

	asset := &models.Asset{}
	if err := scanAsset(t.tx.QueryRowContext(ctx, query, sourceURL), asset); err != nil {
		return nil, translate(err, "get asset by source url")
	}
	return asset, nil
}

// CreateAsset inserts the asset. When the source URL is already known the
// existing row is loaded into asset instead.
func (t *Tx) CreateAsset(ctx context.Context, asset *models.Asset) error {
	query := `
		INSERT INTO assets (id, provider, asset_type, source_url, thumbnail_url, title, license, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source_url) DO UPDATE SET source_url = EXCLUDED.source_url
		RETURNING ` + assetColumns

	err := scanAsset(t.tx.QueryRowContext(
		ctx, query,
		asset.ID, asset.Provider, asset.AssetType, asset.SourceURL,
		asset.ThumbnailURL, asset.Title, asset.License, asset.Meta,
	), asset)
	return translate(err, "create asset")
}

func (t *Tx) CreateBlockAsset(ctx context.Context, link *models.BlockAsset) error {
	query := `
		INSERT INTO block_assets (id, block_id, asset_id, score, is_primary, chosen_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := t.tx.QueryRowContext(
		ctx, query,
		link.ID, link.BlockID, link.AssetID, link.Score, link.IsPrimary, link.ChosenBy,
	).Scan(&link.CreatedAt, &link.UpdatedAt)
	return translate(err, "create block asset")
}

const blockAssetSelect = `
	SELECT
		ba.id, ba.block_id, ba.asset_id, ba.score, ba.is_primary, ba.chosen_by,
		ba.created_at, ba.updated_at,
		a.id, a.provider, a.asset_type, a.source_url, a.thumbnail_url,
		a.title, a.license, a.meta, a.created_at
	FROM block_assets ba
	JOIN assets a ON a.id = ba.asset_id
`

func scanBlockAsset(row rowScanner, link *models.BlockAsset) error {
	a := &models.Asset{}
	err := row.Scan(
		&link.ID, &link.BlockID, &link.AssetID, &link.Score, &link.IsPrimary, &link.ChosenBy,
		&link.CreatedAt, &link.UpdatedAt,
		&a.ID, &a.Provider, &a.AssetType, &a.SourceURL, &a.ThumbnailURL,
		&a.Title, &a.License, &a.Meta, &a.CreatedAt,
	)
	if err != nil {
		return err
	}
	link.Asset = a
	return nil
}

func (t *Tx) GetBlockAsset(ctx context.Context, blockID, assetID uuid.UUID) (*models.BlockAsset, error) {
	query := blockAssetSelect + ` WHERE ba.block_id = $1 AND ba.asset_id = $2`

	link := &models.BlockAsset{}
	if err := scanBlockAsset(t.tx.QueryRowContext(ctx, query, blockID, assetID), link); err != nil {
		return nil, translate(err, fmt.Sprintf("get block asset (%s, %s)", blockID, assetID))
	}
	return link, nil
}

func (t *Tx) ListBlockAssets(ctx context.Context, blockID uuid.UUID) ([]models.BlockAsset, error) {
	query := blockAssetSelect + ` WHERE ba.block_id = $1 ORDER BY ba.score DESC, ba.created_at, ba.id`

	rows, err := t.tx.QueryContext(ctx, query, blockID)
	if err != nil {
		return nil, fmt.Errorf("failed to query block assets: %w", err)
	}
	defer rows.Close()

	links := []models.BlockAsset{}
	for rows.Next() {
		var link models.BlockAsset
		if err := scanBlockAsset(rows, &link); err != nil {
			return nil, fmt.Errorf("failed to scan block asset: %w", err)
		}
		links = append(links, link)
	}

	return links, rows.Err()
}

func (t *Tx) UpdateBlockAsset(ctx context.Context, link *models.BlockAsset) error {
	query := `
		UPDATE block_assets
		SET is_primary = $1, chosen_by = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING updated_at
	`
	err := t.tx.QueryRowContext(ctx, query, link.IsPrimary, link.ChosenBy, link.ID).Scan(&link.UpdatedAt)
	return translate(err, fmt.Sprintf("update block asset %s", link.ID))
}

func (t *Tx) DeleteBlockAssets(ctx context.Context, blockID uuid.UUID) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM block_assets WHERE block_id = $1`, blockID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete block assets: %w", err)
	}
	return res.RowsAffected()
}

func (t *Tx) PrimaryAssets(ctx context.Context, projectID uuid.UUID) (map[uuid.UUID]*models.Asset, error) {
	query := `
		SELECT ba.block_id, ` + prefixed("a", assetColumns) + `
		FROM block_assets ba
		JOIN assets a ON a.id = ba.asset_id
		JOIN blocks b ON b.id = ba.block_id
		WHERE b.project_id = $1 AND ba.is_primary
	`

	rows, err := t.tx.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query primary assets: %w", err)
	}
	defer rows.Close()

	out := map[uuid.UUID]*models.Asset{}
	for rows.Next() {
		var blockID uuid.UUID
		a := &models.Asset{}
		if err := rows.Scan(
			&blockID,
			&a.ID, &a.Provider, &a.AssetType, &a.SourceURL, &a.ThumbnailURL,
			&a.Title, &a.License, &a.Meta, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan primary asset: %w", err)
		}
		out[blockID] = a
	}

	return out, rows.Err()
}
