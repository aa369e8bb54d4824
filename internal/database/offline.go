package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/saltyorg/autoplay/internal/media"
)

// OfflineAsset is a downloaded item stored on local disk.
type OfflineAsset struct {
	ItemID  string       `json:"item_id"`
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Source  media.Source `json:"source"` // media source as the server described it at download time
	AddedAt time.Time    `json:"added_at"`
}

// UpsertOfflineAsset creates or replaces the asset for an item
func (db *DB) UpsertOfflineAsset(asset *OfflineAsset) error {
	sourceJSON, err := marshalToString(asset.Source)
	if err != nil {
		return fmt.Errorf("failed to marshal media source: %w", err)
	}
	if asset.AddedAt.IsZero() {
		asset.AddedAt = time.Now().UTC()
	}

	_, err = db.Exec(`
		INSERT INTO offline_assets (item_id, name, path, source_json, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			name = excluded.name,
			path = excluded.path,
			source_json = excluded.source_json,
			added_at = excluded.added_at
	`, asset.ItemID, asset.Name, asset.Path, sourceJSON, asset.AddedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert offline asset %s: %w", asset.ItemID, err)
	}
	return nil
}

// GetOfflineAsset retrieves the asset for an item, or nil if there is none
func (db *DB) GetOfflineAsset(itemID string) (*OfflineAsset, error) {
	row := db.QueryRow(`
		SELECT item_id, name, path, source_json, added_at
		FROM offline_assets WHERE item_id = ?
	`, itemID)

	asset, err := scanOfflineAsset(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offline asset %s: %w", itemID, err)
	}
	return asset, nil
}

// ListOfflineAssets returns all assets, newest first
func (db *DB) ListOfflineAssets() ([]*OfflineAsset, error) {
	rows, err := db.Query(`
		SELECT item_id, name, path, source_json, added_at
		FROM offline_assets ORDER BY added_at DESC, item_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list offline assets: %w", err)
	}
	defer rows.Close()

	var assets []*OfflineAsset
	for rows.Next() {
		asset, err := scanOfflineAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offline asset: %w", err)
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// DeleteOfflineAsset removes the asset for an item. It reports whether a row existed.
func (db *DB) DeleteOfflineAsset(itemID string) (bool, error) {
	res, err := db.Exec("DELETE FROM offline_assets WHERE item_id = ?", itemID)
	if err != nil {
		return false, fmt.Errorf("failed to delete offline asset %s: %w", itemID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete offline asset %s: %w", itemID, err)
	}
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOfflineAsset(s scanner) (*OfflineAsset, error) {
	var asset OfflineAsset
	var sourceJSON string
	if err := s.Scan(&asset.ItemID, &asset.Name, &asset.Path, &sourceJSON, &asset.AddedAt); err != nil {
		return nil, err
	}
	if err := unmarshalFromString(sourceJSON, &asset.Source); err != nil {
		return nil, fmt.Errorf("invalid media source for %s: %w", asset.ItemID, err)
	}
	return &asset, nil
}
