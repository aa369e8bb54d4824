package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/saltyorg/autoplay/internal/media"
)

// RememberedSelection is the last audio and subtitle choice a user made in a series.
type RememberedSelection struct {
	UserID        string        `json:"user_id"`
	SeriesID      string        `json:"series_id"`
	AudioIndex    *int          `json:"audio_index"`
	SubtitleIndex *int          `json:"subtitle_index"` // -1 = subtitles off
	Audio         *media.Stream `json:"audio"`
	Subtitle      *media.Stream `json:"subtitle"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// UpsertRememberedSelection creates or updates a user's selection for a series
func (db *DB) UpsertRememberedSelection(sel *RememberedSelection) error {
	audioJSON, err := marshalToPtr(sel.Audio)
	if err != nil {
		return fmt.Errorf("failed to marshal audio stream: %w", err)
	}
	subtitleJSON, err := marshalToPtr(sel.Subtitle)
	if err != nil {
		return fmt.Errorf("failed to marshal subtitle stream: %w", err)
	}
	if sel.UpdatedAt.IsZero() {
		sel.UpdatedAt = time.Now().UTC()
	}

	_, err = db.Exec(`
		INSERT INTO remembered_selections (
			user_id, series_id, audio_index, subtitle_index, audio_json, subtitle_json, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, series_id) DO UPDATE SET
			audio_index = excluded.audio_index,
			subtitle_index = excluded.subtitle_index,
			audio_json = excluded.audio_json,
			subtitle_json = excluded.subtitle_json,
			updated_at = excluded.updated_at
	`, sel.UserID, sel.SeriesID, sel.AudioIndex, sel.SubtitleIndex, audioJSON, subtitleJSON, sel.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert remembered selection: %w", err)
	}
	return nil
}

// GetRememberedSelection retrieves a user's selection for a series, or nil if there is none
func (db *DB) GetRememberedSelection(userID, seriesID string) (*RememberedSelection, error) {
	sel := RememberedSelection{UserID: userID, SeriesID: seriesID}
	var audioIndex, subtitleIndex sql.NullInt64
	var audioJSON, subtitleJSON sql.NullString

	err := db.QueryRow(`
		SELECT audio_index, subtitle_index, audio_json, subtitle_json, updated_at
		FROM remembered_selections
		WHERE user_id = ? AND series_id = ?
	`, userID, seriesID).Scan(&audioIndex, &subtitleIndex, &audioJSON, &subtitleJSON, &sel.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get remembered selection: %w", err)
	}

	sel.AudioIndex = nullIntToPtr(audioIndex)
	sel.SubtitleIndex = nullIntToPtr(subtitleIndex)
	if sel.Audio, err = unmarshalFromNullString[media.Stream](audioJSON); err != nil {
		return nil, fmt.Errorf("invalid remembered audio stream: %w", err)
	}
	if sel.Subtitle, err = unmarshalFromNullString[media.Stream](subtitleJSON); err != nil {
		return nil, fmt.Errorf("invalid remembered subtitle stream: %w", err)
	}

	return &sel, nil
}

// PruneRememberedSelections deletes selections not updated since before.
// It returns the number of rows removed.
func (db *DB) PruneRememberedSelections(before time.Time) (int64, error) {
	res, err := db.Exec("DELETE FROM remembered_selections WHERE updated_at < ?", before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune remembered selections: %w", err)
	}
	return res.RowsAffected()
}
