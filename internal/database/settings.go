package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/saltyorg/autoplay/internal/logging"
)

// GetSetting retrieves a setting value by key
func (db *DB) GetSetting(key string) (string, error) {
	var value string
	err := db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// SetSetting stores a setting value
func (db *DB) SetSetting(key, value string) error {
	_, err := db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

// SetSettingValue stores a setting, encoding non-string values as JSON.
// Strings are stored verbatim so config.Loader reads them back unquoted.
func (db *DB) SetSettingValue(key string, v any) error {
	value, err := settingString(v)
	if err != nil {
		return fmt.Errorf("failed to marshal setting %s: %w", key, err)
	}
	return db.SetSetting(key, value)
}

// GetAllSettings retrieves all settings
func (db *DB) GetAllSettings() (map[string]string, error) {
	rows, err := db.Query("SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[key] = value
	}

	return settings, rows.Err()
}

// DeleteSetting removes a setting
func (db *DB) DeleteSetting(key string) error {
	_, err := db.Exec("DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// Default settings
var DefaultSettings = map[string]any{
	"log.level":                             "info",
	"log.max_size_mb":                       logging.DefaultMaxSizeMB,
	"log.max_backups":                       logging.DefaultMaxBackups,
	"log.max_age_days":                      logging.DefaultMaxAgeDays,
	"log.compress":                          logging.DefaultCompress,
	"playback.max_bitrate":                  0, // 0 = no ceiling
	"playback.remember_audio_selections":    true,
	"playback.remember_subtitle_selections": true,
	"playback.play_default_audio_track":     true,
	"playback.audio_language":               "",
	"playback.subtitle_language":            "",
	"playback.subtitle_mode":                "Default", // Default, Always, OnlyForced, None, Smart
	"selections.retention_days":             180,       // 0 = keep remembered selections forever
	"selections.prune_schedule":             "@daily",
	"profiles.path":                         "",
}

// InitializeDefaults sets default values for settings that don't exist
func (db *DB) InitializeDefaults() error {
	for key, value := range DefaultSettings {
		var exists bool
		if err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM settings WHERE key = ?)", key).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check setting %s: %w", key, err)
		}
		if !exists {
			if err := db.SetSettingValue(key, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func settingString(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
