package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltyorg/autoplay/internal/media"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func intPtr(v int) *int { return &v }

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate())

	var version int
	require.NoError(t, db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version))
	assert.Equal(t, migrations[len(migrations)-1].Version, version)
}

func TestSplitSQLStatements(t *testing.T) {
	got := splitSQLStatements(`
		-- comment
		CREATE TABLE a (id INTEGER);

		CREATE TABLE b (
			id INTEGER
		);
		SELECT 1`)

	require.Len(t, got, 3)
	assert.Equal(t, "CREATE TABLE a (id INTEGER);", got[0])
	assert.Equal(t, "SELECT 1", got[2])
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)

	val, err := db.GetSetting("missing")
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, db.SetSetting("playback.audio_language", "fre"))
	require.NoError(t, db.SetSetting("playback.audio_language", "jpn"))
	val, err = db.GetSetting("playback.audio_language")
	require.NoError(t, err)
	assert.Equal(t, "jpn", val)

	require.NoError(t, db.DeleteSetting("playback.audio_language"))
	val, err = db.GetSetting("playback.audio_language")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestInitializeDefaultsKeepsExistingValues(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.SetSetting("playback.subtitle_mode", "Always"))
	require.NoError(t, db.InitializeDefaults())

	all, err := db.GetAllSettings()
	require.NoError(t, err)
	assert.Len(t, all, len(DefaultSettings))
	assert.Equal(t, "Always", all["playback.subtitle_mode"])
	assert.Equal(t, "info", all["log.level"], "strings are stored unquoted")
	assert.Equal(t, "true", all["playback.remember_audio_selections"])
	assert.Equal(t, "180", all["selections.retention_days"])
	assert.Equal(t, "", all["playback.audio_language"])
}

func TestOfflineAssets(t *testing.T) {
	db := openTestDB(t)

	asset, err := db.GetOfflineAsset("item-1")
	require.NoError(t, err)
	assert.Nil(t, asset)

	src := media.Source{
		ID:                 "src-1",
		Container:          "mkv",
		SupportsDirectPlay: true,
		DefaultAudioIndex:  intPtr(1),
		Streams: []media.Stream{
			{Kind: media.KindVideo, Index: 0, Codec: "h264"},
			{Kind: media.KindAudio, Index: 1, Language: "eng", Codec: "aac"},
			{Kind: media.KindSubtitle, Index: 2, Language: "eng", Subtitle: &media.SubtitleInfo{TextBased: true}},
		},
	}
	added := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, db.UpsertOfflineAsset(&OfflineAsset{ItemID: "item-1", Name: "Pilot", Path: "/media/pilot.mkv", Source: src, AddedAt: added}))
	require.NoError(t, db.UpsertOfflineAsset(&OfflineAsset{ItemID: "item-2", Path: "/media/two.mkv", Source: media.Source{ID: "src-2"}}))

	asset, err = db.GetOfflineAsset("item-1")
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, "/media/pilot.mkv", asset.Path)
	assert.True(t, asset.AddedAt.Equal(added))
	if diff := cmp.Diff(src, asset.Source); diff != "" {
		t.Errorf("source mismatch (-want +got):\n%s", diff)
	}

	list, err := db.ListOfflineAssets()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "item-2", list[0].ItemID, "newest first")

	removed, err := db.DeleteOfflineAsset("item-1")
	require.NoError(t, err)
	assert.True(t, removed)
	removed, err = db.DeleteOfflineAsset("item-1")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestRememberedSelectionRoundTrip(t *testing.T) {
	db := openTestDB(t)

	audio := &media.Stream{Kind: media.KindAudio, Index: 2, Language: "jpn", Codec: "flac", Channels: 2}
	sel := &RememberedSelection{
		UserID:        "user-1",
		SeriesID:      "series-1",
		AudioIndex:    intPtr(2),
		SubtitleIndex: intPtr(media.NoSubtitle),
		Audio:         audio,
	}
	require.NoError(t, db.UpsertRememberedSelection(sel))

	got, err := db.GetRememberedSelection("user-1", "series-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, *got.AudioIndex)
	assert.Equal(t, media.NoSubtitle, *got.SubtitleIndex)
	assert.Nil(t, got.Subtitle)
	if diff := cmp.Diff(audio, got.Audio); diff != "" {
		t.Errorf("audio mismatch (-want +got):\n%s", diff)
	}

	missing, err := db.GetRememberedSelection("user-2", "series-1")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRememberedSelectionUpsertClearsFields(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, db.UpsertRememberedSelection(&RememberedSelection{UserID: "u", SeriesID: "s", AudioIndex: intPtr(1), SubtitleIndex: intPtr(4)}))
	require.NoError(t, db.UpsertRememberedSelection(&RememberedSelection{UserID: "u", SeriesID: "s", AudioIndex: intPtr(3)}))

	got, err := db.GetRememberedSelection("u", "s")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, *got.AudioIndex)
	assert.Nil(t, got.SubtitleIndex)
}

func TestPruneRememberedSelections(t *testing.T) {
	db := openTestDB(t)
	now := time.Now().UTC()

	require.NoError(t, db.UpsertRememberedSelection(&RememberedSelection{UserID: "u", SeriesID: "old", UpdatedAt: now.Add(-400 * 24 * time.Hour)}))
	require.NoError(t, db.UpsertRememberedSelection(&RememberedSelection{UserID: "u", SeriesID: "new", UpdatedAt: now}))

	n, err := db.PruneRememberedSelections(now.Add(-180 * 24 * time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	old, err := db.GetRememberedSelection("u", "old")
	require.NoError(t, err)
	assert.Nil(t, old)

	kept, err := db.GetRememberedSelection("u", "new")
	require.NoError(t, err)
	assert.NotNil(t, kept)

	require.NoError(t, db.Optimize())
}

func TestPragmasApplied(t *testing.T) {
	db := openTestDB(t)

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)

	var fk int
	require.NoError(t, db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}
