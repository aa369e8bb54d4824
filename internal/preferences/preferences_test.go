package preferences

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/saltyorg/autoplay/internal/config"
	"github.com/saltyorg/autoplay/internal/database"
	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/resolver"
)

func openDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "autoplay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())
	return db
}

func audio(index int, lang string) media.Stream {
	return media.Stream{Kind: media.KindAudio, Index: index, Language: lang, Codec: "aac", Channels: 2}
}

func textSub(index int, lang string) media.Stream {
	return media.Stream{Kind: media.KindSubtitle, Index: index, Language: lang, Codec: "srt", Subtitle: &media.SubtitleInfo{TextBased: true}}
}

func episodeItem(id string, streams ...media.Stream) media.Item {
	return media.Item{
		ID:       id,
		Type:     "Episode",
		SeriesID: "series-1",
		Sources: []media.Source{{
			ID:      "src-" + id,
			Streams: append([]media.Stream{{Kind: media.KindVideo, Index: 0}}, streams...),
		}},
	}
}

func TestLoadDefaults(t *testing.T) {
	prefs := Load(config.NewLoader(nil))

	assert.Equal(t, resolver.Preferences{
		RememberAudioSelections:    true,
		RememberSubtitleSelections: true,
		PlayDefaultAudioTrack:      true,
		SubtitleMode:               resolver.SubtitleModeDefault,
	}, prefs)
}

func TestLoadFromSettings(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.InitializeDefaults())
	require.NoError(t, db.SetSetting(KeyMaxBitrate, "8000000"))
	require.NoError(t, db.SetSetting(KeyAudioLanguage, "jpn"))
	require.NoError(t, db.SetSetting(KeySubtitleLanguage, "eng"))
	require.NoError(t, db.SetSetting(KeySubtitleMode, "onlyforced"))
	require.NoError(t, db.SetSetting(KeyRememberSubtitleSelections, "false"))

	prefs := Load(config.NewLoader(db))

	assert.Equal(t, int64(8000000), prefs.MaxBitrate)
	assert.Equal(t, "jpn", prefs.AudioLanguage)
	assert.Equal(t, "eng", prefs.SubtitleLanguage)
	assert.Equal(t, resolver.SubtitleModeOnlyForced, prefs.SubtitleMode)
	assert.True(t, prefs.RememberAudioSelections)
	assert.False(t, prefs.RememberSubtitleSelections)
}

func TestLoadInvalidValues(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.SetSetting(KeySubtitleMode, "Sometimes"))
	require.NoError(t, db.SetSetting(KeyMaxBitrate, "-5"))

	prefs := Load(config.NewLoader(db))
	assert.Equal(t, resolver.SubtitleModeDefault, prefs.SubtitleMode)
	assert.Zero(t, prefs.MaxBitrate)
}

func TestRememberFeedsNextEpisode(t *testing.T) {
	db := openDB(t)
	sel := NewSelections(db)

	first := episodeItem("ep1", audio(1, "eng"), audio(2, "jpn"), textSub(3, "eng"))
	require.NoError(t, sel.Remember("user-1", first, media.PlaySelection{SubtitleIndex: 3}.WithAudio(2)))

	// A fresh instance reads from the database
	prev, err := NewSelections(db).Previous("user-1", first)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, 2, *prev.AudioIndex)
	assert.Equal(t, "jpn", prev.Audio.Language)
	assert.Equal(t, 3, *prev.SubtitleIndex)

	// Indices shifted: the Japanese track is now index 1.
	second := episodeItem("ep2", audio(1, "jpn"), audio(2, "eng"), textSub(3, "eng"))
	prefs := Load(config.NewLoader(nil))
	got := resolver.Resolve(second, prefs, prev, resolver.Options{})

	require.NotNil(t, got.AudioIndex)
	assert.Equal(t, 1, *got.AudioIndex)
	assert.Equal(t, 3, got.SubtitleIndex)
}

func TestRememberSubtitlesOff(t *testing.T) {
	db := openDB(t)
	sel := NewSelections(db)

	item := episodeItem("ep1", audio(1, "eng"), textSub(2, "eng"))
	require.NoError(t, sel.Remember("user-1", item, media.PlaySelection{SubtitleIndex: media.NoSubtitle}))

	prev, err := sel.Previous("user-1", item)
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Nil(t, prev.AudioIndex)
	assert.Equal(t, media.NoSubtitle, *prev.SubtitleIndex)
	assert.Nil(t, prev.Subtitle)
}

func TestMoviesAreNotRemembered(t *testing.T) {
	db := openDB(t)
	sel := NewSelections(db)

	movie := media.Item{ID: "movie", Sources: []media.Source{{ID: "src"}}}
	require.NoError(t, sel.Remember("user-1", movie, media.PlaySelection{SubtitleIndex: media.NoSubtitle}))

	prev, err := sel.Previous("user-1", movie)
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = sel.Previous("user-2", episodeItem("ep1"))
	require.NoError(t, err)
	assert.Nil(t, prev)
}

func TestJanitorPrune(t *testing.T) {
	db := openDB(t)
	sel := NewSelections(db)
	now := time.Now().UTC()

	require.NoError(t, db.UpsertRememberedSelection(&database.RememberedSelection{UserID: "u", SeriesID: "old", UpdatedAt: now.Add(-31 * 24 * time.Hour)}))
	require.NoError(t, db.UpsertRememberedSelection(&database.RememberedSelection{UserID: "u", SeriesID: "new", UpdatedAt: now}))
	require.NoError(t, db.SetSetting(KeyRetentionDays, "30"))

	j := NewJanitor(sel, config.NewLoader(db))
	j.now = func() time.Time { return now }

	n, err := j.Prune()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	require.NoError(t, db.SetSetting(KeyRetentionDays, "0"))
	n, err = j.Prune()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestJanitorStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	j := NewJanitor(NewSelections(nil), config.NewLoader(nil))

	require.NoError(t, j.Start())
	require.NoError(t, j.Start())
	j.Stop()
	j.Stop()
}

func TestJanitorInvalidSchedule(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.SetSetting(KeyPruneSchedule, "every now and then"))

	j := NewJanitor(NewSelections(db), config.NewLoader(db))
	assert.Error(t, j.Start())
}
