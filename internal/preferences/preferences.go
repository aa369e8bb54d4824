// Package preferences loads the user's playback preferences from settings
// and remembers track selections per series.
package preferences

import (
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/autoplay/internal/config"
	"github.com/saltyorg/autoplay/internal/resolver"
)

// Setting keys
const (
	KeyMaxBitrate                 = "playback.max_bitrate"
	KeyRememberAudioSelections    = "playback.remember_audio_selections"
	KeyRememberSubtitleSelections = "playback.remember_subtitle_selections"
	KeyPlayDefaultAudioTrack      = "playback.play_default_audio_track"
	KeyAudioLanguage              = "playback.audio_language"
	KeySubtitleLanguage           = "playback.subtitle_language"
	KeySubtitleMode               = "playback.subtitle_mode"
	KeyRetentionDays              = "selections.retention_days"
	KeyPruneSchedule              = "selections.prune_schedule"
)

// Load reads the playback preferences. Missing or invalid values fall back
// to the server defaults: no bitrate ceiling, remembering on, Default mode.
func Load(loader *config.Loader) resolver.Preferences {
	prefs := resolver.Preferences{
		MaxBitrate:                 max(loader.Int64(KeyMaxBitrate, 0), 0),
		RememberAudioSelections:    loader.Bool(KeyRememberAudioSelections, true),
		RememberSubtitleSelections: loader.Bool(KeyRememberSubtitleSelections, true),
		PlayDefaultAudioTrack:      loader.Bool(KeyPlayDefaultAudioTrack, true),
		AudioLanguage:              loader.String(KeyAudioLanguage, ""),
		SubtitleLanguage:           loader.String(KeySubtitleLanguage, ""),
		SubtitleMode:               resolver.SubtitleModeDefault,
	}

	if raw := loader.String(KeySubtitleMode, ""); raw != "" {
		mode, err := resolver.ParseSubtitleMode(raw)
		if err != nil {
			log.Warn().Err(err).Str("value", raw).Msg("Invalid subtitle mode setting; using Default")
		} else {
			prefs.SubtitleMode = mode
		}
	}

	return prefs
}
