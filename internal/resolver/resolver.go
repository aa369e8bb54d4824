// Package resolver decides what to play for an item from the user's
// playback preferences and what they chose last time.
package resolver

import (
	"fmt"
	"strings"

	"github.com/saltyorg/autoplay/internal/media"
)

// SubtitleMode controls automatic subtitle selection.
type SubtitleMode string

const (
	SubtitleModeDefault    SubtitleMode = "Default"
	SubtitleModeAlways     SubtitleMode = "Always"
	SubtitleModeOnlyForced SubtitleMode = "OnlyForced"
	SubtitleModeNone       SubtitleMode = "None"
	SubtitleModeSmart      SubtitleMode = "Smart"
)

// ParseSubtitleMode parses a mode name case-insensitively.
func ParseSubtitleMode(s string) (SubtitleMode, error) {
	for _, m := range []SubtitleMode{SubtitleModeDefault, SubtitleModeAlways, SubtitleModeOnlyForced, SubtitleModeNone, SubtitleModeSmart} {
		if strings.EqualFold(s, string(m)) {
			return m, nil
		}
	}
	if s == "" {
		return SubtitleModeDefault, nil
	}
	return "", fmt.Errorf("unknown subtitle mode %q", s)
}

// Preferences are the user's playback settings. They are passed in
// explicitly; the resolver never looks them up.
type Preferences struct {
	MaxBitrate                 int64 // 0 = no ceiling
	RememberAudioSelections    bool
	RememberSubtitleSelections bool
	PlayDefaultAudioTrack      bool
	AudioLanguage              string
	SubtitleLanguage           string
	SubtitleMode               SubtitleMode
}

// PreviousSelection is what the user played last in the same context,
// usually the previous episode of a series.
type PreviousSelection struct {
	AudioIndex    *int
	SubtitleIndex *int

	// Descriptors of the chosen streams, used when indices shift between episodes.
	Audio    *media.Stream
	Subtitle *media.Stream
}

// Options are per-request overrides.
type Options struct {
	MediaSourceID string
	AudioIndex    *int
	SubtitleIndex *int
}

// Resolve returns the selection to negotiate. It never fails; missing data
// degrades to the source defaults.
func Resolve(item media.Item, prefs Preferences, prev *PreviousSelection, opts Options) media.PlaySelection {
	sel := media.PlaySelection{SubtitleIndex: media.NoSubtitle}
	if prefs.MaxBitrate > 0 {
		bitrate := prefs.MaxBitrate
		sel.MaxBitrate = &bitrate
	}

	src := pickSource(item, opts.MediaSourceID)
	if src == nil {
		return sel
	}
	sel.MediaSourceID = src.ID

	var audio *media.Stream
	if opts.AudioIndex != nil && src.HasStream(media.KindAudio, *opts.AudioIndex) {
		st, _ := src.Stream(media.KindAudio, *opts.AudioIndex)
		audio = &st
	} else {
		audio = resolveAudio(src, prefs, prev)
	}
	if audio != nil {
		index := audio.Index
		sel.AudioIndex = &index
	}

	if opts.SubtitleIndex != nil && (*opts.SubtitleIndex == media.NoSubtitle || src.HasStream(media.KindSubtitle, *opts.SubtitleIndex)) {
		sel.SubtitleIndex = *opts.SubtitleIndex
	} else {
		sel.SubtitleIndex = resolveSubtitle(src, prefs, prev, audio)
	}

	return sel
}

func pickSource(item media.Item, id string) *media.Source {
	if id != "" {
		if src, ok := item.Source(id); ok {
			return src
		}
	}
	if len(item.Sources) == 0 {
		return nil
	}
	return &item.Sources[0]
}

func resolveAudio(src *media.Source, prefs Preferences, prev *PreviousSelection) *media.Stream {
	streams := src.AudioStreams()
	if len(streams) == 0 {
		return nil
	}

	if prefs.RememberAudioSelections && prev != nil {
		if prev.AudioIndex != nil {
			if st, ok := src.Stream(media.KindAudio, *prev.AudioIndex); ok && sameAsPrevious(st, prev.Audio) {
				return &st
			}
		}
		if prev.Audio != nil {
			if st, ok := MatchAudio(*prev.Audio, streams); ok {
				return &st
			}
		}
	}

	if prefs.PlayDefaultAudioTrack {
		if src.DefaultAudioIndex != nil {
			if st, ok := src.Stream(media.KindAudio, *src.DefaultAudioIndex); ok {
				return &st
			}
		}
		for i := range streams {
			if streams[i].IsDefault {
				return &streams[i]
			}
		}
	}

	if prefs.AudioLanguage != "" {
		for i := range streams {
			if sameLanguage(streams[i].Language, prefs.AudioLanguage) {
				return &streams[i]
			}
		}
	}

	return &streams[0]
}

// sameAsPrevious guards index reuse: when the previous descriptor is known,
// the stream at the same index must still be in the same language.
func sameAsPrevious(st media.Stream, prev *media.Stream) bool {
	if prev == nil || prev.Language == "" {
		return true
	}
	return sameLanguage(st.Language, prev.Language)
}

func resolveSubtitle(src *media.Source, prefs Preferences, prev *PreviousSelection, audio *media.Stream) int {
	streams := src.SubtitleStreams()

	if prefs.RememberSubtitleSelections && prev != nil {
		if prev.SubtitleIndex != nil {
			if *prev.SubtitleIndex == media.NoSubtitle {
				return media.NoSubtitle
			}
			if st, ok := src.Stream(media.KindSubtitle, *prev.SubtitleIndex); ok && sameAsPrevious(st, prev.Subtitle) {
				return st.Index
			}
		}
		if prev.Subtitle != nil {
			if st, ok := MatchSubtitle(*prev.Subtitle, streams); ok {
				return st.Index
			}
		}
	}

	if len(streams) == 0 {
		return media.NoSubtitle
	}

	lang := prefs.SubtitleLanguage
	inLang := func(s media.Stream) bool {
		return lang == "" || sameLanguage(s.Language, lang)
	}

	switch prefs.SubtitleMode {
	case SubtitleModeNone:
		return media.NoSubtitle

	case SubtitleModeOnlyForced:
		if i, ok := first(streams, func(s media.Stream) bool { return s.IsForced && inLang(s) }); ok {
			return i
		}

	case SubtitleModeAlways:
		if i, ok := first(streams, func(s media.Stream) bool { return !s.IsForced && inLang(s) }); ok {
			return i
		}
		if i, ok := first(streams, inLang); ok {
			return i
		}
		if i, ok := first(streams, func(s media.Stream) bool { return s.IsDefault }); ok {
			return i
		}

	case SubtitleModeSmart:
		audioLang := ""
		if audio != nil {
			audioLang = audio.Language
		}
		if lang != "" && !sameLanguage(audioLang, lang) {
			if i, ok := first(streams, inLang); ok {
				return i
			}
			return media.NoSubtitle
		}
		if audioLang != "" {
			if i, ok := first(streams, func(s media.Stream) bool { return s.IsForced && sameLanguage(s.Language, audioLang) }); ok {
				return i
			}
		}

	default:
		if src.DefaultSubtitleIndex != nil {
			if st, ok := src.Stream(media.KindSubtitle, *src.DefaultSubtitleIndex); ok && inLang(st) {
				return st.Index
			}
		}
		if i, ok := first(streams, func(s media.Stream) bool { return (s.IsDefault || s.IsForced) && inLang(s) }); ok {
			return i
		}
	}

	return media.NoSubtitle
}

func first(streams []media.Stream, pred func(media.Stream) bool) (int, bool) {
	for _, s := range streams {
		if pred(s) {
			return s.Index, true
		}
	}
	return media.NoSubtitle, false
}
