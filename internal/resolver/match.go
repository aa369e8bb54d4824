package resolver

import (
	"strings"

	"github.com/saltyorg/autoplay/internal/media"
)

// MatchAudio finds the stream in candidates that best resembles ref, the
// audio track chosen for a previous episode. Returns false if no candidate
// shares ref's language.
func MatchAudio(ref media.Stream, candidates []media.Stream) (media.Stream, bool) {
	var filtered []media.Stream
	for _, s := range candidates {
		if sameLanguage(s.Language, ref.Language) {
			filtered = append(filtered, s)
		}
	}

	if len(filtered) == 0 {
		return media.Stream{}, false
	}
	if len(filtered) == 1 {
		return filtered[0], true
	}

	filtered = filterByDescriptive(filtered, ref)
	if len(filtered) == 1 {
		return filtered[0], true
	}

	best, bestScore := -1, 0
	for i := range filtered {
		score := scoreAudio(ref, filtered[i], len(candidates))
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return filtered[best], true
}

// MatchSubtitle finds the subtitle in candidates that best resembles ref.
// A forced ref only matches forced candidates.
func MatchSubtitle(ref media.Stream, candidates []media.Stream) (media.Stream, bool) {
	var filtered []media.Stream
	for _, s := range candidates {
		if !sameLanguage(s.Language, ref.Language) {
			continue
		}
		if ref.IsForced && !s.IsForced {
			continue
		}
		filtered = append(filtered, s)
	}

	if len(filtered) == 0 {
		return media.Stream{}, false
	}
	if len(filtered) == 1 {
		return filtered[0], true
	}

	if ref.IsHearingImpaired {
		var hi []media.Stream
		for _, s := range filtered {
			if s.IsHearingImpaired {
				hi = append(hi, s)
			}
		}
		if len(hi) > 0 {
			filtered = hi
		}
	}

	if len(filtered) == 1 {
		return filtered[0], true
	}

	best, bestScore := -1, 0
	for i := range filtered {
		score := scoreSubtitle(ref, filtered[i])
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return filtered[best], true
}

func scoreAudio(ref, candidate media.Stream, total int) int {
	score := 0

	if strings.EqualFold(ref.Codec, candidate.Codec) {
		score += 5
	}
	if ref.ChannelLayout != "" && ref.ChannelLayout == candidate.ChannelLayout {
		score += 3
	}

	// Only worth weighing channels when several versions exist
	if total > 2 {
		if ref.Channels < 3 {
			if candidate.Channels > ref.Channels {
				score += 8
			}
		} else if candidate.Channels >= ref.Channels {
			score++
		}
	}

	score += scoreTitles(ref, candidate)
	return score
}

func scoreSubtitle(ref, candidate media.Stream) int {
	score := 0

	if ref.IsForced == candidate.IsForced {
		score += 3
	}
	if ref.IsHearingImpaired == candidate.IsHearingImpaired {
		score += 3
	}
	if strings.EqualFold(ref.Codec, candidate.Codec) {
		score++
	}
	if ref.IsExternal() == candidate.IsExternal() {
		score++
	}

	score += scoreTitles(ref, candidate)
	return score
}

func scoreTitles(ref, candidate media.Stream) int {
	score := 0
	if ref.DisplayTitle != "" && ref.DisplayTitle == candidate.DisplayTitle {
		score += 5
	}
	if ref.Title != "" && ref.Title == candidate.Title {
		score += 5
	}
	return score
}

// filterByDescriptive keeps audio-description tracks when ref was one and
// drops them otherwise. Falls back to streams if nothing survives.
func filterByDescriptive(streams []media.Stream, ref media.Stream) []media.Stream {
	wantDescriptive := isDescriptive(ref)

	var filtered []media.Stream
	for _, s := range streams {
		if isDescriptive(s) == wantDescriptive {
			filtered = append(filtered, s)
		}
	}
	if len(filtered) > 0 {
		return filtered
	}
	return streams
}

func isDescriptive(s media.Stream) bool {
	return containsDescriptiveTerms(s.Title) || containsDescriptiveTerms(s.DisplayTitle)
}

func containsDescriptiveTerms(title string) bool {
	lower := strings.ToLower(title)
	for _, term := range []string{
		"descriptive",
		"audio description",
		"visual impaired",
		"visually impaired",
		"ad:",
		"(ad)",
		"[ad]",
	} {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}
