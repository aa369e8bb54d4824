package tracks

import (
	"strings"

	"github.com/saltyorg/autoplay/internal/media"
)

// UniqueStreams drops subtitle streams that are functionally identical to an
// earlier one. Some players can only select a subtitle by ordinal position,
// so duplicates would shift every later choice.
func UniqueStreams(streams []media.Stream) []media.Stream {
	seen := make(map[string]struct{}, len(streams))
	out := make([]media.Stream, 0, len(streams))
	for _, st := range streams {
		key := identity(st)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, st)
	}
	return out
}

func identity(st media.Stream) string {
	var b strings.Builder
	b.WriteString(string(st.Kind))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(st.Language))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(st.Codec))
	b.WriteByte('|')
	b.WriteString(strings.ToLower(st.Label()))
	b.WriteByte('|')
	if st.IsForced {
		b.WriteByte('F')
	}
	if st.IsHearingImpaired {
		b.WriteByte('H')
	}
	if st.IsExternal() {
		b.WriteByte('X')
	}
	if st.IsTextSubtitle() {
		b.WriteByte('T')
	}
	return b.String()
}
