package media

import (
	"fmt"
	"regexp"
	"strings"
)

// resolutionRegex matches resolution patterns like "1080p", "1080i", "720p", "2160p", "4K", "8K"
var resolutionRegex = regexp.MustCompile(`\b(\d{3,4}[pi]|4K|8K)\b`)

// VideoFormat describes the first video stream of the source, e.g. "1080p (H.264)".
// Returns "" for audio-only sources.
func (s *Source) VideoFormat() string {
	for _, st := range s.Streams {
		if st.Kind == KindVideo {
			return formatVideo(st.DisplayTitle, st.Height, st.Codec)
		}
	}
	return ""
}

// formatVideo extracts resolution from the display title, falling back to height.
func formatVideo(displayTitle string, height int, codec string) string {
	var res string

	if displayTitle != "" {
		if match := resolutionRegex.FindString(displayTitle); match != "" {
			res = match
		}
	}

	if res == "" {
		if height == 0 {
			return ""
		}
		res = fmt.Sprintf("%dp", height)
	}

	if codec == "" {
		return res
	}
	return fmt.Sprintf("%s (%s)", res, codecName(codec))
}

func codecName(codec string) string {
	switch strings.ToLower(codec) {
	case "h264", "avc":
		return "H.264"
	case "hevc", "h265":
		return "HEVC"
	case "av1":
		return "AV1"
	case "vp9":
		return "VP9"
	case "mpeg4":
		return "MPEG-4"
	default:
		return strings.ToUpper(codec)
	}
}
