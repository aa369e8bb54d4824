package media

import "sort"

// Item is a library item as read from the catalog.
// The engine never mutates it.
type Item struct {
	ID                    string
	Name                  string
	Type                  string // Movie, Episode, ...
	RunTimeTicks          Ticks
	PlaybackPositionTicks Ticks
	Sources               []Source

	// Episode linkage, empty for movies
	SeriesID          string
	SeriesName        string
	SeasonID          string
	ParentIndexNumber *int // Season number
	IndexNumber       *int // Episode number
}

// Source returns the media source with the given ID.
func (i *Item) Source(id string) (*Source, bool) {
	for idx := range i.Sources {
		if i.Sources[idx].ID == id {
			return &i.Sources[idx], true
		}
	}
	return nil, false
}

// IsEpisode reports whether the item belongs to a series.
func (i *Item) IsEpisode() bool {
	return i.SeriesID != ""
}

// Source is one playable version of an item (a file, a stack, a stream).
type Source struct {
	ID        string
	Name      string
	Container string
	Path      string
	Bitrate   int64
	Streams   []Stream

	// TranscodingURL is set by the server when it has already decided to transcode.
	TranscodingURL string

	SupportsDirectPlay   bool
	SupportsDirectStream bool
	SupportsTranscoding  bool

	DefaultAudioIndex    *int
	DefaultSubtitleIndex *int
}

// RequiresTranscode reports whether the server already mandated a transcode.
func (s *Source) RequiresTranscode() bool {
	return s.TranscodingURL != ""
}

// AudioStreams returns the audio streams in server listing order.
func (s *Source) AudioStreams() []Stream {
	return s.streamsOf(KindAudio)
}

// SubtitleStreams returns the subtitle streams in server listing order.
func (s *Source) SubtitleStreams() []Stream {
	return s.streamsOf(KindSubtitle)
}

// Stream returns the stream of the given kind with the given server index.
func (s *Source) Stream(kind StreamKind, index int) (Stream, bool) {
	for _, st := range s.Streams {
		if st.Kind == kind && st.Index == index {
			return st, true
		}
	}
	return Stream{}, false
}

// HasStream reports whether a stream of the given kind and index exists.
func (s *Source) HasStream(kind StreamKind, index int) bool {
	_, ok := s.Stream(kind, index)
	return ok
}

func (s *Source) streamsOf(kind StreamKind) []Stream {
	var out []Stream
	for _, st := range s.Streams {
		if st.Kind == kind {
			out = append(out, st)
		}
	}
	return out
}

// SortByIndex returns a copy of streams ordered by ascending server index.
func SortByIndex(streams []Stream) []Stream {
	out := make([]Stream, len(streams))
	copy(out, streams)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Index < out[b].Index })
	return out
}
