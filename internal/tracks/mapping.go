// Package tracks maps server stream indices to the native player's track indices.
// Everything here is pure; the player's enumeration is passed in.
package tracks

import (
	"errors"
	"fmt"

	"github.com/saltyorg/autoplay/internal/media"
)

// ErrTrackNotEmbedded means the stream has no native track in the current
// PlaybackStream. For subtitles the caller must re-negotiate or load by URL.
var ErrTrackNotEmbedded = errors.New("track not embedded in playback stream")

// ErrStaleMapping means a mapping is used against a stream it was not built from.
var ErrStaleMapping = errors.New("track mapping belongs to another playback stream")

// Table is the bidirectional index association for one stream kind.
type Table struct {
	kind           media.StreamKind
	serverToNative map[int]int
	nativeToServer map[int]int
	// external streams are loaded by URL and only get a native index once attached
	external map[int]media.Stream
}

func newTable(kind media.StreamKind) *Table {
	return &Table{
		kind:           kind,
		serverToNative: make(map[int]int),
		nativeToServer: make(map[int]int),
		external:       make(map[int]media.Stream),
	}
}

func (t *Table) bind(server, native int) {
	if server < 0 || native < 0 {
		return
	}
	t.serverToNative[server] = native
	t.nativeToServer[native] = server
}

// Len returns the number of embedded (or attached) streams.
func (t *Table) Len() int {
	return len(t.serverToNative)
}

// ServerIndices returns the mapped server indices.
func (t *Table) ServerIndices() []int {
	out := make([]int, 0, len(t.serverToNative))
	for s := range t.serverToNative {
		out = append(out, s)
	}
	return out
}

// Mapping is the TrackMapping for one PlaybackStream.
type Mapping struct {
	playSessionID string
	burnedIn      int
	audio         *Table
	subtitle      *Table
}

// PlaySessionID returns the session the mapping was built for.
func (m *Mapping) PlaySessionID() string {
	return m.playSessionID
}

// Check returns ErrStaleMapping if the mapping was not built for stream.
func (m *Mapping) Check(stream *media.PlaybackStream) error {
	if m == nil || stream == nil || m.playSessionID != stream.PlaySessionID {
		return ErrStaleMapping
	}
	return nil
}

// BurnedIn returns the subtitle the server renders into the video, or media.NoSubtitle.
func (m *Mapping) BurnedIn() int {
	return m.burnedIn
}

// Table returns the table for a stream kind.
func (m *Mapping) Table(kind media.StreamKind) *Table {
	switch kind {
	case media.KindAudio:
		return m.audio
	case media.KindSubtitle:
		return m.subtitle
	default:
		return nil
	}
}

// ResolveNativeIndex returns the native track index for a server stream index.
func (m *Mapping) ResolveNativeIndex(kind media.StreamKind, serverIndex int) (int, error) {
	t := m.Table(kind)
	if t == nil {
		return 0, fmt.Errorf("%s stream %d: %w", kind, serverIndex, ErrTrackNotEmbedded)
	}
	native, ok := t.serverToNative[serverIndex]
	if !ok {
		return 0, fmt.Errorf("%s stream %d: %w", kind, serverIndex, ErrTrackNotEmbedded)
	}
	return native, nil
}

// ResolveServerIndex returns the server stream index for a native track index.
func (m *Mapping) ResolveServerIndex(kind media.StreamKind, nativeIndex int) (int, error) {
	t := m.Table(kind)
	if t == nil {
		return 0, fmt.Errorf("%s track %d: %w", kind, nativeIndex, ErrTrackNotEmbedded)
	}
	server, ok := t.nativeToServer[nativeIndex]
	if !ok {
		return 0, fmt.Errorf("%s track %d: %w", kind, nativeIndex, ErrTrackNotEmbedded)
	}
	return server, nil
}

// External returns the external subtitle stream for serverIndex, if it is
// delivered as a side file.
func (m *Mapping) External(serverIndex int) (media.Stream, bool) {
	st, ok := m.subtitle.external[serverIndex]
	return st, ok
}

// Attach records the native index a URL-loaded external subtitle received.
func (m *Mapping) Attach(serverIndex, nativeIndex int) error {
	if _, ok := m.subtitle.external[serverIndex]; !ok {
		return fmt.Errorf("subtitle stream %d is not external", serverIndex)
	}
	if prev, ok := m.subtitle.serverToNative[serverIndex]; ok {
		delete(m.subtitle.nativeToServer, prev)
	}
	m.subtitle.bind(serverIndex, nativeIndex)
	return nil
}
