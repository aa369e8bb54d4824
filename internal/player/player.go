// Package player defines the native player capability set the playback
// session drives.
package player

import (
	"context"
	"errors"

	"github.com/saltyorg/autoplay/internal/media"
)

// ErrNotOpen is returned by control calls before Open or after Close.
var ErrNotOpen = errors.New("player is not open")

// Player is a native media player. Track indices are the player's own
// (native) indices as enumerated by AudioTracks and SubtitleTracks.
type Player interface {
	// Open loads url and starts playback at start.
	Open(ctx context.Context, url string, start media.Ticks) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, pos media.Ticks) error
	Position(ctx context.Context) (media.Ticks, error)

	AudioTracks(ctx context.Context) ([]media.NativeTrack, error)
	SubtitleTracks(ctx context.Context) ([]media.NativeTrack, error)

	SetAudioTrack(ctx context.Context, native int) error
	// SetSubtitleTrack selects a subtitle track; media.NoSubtitle disables subtitles.
	SetSubtitleTrack(ctx context.Context, native int) error
	// SetSubtitleByURL loads an external subtitle, selects it and returns
	// its native index.
	SetSubtitleByURL(ctx context.Context, url, name string) (int, error)

	// Done is closed when the player exits on its own or is closed.
	Done() <-chan struct{}
	Close() error
}
