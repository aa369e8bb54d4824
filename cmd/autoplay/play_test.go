package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltyorg/autoplay/internal/database"
	"github.com/saltyorg/autoplay/internal/deviceprofile"
	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/mediabrowser"
	"github.com/saltyorg/autoplay/internal/offline"
	"github.com/saltyorg/autoplay/internal/reporter"
	"github.com/saltyorg/autoplay/internal/session"
)

type stubPlayer struct {
	mu     sync.Mutex
	opened []string
	paused bool
	done   chan struct{}
}

func newStubPlayer() *stubPlayer { return &stubPlayer{done: make(chan struct{})} }

func (p *stubPlayer) Open(_ context.Context, url string, _ media.Ticks) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, url)
	return nil
}
func (p *stubPlayer) Play(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	return nil
}
func (p *stubPlayer) Pause(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	return nil
}
func (p *stubPlayer) Seek(context.Context, media.Ticks) error       { return nil }
func (p *stubPlayer) Position(context.Context) (media.Ticks, error) { return media.TicksFromSeconds(5), nil }
func (p *stubPlayer) AudioTracks(context.Context) ([]media.NativeTrack, error) {
	return []media.NativeTrack{{Index: 0}}, nil
}
func (p *stubPlayer) SubtitleTracks(context.Context) ([]media.NativeTrack, error) { return nil, nil }
func (p *stubPlayer) SetAudioTrack(context.Context, int) error                    { return nil }
func (p *stubPlayer) SetSubtitleTrack(context.Context, int) error                 { return nil }
func (p *stubPlayer) SetSubtitleByURL(context.Context, string, string) (int, error) {
	return 0, nil
}
func (p *stubPlayer) Done() <-chan struct{} { return p.done }
func (p *stubPlayer) Close() error          { return nil }

func offlineSession(t *testing.T, p *stubPlayer) *session.Session {
	t.Helper()

	dir := t.TempDir()
	db, err := database.New(filepath.Join(dir, "autoplay.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	file := filepath.Join(dir, "movie.mkv")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	provider := offline.NewProvider(db)
	item := media.Item{ID: "movie", Sources: []media.Source{{
		ID:      "src",
		Streams: []media.Stream{{Kind: media.KindVideo, Index: 0}, {Kind: media.KindAudio, Index: 1, Language: "eng"}},
	}}}
	_, err = provider.Add(item, file)
	require.NoError(t, err)
	item, err = provider.Item("movie")
	require.NoError(t, err)

	sess := session.New(session.Config{
		Item:       item,
		Profile:    deviceprofile.Profile{Name: deviceprofile.Native},
		Negotiator: offline.NewNegotiator(provider),
		Player:     p,
		Reporter:   reporter.NewOffline(),
	})
	require.NoError(t, sess.Start(context.Background(), media.PlaySelection{MediaSourceID: "src", SubtitleIndex: media.NoSubtitle}.WithAudio(1), 0))
	return sess
}

func TestRunSessionEndsWhenPlayerExits(t *testing.T) {
	p := newStubPlayer()
	sess := offlineSession(t, p)
	assert.Equal(t, session.StateDirect, sess.State())

	close(p.done)
	stopped := runSession(context.Background(), sess, p, make(chan mediabrowser.Command))

	assert.False(t, stopped)
	assert.Equal(t, session.StateStopped, sess.State())
	assert.Len(t, p.opened, 1)
}

func TestRunSessionRemoteCommands(t *testing.T) {
	p := newStubPlayer()
	sess := offlineSession(t, p)

	commands := make(chan mediabrowser.Command, 2)
	commands <- mediabrowser.Command{Name: mediabrowser.CommandPause}
	commands <- mediabrowser.Command{Name: mediabrowser.CommandStop}

	stopped := runSession(context.Background(), sess, p, commands)

	assert.True(t, stopped)
	assert.True(t, sess.Paused())
	assert.Equal(t, session.StateStopped, sess.State())
}

func TestRunSessionStopsOnCancel(t *testing.T) {
	p := newStubPlayer()
	sess := offlineSession(t, p)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.True(t, runSession(ctx, sess, p, nil))
	assert.Equal(t, session.StateStopped, sess.State())
}

func TestDescribeSelection(t *testing.T) {
	item := media.Item{ID: "item", Sources: []media.Source{{
		ID: "src",
		Streams: []media.Stream{
			{Kind: media.KindVideo, Index: 0, Height: 1080, Codec: "h264"},
			{Kind: media.KindAudio, Index: 1, Language: "jpn"},
			{Kind: media.KindSubtitle, Index: 2, DisplayTitle: "English (SRT)", Subtitle: &media.SubtitleInfo{TextBased: true}},
		},
	}}}

	out := describeSelection(item, media.PlaySelection{MediaSourceID: "src", SubtitleIndex: 2}.WithAudio(1))

	assert.Equal(t, "1080p (H.264)", out.Video)
	require.NotNil(t, out.Audio)
	assert.Equal(t, "Jpn", out.Audio.Label)
	require.NotNil(t, out.Subtitle)
	assert.Equal(t, "English (SRT)", out.Subtitle.Label)

	out = describeSelection(item, media.PlaySelection{SubtitleIndex: media.NoSubtitle})
	assert.Nil(t, out.Audio)
	assert.Nil(t, out.Subtitle)
}
