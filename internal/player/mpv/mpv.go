// Package mpv implements player.Player by driving mpv over its JSON IPC socket.
package mpv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/player"
)

const (
	trackAudio    = "audio"
	trackSubtitle = "sub"

	stopTimeout = 5 * time.Second
)

// Config controls how the player reaches mpv.
type Config struct {
	// Managed starts and owns an mpv process. When false the player attaches
	// to an mpv already listening on SocketPath.
	Managed    bool
	BinaryPath string
	SocketPath string
	ExtraArgs  []string
}

// Player is an mpv instance.
type Player struct {
	cfg Config

	mu   sync.Mutex
	cmd  *exec.Cmd
	conn *conn

	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup
}

var _ player.Player = (*Player)(nil)

// New returns a player. mpv is started (or attached to) on the first Open.
func New(cfg Config) *Player {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "mpv"
	}
	return &Player{cfg: cfg, done: make(chan struct{})}
}

// Done is closed when mpv exits or the player is closed.
func (p *Player) Done() <-chan struct{} {
	return p.done
}

func (p *Player) markDone() {
	p.doneOnce.Do(func() { close(p.done) })
}

func (p *Player) connect(ctx context.Context) (*conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn != nil {
		return p.conn, nil
	}

	select {
	case <-p.done:
		return nil, player.ErrNotOpen
	default:
	}

	var (
		c   *conn
		err error
	)
	if p.cfg.Managed {
		c, err = p.startProcess(ctx)
	} else {
		c, err = dial(ctx, p.cfg.SocketPath)
		if err != nil {
			err = fmt.Errorf("connect to mpv at %s: %w", p.cfg.SocketPath, err)
		}
	}
	if err != nil {
		return nil, err
	}

	p.conn = c
	p.wg.Go(func() {
		<-c.closed
		p.markDone()
	})
	return c, nil
}

func (p *Player) startProcess(ctx context.Context) (*conn, error) {
	socket := p.cfg.SocketPath
	if socket == "" {
		socket = filepath.Join(os.TempDir(), "autoplay-mpv-"+uuid.NewString()+".sock")
	}

	args := []string{
		"--idle=once",
		"--no-terminal",
		"--force-window=yes",
		"--input-ipc-server=" + socket,
	}
	args = append(args, p.cfg.ExtraArgs...)

	cmd := exec.Command(p.cfg.BinaryPath, args...)
	setProcessGroup(cmd)
	cmd.Stdout = &mpvLogWriter{}
	cmd.Stderr = &mpvLogWriter{}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}
	p.cmd = cmd

	log.Info().
		Str("binary", p.cfg.BinaryPath).
		Str("socket", socket).
		Int("pid", cmd.Process.Pid).
		Msg("Started mpv")

	exited := make(chan struct{})
	p.wg.Go(func() {
		err := cmd.Wait()
		close(exited)
		if err != nil {
			log.Debug().Err(err).Msg("mpv exited")
		} else {
			log.Debug().Msg("mpv exited")
		}
		_ = os.Remove(socket)
		p.markDone()
	})

	c, err := dialRetry(ctx, socket, exited)
	if err != nil {
		terminate(cmd)
		return nil, err
	}
	return c, nil
}

func (p *Player) client() (*conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil, player.ErrNotOpen
	}
	return p.conn, nil
}

// Open loads url, replacing the current file, and waits until it is loaded.
func (p *Player) Open(ctx context.Context, url string, start media.Ticks) error {
	c, err := p.connect(ctx)
	if err != nil {
		return err
	}

	c.drainEvents()

	if _, err := c.call(ctx, "set_property", "start", formatSeconds(start)); err != nil {
		return err
	}
	data, err := c.call(ctx, "loadfile", url, "replace")
	if err != nil {
		return err
	}

	// mpv 0.33+ replies with the new playlist entry id. Older versions
	// reply with nothing, so the replaced file's end-file is told apart
	// by its reason instead.
	var loaded struct {
		EntryID int64 `json:"playlist_entry_id"`
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &loaded)
	}

	for {
		ev, err := c.waitEvent(ctx, "file-loaded", "end-file")
		if err != nil {
			return fmt.Errorf("wait for mpv to load file: %w", err)
		}
		if ev.Event == "file-loaded" {
			break
		}
		if replacedFile(ev, loaded.EntryID) {
			continue
		}

		reason := ev.FileError
		if reason == "" {
			reason = ev.Reason
		}
		return fmt.Errorf("mpv could not open stream: %s", reason)
	}

	log.Debug().Stringer("start", start).Msg("mpv loaded stream")
	return nil
}

// replacedFile reports whether an end-file event belongs to the file that
// loadfile replaced rather than the one being opened.
func replacedFile(ev message, entryID int64) bool {
	if entryID > 0 && ev.EntryID > 0 {
		return ev.EntryID != entryID
	}
	return ev.Reason == "stop" || ev.Reason == "redirect"
}

func (p *Player) Play(ctx context.Context) error {
	return p.setProperty(ctx, "pause", false)
}

func (p *Player) Pause(ctx context.Context) error {
	return p.setProperty(ctx, "pause", true)
}

func (p *Player) Seek(ctx context.Context, pos media.Ticks) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "seek", pos.Seconds(), "absolute")
	return err
}

func (p *Player) Position(ctx context.Context) (media.Ticks, error) {
	c, err := p.client()
	if err != nil {
		return 0, err
	}
	data, err := c.call(ctx, "get_property", "time-pos")
	if err != nil {
		return 0, err
	}

	var secs *float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return 0, fmt.Errorf("decode time-pos: %w", err)
	}
	if secs == nil {
		return 0, nil
	}
	return media.TicksFromSeconds(*secs), nil
}

// track is one entry of mpv's track-list property. mpv numbers tracks from 1
// per type; native indices are zero based.
type track struct {
	ID       int    `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Lang     string `json:"lang"`
	External bool   `json:"external"`
}

func (p *Player) tracks(ctx context.Context, kind string) ([]media.NativeTrack, error) {
	c, err := p.client()
	if err != nil {
		return nil, err
	}
	data, err := c.call(ctx, "get_property", "track-list")
	if err != nil {
		return nil, err
	}

	var list []track
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode track-list: %w", err)
	}

	var out []media.NativeTrack
	for _, t := range list {
		if t.Type != kind {
			continue
		}
		out = append(out, media.NativeTrack{
			Index:    t.ID - 1,
			Name:     t.Title,
			Language: t.Lang,
			External: t.External,
		})
	}
	return out, nil
}

func (p *Player) AudioTracks(ctx context.Context) ([]media.NativeTrack, error) {
	return p.tracks(ctx, trackAudio)
}

func (p *Player) SubtitleTracks(ctx context.Context) ([]media.NativeTrack, error) {
	return p.tracks(ctx, trackSubtitle)
}

func (p *Player) SetAudioTrack(ctx context.Context, native int) error {
	return p.setProperty(ctx, "aid", native+1)
}

func (p *Player) SetSubtitleTrack(ctx context.Context, native int) error {
	if native < 0 {
		return p.setProperty(ctx, "sid", "no")
	}
	return p.setProperty(ctx, "sid", native+1)
}

// SetSubtitleByURL adds an external subtitle, selects it and returns its
// native index.
func (p *Player) SetSubtitleByURL(ctx context.Context, url, name string) (int, error) {
	c, err := p.client()
	if err != nil {
		return 0, err
	}
	if _, err := c.call(ctx, "sub-add", url, "select", name); err != nil {
		return 0, err
	}

	data, err := c.call(ctx, "get_property", "sid")
	if err != nil {
		return 0, err
	}
	id, err := strconv.Atoi(strings.Trim(string(data), `"`))
	if err != nil {
		return 0, fmt.Errorf("mpv selected no subtitle after sub-add: %s", data)
	}
	return id - 1, nil
}

func (p *Player) setProperty(ctx context.Context, name string, value any) error {
	c, err := p.client()
	if err != nil {
		return err
	}
	_, err = c.call(ctx, "set_property", name, value)
	return err
}

// Close quits mpv. A managed process that does not exit in time is killed
// with its process group.
func (p *Player) Close() error {
	p.mu.Lock()
	c, cmd := p.conn, p.cmd
	p.conn, p.cmd = nil, nil
	p.mu.Unlock()

	if c != nil {
		if p.cfg.Managed {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_, _ = c.call(ctx, "quit")
			cancel()
		}
		c.close()
	}

	if cmd != nil {
		exited := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(exited)
		}()

		select {
		case <-exited:
		case <-time.After(stopTimeout):
			log.Warn().Int("pid", cmd.Process.Pid).Msg("mpv did not quit, terminating")
			terminate(cmd)
			<-exited
		}
	}

	p.markDone()
	p.wg.Wait()
	return nil
}

func formatSeconds(t media.Ticks) string {
	return strconv.FormatFloat(t.Seconds(), 'f', 3, 64)
}

// mpvLogWriter forwards mpv output to the debug log.
type mpvLogWriter struct{}

func (w *mpvLogWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line != "" {
			log.Debug().Str("source", "mpv").Msg(line)
		}
	}
	return len(p), nil
}
