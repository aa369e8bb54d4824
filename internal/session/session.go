// Package session drives one playback: it applies selection changes on the
// running player where the stream allows it and re-negotiates where it does not.
//
// A Session is not safe for concurrent use. The caller runs every method from
// a single event loop.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/autoplay/internal/deviceprofile"
	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/mediabrowser"
	"github.com/saltyorg/autoplay/internal/metrics"
	"github.com/saltyorg/autoplay/internal/negotiation"
	"github.com/saltyorg/autoplay/internal/player"
	"github.com/saltyorg/autoplay/internal/reporter"
	"github.com/saltyorg/autoplay/internal/tracks"
)

var (
	// ErrPlaybackFailed means playback could not start or continue. It wraps the cause.
	ErrPlaybackFailed = errors.New("could not start or continue playback")

	// ErrSessionStopped is returned for operations on a stopped session.
	ErrSessionStopped = errors.New("playback session stopped")

	// ErrNotStarted is returned for operations before Start.
	ErrNotStarted = errors.New("playback session not started")
)

// Config wires a session to its collaborators.
type Config struct {
	Item       media.Item
	Profile    deviceprofile.Profile
	UserID     string
	Negotiator negotiation.Negotiator
	Player     player.Player
	Reporter   *reporter.Reporter
}

// Session is one playback of one item.
type Session struct {
	cfg Config

	state    State
	sel      media.PlaySelection
	stream   *media.PlaybackStream
	mapping  *tracks.Mapping
	position media.Ticks
	paused   bool
	seeking  bool
}

// New returns an idle session.
func New(cfg Config) *Session {
	return &Session{cfg: cfg, state: StateIdle}
}

func (s *Session) State() State                   { return s.state }
func (s *Session) Selection() media.PlaySelection { return s.sel }
func (s *Session) Stream() *media.PlaybackStream  { return s.stream }
func (s *Session) Mapping() *tracks.Mapping       { return s.mapping }
func (s *Session) Position() media.Ticks          { return s.position }
func (s *Session) Paused() bool                   { return s.paused }

func (s *Session) logger() *zerolog.Logger {
	l := log.With().
		Str("item", s.cfg.Item.ID).
		Str("state", string(s.state)).
		Logger()
	return &l
}

func (s *Session) transition(to State, ev Event) error {
	if _, ok := TransitionFor(s.state, to, ev); !ok {
		return &ErrIllegalTransition{From: s.state, To: to, Event: ev}
	}

	from := s.state
	s.state = to
	metrics.RecordTransition(string(from), string(to))
	log.Debug().
		Str("item", s.cfg.Item.ID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("event", string(ev)).
		Msg("Playback strategy transition")
	return nil
}

func (s *Session) active() error {
	switch s.state {
	case StateIdle:
		return ErrNotStarted
	case StateStopped:
		return ErrSessionStopped
	}
	return nil
}

func (s *Session) reportState() reporter.State {
	return reporter.State{
		Position:      s.position,
		Paused:        s.paused,
		AudioIndex:    s.sel.AudioIndex,
		SubtitleIndex: s.sel.SubtitleIndex,
	}
}

// Start negotiates the first stream for sel and starts playback at start.
func (s *Session) Start(ctx context.Context, sel media.PlaySelection, start media.Ticks) error {
	if s.state != StateIdle {
		return fmt.Errorf("start in state %s: %w", s.state, ErrSessionStopped)
	}

	stream, err := s.negotiate(ctx, sel, start)
	if err != nil {
		_ = s.transition(StateStopped, EvFailed)
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}

	s.sel = sel
	if err := s.open(ctx, stream, start); err != nil {
		s.fail(ctx)
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}
	return s.transition(StateFor(stream), EvStarted)
}

func (s *Session) negotiate(ctx context.Context, sel media.PlaySelection, start media.Ticks) (*media.PlaybackStream, error) {
	req := negotiation.NewRequest(s.cfg.Item, sel, s.cfg.Profile, s.cfg.UserID, start)
	return s.cfg.Negotiator.Negotiate(ctx, req)
}

// open plays stream on the player, rebuilds the mapping and re-applies the
// selection.
func (s *Session) open(ctx context.Context, stream *media.PlaybackStream, start media.Ticks) error {
	s.stream = stream
	s.position = start
	s.cfg.Reporter.Bind(stream)

	if err := s.cfg.Player.Open(ctx, stream.URL, start); err != nil {
		return fmt.Errorf("open player: %w", err)
	}

	if err := s.rebuildMapping(ctx); err != nil {
		return err
	}
	s.applySelection(ctx)

	if s.paused {
		if err := s.cfg.Player.Pause(ctx); err != nil {
			s.logger().Warn().Err(err).Msg("Failed to keep player paused")
		}
	}

	s.cfg.Reporter.Started(ctx, s.reportState())
	return nil
}

func (s *Session) rebuildMapping(ctx context.Context) error {
	audio, err := s.cfg.Player.AudioTracks(ctx)
	if err != nil {
		return fmt.Errorf("list audio tracks: %w", err)
	}
	subtitles, err := s.cfg.Player.SubtitleTracks(ctx)
	if err != nil {
		return fmt.Errorf("list subtitle tracks: %w", err)
	}

	s.mapping = tracks.Build(s.stream, audio, subtitles)
	s.logger().Debug().
		Int("audio_tracks", s.mapping.Table(media.KindAudio).Len()).
		Int("subtitle_tracks", s.mapping.Table(media.KindSubtitle).Len()).
		Int("burned_in", s.mapping.BurnedIn()).
		Msg("Track mapping built")
	return nil
}

// applySelection selects the session's tracks on a freshly opened stream.
// Failures are logged; the server already applied the selection to the
// stream where it could.
func (s *Session) applySelection(ctx context.Context) {
	if s.sel.AudioIndex != nil {
		if native, err := s.mapping.ResolveNativeIndex(media.KindAudio, *s.sel.AudioIndex); err == nil {
			if err := s.cfg.Player.SetAudioTrack(ctx, native); err != nil {
				s.logger().Warn().Err(err).Int("audio", *s.sel.AudioIndex).Msg("Failed to select audio track")
			}
		} else {
			s.logger().Debug().Err(err).Msg("Audio track left to the stream")
		}
	}

	idx := s.sel.SubtitleIndex
	if idx == media.NoSubtitle || s.mapping.BurnedIn() == idx {
		if err := s.cfg.Player.SetSubtitleTrack(ctx, media.NoSubtitle); err != nil {
			s.logger().Warn().Err(err).Msg("Failed to disable subtitles")
		}
		return
	}

	if native, err := s.mapping.ResolveNativeIndex(media.KindSubtitle, idx); err == nil {
		if err := s.cfg.Player.SetSubtitleTrack(ctx, native); err != nil {
			s.logger().Warn().Err(err).Int("subtitle", idx).Msg("Failed to select subtitle track")
		}
		return
	}

	if ext, ok := s.mapping.External(idx); ok && ext.Subtitle.DeliveryURL != "" {
		if err := s.loadExternal(ctx, ext); err != nil {
			s.logger().Warn().Err(err).Int("subtitle", idx).Msg("Failed to load external subtitle")
		}
		return
	}

	s.logger().Warn().Int("subtitle", idx).Msg("Selected subtitle is not available in the stream")
}

func (s *Session) loadExternal(ctx context.Context, st media.Stream) error {
	native, err := s.cfg.Player.SetSubtitleByURL(ctx, st.Subtitle.DeliveryURL, st.Label())
	if err != nil {
		return err
	}
	return s.mapping.Attach(st.Index, native)
}

// SetAudio switches the audio stream.
func (s *Session) SetAudio(ctx context.Context, index int) error {
	return s.apply(ctx, Change{Kind: ChangeAudio, Index: index}, s.sel.WithAudio(index))
}

// SetSubtitle switches the subtitle stream; media.NoSubtitle turns subtitles off.
func (s *Session) SetSubtitle(ctx context.Context, index int) error {
	return s.apply(ctx, Change{Kind: ChangeSubtitle, Index: index}, s.sel.WithSubtitle(index))
}

// SetMediaSource switches to another version of the item.
func (s *Session) SetMediaSource(ctx context.Context, id string) error {
	next := s.sel
	next.MediaSourceID = id
	return s.apply(ctx, Change{Kind: ChangeMediaSource}, next)
}

// SetMaxBitrate changes the bitrate ceiling; nil removes it.
func (s *Session) SetMaxBitrate(ctx context.Context, bitrate *int64) error {
	next := s.sel
	next.MaxBitrate = bitrate
	return s.apply(ctx, Change{Kind: ChangeBitrate}, next)
}

func (s *Session) apply(ctx context.Context, change Change, next media.PlaySelection) error {
	if err := s.active(); err != nil {
		return err
	}

	decision, err := Plan(s.state, s.stream, s.mapping, change)
	if err != nil {
		return err
	}

	s.logger().Debug().
		Str("change", string(change.Kind)).
		Int("index", change.Index).
		Stringer("action", decision.Action).
		Str("reason", decision.Reason).
		Msg("Selection change planned")

	switch decision.Action {
	case ActionNone:
		s.sel = next
		return nil

	case ActionInPlace:
		if err := s.applyInPlace(ctx, change); err != nil {
			return err
		}

	case ActionLoadExternal:
		ext, _ := s.mapping.External(change.Index)
		if err := s.loadExternal(ctx, ext); err != nil {
			return fmt.Errorf("load subtitle %d: %w", change.Index, err)
		}

	case ActionRenegotiate:
		return s.renegotiate(ctx, next, decision.Reason)
	}

	s.sel = next
	s.cfg.Reporter.Progress(reporter.EventTimeUpdate, s.reportState())
	return nil
}

func (s *Session) applyInPlace(ctx context.Context, change Change) error {
	kind := media.KindAudio
	if change.Kind == ChangeSubtitle {
		kind = media.KindSubtitle
		if change.Index == media.NoSubtitle {
			return s.cfg.Player.SetSubtitleTrack(ctx, media.NoSubtitle)
		}
	}

	native, err := s.mapping.ResolveNativeIndex(kind, change.Index)
	if err != nil {
		return err
	}
	if kind == media.KindAudio {
		return s.cfg.Player.SetAudioTrack(ctx, native)
	}
	return s.cfg.Player.SetSubtitleTrack(ctx, native)
}

// renegotiate replaces the playback stream, resuming at the current position.
func (s *Session) renegotiate(ctx context.Context, next media.PlaySelection, reason string) error {
	pos := s.readPosition(ctx)

	if err := s.cfg.Reporter.Stopped(ctx, s.reportState()); err != nil {
		s.logger().Warn().Err(err).Msg("Stopped report for replaced stream failed")
	}
	s.stream, s.mapping = nil, nil
	metrics.RecordRenegotiation(reason)

	log.Info().
		Str("item", s.cfg.Item.ID).
		Str("reason", reason).
		Stringer("position", pos).
		Msg("Re-negotiating playback stream")

	stream, err := s.negotiate(ctx, next, pos)
	if err != nil {
		_ = s.transition(StateStopped, EvFailed)
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}

	s.sel = next
	if err := s.open(ctx, stream, pos); err != nil {
		s.fail(ctx)
		return fmt.Errorf("%w: %w", ErrPlaybackFailed, err)
	}
	return s.transition(StateFor(stream), EvRenegotiated)
}

// fail releases a stream that was negotiated but could not be played.
func (s *Session) fail(ctx context.Context) {
	if s.stream != nil {
		if err := s.cfg.Reporter.Stopped(ctx, s.reportState()); err != nil {
			s.logger().Warn().Err(err).Msg("Stopped report for failed stream failed")
		}
	}
	s.stream, s.mapping = nil, nil
	_ = s.transition(StateStopped, EvFailed)
}

func (s *Session) readPosition(ctx context.Context) media.Ticks {
	pos, err := s.cfg.Player.Position(ctx)
	if err != nil {
		s.logger().Debug().Err(err).Msg("Using last known position")
		return s.position
	}
	s.position = pos
	return pos
}

// Pause pauses the player and reports it.
func (s *Session) Pause(ctx context.Context) error {
	if err := s.active(); err != nil {
		return err
	}
	if err := s.cfg.Player.Pause(ctx); err != nil {
		return err
	}
	s.paused = true
	s.readPosition(ctx)
	s.cfg.Reporter.Progress(reporter.EventPause, s.reportState())
	return nil
}

// Resume resumes the player and reports it.
func (s *Session) Resume(ctx context.Context) error {
	if err := s.active(); err != nil {
		return err
	}
	if err := s.cfg.Player.Play(ctx); err != nil {
		return err
	}
	s.paused = false
	s.readPosition(ctx)
	s.cfg.Reporter.Progress(reporter.EventUnpause, s.reportState())
	return nil
}

// BeginSeek marks the position as in flux; progress is not reported until EndSeek.
func (s *Session) BeginSeek() {
	s.seeking = true
	s.cfg.Reporter.BeginSeek()
}

// EndSeek seeks the player to the released position and reports it.
func (s *Session) EndSeek(ctx context.Context, pos media.Ticks) error {
	if err := s.active(); err != nil {
		if s.seeking {
			s.seeking = false
			s.cfg.Reporter.EndSeek(s.reportState())
		}
		return err
	}
	s.seeking = false
	if err := s.cfg.Player.Seek(ctx, pos); err != nil {
		s.cfg.Reporter.EndSeek(s.reportState())
		return err
	}
	s.position = pos
	s.cfg.Reporter.EndSeek(s.reportState())
	return nil
}

// Seek is a complete seek as issued by a remote command.
func (s *Session) Seek(ctx context.Context, pos media.Ticks) error {
	if err := s.active(); err != nil {
		return err
	}
	s.BeginSeek()
	return s.EndSeek(ctx, pos)
}

// Tick samples the position and sends a heartbeat.
func (s *Session) Tick(ctx context.Context) {
	if s.active() != nil || s.seeking {
		return
	}
	s.readPosition(ctx)
	s.cfg.Reporter.Heartbeat(s.reportState())
}

// HandleCommand applies a remote control command from the server.
func (s *Session) HandleCommand(ctx context.Context, cmd mediabrowser.Command) error {
	switch cmd.Name {
	case mediabrowser.CommandPause:
		return s.Pause(ctx)
	case mediabrowser.CommandUnpause:
		return s.Resume(ctx)
	case mediabrowser.CommandPlayPause:
		if s.paused {
			return s.Resume(ctx)
		}
		return s.Pause(ctx)
	case mediabrowser.CommandStop:
		return s.Stop(ctx)
	case mediabrowser.CommandSeek:
		return s.Seek(ctx, cmd.SeekPositionTicks)
	case mediabrowser.CommandSetAudioStreamIndex:
		return s.SetAudio(ctx, cmd.Index)
	case mediabrowser.CommandSetSubtitleStreamIndex:
		return s.SetSubtitle(ctx, cmd.Index)
	default:
		return fmt.Errorf("unsupported command %q", cmd.Name)
	}
}

// Stop reports the end of playback and ends the session. The stopped report
// is awaited; its failure is logged only.
func (s *Session) Stop(ctx context.Context) error {
	switch s.state {
	case StateStopped:
		return nil
	case StateIdle:
		return s.transition(StateStopped, EvStopped)
	}

	s.readPosition(ctx)
	if err := s.cfg.Reporter.Stopped(ctx, s.reportState()); err != nil {
		s.logger().Warn().Err(err).Msg("Stopped report failed")
	}
	s.stream, s.mapping = nil, nil
	return s.transition(StateStopped, EvStopped)
}
