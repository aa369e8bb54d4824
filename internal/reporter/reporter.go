// Package reporter mirrors local playback state to the media server.
//
// Started and Stopped are sent synchronously. Progress and heartbeats are
// fire-and-forget on goroutines bound to the current play session; binding a
// new stream or reporting stopped cancels them.
package reporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/saltyorg/autoplay/internal/config"
	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/mediabrowser"
	"github.com/saltyorg/autoplay/internal/metrics"
)

// ErrStaleSessionReport marks a report for a play session that was replaced.
var ErrStaleSessionReport = errors.New("report for a superseded play session")

// Sink receives playback reports. Implemented by *mediabrowser.Client.
type Sink interface {
	ReportPlaybackStart(ctx context.Context, info *mediabrowser.PlaybackProgressInfo) error
	ReportPlaybackProgress(ctx context.Context, info *mediabrowser.PlaybackProgressInfo) error
	ReportPlaybackStopped(ctx context.Context, info *mediabrowser.PlaybackProgressInfo) error
}

// Event is the EventName carried by progress reports.
type Event string

const (
	EventTimeUpdate Event = "timeupdate"
	EventPause      Event = "pause"
	EventUnpause    Event = "unpause"
)

const (
	kindStarted  = "started"
	kindProgress = "progress"
	kindStopped  = "stopped"
)

// State is the player state a report describes.
type State struct {
	Position      media.Ticks
	Paused        bool
	AudioIndex    *int
	SubtitleIndex int
}

// Reporter reports one playback session at a time.
type Reporter struct {
	sink        Sink
	offline     bool
	interval    time.Duration
	stopTimeout time.Duration

	mu      sync.Mutex
	stream  *media.PlaybackStream
	ctx     context.Context
	cancel  context.CancelFunc
	limiter *rate.Limiter
	started bool
	seeking bool

	wg sync.WaitGroup
}

// New returns a reporter sending to sink, using the global timeouts for the
// heartbeat interval and the stopped report deadline.
func New(sink Sink) *Reporter {
	timeouts := config.GetTimeouts()
	return &Reporter{
		sink:        sink,
		interval:    timeouts.ProgressInterval,
		stopTimeout: timeouts.StopReport,
	}
}

// NewOffline returns a reporter that sends nothing.
func NewOffline() *Reporter {
	return &Reporter{offline: true}
}

// Bind makes stream the reported session. Progress still in flight for the
// previous session is cancelled.
func (r *Reporter) Bind(stream *media.PlaybackStream) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel != nil {
		r.cancel()
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.stream = stream
	r.started = false
	r.seeking = false
	r.limiter = heartbeatLimiter(r.interval)
}

// heartbeatLimiter admits one heartbeat per interval, with a tenth of slack
// so a ticker at the same interval that fires a little early is not dropped.
func heartbeatLimiter(interval time.Duration) *rate.Limiter {
	return rate.NewLimiter(rate.Every(interval-interval/10), 1)
}

// Seeking reports whether progress is currently suppressed.
func (r *Reporter) Seeking() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seeking
}

func (r *Reporter) active() bool {
	return !r.offline && r.stream != nil && !r.stream.Offline
}

// Started reports the start of the bound stream. Repeated calls for the same
// stream are ignored.
func (r *Reporter) Started(ctx context.Context, st State) {
	r.mu.Lock()
	if !r.active() || r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	info := buildInfo(r.stream, st, "")
	r.mu.Unlock()

	err := r.sink.ReportPlaybackStart(ctx, info)
	record(kindStarted, info, err)
}

// Progress reports an explicit state change such as pause or resume.
// Suppressed while seeking.
func (r *Reporter) Progress(event Event, st State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active() || r.seeking {
		return
	}
	r.dispatch(buildInfo(r.stream, st, event))
}

// Heartbeat reports the position periodically. Calls more frequent than the
// progress interval are dropped, as is every call while seeking.
func (r *Reporter) Heartbeat(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.active() || r.seeking || !r.limiter.Allow() {
		return
	}
	r.dispatch(buildInfo(r.stream, st, EventTimeUpdate))
}

// BeginSeek suppresses progress until EndSeek.
func (r *Reporter) BeginSeek() {
	r.mu.Lock()
	r.seeking = true
	r.mu.Unlock()
}

// EndSeek lifts suppression and reports the released position.
func (r *Reporter) EndSeek(st State) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seeking = false
	if !r.active() {
		return
	}
	r.dispatch(buildInfo(r.stream, st, EventTimeUpdate))
}

// dispatch sends a progress report in the background. Callers hold r.mu.
func (r *Reporter) dispatch(info *mediabrowser.PlaybackProgressInfo) {
	ctx := r.ctx
	r.wg.Go(func() {
		if err := r.checkCurrent(info.PlaySessionID); err != nil {
			metrics.RecordStaleReport()
			log.Debug().Err(err).Str("play_session", info.PlaySessionID).Msg("Dropping progress report")
			return
		}

		err := r.sink.ReportPlaybackProgress(ctx, info)
		if err != nil && ctx.Err() != nil {
			metrics.RecordStaleReport()
			log.Debug().Str("play_session", info.PlaySessionID).Msg("Progress report cancelled by session change")
			return
		}
		record(kindProgress, info, err)
	})
}

// checkCurrent fails with ErrStaleSessionReport unless playSessionID is the
// bound session.
func (r *Reporter) checkCurrent(playSessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stream == nil || r.stream.PlaySessionID != playSessionID {
		return fmt.Errorf("play session %s: %w", playSessionID, ErrStaleSessionReport)
	}
	return nil
}

// Stopped reports the end of the bound session and unbinds it. In-flight
// progress is cancelled first. The call completes or times out before
// returning; the error is for logging only.
func (r *Reporter) Stopped(ctx context.Context, st State) error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	if !r.active() {
		r.stream = nil
		r.mu.Unlock()
		return nil
	}
	info := buildInfo(r.stream, st, "")
	r.stream = nil
	r.mu.Unlock()

	r.wg.Wait()

	if r.stopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.stopTimeout)
		defer cancel()
	}

	err := r.sink.ReportPlaybackStopped(ctx, info)
	record(kindStopped, info, err)
	return err
}

// Close cancels outstanding progress reports and waits for them.
func (r *Reporter) Close() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func buildInfo(stream *media.PlaybackStream, st State, event Event) *mediabrowser.PlaybackProgressInfo {
	subtitle := st.SubtitleIndex
	return &mediabrowser.PlaybackProgressInfo{
		ItemID:              stream.ItemID,
		MediaSourceID:       stream.Source.ID,
		AudioStreamIndex:    st.AudioIndex,
		SubtitleStreamIndex: &subtitle,
		PositionTicks:       int64(st.Position),
		IsPaused:            st.Paused,
		CanSeek:             true,
		PlayMethod:          string(stream.PlayMethod),
		PlaySessionID:       stream.PlaySessionID,
		EventName:           string(event),
	}
}

func record(kind string, info *mediabrowser.PlaybackProgressInfo, err error) {
	if err != nil {
		metrics.RecordReport(kind, metrics.ResultFailure)
		log.Warn().
			Err(err).
			Str("report", kind).
			Str("item", info.ItemID).
			Str("play_session", info.PlaySessionID).
			Msg("Playback report failed")
		return
	}

	metrics.RecordReport(kind, metrics.ResultSuccess)
	log.Trace().
		Str("report", kind).
		Str("event", info.EventName).
		Str("item", info.ItemID).
		Stringer("position", media.Ticks(info.PositionTicks)).
		Msg("Playback reported")
}
