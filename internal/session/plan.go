package session

import (
	"errors"
	"fmt"

	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/tracks"
)

// ErrUnknownStream means a requested stream index is not in the playing source.
var ErrUnknownStream = errors.New("stream not in media source")

// ChangeKind is the kind of selection change requested.
type ChangeKind string

const (
	ChangeAudio       ChangeKind = "audio"
	ChangeSubtitle    ChangeKind = "subtitle"
	ChangeMediaSource ChangeKind = "media_source"
	ChangeBitrate     ChangeKind = "bitrate"
)

// Change is one requested selection change.
type Change struct {
	Kind  ChangeKind
	Index int // audio or subtitle server index
}

// Action is how a change is applied.
type Action int

const (
	// ActionNone means the stream already plays the selection.
	ActionNone Action = iota
	// ActionInPlace switches a native track on the running player.
	ActionInPlace
	// ActionLoadExternal loads an external subtitle by URL and attaches it.
	ActionLoadExternal
	// ActionRenegotiate replaces the playback stream.
	ActionRenegotiate
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionInPlace:
		return "in_place"
	case ActionLoadExternal:
		return "load_external"
	case ActionRenegotiate:
		return "renegotiate"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Re-negotiation reasons, used as metric labels.
const (
	ReasonAudioNotEmbedded    = "audio_not_embedded"
	ReasonSubtitleNotEmbedded = "subtitle_not_embedded"
	ReasonImageSubtitle       = "image_subtitle"
	ReasonLeaveBurnedIn       = "leave_burned_in"
	ReasonMediaSource         = "media_source"
	ReasonBitrate             = "bitrate"
	ReasonStaleMapping        = "stale_mapping"
)

// Decision is the outcome of Plan.
type Decision struct {
	Action Action
	Reason string
}

func renegotiate(reason string) Decision {
	return Decision{Action: ActionRenegotiate, Reason: reason}
}

// Plan decides how a change is applied to the stream playing in state.
// It has no side effects.
func Plan(state State, stream *media.PlaybackStream, mapping *tracks.Mapping, change Change) (Decision, error) {
	switch change.Kind {
	case ChangeMediaSource:
		return renegotiate(ReasonMediaSource), nil
	case ChangeBitrate:
		return renegotiate(ReasonBitrate), nil
	}

	if err := mapping.Check(stream); err != nil {
		return renegotiate(ReasonStaleMapping), nil
	}

	switch change.Kind {
	case ChangeAudio:
		return planAudio(stream, mapping, change.Index)
	case ChangeSubtitle:
		return planSubtitle(state, stream, mapping, change.Index)
	default:
		return Decision{}, fmt.Errorf("unknown change %q", change.Kind)
	}
}

func planAudio(stream *media.PlaybackStream, mapping *tracks.Mapping, index int) (Decision, error) {
	if !stream.Source.HasStream(media.KindAudio, index) {
		return Decision{}, fmt.Errorf("audio stream %d: %w", index, ErrUnknownStream)
	}
	if _, err := mapping.ResolveNativeIndex(media.KindAudio, index); err != nil {
		return renegotiate(ReasonAudioNotEmbedded), nil
	}
	return Decision{Action: ActionInPlace}, nil
}

func planSubtitle(state State, stream *media.PlaybackStream, mapping *tracks.Mapping, index int) (Decision, error) {
	if index == media.NoSubtitle {
		if mapping.BurnedIn() != media.NoSubtitle {
			return renegotiate(ReasonLeaveBurnedIn), nil
		}
		return Decision{Action: ActionInPlace}, nil
	}

	st, ok := stream.Source.Stream(media.KindSubtitle, index)
	if !ok {
		return Decision{}, fmt.Errorf("subtitle stream %d: %w", index, ErrUnknownStream)
	}

	if st.IsImageSubtitle() {
		if stream.BurnsIn(index) {
			return Decision{Action: ActionNone}, nil
		}
		return renegotiate(ReasonImageSubtitle), nil
	}

	if state == StateTranscodeImageSubtitle {
		return renegotiate(ReasonLeaveBurnedIn), nil
	}

	if _, err := mapping.ResolveNativeIndex(media.KindSubtitle, index); err == nil {
		return Decision{Action: ActionInPlace}, nil
	}

	if ext, ok := mapping.External(index); ok && ext.Subtitle.DeliveryURL != "" {
		return Decision{Action: ActionLoadExternal}, nil
	}

	return renegotiate(ReasonSubtitleNotEmbedded), nil
}
