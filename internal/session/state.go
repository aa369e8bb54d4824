package session

import (
	"fmt"

	"github.com/saltyorg/autoplay/internal/media"
)

// State is the playback strategy of a session.
type State string

const (
	StateIdle                   State = "idle"
	StateDirect                 State = "direct"
	StateTranscodeTextSubtitle  State = "transcode_text_subtitle"
	StateTranscodeImageSubtitle State = "transcode_image_subtitle"
	StateStopped                State = "stopped"
)

// IsTerminal reports whether no further transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// Event causes a state transition.
type Event string

const (
	EvStarted      Event = "started"
	EvRenegotiated Event = "renegotiated"
	EvStopped      Event = "stopped"
	EvFailed       Event = "failed"
)

// Transition is a single allowed edge of the strategy state machine.
type Transition struct {
	From  State
	To    State
	Event Event
}

var playing = []State{StateDirect, StateTranscodeTextSubtitle, StateTranscodeImageSubtitle}

var transitionsTable = buildTransitions()

func buildTransitions() []Transition {
	var table []Transition

	// First negotiation
	for _, to := range playing {
		table = append(table, Transition{From: StateIdle, To: to, Event: EvStarted})
	}

	// Re-negotiation may land in any playing state, including the same one
	// (media source or bitrate changes).
	for _, from := range playing {
		for _, to := range playing {
			table = append(table, Transition{From: from, To: to, Event: EvRenegotiated})
		}
	}

	for _, from := range append([]State{StateIdle}, playing...) {
		table = append(table,
			Transition{From: from, To: StateStopped, Event: EvStopped},
			Transition{From: from, To: StateStopped, Event: EvFailed},
		)
	}

	return table
}

// TransitionFor returns the allowed transition from a state to a target state for an event.
func TransitionFor(from, to State, ev Event) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.To == to && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

// ErrIllegalTransition is returned for an edge missing from the table.
type ErrIllegalTransition struct {
	From  State
	To    State
	Event Event
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s on %s", e.From, e.To, e.Event)
}

// StateFor derives the strategy a negotiated stream puts the session in.
func StateFor(stream *media.PlaybackStream) State {
	if stream == nil || !stream.PlayMethod.IsTranscode() {
		return StateDirect
	}
	if stream.BurnedInSubtitle() != media.NoSubtitle {
		return StateTranscodeImageSubtitle
	}
	return StateTranscodeTextSubtitle
}
