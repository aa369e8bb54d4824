package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/tracks"
)

func subtitle(index int, text bool, delivery media.DeliveryMethod) media.Stream {
	st := media.Stream{
		Kind:     media.KindSubtitle,
		Index:    index,
		Language: "eng",
		Subtitle: &media.SubtitleInfo{TextBased: text, DeliveryMethod: delivery},
	}
	if delivery == media.DeliveryExternal {
		st.Subtitle.External = true
		st.Subtitle.DeliveryURL = "http://server/Videos/item-1/src-1/Subtitles/3/0/Stream.srt"
	}
	return st
}

// planSource has audio 1 and 2, an external text subtitle 3, an embedded
// text subtitle 5 and an image subtitle 9.
func planSource(sub5, sub9 media.DeliveryMethod) media.Source {
	return media.Source{
		ID: "src-1",
		Streams: []media.Stream{
			{Kind: media.KindVideo, Index: 0},
			{Kind: media.KindAudio, Index: 1, Language: "eng"},
			{Kind: media.KindAudio, Index: 2, Language: "fre"},
			subtitle(3, true, media.DeliveryExternal),
			subtitle(5, true, sub5),
			subtitle(9, false, sub9),
		},
	}
}

func natives(n int) []media.NativeTrack {
	out := make([]media.NativeTrack, n)
	for i := range out {
		out[i] = media.NativeTrack{Index: i}
	}
	return out
}

type planFixture struct {
	state   State
	stream  *media.PlaybackStream
	mapping *tracks.Mapping
}

func directFixture() planFixture {
	stream := &media.PlaybackStream{
		PlaySessionID: "ps-direct",
		PlayMethod:    media.PlayMethodDirectPlay,
		Source:        planSource(media.DeliveryEmbed, media.DeliveryEmbed),
		SubtitleIndex: media.NoSubtitle,
	}
	return planFixture{StateFor(stream), stream, tracks.Build(stream, natives(2), natives(2))}
}

func transcodeTextFixture() planFixture {
	stream := &media.PlaybackStream{
		PlaySessionID: "ps-text",
		PlayMethod:    media.PlayMethodTranscode,
		Source:        planSource(media.DeliveryHLS, media.DeliveryEncode),
		SubtitleIndex: 5,
	}
	return planFixture{StateFor(stream), stream, tracks.Build(stream, natives(1), natives(1))}
}

func transcodeImageFixture() planFixture {
	stream := &media.PlaybackStream{
		PlaySessionID: "ps-image",
		PlayMethod:    media.PlayMethodTranscode,
		Source:        planSource(media.DeliveryHLS, media.DeliveryEncode),
		SubtitleIndex: 9,
	}
	return planFixture{StateFor(stream), stream, tracks.Build(stream, natives(1), natives(1))}
}

func TestStateFor(t *testing.T) {
	assert.Equal(t, StateDirect, directFixture().state)
	assert.Equal(t, StateTranscodeTextSubtitle, transcodeTextFixture().state)
	assert.Equal(t, StateTranscodeImageSubtitle, transcodeImageFixture().state)
	assert.Equal(t, StateDirect, StateFor(nil))
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name    string
		fixture planFixture
		change  Change
		want    Decision
	}{
		{"direct audio", directFixture(), Change{Kind: ChangeAudio, Index: 2}, Decision{Action: ActionInPlace}},
		{"direct subtitles off", directFixture(), Change{Kind: ChangeSubtitle, Index: media.NoSubtitle}, Decision{Action: ActionInPlace}},
		{"direct embedded text", directFixture(), Change{Kind: ChangeSubtitle, Index: 5}, Decision{Action: ActionInPlace}},
		{"direct external text", directFixture(), Change{Kind: ChangeSubtitle, Index: 3}, Decision{Action: ActionLoadExternal}},
		{"direct image", directFixture(), Change{Kind: ChangeSubtitle, Index: 9}, renegotiate(ReasonImageSubtitle)},

		{"text transcode delivered text", transcodeTextFixture(), Change{Kind: ChangeSubtitle, Index: 5}, Decision{Action: ActionInPlace}},
		{"text transcode to image", transcodeTextFixture(), Change{Kind: ChangeSubtitle, Index: 9}, renegotiate(ReasonImageSubtitle)},
		{"text transcode audio not in output", transcodeTextFixture(), Change{Kind: ChangeAudio, Index: 2}, renegotiate(ReasonAudioNotEmbedded)},
		{"text transcode audio in output", transcodeTextFixture(), Change{Kind: ChangeAudio, Index: 1}, Decision{Action: ActionInPlace}},

		{"image transcode same subtitle", transcodeImageFixture(), Change{Kind: ChangeSubtitle, Index: 9}, Decision{Action: ActionNone}},
		{"image transcode to text", transcodeImageFixture(), Change{Kind: ChangeSubtitle, Index: 5}, renegotiate(ReasonLeaveBurnedIn)},
		{"image transcode subtitles off", transcodeImageFixture(), Change{Kind: ChangeSubtitle, Index: media.NoSubtitle}, renegotiate(ReasonLeaveBurnedIn)},

		{"media source", directFixture(), Change{Kind: ChangeMediaSource}, renegotiate(ReasonMediaSource)},
		{"bitrate", transcodeTextFixture(), Change{Kind: ChangeBitrate}, renegotiate(ReasonBitrate)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.fixture
			got, err := Plan(f.state, f.stream, f.mapping, tt.change)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPlanRestrictedTranscodeAudio(t *testing.T) {
	fre := 2
	stream := &media.PlaybackStream{
		PlaySessionID: "ps-fre",
		PlayMethod:    media.PlayMethodTranscode,
		Source:        planSource(media.DeliveryHLS, media.DeliveryEncode),
		AudioIndex:    &fre,
		SubtitleIndex: media.NoSubtitle,
	}
	mapping := tracks.Build(stream, natives(1), natives(1))

	got, err := Plan(StateFor(stream), stream, mapping, Change{Kind: ChangeAudio, Index: 1})
	require.NoError(t, err)
	assert.Equal(t, renegotiate(ReasonAudioNotEmbedded), got)

	got, err = Plan(StateFor(stream), stream, mapping, Change{Kind: ChangeAudio, Index: 2})
	require.NoError(t, err)
	assert.Equal(t, Decision{Action: ActionInPlace}, got)
}

func TestPlanAttachedExternalIsInPlace(t *testing.T) {
	f := directFixture()
	require.NoError(t, f.mapping.Attach(3, 2))

	got, err := Plan(f.state, f.stream, f.mapping, Change{Kind: ChangeSubtitle, Index: 3})
	require.NoError(t, err)
	assert.Equal(t, ActionInPlace, got.Action)
}

func TestPlanStaleMapping(t *testing.T) {
	f := directFixture()
	other := transcodeTextFixture()

	got, err := Plan(f.state, f.stream, other.mapping, Change{Kind: ChangeAudio, Index: 1})
	require.NoError(t, err)
	assert.Equal(t, renegotiate(ReasonStaleMapping), got)
}

func TestPlanUnknownStream(t *testing.T) {
	f := directFixture()

	_, err := Plan(f.state, f.stream, f.mapping, Change{Kind: ChangeAudio, Index: 7})
	assert.ErrorIs(t, err, ErrUnknownStream)

	_, err = Plan(f.state, f.stream, f.mapping, Change{Kind: ChangeSubtitle, Index: 4})
	assert.ErrorIs(t, err, ErrUnknownStream)
}

func TestTransitionsTable(t *testing.T) {
	allowed := []struct {
		from, to State
		ev       Event
	}{
		{StateIdle, StateDirect, EvStarted},
		{StateIdle, StateTranscodeImageSubtitle, EvStarted},
		{StateDirect, StateTranscodeImageSubtitle, EvRenegotiated},
		{StateTranscodeTextSubtitle, StateTranscodeTextSubtitle, EvRenegotiated},
		{StateTranscodeImageSubtitle, StateDirect, EvRenegotiated},
		{StateDirect, StateStopped, EvStopped},
		{StateIdle, StateStopped, EvFailed},
	}
	for _, tr := range allowed {
		_, ok := TransitionFor(tr.from, tr.to, tr.ev)
		assert.True(t, ok, "%s -> %s on %s", tr.from, tr.to, tr.ev)
	}

	forbidden := []struct {
		from, to State
		ev       Event
	}{
		{StateIdle, StateDirect, EvRenegotiated},
		{StateDirect, StateDirect, EvStarted},
		{StateStopped, StateDirect, EvRenegotiated},
		{StateStopped, StateStopped, EvStopped},
		{StateDirect, StateIdle, EvStopped},
	}
	for _, tr := range forbidden {
		_, ok := TransitionFor(tr.from, tr.to, tr.ev)
		assert.False(t, ok, "%s -> %s on %s", tr.from, tr.to, tr.ev)
	}
}
