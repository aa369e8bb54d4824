package tracks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltyorg/autoplay/internal/media"
)

func audio(index int, lang string) media.Stream {
	return media.Stream{Kind: media.KindAudio, Index: index, Language: lang}
}

func textSub(index int, lang string, delivery media.DeliveryMethod) media.Stream {
	return media.Stream{
		Kind:     media.KindSubtitle,
		Index:    index,
		Language: lang,
		Codec:    "srt",
		Subtitle: &media.SubtitleInfo{TextBased: true, DeliveryMethod: delivery},
	}
}

func imageSub(index int, lang string, delivery media.DeliveryMethod) media.Stream {
	return media.Stream{
		Kind:     media.KindSubtitle,
		Index:    index,
		Language: lang,
		Codec:    "pgssub",
		Subtitle: &media.SubtitleInfo{DeliveryMethod: delivery},
	}
}

func externalSub(index int, lang string) media.Stream {
	return media.Stream{
		Kind:     media.KindSubtitle,
		Index:    index,
		Language: lang,
		Codec:    "srt",
		Subtitle: &media.SubtitleInfo{
			TextBased:      true,
			External:       true,
			DeliveryMethod: media.DeliveryExternal,
			DeliveryURL:    "http://server/Videos/1/src/Subtitles/" + lang + ".srt",
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

func directStream(streams ...media.Stream) *media.PlaybackStream {
	return &media.PlaybackStream{
		ItemID:        "item",
		PlaySessionID: "ps-direct",
		PlayMethod:    media.PlayMethodDirectPlay,
		SubtitleIndex: media.NoSubtitle,
		Source:        media.Source{ID: "src", Streams: streams},
	}
}

func transcodeStream(subtitle int, streams ...media.Stream) *media.PlaybackStream {
	return &media.PlaybackStream{
		ItemID:        "item",
		PlaySessionID: "ps-transcode",
		PlayMethod:    media.PlayMethodTranscode,
		SubtitleIndex: subtitle,
		Source:        media.Source{ID: "src", Streams: streams},
	}
}

func TestBuildDirectSortsByServerIndex(t *testing.T) {
	stream := directStream(
		audio(2, "fre"),
		audio(1, "eng"),
		textSub(9, "eng", ""),
		externalSub(7, "spa"),
		textSub(5, "eng", ""),
	)

	m := Build(stream, natives(2), natives(2))

	tests := []struct {
		name   string
		kind   media.StreamKind
		server int
		native int
	}{
		{"lowest audio first", media.KindAudio, 1, 0},
		{"second audio", media.KindAudio, 2, 1},
		{"lowest embedded subtitle", media.KindSubtitle, 5, 0},
		{"external skipped in ordering", media.KindSubtitle, 9, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.ResolveNativeIndex(tt.kind, tt.server)
			require.NoError(t, err)
			assert.Equal(t, tt.native, got)
		})
	}

	_, err := m.ResolveNativeIndex(media.KindSubtitle, 7)
	assert.ErrorIs(t, err, ErrTrackNotEmbedded)

	ext, ok := m.External(7)
	require.True(t, ok)
	assert.Equal(t, "spa", ext.Language)
}

func TestBuildTranscodeEmbedsOnlyDeliveredText(t *testing.T) {
	stream := transcodeStream(9,
		audio(1, "eng"),
		audio(2, "fre"),
		textSub(6, "fre", media.DeliveryHLS),
		textSub(5, "eng", media.DeliveryHLS),
		imageSub(9, "eng", media.DeliveryEncode),
		textSub(11, "ger", media.DeliveryEncode),
	)

	m := Build(stream, natives(2), natives(2))

	// server listing order, not index order
	got, err := m.ResolveNativeIndex(media.KindSubtitle, 6)
	require.NoError(t, err)
	assert.Equal(t, 0, got)

	got, err = m.ResolveNativeIndex(media.KindSubtitle, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	_, err = m.ResolveNativeIndex(media.KindSubtitle, 9)
	assert.ErrorIs(t, err, ErrTrackNotEmbedded)
	_, err = m.ResolveNativeIndex(media.KindSubtitle, 11)
	assert.ErrorIs(t, err, ErrTrackNotEmbedded)

	assert.Equal(t, 9, m.BurnedIn())
}

func TestBuildTranscodeWithoutDeliveryMethod(t *testing.T) {
	stream := transcodeStream(media.NoSubtitle,
		audio(1, "eng"),
		textSub(3, "eng", ""),
		externalSub(4, "eng"),
		imageSub(5, "eng", ""),
	)

	m := Build(stream, natives(1), natives(1))

	got, err := m.ResolveNativeIndex(media.KindSubtitle, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
	assert.Equal(t, 1, m.Table(media.KindSubtitle).Len())
	assert.Equal(t, media.NoSubtitle, m.BurnedIn())
}

func TestRoundTripAndIdempotence(t *testing.T) {
	streams := []*media.PlaybackStream{
		directStream(audio(1, "eng"), audio(2, "fre"), textSub(5, "eng", ""), textSub(8, "fre", "")),
		transcodeStream(media.NoSubtitle, audio(3, "eng"), audio(1, "fre"), textSub(8, "fre", media.DeliveryHLS)),
	}

	for _, stream := range streams {
		t.Run(string(stream.PlayMethod), func(t *testing.T) {
			m := Build(stream, natives(2), natives(2))
			for _, kind := range []media.StreamKind{media.KindAudio, media.KindSubtitle} {
				for _, server := range m.Table(kind).ServerIndices() {
					first, err := m.ResolveNativeIndex(kind, server)
					require.NoError(t, err)
					second, err := m.ResolveNativeIndex(kind, server)
					require.NoError(t, err)
					assert.Equal(t, first, second)

					back, err := m.ResolveServerIndex(kind, first)
					require.NoError(t, err)
					assert.Equal(t, server, back)
				}
			}
		})
	}
}

func TestNoneNeverMapped(t *testing.T) {
	stream := directStream(audio(1, "eng"), textSub(5, "eng", ""))
	stream.Source.Streams = append(stream.Source.Streams, media.Stream{
		Kind:     media.KindSubtitle,
		Index:    media.NoSubtitle,
		Subtitle: &media.SubtitleInfo{TextBased: true},
	})

	m := Build(stream, natives(1), natives(2))

	assert.NotContains(t, m.Table(media.KindSubtitle).ServerIndices(), media.NoSubtitle)
	_, err := m.ResolveNativeIndex(media.KindSubtitle, media.NoSubtitle)
	assert.ErrorIs(t, err, ErrTrackNotEmbedded)
}

func TestFewerNativeTracksThanStreams(t *testing.T) {
	stream := directStream(audio(1, "eng"), audio(2, "fre"), audio(3, "ger"))

	m := Build(stream, natives(2), nil)

	assert.Equal(t, 2, m.Table(media.KindAudio).Len())
	_, err := m.ResolveNativeIndex(media.KindAudio, 3)
	assert.ErrorIs(t, err, ErrTrackNotEmbedded)
	_, err = m.ResolveServerIndex(media.KindAudio, 5)
	assert.ErrorIs(t, err, ErrTrackNotEmbedded)
}

func TestTranscodeWithSingleAudioBindsRequestedStream(t *testing.T) {
	stream := transcodeStream(media.NoSubtitle, audio(1, "eng"), audio(2, "fre"))
	fre := 2
	stream.AudioIndex = &fre

	m := Build(stream, natives(1), nil)

	got, err := m.ResolveNativeIndex(media.KindAudio, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
	back, err := m.ResolveServerIndex(media.KindAudio, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, back)

	_, err = m.ResolveNativeIndex(media.KindAudio, 1)
	assert.ErrorIs(t, err, ErrTrackNotEmbedded)
	assert.Equal(t, 1, m.Table(media.KindAudio).Len())
}

func TestTranscodeRestrictedAudioFallsBackToDefault(t *testing.T) {
	stream := transcodeStream(media.NoSubtitle, audio(1, "eng"), audio(2, "fre"), audio(3, "ger"))
	def := 3
	stream.Source.DefaultAudioIndex = &def

	m := Build(stream, natives(2), nil)

	got, err := m.ResolveNativeIndex(media.KindAudio, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
	for _, idx := range []int{1, 2} {
		_, err := m.ResolveNativeIndex(media.KindAudio, idx)
		assert.ErrorIs(t, err, ErrTrackNotEmbedded, "audio %d", idx)
	}
}

func TestAttachExternal(t *testing.T) {
	stream := directStream(audio(1, "eng"), textSub(2, "eng", ""), externalSub(3, "spa"))
	m := Build(stream, natives(1), natives(1))

	require.Error(t, m.Attach(2, 4), "embedded subtitles cannot be attached")

	require.NoError(t, m.Attach(3, 1))
	got, err := m.ResolveNativeIndex(media.KindSubtitle, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, got)

	// loading it again moves the association
	require.NoError(t, m.Attach(3, 2))
	_, err = m.ResolveServerIndex(media.KindSubtitle, 1)
	assert.ErrorIs(t, err, ErrTrackNotEmbedded)
	back, err := m.ResolveServerIndex(media.KindSubtitle, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, back)
}

func TestBuildKeepsLoadedExternalByName(t *testing.T) {
	ext := externalSub(3, "spa")
	ext.DisplayTitle = "Spanish (SRT)"
	stream := directStream(audio(1, "eng"), textSub(2, "eng", ""), ext)

	subs := []media.NativeTrack{{Index: 0}, {Index: 1, Name: "Spanish (SRT)", External: true}}
	m := Build(stream, natives(1), subs)

	got, err := m.ResolveNativeIndex(media.KindSubtitle, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
	got, err = m.ResolveNativeIndex(media.KindSubtitle, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestCheckRejectsOtherSession(t *testing.T) {
	first := directStream(audio(1, "eng"))
	m := Build(first, natives(1), nil)
	require.NoError(t, m.Check(first))

	second := *first
	second.PlaySessionID = "ps-other"
	assert.ErrorIs(t, m.Check(&second), ErrStaleMapping)

	var nilMapping *Mapping
	assert.ErrorIs(t, nilMapping.Check(first), ErrStaleMapping)
}

func TestUniqueStreams(t *testing.T) {
	dup := textSub(5, "eng", "")
	dupAgain := textSub(6, "ENG", "")
	forced := textSub(7, "eng", "")
	forced.IsForced = true
	sdh := textSub(8, "eng", "")
	sdh.IsHearingImpaired = true
	img := imageSub(9, "eng", "")

	got := UniqueStreams([]media.Stream{dup, dupAgain, forced, sdh, img, externalSub(10, "eng")})

	var indices []int
	for _, st := range got {
		indices = append(indices, st.Index)
	}
	assert.Equal(t, []int{5, 7, 8, 9, 10}, indices)
}
