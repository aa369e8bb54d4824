package mediabrowser

import (
	"github.com/saltyorg/autoplay/internal/media"
)

// ToItem converts the wire item into the engine's read-only model.
func (d *BaseItemDto) ToItem() media.Item {
	item := media.Item{
		ID:                d.ID,
		Name:              d.Name,
		Type:              d.Type,
		SeriesID:          d.SeriesID,
		SeriesName:        d.SeriesName,
		SeasonID:          d.SeasonID,
		ParentIndexNumber: d.ParentIndexNumber,
		IndexNumber:       d.IndexNumber,
	}
	if d.RunTimeTicks != nil {
		item.RunTimeTicks = media.Ticks(*d.RunTimeTicks)
	}
	if d.UserData != nil {
		item.PlaybackPositionTicks = media.Ticks(d.UserData.PlaybackPositionTicks)
	}
	for i := range d.MediaSources {
		item.Sources = append(item.Sources, d.MediaSources[i].ToSource())
	}
	return item
}

// ToSource converts a media source. Unknown stream types are dropped.
func (s *MediaSourceInfo) ToSource() media.Source {
	src := media.Source{
		ID:                   s.ID,
		Name:                 s.Name,
		Container:            s.Container,
		Path:                 s.Path,
		Bitrate:              s.Bitrate,
		TranscodingURL:       s.TranscodingURL,
		SupportsDirectPlay:   s.SupportsDirectPlay,
		SupportsDirectStream: s.SupportsDirectStream,
		SupportsTranscoding:  s.SupportsTranscoding,
		DefaultAudioIndex:    s.DefaultAudioStreamIndex,
		DefaultSubtitleIndex: s.DefaultSubtitleStreamIndex,
	}
	for _, ms := range s.MediaStreams {
		if st, ok := ms.toStream(); ok {
			src.Streams = append(src.Streams, st)
		}
	}
	return src
}

func (ms MediaStream) toStream() (media.Stream, bool) {
	st := media.Stream{
		Index:             ms.Index,
		Title:             ms.Title,
		DisplayTitle:      ms.DisplayTitle,
		Language:          ms.Language,
		Codec:             ms.Codec,
		IsDefault:         ms.IsDefault,
		IsForced:          ms.IsForced,
		IsHearingImpaired: ms.IsHearingImpaired,
		Channels:          ms.Channels,
		ChannelLayout:     ms.ChannelLayout,
		Height:            ms.Height,
	}

	switch ms.Type {
	case "Video":
		st.Kind = media.KindVideo
	case "Audio":
		st.Kind = media.KindAudio
	case "Subtitle":
		st.Kind = media.KindSubtitle
		st.Subtitle = &media.SubtitleInfo{
			TextBased:      ms.IsTextSubtitleStream,
			External:       ms.IsExternal,
			DeliveryMethod: media.DeliveryMethod(ms.DeliveryMethod),
			DeliveryURL:    ms.DeliveryURL,
		}
	default:
		return media.Stream{}, false
	}
	return st, true
}
