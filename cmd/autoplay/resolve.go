package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saltyorg/autoplay/internal/deviceprofile"
	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/negotiation"
	"github.com/saltyorg/autoplay/internal/reporter"
)

type resolvedStream struct {
	Index int    `json:"index"`
	Label string `json:"label"`
}

type resolveOutput struct {
	ItemID        string          `json:"item_id"`
	MediaSourceID string          `json:"media_source_id"`
	Video         string          `json:"video,omitempty"`
	MaxBitrate    *int64          `json:"max_bitrate,omitempty"`
	Audio         *resolvedStream `json:"audio,omitempty"`
	Subtitle      *resolvedStream `json:"subtitle,omitempty"`

	// Set with --negotiate
	PlayMethod    media.PlayMethod `json:"play_method,omitempty"`
	PlaySessionID string           `json:"play_session_id,omitempty"`
	URL           string           `json:"url,omitempty"`
}

func newResolveCommand() *cobra.Command {
	var (
		profileName string
		negotiate   bool
		opts        playOptions
	)

	cmd := &cobra.Command{
		Use:   "resolve ITEM_ID",
		Short: "Show the tracks and stream that would be played",
		Long: `Resolve applies the playback preferences and remembered selections to an
item and prints the result as JSON. With --negotiate it also asks the server
for a stream and releases the play session right away.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			opts.profile = profileName
			pb := &playback{
				app:   a,
				opts:  opts,
				flags: resolverFlags{audio: cmd.Flags().Changed("audio"), subtitle: cmd.Flags().Changed("subtitle")},
			}
			if !opts.offline {
				if pb.server, err = a.server(); err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			item, err := pb.loadItem(ctx, args[0])
			if err != nil {
				return err
			}
			sel := pb.selection(item)
			out := describeSelection(item, sel)

			if negotiate && pb.server != nil {
				registry, err := a.profiles()
				if err != nil {
					return err
				}
				profile, err := registry.Get(profileName)
				if err != nil {
					return err
				}

				stream, err := negotiation.New(pb.server).Negotiate(ctx, negotiation.NewRequest(item, sel, profile, userID, pb.startPosition(item)))
				if err != nil {
					return err
				}
				out.PlayMethod = stream.PlayMethod
				out.PlaySessionID = stream.PlaySessionID
				out.URL = stream.URL

				rep := reporter.New(pb.server)
				rep.Bind(stream)
				if err := rep.Stopped(ctx, reporter.State{Position: stream.StartTicks, AudioIndex: sel.AudioIndex, SubtitleIndex: sel.SubtitleIndex}); err != nil {
					return fmt.Errorf("failed to release play session: %w", err)
				}
				rep.Close()
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&profileName, "profile", "p", deviceprofile.Native, "Device profile name")
	f.BoolVar(&negotiate, "negotiate", false, "Negotiate with the server and print the stream URL")
	f.BoolVar(&opts.offline, "offline", false, "Resolve against the registered offline copy")
	f.IntVar(&opts.audio, "audio", 0, "Audio stream index")
	f.IntVar(&opts.subtitle, "subtitle", media.NoSubtitle, "Subtitle stream index (-1 = off)")
	f.StringVar(&opts.source, "source", "", "Media source id")
	f.Int64Var(&opts.maxBitrate, "max-bitrate", 0, "Maximum streaming bitrate in bits/s")
	f.BoolVar(&opts.fromStart, "from-beginning", false, "Ignore the saved resume position")

	return cmd
}

func describeSelection(item media.Item, sel media.PlaySelection) resolveOutput {
	out := resolveOutput{
		ItemID:        item.ID,
		MediaSourceID: sel.MediaSourceID,
		MaxBitrate:    sel.MaxBitrate,
	}

	src, ok := item.Source(sel.MediaSourceID)
	if !ok {
		if len(item.Sources) == 0 {
			return out
		}
		src = &item.Sources[0]
	}
	out.Video = src.VideoFormat()
	if sel.AudioIndex != nil {
		if st, ok := src.Stream(media.KindAudio, *sel.AudioIndex); ok {
			out.Audio = &resolvedStream{Index: st.Index, Label: st.Label()}
		}
	}
	if sel.HasSubtitle() {
		if st, ok := src.Stream(media.KindSubtitle, sel.SubtitleIndex); ok {
			out.Subtitle = &resolvedStream{Index: st.Index, Label: st.Label()}
		}
	}
	return out
}
