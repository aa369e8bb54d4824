package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/saltyorg/autoplay/internal/config"
	"github.com/saltyorg/autoplay/internal/deviceprofile"
	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/mediabrowser"
	"github.com/saltyorg/autoplay/internal/metrics"
	"github.com/saltyorg/autoplay/internal/negotiation"
	"github.com/saltyorg/autoplay/internal/offline"
	"github.com/saltyorg/autoplay/internal/player"
	"github.com/saltyorg/autoplay/internal/player/mpv"
	"github.com/saltyorg/autoplay/internal/preferences"
	"github.com/saltyorg/autoplay/internal/reporter"
	"github.com/saltyorg/autoplay/internal/resolver"
	"github.com/saltyorg/autoplay/internal/session"
)

type playOptions struct {
	profile     string
	start       time.Duration
	fromStart   bool
	audio       int
	subtitle    int
	source      string
	maxBitrate  int64
	offline     bool
	mpvPath     string
	mpvSocket   string
	mpvArgs     []string
	metricsAddr string
}

func newPlayCommand() *cobra.Command {
	var opts playOptions

	cmd := &cobra.Command{
		Use:   "play ITEM_ID...",
		Short: "Play items in order",
		Long: `Play negotiates each item with the server, plays it in mpv and reports
progress until mpv exits or the server sends Stop. Episodes of the same
series carry the audio and subtitle choice over.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(cmd, args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.profile, "profile", "p", deviceprofile.Native, "Device profile name")
	f.DurationVar(&opts.start, "start", 0, "Start position (default: resume where the server says)")
	f.BoolVar(&opts.fromStart, "from-beginning", false, "Ignore the saved resume position")
	f.IntVar(&opts.audio, "audio", 0, "Audio stream index")
	f.IntVar(&opts.subtitle, "subtitle", media.NoSubtitle, "Subtitle stream index (-1 = off)")
	f.StringVar(&opts.source, "source", "", "Media source id")
	f.Int64Var(&opts.maxBitrate, "max-bitrate", 0, "Maximum streaming bitrate in bits/s (default: playback.max_bitrate setting)")
	f.BoolVar(&opts.offline, "offline", false, "Play registered offline copies without the server")
	f.StringVar(&opts.mpvPath, "mpv", "mpv", "mpv binary")
	f.StringVar(&opts.mpvSocket, "mpv-socket", "", "Attach to an mpv already listening on this IPC socket")
	f.StringArrayVar(&opts.mpvArgs, "mpv-arg", nil, "Extra argument passed to mpv (repeatable)")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g., 127.0.0.1:9090)")

	return cmd
}

// playback is the wiring shared by every item of one play run.
type playback struct {
	app        *app
	opts       playOptions
	flags      resolverFlags
	registry   *deviceprofile.Registry
	server     *mediabrowser.Client
	negotiator negotiation.Negotiator
	reporter   *reporter.Reporter
	commands   chan mediabrowser.Command
}

type resolverFlags struct {
	audio, subtitle bool
}

func runPlay(cmd *cobra.Command, itemIDs []string, opts playOptions) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	registry, err := a.profiles()
	if err != nil {
		return err
	}
	defer registry.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := registry.Watch(ctx); err != nil {
		log.Warn().Err(err).Msg("Device profile hot reload disabled")
	}

	pb := &playback{
		app:      a,
		opts:     opts,
		flags:    resolverFlags{audio: cmd.Flags().Changed("audio"), subtitle: cmd.Flags().Changed("subtitle")},
		registry: registry,
		commands: make(chan mediabrowser.Command, 16),
	}

	if opts.offline {
		pb.negotiator = offline.NewNegotiator(a.offline)
		pb.reporter = reporter.NewOffline()
	} else {
		if pb.server, err = a.server(); err != nil {
			return err
		}
		if userID == "" {
			return fmt.Errorf("--user is required to play from the server")
		}
		pb.negotiator = negotiation.New(pb.server)
		pb.reporter = reporter.New(pb.server)
	}
	defer pb.reporter.Close()

	janitor := preferences.NewJanitor(a.selections, a.loader)
	if err := janitor.Start(); err != nil {
		log.Warn().Err(err).Msg("Selection janitor disabled")
	}
	defer janitor.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)

	if opts.metricsAddr != "" {
		g.Go(func() error { return serveMetrics(gctx, opts.metricsAddr) })
	}

	if pb.server != nil {
		if err := pb.server.ReportCapabilities(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to register remote control capabilities")
		}
		g.Go(func() error {
			err := pb.server.WatchCommands(gctx, pb.forward)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		defer cancel()
		for _, id := range itemIDs {
			stopped, err := pb.playItem(gctx, id)
			if err != nil {
				return err
			}
			if stopped || gctx.Err() != nil {
				return nil
			}
		}
		return nil
	})

	return g.Wait()
}

// forward hands a remote command to the event loop without blocking the websocket reader.
func (pb *playback) forward(c mediabrowser.Command) {
	select {
	case pb.commands <- c:
	default:
		log.Warn().Str("command", string(c.Name)).Msg("Dropping remote command; event loop is busy")
	}
}

func (pb *playback) loadItem(ctx context.Context, id string) (media.Item, error) {
	if pb.opts.offline {
		return pb.app.offline.Item(id)
	}
	item, err := pb.server.GetItem(ctx, userID, id)
	if err != nil {
		return media.Item{}, err
	}
	return *item, nil
}

func (pb *playback) selection(item media.Item) media.PlaySelection {
	prefs := preferences.Load(pb.app.loader)
	if pb.opts.maxBitrate > 0 {
		prefs.MaxBitrate = pb.opts.maxBitrate
	}

	prev, err := pb.app.selections.Previous(userID, item)
	if err != nil {
		log.Warn().Err(err).Str("item", item.ID).Msg("Failed to load remembered selection")
	}

	ro := resolver.Options{MediaSourceID: pb.opts.source}
	if pb.flags.audio {
		ro.AudioIndex = &pb.opts.audio
	}
	if pb.flags.subtitle {
		ro.SubtitleIndex = &pb.opts.subtitle
	}
	return resolver.Resolve(item, prefs, prev, ro)
}

func (pb *playback) startPosition(item media.Item) media.Ticks {
	switch {
	case pb.opts.start > 0:
		return media.TicksFromDuration(pb.opts.start)
	case pb.opts.fromStart:
		return 0
	default:
		return item.PlaybackPositionTicks
	}
}

func (pb *playback) newPlayer() *mpv.Player {
	return mpv.New(mpv.Config{
		Managed:    pb.opts.mpvSocket == "",
		BinaryPath: pb.opts.mpvPath,
		SocketPath: pb.opts.mpvSocket,
		ExtraArgs:  pb.opts.mpvArgs,
	})
}

// playItem plays one item to the end. stopped is true when playback ended
// by request (signal or remote Stop) rather than by the player finishing.
func (pb *playback) playItem(ctx context.Context, id string) (stopped bool, err error) {
	item, err := pb.loadItem(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to load item %s: %w", id, err)
	}

	profile, err := pb.registry.Get(pb.opts.profile)
	if err != nil {
		return false, err
	}

	sel := pb.selection(item)

	p := pb.newPlayer()
	defer func() {
		if err := p.Close(); err != nil {
			log.Debug().Err(err).Msg("Error closing mpv")
		}
	}()

	sess := session.New(session.Config{
		Item:       item,
		Profile:    profile,
		UserID:     userID,
		Negotiator: pb.negotiator,
		Player:     p,
		Reporter:   pb.reporter,
	})

	log.Info().
		Str("item", item.ID).
		Str("name", item.Name).
		Str("profile", profile.Name).
		Str("video", describeSelection(item, sel).Video).
		Bool("offline", pb.opts.offline).
		Msg("Starting playback")

	if err := sess.Start(ctx, sel, pb.startPosition(item)); err != nil {
		return false, err
	}

	stopped = runSession(ctx, sess, p, pb.commands)

	if err := pb.app.selections.Remember(userID, item, sess.Selection()); err != nil {
		log.Warn().Err(err).Str("item", item.ID).Msg("Failed to remember track selection")
	}

	log.Info().
		Str("item", item.ID).
		Str("position", sess.Position().String()).
		Msg("Playback finished")
	return stopped, nil
}

// runSession is the single event loop that owns sess. It returns true when
// playback was stopped by request.
func runSession(ctx context.Context, sess *session.Session, p player.Player, commands <-chan mediabrowser.Command) bool {
	ticker := time.NewTicker(config.GetTimeouts().ProgressInterval)
	defer ticker.Stop()

	// The stopped report must go out even when ctx is already cancelled
	stopCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			if err := sess.Stop(stopCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to stop session")
			}
			return true

		case <-p.Done():
			if err := sess.Stop(stopCtx); err != nil {
				log.Warn().Err(err).Msg("Failed to stop session")
			}
			return false

		case <-ticker.C:
			sess.Tick(ctx)

		case c := <-commands:
			if err := sess.HandleCommand(ctx, c); err != nil {
				log.Warn().Err(err).Str("command", string(c.Name)).Msg("Remote command failed")
			}
			if sess.State().IsTerminal() {
				return c.Name == mediabrowser.CommandStop
			}
		}
	}
}

func serveMetrics(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server: %w", err)
	}
}
