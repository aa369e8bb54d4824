package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/saltyorg/autoplay/internal/config"
	"github.com/saltyorg/autoplay/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags shared by every command
var (
	dbPath       string
	verbosity    int
	serverURL    string
	apiKey       string
	serverType   string
	userID       string
	deviceID     string
	profilesPath string

	// Timeout flags (advanced)
	httpTimeout      time.Duration
	websocketPing    time.Duration
	stopTimeout      time.Duration
	progressInterval time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "autoplay",
		Short:         "Autoplay - Emby/Jellyfin playback client",
		Long:          `Autoplay negotiates playback with an Emby or Jellyfin server, drives mpv, and keeps the server informed of progress.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			applyEnvDefaults()
			logging.Apply(logging.LevelForVerbosity(verbosity), nil, "")

			// Configure global timeouts
			config.SetGlobalTimeouts(&config.TimeoutConfig{
				HTTPClient:       httpTimeout,
				WebSocketPing:    websocketPing,
				StopReport:       stopTimeout,
				ProgressInterval: progressInterval,
			})
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&dbPath, "db", "d", "./autoplay.db", "SQLite database path (or set DB_PATH env var)")
	flags.CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")
	flags.StringVarP(&serverURL, "server", "s", "", "Server URL (or set AUTOPLAY_SERVER env var)")
	flags.StringVar(&apiKey, "api-key", "", "Server API key or access token (or set AUTOPLAY_API_KEY env var)")
	flags.StringVar(&serverType, "server-type", "emby", "Server type: emby or jellyfin")
	flags.StringVarP(&userID, "user", "u", "", "Server user id (or set AUTOPLAY_USER env var)")
	flags.StringVar(&deviceID, "device-id", "", "Device id reported to the server (default: generated once and stored)")
	flags.StringVar(&profilesPath, "profiles", "", "Device profile override file (YAML)")

	// Advanced timeout flags
	defaults := config.DefaultTimeoutConfig()
	flags.DurationVar(&httpTimeout, "http-timeout", defaults.HTTPClient, "Timeout for requests to the server")
	flags.DurationVar(&websocketPing, "websocket-ping", defaults.WebSocketPing, "Interval between WebSocket keepalive pings")
	flags.DurationVar(&stopTimeout, "stop-timeout", defaults.StopReport, "Timeout for the playback stopped report")
	flags.DurationVar(&progressInterval, "progress-interval", defaults.ProgressInterval, "Interval between progress heartbeats")

	rootCmd.AddCommand(
		newPlayCommand(),
		newResolveCommand(),
		newOfflineCommand(),
		newProfilesCommand(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("autoplay %s (commit: %s, built: %s)\n", version, commit, date)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}

func applyEnvDefaults() {
	// Check for DB_PATH env var if using default
	if dbPath == "./autoplay.db" {
		if envDB := os.Getenv("DB_PATH"); envDB != "" {
			dbPath = envDB
		}
	}
	if serverURL == "" {
		serverURL = os.Getenv("AUTOPLAY_SERVER")
	}
	if apiKey == "" {
		apiKey = os.Getenv("AUTOPLAY_API_KEY")
	}
	if userID == "" {
		userID = os.Getenv("AUTOPLAY_USER")
	}
}
