package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/saltyorg/autoplay/internal/config"
)

const (
	DefaultLogFilePath = "autoplay.log"
	DefaultMaxSizeMB   = 20
	DefaultMaxBackups  = 3
	DefaultMaxAgeDays  = 14
	DefaultCompress    = true

	timeFormat = "2006-01-02 15:04:05"
)

// Console receives human-readable log lines. Logs go to stderr so that
// command output on stdout stays machine-readable.
var Console io.Writer = os.Stderr

// LevelForVerbosity maps the count of -v flags to a level name.
func LevelForVerbosity(v int) string {
	switch {
	case v >= 2:
		return "trace"
	case v == 1:
		return "debug"
	default:
		return "info"
	}
}

// Apply sets the global log level and output writers (console + rotating file).
// With an empty logFilePath only the console is written.
func Apply(level string, loader *config.Loader, logFilePath string) {
	applyLevel(level)
	applyOutputs(loader, logFilePath)
}

func applyLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func applyOutputs(loader *config.Loader, logFilePath string) {
	consoleOutput := zerolog.ConsoleWriter{Out: Console, TimeFormat: timeFormat}
	log.Logger = zerolog.New(consoleOutput).With().Timestamp().Logger()

	if logFilePath == "" {
		return
	}

	if err := ensureLogDir(logFilePath); err != nil {
		log.Error().Err(err).Str("path", logFilePath).Msg("Failed to prepare log directory; logging to console only")
		return
	}

	fileWriter := &lumberjack.Logger{
		Filename:   logFilePath,
		MaxSize:    positive(loader.Int("log.max_size_mb", DefaultMaxSizeMB), DefaultMaxSizeMB),
		MaxBackups: max(loader.Int("log.max_backups", DefaultMaxBackups), 0),
		MaxAge:     max(loader.Int("log.max_age_days", DefaultMaxAgeDays), 0),
		Compress:   loader.Bool("log.compress", DefaultCompress),
	}

	fileConsole := zerolog.ConsoleWriter{
		Out:        fileWriter,
		TimeFormat: timeFormat,
		NoColor:    true,
	}

	multi := zerolog.MultiLevelWriter(consoleOutput, fileConsole)
	log.Logger = zerolog.New(multi).With().Timestamp().Logger()
}

func positive(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// FilePathForDB returns a log file path that lives alongside the database file.
func FilePathForDB(dbPath string) string {
	if dbPath == "" {
		return DefaultLogFilePath
	}
	absDBPath, err := filepath.Abs(dbPath)
	if err != nil {
		return filepath.Join(filepath.Dir(dbPath), DefaultLogFilePath)
	}
	return filepath.Join(filepath.Dir(absDBPath), DefaultLogFilePath)
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
