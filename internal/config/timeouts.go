package config

import "time"

// TimeoutConfig holds timeout settings for server communication and reporting.
// These can be configured via CLI flags.
type TimeoutConfig struct {
	// HTTPClient is the timeout for requests to the media server. Default: 30s
	HTTPClient time.Duration

	// WebSocketPing is the interval between WebSocket keepalive messages.
	// Default: 30s
	WebSocketPing time.Duration

	// StopReport bounds the synchronous playback-stopped report, which must
	// complete before a session is replaced or the player exits. Default: 10s
	StopReport time.Duration

	// ProgressInterval is the period of position heartbeats. Default: 10s
	ProgressInterval time.Duration
}

// DefaultTimeoutConfig returns the default timeout configuration
func DefaultTimeoutConfig() *TimeoutConfig {
	return &TimeoutConfig{
		HTTPClient:       30 * time.Second,
		WebSocketPing:    30 * time.Second,
		StopReport:       10 * time.Second,
		ProgressInterval: 10 * time.Second,
	}
}

// global instance that can be set at startup
var globalTimeouts = DefaultTimeoutConfig()

// SetGlobalTimeouts sets the global timeout configuration
func SetGlobalTimeouts(cfg *TimeoutConfig) {
	globalTimeouts = cfg
}

// GetTimeouts returns the global timeout configuration
func GetTimeouts() *TimeoutConfig {
	return globalTimeouts
}
