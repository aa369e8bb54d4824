package mediabrowser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/saltyorg/autoplay/internal/config"
	"github.com/saltyorg/autoplay/internal/media"
)

// CommandName is a remote-control command sent by the server.
type CommandName string

const (
	CommandPause                  CommandName = "Pause"
	CommandUnpause                CommandName = "Unpause"
	CommandPlayPause              CommandName = "PlayPause"
	CommandStop                   CommandName = "Stop"
	CommandSeek                   CommandName = "Seek"
	CommandSetAudioStreamIndex    CommandName = "SetAudioStreamIndex"
	CommandSetSubtitleStreamIndex CommandName = "SetSubtitleStreamIndex"
)

// Command is a decoded remote-control message.
type Command struct {
	Name CommandName

	// SeekPositionTicks is set for CommandSeek.
	SeekPositionTicks media.Ticks

	// Index is the server stream index for the Set*StreamIndex commands.
	Index int
}

func supportedCommands() []string {
	return []string{
		string(CommandSetAudioStreamIndex),
		string(CommandSetSubtitleStreamIndex),
	}
}

// parseCommand decodes a websocket message. ok is false for messages that
// are not remote-control commands.
func parseCommand(msg wsResponse) (Command, bool, error) {
	switch msg.MessageType {
	case "Playstate":
		var req playstateRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			return Command{}, false, fmt.Errorf("failed to parse Playstate: %w", err)
		}
		cmd := Command{Name: CommandName(req.Command)}
		switch cmd.Name {
		case CommandPause, CommandUnpause, CommandPlayPause, CommandStop:
		case CommandSeek:
			if req.SeekPositionTicks == nil {
				return Command{}, false, fmt.Errorf("seek without position")
			}
			cmd.SeekPositionTicks = media.Ticks(*req.SeekPositionTicks)
		default:
			return Command{}, false, nil
		}
		return cmd, true, nil

	case "GeneralCommand":
		var gc generalCommand
		if err := json.Unmarshal(msg.Data, &gc); err != nil {
			return Command{}, false, fmt.Errorf("failed to parse GeneralCommand: %w", err)
		}
		name := CommandName(gc.Name)
		if name != CommandSetAudioStreamIndex && name != CommandSetSubtitleStreamIndex {
			return Command{}, false, nil
		}
		index, err := strconv.Atoi(gc.Arguments["Index"])
		if err != nil {
			return Command{}, false, fmt.Errorf("%s: invalid index %q", name, gc.Arguments["Index"])
		}
		return Command{Name: name, Index: index}, true, nil

	default:
		return Command{}, false, nil
	}
}

// WatchCommands keeps a WebSocket connection to the server open and calls
// handler for every remote-control command addressed to this device.
// handler runs on the reading goroutine and must not block.
// The function blocks until the context is cancelled.
func (c *Client) WatchCommands(ctx context.Context, handler func(Command)) error {
	const (
		initialBackoff = 1 * time.Second
		maxBackoff     = 5 * time.Minute
	)

	pingInterval := config.GetTimeouts().WebSocketPing
	backoff := initialBackoff

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := c.watchCommandsOnce(ctx, handler, pingInterval)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			log.Warn().
				Err(err).
				Dur("backoff", backoff).
				Msgf("%s WebSocket disconnected, reconnecting", c.flavor.ServerName)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}

			backoff = min(backoff*2, maxBackoff)
		} else {
			backoff = initialBackoff
		}
	}
}

// watchCommandsOnce establishes a single WebSocket connection and handles messages
func (c *Client) watchCommandsOnce(ctx context.Context, handler func(Command), pingInterval time.Duration) error {
	wsURL, err := c.buildWebSocketURL()
	if err != nil {
		return fmt.Errorf("failed to build WebSocket URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("WebSocket dial failed: %w", err)
	}
	defer conn.Close()

	log.Info().Msgf("Connected to %s WebSocket", c.flavor.ServerName)

	if err := c.ReportCapabilities(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to register remote control capabilities")
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	readErrCh := make(chan error, 1)

	go func() {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				readErrCh <- err
				return
			}

			log.Trace().
				RawJSON("message", message).
				Msg("Received WebSocket message")

			var msg wsResponse
			if err := json.Unmarshal(message, &msg); err != nil {
				log.Debug().Err(err).Msg("Failed to parse WebSocket message")
				continue
			}

			cmd, ok, err := parseCommand(msg)
			if err != nil {
				log.Warn().Err(err).Str("type", msg.MessageType).Msg("Ignoring malformed remote command")
				continue
			}
			if !ok {
				continue
			}

			log.Debug().
				Str("command", string(cmd.Name)).
				Int("index", cmd.Index).
				Stringer("position", cmd.SeekPositionTicks).
				Msg("Received remote command")
			handler(cmd)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		case err := <-readErrCh:
			return err
		case <-pingTicker.C:
			keepAlive := wsMessage{MessageType: "KeepAlive"}
			if err := conn.WriteJSON(keepAlive); err != nil {
				return fmt.Errorf("keep-alive failed: %w", err)
			}
		}
	}
}

// buildWebSocketURL constructs the WebSocket URL for the media server
func (c *Client) buildWebSocketURL() (string, error) {
	parsed, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}

	switch parsed.Scheme {
	case "https":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/") + c.flavor.WebSocketPath
	parsed.RawQuery = c.flavor.WebSocketQueryParams(c.apiKey, c.identity).Encode()

	return parsed.String(), nil
}
