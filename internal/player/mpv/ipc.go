package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// errDisconnected is returned for calls made after the IPC socket closed.
var errDisconnected = errors.New("mpv ipc connection closed")

type request struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// message is either a command reply (RequestID set) or an event.
type message struct {
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	RequestID int64           `json:"request_id,omitempty"`
	Event     string          `json:"event,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	FileError string          `json:"file_error,omitempty"`
	EntryID   int64           `json:"playlist_entry_id,omitempty"`
}

// conn is one JSON IPC connection. Replies are matched to calls by request id.
type conn struct {
	nc net.Conn

	writeMu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan message

	events    chan message
	closed    chan struct{}
	closeOnce sync.Once
}

func dial(ctx context.Context, path string) (*conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, err
	}

	c := &conn{
		nc:      nc,
		pending: make(map[int64]chan message),
		events:  make(chan message, 32),
		closed:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// dialRetry waits for mpv to create its socket.
func dialRetry(ctx context.Context, path string, exited <-chan struct{}) (*conn, error) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		c, err := dial(ctx, path)
		if err == nil {
			return c, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to mpv ipc socket %s: %w", path, ctx.Err())
		case <-exited:
			return nil, fmt.Errorf("mpv exited before opening %s", path)
		case <-ticker.C:
		}
	}
}

func (c *conn) readLoop() {
	defer c.close()

	scanner := bufio.NewScanner(c.nc)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		var msg message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			log.Debug().Err(err).Str("line", scanner.Text()).Msg("Ignoring malformed mpv ipc line")
			continue
		}

		if msg.Event != "" {
			select {
			case c.events <- msg:
			default:
				log.Trace().Str("event", msg.Event).Msg("Dropping mpv event, buffer full")
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
		if ok {
			ch <- msg
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.nc.Close()
	})
}

// call sends one command and waits for its reply.
func (c *conn) call(ctx context.Context, args ...any) (json.RawMessage, error) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	ch := make(chan message, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	line, err := json.Marshal(request{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("encode mpv command: %w", err)
	}
	line = append(line, '\n')

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.nc.SetWriteDeadline(deadline)
	}
	_, err = c.nc.Write(line)
	_ = c.nc.SetWriteDeadline(time.Time{})
	c.writeMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write mpv command %v: %w", args[0], err)
	}

	select {
	case msg := <-ch:
		if msg.Error != "" && msg.Error != "success" {
			return nil, fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return msg.Data, nil
	case <-c.closed:
		return nil, errDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// drainEvents discards events queued before a new command.
func (c *conn) drainEvents() {
	for {
		select {
		case <-c.events:
		default:
			return
		}
	}
}

// waitEvent blocks until one of the named events arrives.
func (c *conn) waitEvent(ctx context.Context, names ...string) (message, error) {
	for {
		select {
		case msg := <-c.events:
			for _, name := range names {
				if msg.Event == name {
					return msg, nil
				}
			}
		case <-c.closed:
			return message{}, errDisconnected
		case <-ctx.Done():
			return message{}, ctx.Err()
		}
	}
}
