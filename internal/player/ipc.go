package player

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ipcConn speaks mpv's line-delimited JSON IPC protocol: requests carry a
// request_id echoed in the matching response; unsolicited lines are events.
type ipcConn struct {
	logger zerolog.Logger
	conn   net.Conn

	mu        sync.Mutex
	nextID    int64
	pending   map[int64]chan ipcResponse
	observers map[int64]ObserverFunc
	closed    bool

	timeout time.Duration
	done    chan struct{}
}

type ipcRequest struct {
	Command   []interface{} `json:"command"`
	RequestID int64         `json:"request_id"`
}

type ipcResponse struct {
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
	RequestID int64           `json:"request_id"`
}

type ipcEvent struct {
	Event string          `json:"event"`
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Data  json.RawMessage `json:"data"`
}

func newIPCConn(logger zerolog.Logger, conn net.Conn, timeout time.Duration) *ipcConn {
	c := &ipcConn{
		logger:    logger,
		conn:      conn,
		pending:   make(map[int64]chan ipcResponse),
		observers: make(map[int64]ObserverFunc),
		timeout:   timeout,
		done:      make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// command sends one request and waits for its response.
func (c *ipcConn) command(args ...interface{}) (json.RawMessage, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, fmt.Errorf("ipc connection closed")
	}
	c.nextID++
	id := c.nextID
	ch := make(chan ipcResponse, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		return nil, err
	}
	payload = append(payload, '\n')

	if _, err := c.conn.Write(payload); err != nil {
		return nil, fmt.Errorf("ipc write failed: %w", err)
	}

	select {
	case resp := <-ch:
		if resp.Error != "success" {
			if strings.Contains(resp.Error, "unavailable") {
				return nil, fmt.Errorf("%w: %s", ErrPropertyUnavailable, resp.Error)
			}
			return nil, fmt.Errorf("ipc command failed: %s", resp.Error)
		}
		return resp.Data, nil
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("ipc command timed out after %s", c.timeout)
	case <-c.done:
		return nil, fmt.Errorf("ipc connection closed")
	}
}

// observe registers an observer callback and returns the observe id to pass
// to observe_property.
func (c *ipcConn) observe(fn ObserverFunc) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := c.nextID
	c.observers[id] = fn
	return id
}

func (c *ipcConn) readLoop() {
	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()

		var resp ipcResponse
		if err := json.Unmarshal(line, &resp); err == nil && resp.RequestID != 0 && resp.Error != "" {
			c.mu.Lock()
			ch, ok := c.pending[resp.RequestID]
			c.mu.Unlock()
			if ok {
				ch <- resp
			}
			continue
		}

		var ev ipcEvent
		if err := json.Unmarshal(line, &ev); err != nil || ev.Event == "" {
			continue
		}
		if ev.Event == "property-change" {
			c.mu.Lock()
			fn, ok := c.observers[ev.ID]
			c.mu.Unlock()
			if ok && len(ev.Data) > 0 {
				var value interface{}
				if err := json.Unmarshal(ev.Data, &value); err == nil && value != nil {
					fn(value)
				}
			}
		}
	}
	c.close()
}

func (c *ipcConn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.conn.Close()
}
