package moonraker

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Listener is a websocket connection to Moonraker. It serves two purposes
// the blocking HTTP API cannot: checking Klipper readiness up front, and
// surfacing async G-code responses (Klipper prefixes errors with "!!")
// while a long script request is still being held open.
type Listener struct {
	conn      *websocket.Conn
	responses chan string

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan json.RawMessage
	nextID  int64
	closed  bool
	done    chan struct{}
}

// DialListener connects to the Moonraker websocket for the given HTTP base
// URL.
func DialListener(baseURL string) (*Listener, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "invalid server url %s", baseURL)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, pkgerrors.Errorf("unsupported scheme %s", u.Scheme)
	}
	u.Path = "/websocket"

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
	}

	l := &Listener{
		conn:      conn,
		responses: make(chan string, 64),
		pending:   map[int64]chan json.RawMessage{},
		done:      make(chan struct{}),
	}
	go l.readLoop()

	return l, nil
}

// Responses streams notify_gcode_response lines. Lines are dropped when the
// buffer is full so a slow consumer cannot stall the read loop. The channel
// is closed when the connection terminates.
func (l *Listener) Responses() <-chan string {
	return l.responses
}

// Close terminates the connection and wakes up any pending calls.
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	return l.conn.Close()
}

// KlippyReady checks that Klipper is in the ready state.
func (l *Listener) KlippyReady(timeout time.Duration) error {
	raw, err := l.call("server.info", timeout)
	if err != nil {
		return pkgerrors.Wrap(err, "server.info failed")
	}

	var info ServerInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return pkgerrors.Wrap(err, "failed to unmarshal server.info result")
	}

	if !info.KlippyConnected || info.KlippyState != "ready" {
		return fmt.Errorf("%w: state %q", ErrKlippyNotReady, info.KlippyState)
	}
	return nil
}

func (l *Listener) call(method string, timeout time.Duration) (json.RawMessage, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, pkgerrors.New("listener closed")
	}
	l.nextID++
	id := l.nextID
	ch := make(chan json.RawMessage, 1)
	l.pending[id] = ch
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.pending, id)
		l.mu.Unlock()
	}()

	req := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  method,
		"id":      id,
	}
	l.writeMu.Lock()
	err := l.conn.WriteJSON(req)
	l.writeMu.Unlock()
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to send %s", method)
	}

	select {
	case raw := <-ch:
		return raw, nil
	case <-l.done:
		return nil, pkgerrors.New("connection closed")
	case <-time.After(timeout):
		return nil, pkgerrors.Errorf("%s timed out after %s", method, timeout)
	}
}

func (l *Listener) readLoop() {
	defer close(l.done)
	defer close(l.responses)

	for {
		var msg struct {
			ID     int64             `json:"id"`
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
			Result json.RawMessage   `json:"result"`
		}
		if err := l.conn.ReadJSON(&msg); err != nil {
			l.mu.Lock()
			closed := l.closed
			l.mu.Unlock()
			if !closed {
				logrus.WithError(err).Debug("websocket read loop terminated")
			}
			return
		}

		if msg.Method == "notify_gcode_response" && len(msg.Params) > 0 {
			var line string
			if err := json.Unmarshal(msg.Params[0], &line); err != nil {
				continue
			}
			select {
			case l.responses <- line:
			default:
			}
			continue
		}

		if msg.ID != 0 && msg.Result != nil {
			l.mu.Lock()
			ch, ok := l.pending[msg.ID]
			l.mu.Unlock()
			if ok {
				ch <- msg.Result
			}
		}
	}
}
