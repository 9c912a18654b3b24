package voice

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Call is one live voice session against the gateway.
type Call struct {
	id   string
	conn *websocket.Conn

	events chan Event
	done   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// ID returns the gateway-assigned call identifier.
func (c *Call) ID() string {
	if c == nil {
		return ""
	}
	return c.id
}

// Events yields decoded gateway events. The channel closes when the
// connection ends.
func (c *Call) Events() <-chan Event {
	if c == nil {
		return nil
	}
	return c.events
}

// Stop requests a graceful stop. The gateway answers with a call-end
// frame and closes the connection.
func (c *Call) Stop() error {
	if c == nil {
		return nil
	}
	return c.sendJSON(clientControl{Type: "control", Op: "stop"})
}

// Close tears the connection down without waiting for the gateway.
func (c *Call) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

// Err returns the terminal session error, if any. It blocks until the
// read loop has finished.
func (c *Call) Err() error {
	if c == nil {
		return nil
	}
	<-c.done
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Call) setErr(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Call) sendJSON(v any) error {
	if c.closed.Load() {
		return fmt.Errorf("call is closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *Call) readLoop() {
	defer close(c.done)
	defer close(c.events)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			// a locally closed connection is not a session failure
			if c.closed.Load() {
				return
			}
			c.setErr(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		event, err := decodeFrame(data)
		if err != nil {
			c.setErr(err)
			return
		}
		if event == nil {
			continue
		}
		c.emit(event)
		if errEvent, ok := event.(ErrorEvent); ok {
			c.setErr(errors.New(errEvent.Message))
		}
	}
}

func (c *Call) emit(event Event) {
	select {
	case c.events <- event:
	default:
		// Avoid deadlocking the read loop if the consumer stops draining.
	}
}
