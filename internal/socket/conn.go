// Package socket is the client-side connection primitive the actors run
// on: one websocket, one serialized dispatch loop. Frames, timer firings,
// and lifecycle notifications for a connection are delivered one at a
// time, in order, so actor handlers never race against each other — the
// same guarantee the rest of the system is designed around.
package socket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// ARCHITECTURAL DISCOVERY: WebSocket writes must be serialized through a
// single writer goroutine to prevent race conditions; reads feed a single
// dispatch goroutine so handlers for one connection never run concurrently.
const (
	writeBuffer    = 64
	dispatchBuffer = 256
	writeDeadline  = 5 * time.Second
	sendTimeout    = 5 * time.Second
)

// Callbacks receives a connection's lifecycle and frames. All callbacks
// run on the connection's dispatch goroutine, one at a time; a callback
// that sleeps suspends only this connection.
type Callbacks struct {
	OnOpen  func()          // transport established, before any frame
	OnFrame func(raw string) // one text frame as received
	OnError func(err error)  // transport-level error, may fire repeatedly
	OnClose func()           // fires exactly once, after the last frame
}

type eventKind int

const (
	evOpen eventKind = iota
	evFrame
	evTimer
	evError
	evClose
)

type event struct {
	kind eventKind
	raw  string
	fn   func()
	err  error
}

// Conn wraps one websocket connection with a single-writer outbound
// channel, a serialized dispatch loop, and timer registration that is
// cancelled when the connection closes.
type Conn struct {
	ws      *websocket.Conn
	writeCh chan string
	events  chan event

	mu        sync.Mutex
	closed    bool
	timers    map[int]*time.Timer
	nextTimer int

	closeOnce    sync.Once
	stopWrite    chan struct{}
	dispatchDone chan struct{}

	cb  Callbacks
	log *logrus.Entry
}

// Dial connects to the given websocket URL and starts the connection's
// goroutines. The open notification is dispatched before any frame.
func Dial(ctx context.Context, url string, header http.Header, cb Callbacks, log *logrus.Entry) (*Conn, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}

	c := &Conn{
		ws:           ws,
		writeCh:      make(chan string, writeBuffer),
		events:       make(chan event, dispatchBuffer),
		timers:       make(map[int]*time.Timer),
		stopWrite:    make(chan struct{}),
		dispatchDone: make(chan struct{}),
		cb:           cb,
		log:          log,
	}

	c.enqueue(event{kind: evOpen})

	go c.writeLoop()
	go c.dispatchLoop()
	go c.readLoop()

	return c, nil
}

// Send queues one text frame for the writer goroutine.
func (c *Conn) Send(raw string) error {
	if c.isClosed() {
		return ErrConnectionClosed
	}
	select {
	case c.writeCh <- raw:
		return nil
	case <-time.After(sendTimeout):
		return ErrWriteTimeout
	case <-c.stopWrite:
		return ErrConnectionClosed
	}
}

// ScheduleAfter registers a callback to run on the dispatch goroutine
// after the given delay. Closing the connection cancels pending timers; a
// timer that fires against an already-closed connection is a no-op.
func (c *Conn) ScheduleAfter(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	id := c.nextTimer
	c.nextTimer++
	c.timers[id] = time.AfterFunc(d, func() {
		c.mu.Lock()
		delete(c.timers, id)
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		c.enqueue(event{kind: evTimer, fn: fn})
	})
}

// Close tears the connection down: pending timers are cancelled, the
// writer stops, and the close notification is dispatched after in-flight
// frames. Safe to call from a dispatch callback and idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		timers := c.timers
		c.timers = nil
		c.mu.Unlock()

		for _, t := range timers {
			t.Stop()
		}

		close(c.stopWrite)
		_ = c.ws.Close()
	})
	return nil
}

// Wait blocks until the connection's dispatch loop has finished, meaning
// the close notification has been delivered.
func (c *Conn) Wait(ctx context.Context) error {
	select {
	case <-c.dispatchDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// enqueue delivers an event to the dispatch loop, dropping it if dispatch
// has already finished so late timer firings cannot leak goroutines.
func (c *Conn) enqueue(e event) {
	select {
	case c.events <- e:
	case <-c.dispatchDone:
	}
}

func (c *Conn) writeLoop() {
	for {
		select {
		case raw := <-c.writeCh:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
				if !c.isClosed() {
					c.enqueue(event{kind: evError, err: err})
				}
				_ = c.Close()
				return
			}
		case <-c.stopWrite:
			return
		}
	}
}

func (c *Conn) readLoop() {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			// A local Close or a normal close handshake is not an error;
			// anything else is surfaced before the close notification.
			if !c.isClosed() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.enqueue(event{kind: evError, err: err})
			}
			_ = c.Close()
			c.enqueue(event{kind: evClose})
			return
		}
		c.enqueue(event{kind: evFrame, raw: string(data)})
	}
}

// dispatchLoop runs every handler for this connection, one at a time.
func (c *Conn) dispatchLoop() {
	defer close(c.dispatchDone)

	for e := range c.events {
		switch e.kind {
		case evOpen:
			if c.cb.OnOpen != nil {
				c.cb.OnOpen()
			}
		case evFrame:
			if c.cb.OnFrame != nil {
				c.cb.OnFrame(e.raw)
			}
		case evTimer:
			// Fired timers on a closed connection are skipped, never a fault.
			if c.isClosed() {
				continue
			}
			e.fn()
		case evError:
			if c.cb.OnError != nil {
				c.cb.OnError(e.err)
			}
		case evClose:
			if c.cb.OnClose != nil {
				c.cb.OnClose()
			}
			return
		}
	}
}
