// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package wsserver

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/rs/xid"
	"gopkg.in/tomb.v2"
)

const (
	// ErrConnectionClosed is returned when sending on a closed connection.
	ErrConnectionClosed = errors.ConstError("connection closed")

	// ErrSlowConsumer is returned, and the connection closed, when a
	// client does not read its frames fast enough.
	ErrSlowConsumer = errors.ConstError("send queue full")
)

// maxMessageSize bounds the size of a client request.
const maxMessageSize = 64 * 1024

type connConfig struct {
	clock      clock.Clock
	queue      int
	pingPeriod time.Duration
	pongWait   time.Duration
	writeWait  time.Duration
	onMessage  func(*Conn, []byte)
}

// Conn is a client websocket connection. It writes queued frames to the
// socket and pings the client while idle; a client that stops answering
// pings is disconnected.
type Conn struct {
	tomb   tomb.Tomb
	id     string
	socket *websocket.Conn
	config connConfig
	send   chan []byte
}

func newConn(socket *websocket.Conn, config connConfig) *Conn {
	return &Conn{
		id:     xid.New().String(),
		socket: socket,
		config: config,
		send:   make(chan []byte, config.queue),
	}
}

// start begins reading and writing the socket.
func (c *Conn) start() {
	c.tomb.Go(c.loop)
}

// ID returns the connection id.
func (c *Conn) ID() string {
	return c.id
}

// Send queues frame for writing. It never blocks: if the queue is full
// the connection is closed.
func (c *Conn) Send(frame []byte) error {
	select {
	case <-c.tomb.Dying():
		return ErrConnectionClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		c.tomb.Kill(ErrSlowConsumer)
		return ErrSlowConsumer
	}
}

// Kill is part of the worker.Worker interface.
func (c *Conn) Kill() {
	c.tomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (c *Conn) Wait() error {
	return c.tomb.Wait()
}

func (c *Conn) loop() error {
	defer c.socket.Close()

	c.socket.SetReadLimit(maxMessageSize)
	_ = c.socket.SetReadDeadline(time.Now().Add(c.config.pongWait))
	c.socket.SetPongHandler(func(string) error {
		return c.socket.SetReadDeadline(time.Now().Add(c.config.pongWait))
	})
	c.tomb.Go(c.readLoop)

	ping := c.config.clock.NewTimer(c.config.pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-c.tomb.Dying():
			deadline := time.Now().Add(c.config.writeWait)
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			_ = c.socket.WriteControl(websocket.CloseMessage, msg, deadline)
			return tomb.ErrDying
		case <-ping.Chan():
			deadline := time.Now().Add(c.config.writeWait)
			if err := c.socket.WriteControl(websocket.PingMessage, []byte{}, deadline); err != nil {
				// Expected if the other end goes away.
				return errors.Annotate(err, "writing ping")
			}
			ping.Reset(c.config.pingPeriod)
		case frame := <-c.send:
			_ = c.socket.SetWriteDeadline(time.Now().Add(c.config.writeWait))
			if err := c.socket.WriteMessage(websocket.TextMessage, frame); err != nil {
				return errors.Annotate(err, "writing frame")
			}
		}
	}
}

// readLoop hands each client message to the server. ReadMessage is
// unblocked when loop closes the socket.
func (c *Conn) readLoop() error {
	for {
		_, data, err := c.socket.ReadMessage()
		if err != nil {
			select {
			case <-c.tomb.Dying():
				return nil
			default:
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				c.tomb.Kill(nil)
				return nil
			}
			return errors.Annotate(err, "reading message")
		}
		c.config.onMessage(c, data)
	}
}
