package live

import (
	"encoding/json"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"chatboard/internal/chat"
)

// maxFrameSize bounds a single inbound frame.
const maxFrameSize = 1 << 20

// wsConn is a chat.Conn over a server-side WebSocket. Outbound frames are
// queued on a bounded channel and written by writeLoop; a full queue drops
// the event for this connection only.
type wsConn struct {
	id           string
	raw          net.Conn
	out          chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	writeTimeout time.Duration

	wmu sync.Mutex
}

func newConn(id string, raw net.Conn, buffer int, writeTimeout time.Duration) *wsConn {
	if buffer <= 0 {
		buffer = 1
	}
	return &wsConn{
		id:           id,
		raw:          raw,
		out:          make(chan []byte, buffer),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) Send(ev chat.Event) error {
	select {
	case <-c.done:
		return chat.ErrConnClosed
	default:
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return chat.ErrConnClosed
	default:
		return chat.ErrBackpressure
	}
}

// Close stops the write loop, which sends a close frame and closes the
// socket. Safe to call more than once.
func (c *wsConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *wsConn) writeFrame(op ws.OpCode, payload []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return wsutil.WriteServerMessage(c.raw, op, payload)
}

// writeLoop drains the outbound queue until the connection is closed.
func (c *wsConn) writeLoop() error {
	defer c.raw.Close()

	for {
		select {
		case data := <-c.out:
			if err := c.writeFrame(ws.OpText, data); err != nil {
				c.Close()
				return err
			}
		case <-c.done:
			_ = c.writeFrame(ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
			return nil
		}
	}
}

// readLoop hands every complete text message to handle until the peer goes
// away or the connection is closed.
func (c *wsConn) readLoop(handle func([]byte)) error {
	rd := &wsutil.Reader{
		Source:         c.raw,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		MaxFrameSize:   maxFrameSize,
		OnIntermediate: c.control,
	}

	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		if hdr.OpCode.IsControl() {
			if err := c.control(hdr, rd); err != nil {
				return err
			}
			continue
		}
		if hdr.OpCode != ws.OpText {
			if err := rd.Discard(); err != nil {
				return err
			}
			continue
		}

		data, err := io.ReadAll(rd)
		if err != nil {
			return err
		}
		handle(data)
	}
}

func (c *wsConn) control(hdr ws.Header, r io.Reader) error {
	payload, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	switch hdr.OpCode {
	case ws.OpPing:
		return c.writeFrame(ws.OpPong, payload)
	case ws.OpClose:
		code, reason := ws.ParseCloseFrameData(payload)
		return wsutil.ClosedError{Code: code, Reason: reason}
	}
	return nil
}

var _ chat.Conn = (*wsConn)(nil)
