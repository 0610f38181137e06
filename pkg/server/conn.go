package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vibeoracle/oracle/pkg/audio/pcm"
)

const writeTimeout = 5 * time.Second

// conn serializes writes to a websocket; gorilla allows one writer at a
// time.
type conn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{ws: ws}
}

func (c *conn) send(m *ServerMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("server: marshal %s: %w", m.Type, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return websocket.ErrCloseSent
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *conn) read() (*ClientMessage, error) {
	var m ClientMessage
	if err := c.ws.ReadJSON(&m); err != nil {
		return nil, err
	}
	return &m, nil
}

// close sends a normal close frame and closes the socket. Later sends fail
// with websocket.ErrCloseSent.
func (c *conn) close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeTimeout))
	return c.ws.Close()
}

// audioSink forwards rendered audio chunks to the browser as base64 frames.
func (c *conn) audioSink(f pcm.Format, id func() string) pcm.Writer {
	return pcm.WriteFunc(func(chunk pcm.Chunk) error {
		var buf bytes.Buffer
		if _, err := chunk.WriteTo(&buf); err != nil {
			return err
		}
		return c.send(&ServerMessage{
			Type:       TypeAudio,
			ID:         id(),
			Audio:      pcm.EncodeBase64(buf.Bytes()),
			SampleRate: f.SampleRate(),
		})
	})
}
