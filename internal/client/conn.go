package client

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// DefaultMaxMessageSize bounds one inbound frame.
	DefaultMaxMessageSize = 1 << 20
)

// ErrPeerClosed reports an orderly close by the peer.
var ErrPeerClosed = errors.New("peer closed")

// WSConn frames over a gorilla websocket connection.
type WSConn struct {
	conn      *websocket.Conn
	writeWait time.Duration
}

// NewWSConn wraps conn, applying the read limit and pong-driven read deadline.
func NewWSConn(conn *websocket.Conn, maxMessageSize int64, writeTimeout time.Duration) *WSConn {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	if writeTimeout <= 0 {
		writeTimeout = writeWait
	}
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &WSConn{conn: conn, writeWait: writeTimeout}
}

// ReadFrame returns the next text or binary message.
func (w *WSConn) ReadFrame() ([]byte, error) {
	_, data, err := w.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			return nil, ErrPeerClosed
		}
		return nil, err
	}
	return data, nil
}

// WriteFrame sends data as one text message.
func (w *WSConn) WriteFrame(data []byte) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(w.writeWait))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a websocket ping.
func (w *WSConn) Ping() error {
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.writeWait))
}

// Close sends a close frame and closes the socket.
func (w *WSConn) Close() error {
	_ = w.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return w.conn.Close()
}

// LineConn frames newline-delimited JSON over a raw stream socket.
type LineConn struct {
	conn      net.Conn
	reader    *bufio.Reader
	maxSize   int
	writeWait time.Duration
}

// NewLineConn wraps conn. Lines longer than maxMessageSize are rejected.
func NewLineConn(conn net.Conn, maxMessageSize int64, writeTimeout time.Duration) *LineConn {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	if writeTimeout <= 0 {
		writeTimeout = writeWait
	}
	return &LineConn{
		conn:      conn,
		reader:    bufio.NewReader(conn),
		maxSize:   int(maxMessageSize),
		writeWait: writeTimeout,
	}
}

// ReadFrame returns the next line without its terminator.
func (l *LineConn) ReadFrame() ([]byte, error) {
	var line []byte
	for {
		chunk, isPrefix, err := l.reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrPeerClosed
			}
			return nil, err
		}
		line = append(line, chunk...)
		if len(line) > l.maxSize {
			return nil, fmt.Errorf("line exceeds %d bytes", l.maxSize)
		}
		if !isPrefix {
			return bytes.TrimSpace(line), nil
		}
	}
}

// WriteFrame writes data followed by a newline.
func (l *LineConn) WriteFrame(data []byte) error {
	_ = l.conn.SetWriteDeadline(time.Now().Add(l.writeWait))
	_, err := l.conn.Write(append(data, '\n'))
	return err
}

// Ping is a no-op; raw sockets rely on TCP keepalive.
func (l *LineConn) Ping() error { return nil }

// Close closes the socket.
func (l *LineConn) Close() error {
	return l.conn.Close()
}
