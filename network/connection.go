// network/connection.go
package network

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendQueueFull    = errors.New("send queue full")
)

const writeWait = 10 * time.Second

type Connection interface {
	Send(data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadMessage() ([]byte, error)
}

// WSConnection 封装 websocket 连接, 写操作由独立的 writePump 完成,
// Send 只入队不阻塞
type WSConnection struct {
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	sendMutex sync.RWMutex
	heartbeat time.Duration
}

func NewWSConnection(conn *websocket.Conn, queueSize int) *WSConnection {
	if queueSize <= 0 {
		queueSize = 64
	}
	c := &WSConnection{
		conn: conn,
		send: make(chan []byte, queueSize),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Send queues a text frame. A full queue drops the frame.
func (c *WSConnection) Send(data []byte) error {
	c.sendMutex.RLock()
	defer c.sendMutex.RUnlock()

	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

func (c *WSConnection) ReadMessage() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

// SetHeartbeat 设置心跳, 读超时为两个周期, 收到 pong 后顺延
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	c.sendMutex.Lock()
	c.heartbeat = interval
	c.sendMutex.Unlock()

	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	})
}

// Close stops accepting frames. The writer flushes what is queued, sends a
// close frame and then closes the socket.
func (c *WSConnection) Close() error {
	c.closeOnce.Do(func() {
		c.sendMutex.Lock()
		close(c.done)
		c.sendMutex.Unlock()
	})
	return nil
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *WSConnection) pingInterval() time.Duration {
	c.sendMutex.RLock()
	defer c.sendMutex.RUnlock()
	return c.heartbeat
}

func (c *WSConnection) writePump() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	var lastPing time.Time

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.flush()
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			c.conn.Close()
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.conn.Close()
				return
			}
		case now := <-ticker.C:
			interval := c.pingInterval()
			if interval <= 0 || now.Sub(lastPing) < interval {
				continue
			}
			lastPing = now
			_ = c.conn.SetWriteDeadline(now.Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (c *WSConnection) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}
