package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	readWait       = 90 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client - одно websocket-соединение. Жизнью соединения управляет трекер присутствия,
// read deadline здесь только страховка
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub
	log  *slog.Logger

	send      chan []byte
	ping      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewClient(id string, conn *websocket.Conn, hub *Hub) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		hub:  hub,
		log:  hub.log.With("conn", id),
		send: make(chan []byte, sendBuffer),
		ping: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Run регистрирует клиента и блокируется до закрытия соединения
func (c *Client) Run() {
	c.hub.register(c)
	go c.writePump()
	c.readPump()
}

func (c *Client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		c.log.Warn("буфер отправки переполнен, сообщение отброшено")
	}
}

func (c *Client) sendJSON(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		c.log.Error("ошибка сериализации", "error", err)
		return
	}
	c.enqueue(msg)
}

func (c *Client) probe() {
	select {
	case c.ping <- struct{}{}:
	default:
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// read
func (c *Client) readPump() {
	defer func() {
		c.close()
		c.hub.unregister(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		c.hub.tracker.Touch(c.ID)
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info("ошибка чтения", "error", err)
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
		c.hub.tracker.Touch(c.ID)
		c.hub.dispatch(c, msg)
	}
}

// write
func (c *Client) writePump() {
	defer c.close()

	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.log.Debug("ошибка записи", "error", err)
				return
			}
		case <-c.ping:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage, []byte{}, time.Now().Add(writeWait))
			return
		}
	}
}
