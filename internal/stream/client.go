package stream

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	topicsMu sync.RWMutex
	topics   map[Topic]bool

	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) subscribed(t Topic) bool {
	c.topicsMu.RLock()
	defer c.topicsMu.RUnlock()
	return c.topics[t]
}

func (c *client) setTopic(t Topic, on bool) {
	c.topicsMu.Lock()
	defer c.topicsMu.Unlock()
	if on {
		c.topics[t] = true
	} else {
		delete(c.topics, t)
	}
}

func (c *client) topicList() []Topic {
	c.topicsMu.RLock()
	defer c.topicsMu.RUnlock()
	out := make([]Topic, 0, len(c.topics))
	for t := range c.topics {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// enqueue queues payload without blocking; false means the client is
// closed or its buffer is full.
func (c *client) enqueue(payload []byte) bool {
	if payload == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *client) writePump() {
	cfg := c.hub.config
	ping := time.NewTicker(cfg.PingInterval)
	defer func() {
		ping.Stop()
		c.hub.remove(c)
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ping.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) readPump() {
	cfg := c.hub.config
	defer c.hub.remove(c)

	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.WithError(err).Debug("stream client read failed")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		c.handle(data)
	}
}

func (c *client) handle(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.reply(Message{Type: MsgError, Data: "invalid json"})
		return
	}

	switch msg.Type {
	case "subscribe", "unsubscribe":
		if !validTopic(msg.Topic) {
			c.reply(Message{Type: MsgError, Data: "unknown topic: " + string(msg.Topic)})
			return
		}
		on := msg.Type == "subscribe"
		c.setTopic(msg.Topic, on)
		ack := MsgSubscribed
		if !on {
			ack = MsgUnsubscribed
		}
		c.reply(Message{Type: ack, Topic: msg.Topic, Data: c.topicList()})
	case "ping":
		c.reply(Message{Type: MsgPong})
	default:
		c.reply(Message{Type: MsgError, Data: "unknown message type: " + msg.Type})
	}
}

func (c *client) reply(m Message) {
	if !c.enqueue(c.hub.encode(m)) {
		c.hub.remove(c)
	}
}
