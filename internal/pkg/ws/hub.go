package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// Hub 按本地用户维护 websocket 连接，用于推送新通知。
// 一个用户可以同时有多个连接
type Hub struct {
	mu      sync.RWMutex
	persons map[int64]map[*Client]struct{}
	log     *zap.Logger
}

type Client struct {
	PersonID int64
	Conn     *websocket.Conn

	writeMu sync.Mutex
}

// Message 推送给客户端的消息
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		persons: make(map[int64]map[*Client]struct{}),
		log:     log,
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	conns, ok := h.persons[client.PersonID]
	if !ok {
		conns = make(map[*Client]struct{})
		h.persons[client.PersonID] = conns
	}
	conns[client] = struct{}{}
	n := len(conns)
	h.mu.Unlock()

	h.log.Debug("websocket connected", zap.Int64("person_id", client.PersonID), zap.Int("person_conns", n))
}

// Unregister 移除连接；重复调用无副作用
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	conns, ok := h.persons[client.PersonID]
	if ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(h.persons, client.PersonID)
		}
	}
	h.mu.Unlock()

	if ok {
		h.log.Debug("websocket disconnected", zap.Int64("person_id", client.PersonID))
	}
}

// SendToPerson 向用户的所有连接推送；写失败的连接被关闭并移除
func (h *Hub) SendToPerson(personID int64, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	clients := lo.Keys(h.persons[personID])
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Warn("websocket write failed", zap.Int64("person_id", personID), zap.Error(err))
			h.Unregister(c)
			_ = c.Conn.Close()
		}
	}
	return nil
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

func (h *Hub) IsOnline(personID int64) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.persons[personID]) > 0
}

// ConnectionCount 在线连接总数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, conns := range h.persons {
		n += len(conns)
	}
	return n
}

// Close 关闭全部连接，服务退出时调用
func (h *Hub) Close() {
	h.mu.Lock()
	persons := h.persons
	h.persons = make(map[int64]map[*Client]struct{})
	h.mu.Unlock()

	for _, conns := range persons {
		for c := range conns {
			c.writeMu.Lock()
			_ = c.Conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			c.writeMu.Unlock()
			_ = c.Conn.Close()
		}
	}
}
