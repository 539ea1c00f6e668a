package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/pkg/jwt"
	"github.com/qs3c/fed_comment_server/internal/pkg/pubsub"
	"github.com/qs3c/fed_comment_server/internal/pkg/ws"
)

const maxClientMessage = 4096

type WebSocketHandler struct {
	hub       *ws.Hub
	jwtSecret string
	upgrader  websocket.Upgrader
	log       *zap.Logger
}

// NewWebSocketHandler allowedOrigins 为空时不校验 Origin
func NewWebSocketHandler(hub *ws.Hub, jwtSecret string, allowedOrigins []string, log *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:       hub,
		jwtSecret: jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowedOrigins) == 0 || lo.Contains(allowedOrigins, origin)
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
	}
}

// Handle 升级为 websocket 连接，推送提及与回复通知。
// 浏览器无法为 websocket 设置 Authorization 头，token 放在 query 中
// GET /api/v1/ws?token=xxx
func (h *WebSocketHandler) Handle(c *gin.Context) {
	claims, err := jwt.ParseToken(c.Query("token"), h.jwtSecret)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("failed to upgrade connection", zap.Int64("person_id", claims.PersonID), zap.Error(err))
		return
	}

	client := &ws.Client{PersonID: claims.PersonID, Conn: conn}
	h.hub.Register(client)
	go h.readLoop(client)
}

// readLoop 丢弃客户端消息，连接断开或超时后注销
func (h *WebSocketHandler) readLoop(client *ws.Client) {
	defer func() {
		h.hub.Unregister(client)
		_ = client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxClientMessage)
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read failed", zap.Int64("person_id", client.PersonID), zap.Error(err))
			}
			return
		}
	}
}

// Push 把 Redis 上的通知事件推送给在线的接收者
func (h *WebSocketHandler) Push(msg *pubsub.NotificationMessage) {
	if !h.hub.IsOnline(msg.RecipientID) {
		return
	}

	if err := h.hub.SendToPerson(msg.RecipientID, &ws.Message{Type: msg.Type, Data: msg}); err != nil {
		h.log.Warn("failed to push notification",
			zap.Int64("recipient_id", msg.RecipientID), zap.String("type", msg.Type), zap.Error(err))
	}
}
