package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/response"
	"github.com/qs3c/fed_comment_server/internal/service"
)

type NotificationHandler struct {
	notifications *service.NotificationService
}

func NewNotificationHandler(notifications *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// UnreadCount 未读提及与回复数
// GET /api/v1/notifications/unread
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}

	count, err := h.notifications.UnreadCount(c.Request.Context(), personID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, count)
}

// Mentions 提及列表
// GET /api/v1/notifications/mentions
func (h *NotificationHandler) Mentions(c *gin.Context) {
	h.list(c, h.notifications.ListMentions)
}

// Replies 回复列表
// GET /api/v1/notifications/replies
func (h *NotificationHandler) Replies(c *gin.Context) {
	h.list(c, h.notifications.ListReplies)
}

type listFunc func(context.Context, int64, *dto.NotificationListRequest) ([]*dto.NotificationItem, int64, error)

func (h *NotificationHandler) list(c *gin.Context, fn listFunc) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}

	var req dto.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize)

	items, total, err := fn(c.Request.Context(), personID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessPage(c, total, req.Page, req.PageSize, items)
}

// MarkMentionRead 标记提及已读
// POST /api/v1/notifications/mentions/:id/read
func (h *NotificationHandler) MarkMentionRead(c *gin.Context) {
	h.markRead(c, h.notifications.MarkMentionRead)
}

// MarkReplyRead 标记回复已读
// POST /api/v1/notifications/replies/:id/read
func (h *NotificationHandler) MarkReplyRead(c *gin.Context) {
	h.markRead(c, h.notifications.MarkReplyRead)
}

func (h *NotificationHandler) markRead(c *gin.Context, fn func(context.Context, int64, int64) error) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	if err := fn(c.Request.Context(), personID, id); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// MarkAllRead 全部标记已读
// POST /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}

	if err := h.notifications.MarkAllRead(c.Request.Context(), personID); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}
