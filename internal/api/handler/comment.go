package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/response"
	"github.com/qs3c/fed_comment_server/internal/service"
)

// CommentHandler 本地用户对评论的操作，每个变更都会联邦到社区的关注者
type CommentHandler struct {
	comments   *service.CommentService
	moderation *service.ModerationService
	reports    *service.ReportService
}

func NewCommentHandler(comments *service.CommentService, moderation *service.ModerationService, reports *service.ReportService) *CommentHandler {
	return &CommentHandler{
		comments:   comments,
		moderation: moderation,
		reports:    reports,
	}
}

// ListByPost 获取帖子下的评论
// GET /api/v1/posts/:id/comments
func (h *CommentHandler) ListByPost(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}

	items, err := h.comments.ListByPost(c.Request.Context(), postID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, items)
}

// Get 获取评论
// GET /api/v1/comments/:id
func (h *CommentHandler) Get(c *gin.Context) {
	commentID, ok := paramID(c, "id")
	if !ok {
		return
	}

	item, err := h.comments.Get(c.Request.Context(), commentID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}

// Create 发表评论
// POST /api/v1/comments
func (h *CommentHandler) Create(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}

	var req dto.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.comments.Create(c.Request.Context(), personID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "评论成功", item)
}

// Edit 编辑评论
// PUT /api/v1/comments/:id
func (h *CommentHandler) Edit(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}
	commentID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.EditCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.comments.Edit(c.Request.Context(), personID, commentID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}

// Delete 作者删除评论
// DELETE /api/v1/comments/:id
func (h *CommentHandler) Delete(c *gin.Context) {
	h.setDeleted(c, true)
}

// Undelete 作者恢复已删除的评论
// POST /api/v1/comments/:id/undelete
func (h *CommentHandler) Undelete(c *gin.Context) {
	h.setDeleted(c, false)
}

func (h *CommentHandler) setDeleted(c *gin.Context, deleted bool) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}
	commentID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var (
		item *dto.CommentItem
		err  error
	)
	if deleted {
		item, err = h.comments.Delete(c.Request.Context(), personID, commentID)
	} else {
		item, err = h.comments.Undelete(c.Request.Context(), personID, commentID)
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}

// Vote 投票，score 为 1、-1 或 0（撤销）
// POST /api/v1/comments/:id/vote
func (h *CommentHandler) Vote(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}
	commentID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.comments.Vote(c.Request.Context(), personID, commentID, req.Score)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, resp)
}

// Remove 版主移除评论
// POST /api/v1/comments/:id/remove
func (h *CommentHandler) Remove(c *gin.Context) {
	h.setRemoved(c, true)
}

// Restore 版主恢复被移除的评论
// POST /api/v1/comments/:id/restore
func (h *CommentHandler) Restore(c *gin.Context) {
	h.setRemoved(c, false)
}

func (h *CommentHandler) setRemoved(c *gin.Context, removed bool) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}
	commentID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.ModerationRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.ParamError(c, err.Error())
			return
		}
	}

	var (
		item *dto.CommentItem
		err  error
	)
	if removed {
		item, err = h.moderation.Remove(c.Request.Context(), personID, commentID, req.Reason)
	} else {
		item, err = h.moderation.Restore(c.Request.Context(), personID, commentID, req.Reason)
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}

// Report 举报评论
// POST /api/v1/comments/:id/report
func (h *CommentHandler) Report(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}
	commentID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.reports.Create(c.Request.Context(), personID, commentID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessWithMessage(c, "举报成功", result)
}
