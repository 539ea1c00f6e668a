package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/response"
	"github.com/qs3c/fed_comment_server/internal/service"
)

type ResolveHandler struct {
	resolver    *service.Resolver
	comments    *service.CommentService
	communities *service.CommunityService
}

func NewResolveHandler(resolver *service.Resolver, comments *service.CommentService, communities *service.CommunityService) *ResolveHandler {
	return &ResolveHandler{
		resolver:    resolver,
		comments:    comments,
		communities: communities,
	}
}

// Resolve 按 ap_id 或 @name@instance 解析对象，本地没有时远程获取
// GET /api/v1/resolve?q=
func (h *ResolveHandler) Resolve(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.ParamError(c, "缺少查询参数 q")
		return
	}

	ctx := c.Request.Context()
	resolved, err := h.resolver.Resolve(ctx, q)
	if err != nil {
		fail(c, err)
		return
	}

	resp := &dto.ResolveResponse{Type: resolved.Type}
	switch resolved.Type {
	case activity.TypeNote:
		resp.Comment, err = h.comments.Get(ctx, resolved.Comment.ID)
	case activity.TypePage:
		resp.Post, err = h.communities.GetPost(ctx, resolved.Post.ID)
	case activity.TypePerson:
		resp.Person = service.PersonBrief(resolved.Person)
	case activity.TypeGroup:
		resp.Community = service.CommunityItem(resolved.Community)
	}
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, resp)
}
