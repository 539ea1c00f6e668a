package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/response"
	"github.com/qs3c/fed_comment_server/internal/service"
)

type CommunityHandler struct {
	communities *service.CommunityService
}

func NewCommunityHandler(communities *service.CommunityService) *CommunityHandler {
	return &CommunityHandler{communities: communities}
}

// Create 创建本地社区，创建者成为版主
// POST /api/v1/communities
func (h *CommunityHandler) Create(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}

	var req dto.CreateCommunityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.communities.CreateCommunity(c.Request.Context(), personID, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}

// Get 获取社区
// GET /api/v1/communities/:id
func (h *CommunityHandler) Get(c *gin.Context) {
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	item, err := h.communities.GetCommunity(c.Request.Context(), communityID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}

// AddModerator 添加版主
// POST /api/v1/communities/:id/moderators
func (h *CommunityHandler) AddModerator(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.AddModeratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.communities.AddModerator(c.Request.Context(), personID, communityID, req.PersonID); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// CreatePost 在本地社区发帖
// POST /api/v1/communities/:id/posts
func (h *CommunityHandler) CreatePost(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.communities.CreatePost(c.Request.Context(), personID, communityID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}

// GetPost 获取帖子
// GET /api/v1/posts/:id
func (h *CommunityHandler) GetPost(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		return
	}

	item, err := h.communities.GetPost(c.Request.Context(), postID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}

// Follow 关注社区，远程社区按 ap_id 解析
// POST /api/v1/communities/follow
func (h *CommunityHandler) Follow(c *gin.Context) {
	h.setFollow(c, true)
}

// Unfollow 取消关注
// POST /api/v1/communities/unfollow
func (h *CommunityHandler) Unfollow(c *gin.Context) {
	h.setFollow(c, false)
}

func (h *CommunityHandler) setFollow(c *gin.Context, follow bool) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}

	var req dto.FollowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	var (
		item *dto.CommunityItem
		err  error
	)
	if follow {
		item, err = h.communities.Follow(c.Request.Context(), personID, req.Community)
	} else {
		item, err = h.communities.Unfollow(c.Request.Context(), personID, req.Community)
	}
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}
