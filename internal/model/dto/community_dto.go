package dto

// FollowRequest 关注社区请求；Community 为社区 ap_id
type FollowRequest struct {
	Community string `json:"community" binding:"required"`
}

// CreateCommunityRequest 创建社区请求
type CreateCommunityRequest struct {
	Name string `json:"name" binding:"required,min=1,max=50"`
}

// AddModeratorRequest 添加版主请求
type AddModeratorRequest struct {
	PersonID int64 `json:"person_id" binding:"required"`
}

// CreatePostRequest 创建帖子请求
type CreatePostRequest struct {
	Name string `json:"name" binding:"required,min=1,max=200"`
}

// CommunityItem 社区视图
type CommunityItem struct {
	ID     int64  `json:"id"`
	ApID   string `json:"ap_id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
	Local  bool   `json:"local"`
}

// PostItem 帖子视图
type PostItem struct {
	ID        int64  `json:"id"`
	ApID      string `json:"ap_id"`
	Name      string `json:"name"`
	Community string `json:"community"`
	Published string `json:"published"`
}

// ResolveResponse 解析结果，只有与 Type 对应的字段非空
type ResolveResponse struct {
	Type      string         `json:"type"`
	Comment   *CommentItem   `json:"comment,omitempty"`
	Post      *PostItem      `json:"post,omitempty"`
	Person    *PersonBrief   `json:"person,omitempty"`
	Community *CommunityItem `json:"community,omitempty"`
}
