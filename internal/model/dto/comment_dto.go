package dto

// CreateCommentRequest 创建评论请求；ParentID 为空时是帖子的一级评论
type CreateCommentRequest struct {
	PostID   int64  `json:"post_id" binding:"required"`
	Content  string `json:"content" binding:"required,min=1,max=10000"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

// EditCommentRequest 编辑评论请求
type EditCommentRequest struct {
	Content string `json:"content" binding:"required,min=1,max=10000"`
}

// VoteRequest 投票请求
type VoteRequest struct {
	Score int `json:"score" binding:"oneof=-1 0 1"`
}

// ModerationRequest 移除/恢复请求
type ModerationRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// CommentItem 评论视图；删除或移除后内容替换为占位文本，ap_id 始终保留
type CommentItem struct {
	ID        int64        `json:"id"`
	ApID      string       `json:"ap_id"`
	PostApID  string       `json:"post_ap_id,omitempty"`
	ParentID  *int64       `json:"parent_id"`
	Creator   *PersonBrief `json:"creator,omitempty"`
	Community string       `json:"community,omitempty"`
	Content   string       `json:"content"`
	Deleted   bool         `json:"deleted"`
	Removed   bool         `json:"removed"`
	Local     bool         `json:"local"`
	Score     int64        `json:"score"`
	Upvotes   int64        `json:"upvotes"`
	Downvotes int64        `json:"downvotes"`
	Published string       `json:"published"`
	Updated   string       `json:"updated,omitempty"`
}

// PersonBrief 用户简要信息
type PersonBrief struct {
	ID    int64  `json:"id"`
	ApID  string `json:"ap_id"`
	Name  string `json:"name"`
	Local bool   `json:"local"`
}

// VoteResponse 投票响应
type VoteResponse struct {
	Score     int64 `json:"score"`
	Upvotes   int64 `json:"upvotes"`
	Downvotes int64 `json:"downvotes"`
}
