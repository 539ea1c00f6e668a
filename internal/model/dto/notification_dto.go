package dto

// NotificationItem 提及或回复通知
type NotificationItem struct {
	ID      int64        `json:"id"`
	Type    string       `json:"type"` // person_mention, comment_reply
	Read    bool         `json:"read"`
	Comment *CommentItem `json:"comment"`
	Created string       `json:"created_at"`
}

// UnreadCount 未读数
type UnreadCount struct {
	Mentions int64 `json:"mentions"`
	Replies  int64 `json:"replies"`
}

// NotificationListRequest 通知列表参数
type NotificationListRequest struct {
	Page       int  `form:"page,default=1"`
	PageSize   int  `form:"page_size,default=20"`
	UnreadOnly bool `form:"unread_only"`
}
