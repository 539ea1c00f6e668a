package dto

// CreateReportRequest 举报请求
type CreateReportRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=1000"`
}

// ResolveReportRequest 处理举报请求
type ResolveReportRequest struct {
	Resolved bool `json:"resolved"`
}

// ReportListRequest 举报列表参数
type ReportListRequest struct {
	Page           int  `form:"page,default=1"`
	PageSize       int  `form:"page_size,default=20"`
	UnresolvedOnly bool `form:"unresolved_only"`
}

// ReportItem 举报视图
type ReportItem struct {
	ID                  int64  `json:"id"`
	ApID                string `json:"ap_id"`
	CommentApID         string `json:"comment_ap_id"`
	Reporter            string `json:"reporter"`
	OriginalCommentText string `json:"original_comment_text"`
	Reason              string `json:"reason"`
	Resolved            bool   `json:"resolved"`
	Created             string `json:"created_at"`
}

// ReportResult 举报结果；Forwarded 表示已转发到社区所在实例
type ReportResult struct {
	Stored    bool   `json:"stored"`
	Forwarded bool   `json:"forwarded"`
	ReportID  *int64 `json:"report_id,omitempty"`
}
