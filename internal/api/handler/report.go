package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/response"
	"github.com/qs3c/fed_comment_server/internal/service"
)

type ReportHandler struct {
	reports *service.ReportService
}

func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// List 社区的举报列表
// GET /api/v1/communities/:id/reports
func (h *ReportHandler) List(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}
	communityID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.ReportListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}
	req.Page, req.PageSize = normalizePage(req.Page, req.PageSize)

	items, total, err := h.reports.List(c.Request.Context(), personID, communityID, &req)
	if err != nil {
		fail(c, err)
		return
	}
	response.SuccessPage(c, total, req.Page, req.PageSize, items)
}

// Resolve 标记举报处理状态
// PUT /api/v1/reports/:id
func (h *ReportHandler) Resolve(c *gin.Context) {
	personID, ok := currentPerson(c)
	if !ok {
		return
	}
	reportID, ok := paramID(c, "id")
	if !ok {
		return
	}

	var req dto.ResolveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	item, err := h.reports.Resolve(c.Request.Context(), personID, reportID, req.Resolved)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, item)
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
