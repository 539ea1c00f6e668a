package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/fed_comment_server/internal/api/middleware"
	"github.com/qs3c/fed_comment_server/internal/pkg/response"
	"github.com/qs3c/fed_comment_server/internal/service"
)

// currentPerson 当前登录的本地用户；未登录时已写入响应
func currentPerson(c *gin.Context) (int64, bool) {
	personID, ok := middleware.GetPersonID(c)
	if !ok {
		response.AuthError(c, "")
	}
	return personID, ok
}

// paramID 解析路径中的数字 ID；无效时已写入响应
func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "无效的ID")
		return 0, false
	}
	return id, true
}

// fail 把服务层错误映射为统一响应码
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrGone):
		response.NotFoundError(c, err.Error())
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrCommentPermission):
		response.PermissionError(c, err.Error())
	case errors.Is(err, service.ErrUnreachable):
		response.UnreachableError(c, err.Error())
	case errors.Is(err, service.ErrMissingParent), errors.Is(err, service.ErrUnresolvableTarget):
		response.MissingParentError(c, err.Error())
	case errors.Is(err, service.ErrDuplicateActivity),
		errors.Is(err, service.ErrCommunityExists),
		errors.Is(err, service.ErrPersonExists):
		response.DuplicateError(c, err.Error())
	case errors.Is(err, service.ErrParentNotInPost),
		errors.Is(err, service.ErrEmptyContent),
		errors.Is(err, service.ErrCommentDeleted),
		errors.Is(err, service.ErrCommunityNotLocal),
		errors.Is(err, service.ErrInvalidName),
		errors.Is(err, service.ErrOutOfScope):
		response.ParamError(c, err.Error())
	default:
		_ = c.Error(err)
		response.ServerError(c, "")
	}
}
