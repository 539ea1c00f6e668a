package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
)

// 业务错误码。客户端接口总是返回 HTTP 200，由 code 区分结果
const (
	CodeSuccess          = 0
	CodeParamError       = 1000
	CodeAuthFailed       = 1001
	CodePermissionDenied = 1002
	CodeResourceNotFound = 1003
	CodeUnreachable      = 1004
	CodeDuplicateAction  = 1005
	CodeMissingParent    = 1006
	CodeServerError      = 5000
)

var codeMessages = map[int]string{
	CodeSuccess:          "success",
	CodeParamError:       "参数错误",
	CodeAuthFailed:       "认证失败",
	CodePermissionDenied: "权限不足",
	CodeResourceNotFound: "资源不存在",
	CodeUnreachable:      "远程实例不可达",
	CodeDuplicateAction:  "重复操作",
	CodeMissingParent:    "父对象不存在",
	CodeServerError:      "服务器内部错误",
}

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// PageData 分页数据
type PageData struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Items    interface{} `json:"items"`
}

// Message 错误码的默认消息，未知错误码返回空串
func Message(code int) string {
	return codeMessages[code]
}

func write(c *gin.Context, code int, message string, data interface{}) {
	if message == "" {
		message = codeMessages[code]
	}
	c.JSON(http.StatusOK, Response{Code: code, Message: message, Data: data})
}

func Success(c *gin.Context, data interface{}) {
	write(c, CodeSuccess, "", data)
}

func SuccessWithMessage(c *gin.Context, message string, data interface{}) {
	write(c, CodeSuccess, message, data)
}

// SuccessPage 分页成功响应；items 为 nil 时输出空数组
func SuccessPage(c *gin.Context, total int64, page, pageSize int, items interface{}) {
	if items == nil {
		items = []struct{}{}
	}
	write(c, CodeSuccess, "", PageData{Total: total, Page: page, PageSize: pageSize, Items: items})
}

// Error 错误响应，message 为空时使用错误码的默认消息
func Error(c *gin.Context, code int, message string) {
	write(c, code, message, nil)
}

func ParamError(c *gin.Context, message string)         { Error(c, CodeParamError, message) }
func AuthError(c *gin.Context, message string)          { Error(c, CodeAuthFailed, message) }
func PermissionError(c *gin.Context, message string)    { Error(c, CodePermissionDenied, message) }
func NotFoundError(c *gin.Context, message string)      { Error(c, CodeResourceNotFound, message) }
func UnreachableError(c *gin.Context, message string)   { Error(c, CodeUnreachable, message) }
func DuplicateError(c *gin.Context, message string)     { Error(c, CodeDuplicateAction, message) }
func MissingParentError(c *gin.Context, message string) { Error(c, CodeMissingParent, message) }
func ServerError(c *gin.Context, message string)        { Error(c, CodeServerError, message) }

// ActivityJSON 联邦接口的响应：真实 HTTP 状态码，activity+json 内容类型
func ActivityJSON(c *gin.Context, status int, obj interface{}) {
	c.Header("Content-Type", "application/activity+json")
	c.Status(status)
	if obj == nil {
		return
	}
	c.Render(status, render.JSON{Data: obj})
}
