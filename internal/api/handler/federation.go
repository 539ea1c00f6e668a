package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/pkg/queue"
	"github.com/qs3c/fed_comment_server/internal/pkg/response"
	"github.com/qs3c/fed_comment_server/internal/service"
)

const maxActivitySize = 1 << 20

// InboxQueue 入站队列
type InboxQueue interface {
	Push(ctx context.Context, msg *queue.InboxMessage) error
}

// InboxResult 共享收件箱的响应体
type InboxResult struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// FederationHandler 实例之间的接口：共享收件箱、对象与 WebFinger
type FederationHandler struct {
	ingest   *service.IngestService
	objects  *service.ObjectService
	queue    InboxQueue
	instance service.Instance
	sync     bool
	log      *zap.Logger
}

// NewFederationHandler sync 为 true 时收件箱同步处理活动并返回结果
func NewFederationHandler(
	ingest *service.IngestService,
	objects *service.ObjectService,
	queue InboxQueue,
	instance service.Instance,
	sync bool,
	log *zap.Logger,
) *FederationHandler {
	return &FederationHandler{
		ingest:   ingest,
		objects:  objects,
		queue:    queue,
		instance: instance,
		sync:     sync,
		log:      log,
	}
}

// Inbox 共享收件箱
// POST /inbox
func (h *FederationHandler) Inbox(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxActivitySize))
	if err != nil {
		inboxResult(c, http.StatusRequestEntityTooLarge, service.ErrInvalidActivity)
		return
	}
	env, err := activity.Decode(body)
	if err != nil {
		h.log.Debug("rejected malformed activity", zap.Error(err))
		inboxResult(c, http.StatusBadRequest, service.ErrInvalidActivity)
		return
	}

	if h.sync {
		err := h.ingest.Apply(c.Request.Context(), env)
		inboxResult(c, inboxStatus(err), err)
		return
	}

	msg := &queue.InboxMessage{Body: body, ReceivedAt: time.Now().UTC()}
	if err := h.queue.Push(c.Request.Context(), msg); err != nil {
		h.log.Error("failed to enqueue activity", zap.String("activity_id", env.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, InboxResult{Code: http.StatusInternalServerError, Reason: service.ReasonInternal})
		return
	}
	c.JSON(http.StatusAccepted, InboxResult{Code: http.StatusAccepted, Reason: service.ReasonAccepted})
}

func inboxResult(c *gin.Context, status int, err error) {
	c.JSON(status, InboxResult{Code: status, Reason: service.ReasonCode(err)})
}

// inboxStatus 可重试的失败返回 503，发送方按自己的退避策略重投
func inboxStatus(err error) int {
	switch {
	case err == nil, errors.Is(err, service.ErrDuplicateActivity):
		return http.StatusOK
	case service.Retriable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, service.ErrInvalidActivity):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized), errors.Is(err, service.ErrOutOfScope):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Object 本地对象的联邦表示，ap_id 即请求 URL
// GET /u/:name, /c/:name, /post/:id, /comment/:id
func (h *FederationHandler) Object(c *gin.Context) {
	obj, err := h.objects.Get(c.Request.Context(), h.instance.ObjectURL(c.Request.URL.Path))
	switch {
	case err == nil:
		response.ActivityJSON(c, http.StatusOK, obj)
	case errors.Is(err, service.ErrGone):
		response.ActivityJSON(c, http.StatusGone, obj)
	case errors.Is(err, service.ErrNotFound):
		response.ActivityJSON(c, http.StatusNotFound, nil)
	default:
		h.log.Error("failed to load object", zap.String("path", c.Request.URL.Path), zap.Error(err))
		response.ActivityJSON(c, http.StatusInternalServerError, nil)
	}
}

// WebFinger 解析 acct:name@domain
// GET /.well-known/webfinger?resource=acct:name@domain
func (h *FederationHandler) WebFinger(c *gin.Context) {
	resource := c.Query("resource")
	if resource == "" {
		c.Status(http.StatusBadRequest)
		return
	}
	wf, err := h.objects.WebFinger(c.Request.Context(), resource)
	switch {
	case err == nil:
		c.Header("Content-Type", "application/jrd+json")
		c.JSON(http.StatusOK, wf)
	case errors.Is(err, service.ErrNotFound):
		c.Status(http.StatusNotFound)
	default:
		h.log.Error("webfinger lookup failed", zap.String("resource", resource), zap.Error(err))
		c.Status(http.StatusInternalServerError)
	}
}
