package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/api/middleware"
	"github.com/qs3c/fed_comment_server/internal/fedtest"
	"github.com/qs3c/fed_comment_server/internal/pkg/ws"
	"github.com/qs3c/fed_comment_server/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fedtest 实例统一使用的 JWT 密钥
const testSecret = "test-secret"

// testServer 一个实例的 HTTP 接口
type testServer struct {
	*fedtest.Instance
	engine *gin.Engine
	hub    *ws.Hub
	ws     *WebSocketHandler
}

func newTestServer(t *testing.T, inst *fedtest.Instance, inbox InboxQueue, sync bool) *testServer {
	t.Helper()

	identity, err := service.NewInstance("http://" + inst.Domain)
	require.NoError(t, err)

	log := zap.NewNop()
	hub := ws.NewHub(log)
	fed := NewFederationHandler(inst.Ingest, inst.Objects, inbox, identity, sync, log)
	resolve := NewResolveHandler(inst.Resolver, inst.Comments, inst.Communities)
	comments := NewCommentHandler(inst.Comments, inst.Moderation, inst.Reports)
	reports := NewReportHandler(inst.Reports)
	notifications := NewNotificationHandler(inst.Notifications)
	communities := NewCommunityHandler(inst.Communities)
	persons := NewPersonHandler(inst.Persons)
	websocket := NewWebSocketHandler(hub, testSecret, nil, log)

	r := gin.New()
	r.POST("/inbox", fed.Inbox)
	r.GET("/.well-known/webfinger", fed.WebFinger)
	r.GET("/u/:name", fed.Object)
	r.GET("/c/:name", fed.Object)
	r.GET("/post/:id", fed.Object)
	r.GET("/comment/:id", fed.Object)

	api := r.Group("/api/v1")
	api.GET("/ws", websocket.Handle)
	api.GET("/resolve", resolve.Resolve)
	api.GET("/posts/:id", communities.GetPost)
	api.GET("/posts/:id/comments", comments.ListByPost)
	api.GET("/comments/:id", comments.Get)
	api.GET("/communities/:id", communities.Get)
	api.GET("/persons/:id", persons.Get)

	auth := api.Group("", middleware.Auth(testSecret))
	auth.GET("/persons/me", persons.Me)
	auth.POST("/communities", communities.Create)
	auth.POST("/communities/follow", communities.Follow)
	auth.POST("/communities/unfollow", communities.Unfollow)
	auth.POST("/communities/:id/moderators", communities.AddModerator)
	auth.POST("/communities/:id/posts", communities.CreatePost)
	auth.GET("/communities/:id/reports", reports.List)
	auth.PUT("/reports/:id", reports.Resolve)
	auth.POST("/comments", comments.Create)
	auth.PUT("/comments/:id", comments.Edit)
	auth.DELETE("/comments/:id", comments.Delete)
	auth.POST("/comments/:id/undelete", comments.Undelete)
	auth.POST("/comments/:id/vote", comments.Vote)
	auth.POST("/comments/:id/remove", comments.Remove)
	auth.POST("/comments/:id/restore", comments.Restore)
	auth.POST("/comments/:id/report", comments.Report)
	auth.GET("/notifications/unread", notifications.UnreadCount)
	auth.GET("/notifications/mentions", notifications.Mentions)
	auth.GET("/notifications/replies", notifications.Replies)
	auth.POST("/notifications/mentions/:id/read", notifications.MarkMentionRead)
	auth.POST("/notifications/replies/:id/read", notifications.MarkReplyRead)
	auth.POST("/notifications/read-all", notifications.MarkAllRead)

	return &testServer{Instance: inst, engine: r, hub: hub, ws: websocket}
}

// token 为本地用户签发令牌
func (s *testServer) token(t *testing.T, personID int64) string {
	t.Helper()
	resp, err := s.Persons.IssueToken(context.Background(), personID)
	require.NoError(t, err)
	return resp.AccessToken
}

// do 发起请求；body 为 []byte 时原样发送，否则编码为 JSON
func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// decode 解析统一响应，out 非 nil 时解出 data
func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) int {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code)

	var resp apiResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	if out != nil && len(resp.Data) > 0 && string(resp.Data) != "null" {
		require.NoError(t, json.Unmarshal(resp.Data, out))
	}
	return resp.Code
}

// pathOf ap_id 在本实例上的请求路径
func pathOf(inst *fedtest.Instance, apID string) string {
	return apID[len("http://"+inst.Domain):]
}
