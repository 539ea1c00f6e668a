package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/config"
	"github.com/qs3c/fed_comment_server/internal/api/handler"
	"github.com/qs3c/fed_comment_server/internal/api/middleware"
)

type Router struct {
	federationHandler   *handler.FederationHandler
	resolveHandler      *handler.ResolveHandler
	commentHandler      *handler.CommentHandler
	reportHandler       *handler.ReportHandler
	notificationHandler *handler.NotificationHandler
	communityHandler    *handler.CommunityHandler
	personHandler       *handler.PersonHandler
	websocketHandler    *handler.WebSocketHandler
	cfg                 *config.Config
	log                 *zap.Logger
}

func NewRouter(
	federationHandler *handler.FederationHandler,
	resolveHandler *handler.ResolveHandler,
	commentHandler *handler.CommentHandler,
	reportHandler *handler.ReportHandler,
	notificationHandler *handler.NotificationHandler,
	communityHandler *handler.CommunityHandler,
	personHandler *handler.PersonHandler,
	websocketHandler *handler.WebSocketHandler,
	cfg *config.Config,
	log *zap.Logger,
) *Router {
	return &Router{
		federationHandler:   federationHandler,
		resolveHandler:      resolveHandler,
		commentHandler:      commentHandler,
		reportHandler:       reportHandler,
		notificationHandler: notificationHandler,
		communityHandler:    communityHandler,
		personHandler:       personHandler,
		websocketHandler:    websocketHandler,
		cfg:                 cfg,
		log:                 log,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.Logger(r.log))
	engine.Use(middleware.CORS(r.cfg.CORS))

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 联邦接口 - 实例之间调用
	fed := r.federationHandler
	engine.POST("/inbox", fed.Inbox)
	engine.GET("/.well-known/webfinger", fed.WebFinger)
	engine.GET("/u/:name", fed.Object)
	engine.GET("/c/:name", fed.Object)
	engine.GET("/post/:id", fed.Object)
	engine.GET("/comment/:id", fed.Object)

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口
		public := api.Group("")
		public.Use(middleware.OptionalAuth(r.cfg.JWT.Secret))
		{
			public.GET("/resolve", r.resolveHandler.Resolve)
			public.GET("/communities/:id", r.communityHandler.Get)
			public.GET("/posts/:id", r.communityHandler.GetPost)
			public.GET("/posts/:id/comments", r.commentHandler.ListByPost)
			public.GET("/comments/:id", r.commentHandler.Get)
			public.GET("/persons/:id", r.personHandler.Get)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			authenticated.GET("/persons/me", r.personHandler.Me)

			// 社区
			communities := authenticated.Group("/communities")
			{
				communities.POST("", r.communityHandler.Create)
				communities.POST("/follow", r.communityHandler.Follow)
				communities.POST("/unfollow", r.communityHandler.Unfollow)
				communities.POST("/:id/moderators", r.communityHandler.AddModerator)
				communities.POST("/:id/posts", r.communityHandler.CreatePost)
				communities.GET("/:id/reports", r.reportHandler.List)
			}

			// 评论
			comments := authenticated.Group("/comments")
			{
				comments.POST("", r.commentHandler.Create)
				comments.PUT("/:id", r.commentHandler.Edit)
				comments.DELETE("/:id", r.commentHandler.Delete)
				comments.POST("/:id/undelete", r.commentHandler.Undelete)
				comments.POST("/:id/vote", r.commentHandler.Vote)
				comments.POST("/:id/remove", r.commentHandler.Remove)
				comments.POST("/:id/restore", r.commentHandler.Restore)
				comments.POST("/:id/report", r.commentHandler.Report)
			}

			authenticated.PUT("/reports/:id", r.reportHandler.Resolve)

			// 通知
			notifications := authenticated.Group("/notifications")
			{
				notifications.GET("/unread", r.notificationHandler.UnreadCount)
				notifications.GET("/mentions", r.notificationHandler.Mentions)
				notifications.GET("/replies", r.notificationHandler.Replies)
				notifications.POST("/mentions/:id/read", r.notificationHandler.MarkMentionRead)
				notifications.POST("/replies/:id/read", r.notificationHandler.MarkReplyRead)
				notifications.POST("/read-all", r.notificationHandler.MarkAllRead)
			}
		}
	}

	return engine
}
