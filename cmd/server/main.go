package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/api"
	"github.com/qs3c/fed_comment_server/internal/api/handler"
	"github.com/qs3c/fed_comment_server/internal/app"
	"github.com/qs3c/fed_comment_server/internal/metrics"
	"github.com/qs3c/fed_comment_server/internal/pkg/cron"
	"github.com/qs3c/fed_comment_server/internal/pkg/pubsub"
	"github.com/qs3c/fed_comment_server/internal/pkg/ws"
)

func main() {
	// 加载配置并初始化数据库、Redis、服务
	a, err := app.Open(app.ConfigPath())
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	cfg := a.Config
	services := a.Services
	gin.SetMode(cfg.Server.Mode)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 初始化 WebSocket Hub，订阅 worker 发布的通知
	wsHub := ws.NewHub(a.Log.Named("ws"))
	defer wsHub.Close()
	websocketHandler := handler.NewWebSocketHandler(wsHub, cfg.JWT.Secret, cfg.CORS.AllowedOrigins, a.Log.Named("ws"))
	go func() {
		if err := pubsub.NewSubscriber(a.Redis).Subscribe(ctx, websocketHandler.Push); err != nil && ctx.Err() == nil {
			a.Log.Error("notification subscriber stopped", zap.Error(err))
		}
	}()

	// 启动定时任务
	cronService := cron.NewService(
		a.Repos,
		&metrics.Collector{DB: a.DB},
		[]cron.QueueLength{a.Inbox, a.Delivery},
		cfg.Federation.ActivityRetentionDays,
		a.Log.Named("cron"),
	)
	cronService.Start()
	defer cronService.Stop()

	// 初始化 Handler
	federationHandler := handler.NewFederationHandler(
		services.Ingest,
		services.Objects,
		a.Inbox,
		a.Instance,
		cfg.Federation.SyncInbox,
		a.Log.Named("inbox"),
	)
	resolveHandler := handler.NewResolveHandler(services.Resolver, services.Comments, services.Communities)
	commentHandler := handler.NewCommentHandler(services.Comments, services.Moderation, services.Reports)
	reportHandler := handler.NewReportHandler(services.Reports)
	notificationHandler := handler.NewNotificationHandler(services.Notifications)
	communityHandler := handler.NewCommunityHandler(services.Communities)
	personHandler := handler.NewPersonHandler(services.Persons)

	// 初始化 Router
	router := api.NewRouter(
		federationHandler,
		resolveHandler,
		commentHandler,
		reportHandler,
		notificationHandler,
		communityHandler,
		personHandler,
		websocketHandler,
		cfg,
		a.Log.Named("http"),
	)

	// 启动服务器
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		a.Log.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.String("instance", a.Instance.Domain),
			zap.Bool("sync_inbox", cfg.Federation.SyncInbox),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Error("server stopped", zap.Error(err))
			cancel()
		}
	}()

	<-ctx.Done()
	a.Log.Info("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Log.Error("failed to shut down server", zap.Error(err))
	}
	a.Log.Info("server shutdown complete")
}
