package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/app"
	"github.com/qs3c/fed_comment_server/internal/worker"
)

func main() {
	// 加载配置并初始化数据库、Redis、服务
	a, err := app.Open(app.ConfigPath())
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	// 创建 context 用于优雅关闭
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 创建任务处理器
	inbox := worker.NewInboxProcessor(a.Services.Ingest, a.ResolveRetry(), a.Log.Named("inbox"))
	delivery := worker.NewDeliveryProcessor(a.Client, a.DeliveryRetry(), a.Log.Named("delivery"))

	workers := a.Config.Queue.MaxWorkers
	a.Log.Info("worker started",
		zap.Int("max_workers", workers),
		zap.String("instance", a.Instance.Domain),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		worker.Run(ctx, a.Inbox, workers, inbox.Process, a.Log)
	}()
	go func() {
		defer wg.Done()
		worker.Run(ctx, a.Delivery, workers, delivery.Process, a.Log)
	}()

	<-ctx.Done()
	a.Log.Info("received shutdown signal")
	wg.Wait()
	a.Log.Info("worker shutdown complete")
}
