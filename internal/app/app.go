package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/config"
	"github.com/qs3c/fed_comment_server/internal/database"
	"github.com/qs3c/fed_comment_server/internal/pkg/apclient"
	"github.com/qs3c/fed_comment_server/internal/pkg/logger"
	"github.com/qs3c/fed_comment_server/internal/pkg/pubsub"
	"github.com/qs3c/fed_comment_server/internal/pkg/queue"
	"github.com/qs3c/fed_comment_server/internal/pkg/retry"
	"github.com/qs3c/fed_comment_server/internal/repository"
	"github.com/qs3c/fed_comment_server/internal/service"
)

const userAgent = "fed-comment-server/1.0"

// ConfigPath 配置文件路径，可用 CONFIG_PATH 覆盖
func ConfigPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}

// App 各进程共用的基础设施
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Redis    *redis.Client
	Repos    *repository.Repos
	Inbox    *queue.Queue[queue.InboxMessage]
	Delivery *queue.Queue[queue.DeliveryMessage]
	Client   *apclient.Client
	Instance service.Instance
	Services *service.Services
}

// Open 加载配置并连接数据库与 Redis
func Open(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	instance, err := service.NewInstance(cfg.Instance.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid instance base_url: %w", err)
	}
	if cfg.Instance.Domain != "" && !strings.EqualFold(cfg.Instance.Domain, instance.Domain) {
		return nil, fmt.Errorf("instance domain %q does not match base_url host %q", cfg.Instance.Domain, instance.Domain)
	}

	// 初始化数据库
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("database connected", zap.String("driver", cfg.Database.Driver))

	// 初始化 Redis
	rdb, err := database.NewRedis(&cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	log.Info("redis connected")

	a := &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Redis:    rdb,
		Repos:    repository.NewRepos(db),
		Inbox:    queue.NewQueue[queue.InboxMessage](rdb, cfg.Queue.InboxQueue),
		Delivery: queue.NewQueue[queue.DeliveryMessage](rdb, cfg.Queue.DeliveryQueue),
		Client: apclient.New(apclient.Config{
			Timeout:   cfg.Federation.HTTPTimeout,
			Scheme:    instance.Scheme(),
			UserAgent: userAgent,
		}),
		Instance: instance,
	}

	a.Services = service.New(service.Deps{
		Repos:         a.Repos,
		Fetcher:       a.Client,
		Delivery:      a.Delivery,
		Publisher:     pubsub.NewPublisher(rdb),
		Instance:      instance,
		JWT:           cfg.JWT,
		MaxReplyDepth: cfg.Federation.MaxReplyDepth,
		Log:           log,
	})
	return a, nil
}

// DeliveryRetry 出站投递的重试预算
func (a *App) DeliveryRetry() retry.Options {
	opts := a.retry()
	opts.MaxRetries = a.Config.Federation.DeliveryMaxRetries
	return opts
}

// ResolveRetry 入站处理与解析等待的重试预算
func (a *App) ResolveRetry() retry.Options {
	opts := a.retry()
	opts.MaxRetries = a.Config.Federation.ResolveMaxRetries
	return opts
}

func (a *App) retry() retry.Options {
	opts := retry.DefaultOptions()
	if a.Config.Federation.InitialInterval > 0 {
		opts.InitialInterval = a.Config.Federation.InitialInterval
	}
	if a.Config.Federation.MaxInterval > 0 {
		opts.MaxInterval = a.Config.Federation.MaxInterval
	}
	return opts
}

// Close 释放连接
func (a *App) Close() {
	_ = a.Client.Close()
	_ = a.Redis.Close()
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = a.Log.Sync()
}
