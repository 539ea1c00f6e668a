package cron

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/schema"

	"github.com/qs3c/fed_comment_server/internal/metrics"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

// QueueLength 可查询长度的队列
type QueueLength interface {
	Name() string
	Length(ctx context.Context) (int64, error)
}

// Service 定时任务：清理过期的入站活动记录，采集队列与表的指标
type Service struct {
	repos      *repository.Repos
	collector  *metrics.Collector
	queues     []QueueLength
	retention  time.Duration
	log        *zap.Logger
	stopChan   chan struct{}
}

// NewService retentionDays <= 0 时按 1 天处理
func NewService(
	repos *repository.Repos,
	collector *metrics.Collector,
	queues []QueueLength,
	retentionDays int,
	log *zap.Logger,
) *Service {
	if retentionDays <= 0 {
		retentionDays = 1
	}
	return &Service{
		repos:      repos,
		collector:  collector,
		queues:     queues,
		retention:  time.Duration(retentionDays) * 24 * time.Hour,
		log:        log,
		stopChan:   make(chan struct{}),
	}
}

// Start 启动定时任务
func (s *Service) Start() {
	go s.runPrune()
	go s.runMetrics()
	s.log.Info("cron service started", zap.Duration("activity_retention", s.retention))
}

// Stop 停止定时任务
func (s *Service) Stop() {
	close(s.stopChan)
	s.log.Info("cron service stopped")
}

// runPrune 每小时清理一次
func (s *Service) runPrune() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if _, err := s.Prune(context.Background()); err != nil {
				s.log.Error("failed to prune received activities", zap.Error(err))
			}
		}
	}
}

// runMetrics 每分钟采集一次
func (s *Service) runMetrics() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.CollectMetrics(context.Background())
		}
	}
}

// Prune 删除超过保留期的入站活动记录。过期后的重复投递仍由各类活动自身的幂等规则兜底
func (s *Service) Prune(ctx context.Context) (int64, error) {
	before := time.Now().UTC().Add(-s.retention)
	n, err := s.repos.WithContext(ctx).Activities.DeleteOlderThan(before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info("pruned received activities", zap.Int64("count", n), zap.Time("before", before))
	}
	return n, nil
}

// CollectMetrics 刷新队列深度与表行数
func (s *Service) CollectMetrics(ctx context.Context) {
	for _, q := range s.queues {
		n, err := q.Length(ctx)
		if err != nil {
			s.log.Warn("failed to read queue length", zap.String("queue", q.Name()), zap.Error(err))
			continue
		}
		metrics.QueueDepth.WithLabelValues(q.Name()).Set(float64(n))
	}

	if s.collector == nil {
		return
	}
	tables := []schema.Tabler{
		model.Comment{},
		model.CommentVote{},
		model.PersonMention{},
		model.CommentReply{},
		model.CommentReport{},
		model.ReceivedActivity{},
	}
	if err := s.collector.CollectTables(ctx, tables...); err != nil {
		s.log.Warn("failed to collect table metrics", zap.Error(err))
	}
}
