package service

import (
	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/config"
	"github.com/qs3c/fed_comment_server/internal/pkg/keylock"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

// Deps 构造一个实例的全部服务所需的外部依赖
type Deps struct {
	Repos         *repository.Repos
	Fetcher       Fetcher
	Delivery      DeliveryQueue
	Publisher     NotificationPublisher // 可为 nil
	Instance      Instance
	JWT           config.JWTConfig
	MaxReplyDepth int
	Log           *zap.Logger
}

// Services 一个实例的服务集合，入站处理与本地变更共用同一把 keylock
type Services struct {
	Resolver      *Resolver
	Votes         *VoteAggregator
	Notifications *NotificationService
	Mentions      *MentionEngine
	Dispatcher    *Dispatcher
	Moderation    *ModerationService
	Ingest        *IngestService
	Reports       *ReportService
	Objects       *ObjectService
	Comments      *CommentService
	Communities   *CommunityService
	Persons       *PersonService
}

func New(d Deps) *Services {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	locks := keylock.New()

	votes := NewVoteAggregator(d.Repos)
	resolver := NewResolver(d.Repos, d.Fetcher, votes, d.Instance, d.MaxReplyDepth, log.Named("resolver"))
	notifications := NewNotificationService(d.Repos, d.Publisher, log.Named("notification"))
	mentions := NewMentionEngine(resolver, notifications, d.Instance, log.Named("mention"))
	dispatcher := NewDispatcher(d.Repos, d.Delivery, d.Instance, log.Named("dispatcher"))
	moderation := NewModerationService(d.Repos, dispatcher, locks, d.Instance, log.Named("moderation"))
	objects := NewObjectService(d.Repos, d.Instance)

	return &Services{
		Resolver:      resolver,
		Votes:         votes,
		Notifications: notifications,
		Mentions:      mentions,
		Dispatcher:    dispatcher,
		Moderation:    moderation,
		Ingest: NewIngestService(d.Repos, resolver, votes, mentions, notifications, moderation,
			dispatcher, locks, d.Instance, log.Named("ingest")),
		Reports:     NewReportService(d.Repos, dispatcher, d.Instance, log.Named("report")),
		Objects:     objects,
		Comments:    NewCommentService(d.Repos, votes, mentions, notifications, dispatcher, objects, locks, d.Instance, log.Named("comment")),
		Communities: NewCommunityService(d.Repos, resolver, dispatcher, d.Instance, log.Named("community")),
		Persons:     NewPersonService(d.Repos, d.Instance, d.JWT),
	}
}
