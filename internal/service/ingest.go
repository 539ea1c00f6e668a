package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/metrics"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/pkg/keylock"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

// IngestService 入站活动处理：校验、去重，并在目标 ap_id 的锁内应用到本地副本
type IngestService struct {
	repos      *repository.Repos
	resolver   *Resolver
	votes      *VoteAggregator
	mentions   *MentionEngine
	notifier   *NotificationService
	guard      *ModerationService
	dispatcher *Dispatcher
	locks      *keylock.Locker
	instance   Instance
	log        *zap.Logger
}

func NewIngestService(
	repos *repository.Repos,
	resolver *Resolver,
	votes *VoteAggregator,
	mentions *MentionEngine,
	notifier *NotificationService,
	guard *ModerationService,
	dispatcher *Dispatcher,
	locks *keylock.Locker,
	instance Instance,
	log *zap.Logger,
) *IngestService {
	return &IngestService{
		repos:      repos,
		resolver:   resolver,
		votes:      votes,
		mentions:   mentions,
		notifier:   notifier,
		guard:      guard,
		dispatcher: dispatcher,
		locks:      locks,
		instance:   instance,
		log:        log,
	}
}

// Apply 处理一个入站活动。返回 nil 表示已接受；
// ErrDuplicateActivity 表示无副作用的重复投递
func (s *IngestService) Apply(ctx context.Context, env *activity.Envelope) (err error) {
	kind := string(env.Type)
	defer func() {
		metrics.ActivitiesProcessed.WithLabelValues(kind, ReasonCode(err)).Inc()
	}()

	if err := env.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidActivity, err)
	}
	act, err := activity.Normalize(env)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidActivity, err)
	}
	kind = string(act.Kind)
	if s.instance.IsLocal(act.Actor) {
		// 本实例的活动经由社区转发回来
		return fmt.Errorf("%w: %s originated here", ErrDuplicateActivity, act.ID)
	}

	unlock, err := s.locks.Lock(ctx, act.Key())
	if err != nil {
		return err
	}
	defer unlock()

	repos := s.repos.WithContext(ctx)
	seen, err := repos.Activities.Exists(act.ID)
	if err != nil {
		return err
	}
	if seen {
		return fmt.Errorf("%w: %s", ErrDuplicateActivity, act.ID)
	}

	community, err := s.dispatch(ctx, act)
	if err != nil {
		return err
	}
	if _, err := repos.Activities.Record(act.ID, string(act.Kind), act.Actor); err != nil {
		return err
	}

	if s.rebroadcast(act, community) {
		if err := s.dispatcher.Announce(ctx, community, env); err != nil {
			s.log.Error("failed to announce activity", zap.String("activity_id", act.ID), zap.Error(err))
		}
	}

	s.log.Debug("activity accepted",
		zap.String("activity_id", act.ID), zap.String("kind", kind), zap.String("actor", act.Actor))
	return nil
}

func (s *IngestService) dispatch(ctx context.Context, act *activity.Activity) (*model.Community, error) {
	switch act.Kind {
	case activity.KindCreate:
		return s.applyCreate(ctx, act)
	case activity.KindUpdate:
		return s.applyUpdate(ctx, act)
	case activity.KindDelete, activity.KindUndelete:
		return s.applyDelete(ctx, act)
	case activity.KindRemove, activity.KindRestore:
		return s.applyRemove(ctx, act)
	case activity.KindVote:
		return s.applyVote(ctx, act)
	case activity.KindReport:
		return s.applyReport(ctx, act)
	case activity.KindFollow, activity.KindUnfollow:
		return s.applyFollow(ctx, act)
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidActivity, act.Kind)
}

// rebroadcast 社区所在实例转发远程用户对本社区的内容变更
func (s *IngestService) rebroadcast(act *activity.Activity, community *model.Community) bool {
	if community == nil || !community.Local || act.Announcer != "" {
		return false
	}
	switch act.Kind {
	case activity.KindCreate, activity.KindUpdate, activity.KindDelete, activity.KindUndelete,
		activity.KindRemove, activity.KindRestore, activity.KindVote:
		return true
	}
	return false
}

// checkAnnouncer 经 Announce 转发的活动只能由目标所在社区转发
func checkAnnouncer(act *activity.Activity, community *model.Community) error {
	if act.Announcer != "" && act.Announcer != community.ApID {
		return fmt.Errorf("%w: %s cannot announce for %s", ErrUnauthorized, act.Announcer, community.ApID)
	}
	return nil
}

func (s *IngestService) applyCreate(ctx context.Context, act *activity.Activity) (*model.Community, error) {
	note, err := act.Note()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidActivity, err)
	}
	if note.AttributedTo != act.Actor {
		return nil, fmt.Errorf("%w: %s is not the creator of %s", ErrUnauthorized, act.Actor, note.ID)
	}

	repos := s.repos.WithContext(ctx)
	if existing, err := repos.Comments.GetByApID(note.ID); err == nil {
		if !existing.Fetched {
			return nil, fmt.Errorf("%w: comment %s exists", ErrDuplicateActivity, note.ID)
		}
		return s.completeFetched(ctx, act, existing)
	}

	community, err := s.insertNote(ctx, act, note)
	if err != nil {
		return nil, err
	}
	return community, nil
}

// completeFetched 评论先经拉取写入（例如回复先到），此时到达的 Create
// 补上通知，并由社区所在实例照常转发
func (s *IngestService) completeFetched(ctx context.Context, act *activity.Activity, comment *model.Comment) (*model.Community, error) {
	if err := s.checkCreator(ctx, comment, act.Actor); err != nil {
		return nil, err
	}
	repos := s.repos.WithContext(ctx)
	community, err := repos.Communities.GetByID(comment.CommunityID)
	if err != nil {
		return nil, err
	}
	if err := checkAnnouncer(act, community); err != nil {
		return nil, err
	}
	post, err := repos.Posts.GetByID(comment.PostID)
	if err != nil {
		return nil, err
	}
	var parent *model.Comment
	if comment.ParentID != nil {
		if parent, err = repos.Comments.GetByID(*comment.ParentID); err != nil {
			return nil, err
		}
	}

	cleared, err := repos.Comments.ClearFetched(comment.ID)
	if err != nil {
		return nil, err
	}
	if !cleared {
		return nil, fmt.Errorf("%w: comment %s exists", ErrDuplicateActivity, comment.ApID)
	}
	comment.Fetched = false
	s.notifyNew(ctx, comment, post, parent)
	return community, nil
}

// insertNote 先解析父链并校验转发者，再写入评论并生成通知
func (s *IngestService) insertNote(ctx context.Context, act *activity.Activity, note *activity.Note) (*model.Community, error) {
	repos := s.repos.WithContext(ctx)

	post, parent, err := s.resolver.resolveParent(ctx, note.InReplyTo, 0)
	if err != nil {
		return nil, err
	}
	community, err := repos.Communities.GetByID(post.CommunityID)
	if err != nil {
		return nil, err
	}
	if err := checkAnnouncer(act, community); err != nil {
		return nil, err
	}

	comment, created, err := s.resolver.materialize(ctx, note, 0, false)
	if err != nil {
		return nil, err
	}
	if !created {
		if comment.Fetched {
			return s.completeFetched(ctx, act, comment)
		}
		return nil, fmt.Errorf("%w: comment %s exists", ErrDuplicateActivity, note.ID)
	}

	s.notifyNew(ctx, comment, post, parent)
	return community, nil
}

// notifyNew 提及通知，以及对父评论（或一级评论对帖子）作者的回复通知
func (s *IngestService) notifyNew(ctx context.Context, comment *model.Comment, post *model.Post, parent *model.Comment) {
	notifyNew(ctx, s.repos, s.mentions, s.notifier, s.log, comment, post, parent)
}

func notifyNew(ctx context.Context, repos *repository.Repos, mentions *MentionEngine, notifier *NotificationService,
	log *zap.Logger, comment *model.Comment, post *model.Post, parent *model.Comment) {
	if err := mentions.Notify(ctx, comment); err != nil {
		log.Warn("failed to create mention notifications", zap.String("comment", comment.ApID), zap.Error(err))
	}

	recipientID := post.CreatorID
	if parent != nil {
		recipientID = parent.CreatorID
	}
	recipient, err := repos.WithContext(ctx).Persons.GetByID(recipientID)
	if err != nil {
		log.Warn("reply recipient not found", zap.Int64("person_id", recipientID), zap.Error(err))
		return
	}
	if err := notifier.NotifyReply(ctx, recipient, comment); err != nil {
		log.Warn("failed to create reply notification", zap.String("comment", comment.ApID), zap.Error(err))
	}
}

// applyUpdate 以内容版本时间做最后写入者胜出；时间相同且内容不同时取字典序较大的内容
func (s *IngestService) applyUpdate(ctx context.Context, act *activity.Activity) (*model.Community, error) {
	note, err := act.Note()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidActivity, err)
	}
	if note.AttributedTo != act.Actor {
		return nil, fmt.Errorf("%w: %s is not the creator of %s", ErrUnauthorized, act.Actor, note.ID)
	}

	repos := s.repos.WithContext(ctx)
	existing, err := repos.Comments.GetByApID(note.ID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return s.insertNote(ctx, act, note)
	}
	if err != nil {
		return nil, err
	}

	if err := s.checkCreator(ctx, existing, act.Actor); err != nil {
		return nil, err
	}
	community, err := repos.Communities.GetByID(existing.CommunityID)
	if err != nil {
		return nil, err
	}
	if err := checkAnnouncer(act, community); err != nil {
		return nil, err
	}

	revision := activity.Timestamp(note.Published)
	if note.Updated != nil {
		revision = activity.Timestamp(*note.Updated)
	}
	content := SanitizeContent(note.Content)
	current := existing.Revision()
	if revision.Before(current) || (revision.Equal(current) && content <= existing.Content) {
		s.log.Debug("stale update ignored", zap.String("comment", existing.ApID), zap.Time("revision", revision))
		return community, nil
	}

	if err := repos.Comments.UpdateContent(existing.ID, content, revision); err != nil {
		return nil, err
	}
	existing.Content = content
	if err := s.mentions.Notify(ctx, existing); err != nil {
		s.log.Warn("failed to create mention notifications", zap.String("comment", existing.ApID), zap.Error(err))
	}
	return community, nil
}

func (s *IngestService) checkCreator(ctx context.Context, comment *model.Comment, actor string) error {
	creator, err := s.repos.WithContext(ctx).Persons.GetByID(comment.CreatorID)
	if err != nil {
		return err
	}
	if creator.ApID != actor {
		return fmt.Errorf("%w: %s is not the creator of %s", ErrUnauthorized, actor, comment.ApID)
	}
	return nil
}

// target 活动作用的评论，不论删除/移除状态
func (s *IngestService) target(ctx context.Context, act *activity.Activity) (*model.Comment, *model.Community, error) {
	apID, err := act.ObjectID()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidActivity, err)
	}
	comment, err := s.resolver.FindComment(ctx, apID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: %v", ErrUnresolvableTarget, err)
		}
		return nil, nil, err
	}
	community, err := s.repos.WithContext(ctx).Communities.GetByID(comment.CommunityID)
	if err != nil {
		return nil, nil, err
	}
	if err := checkAnnouncer(act, community); err != nil {
		return nil, nil, err
	}
	return comment, community, nil
}

func (s *IngestService) applyDelete(ctx context.Context, act *activity.Activity) (*model.Community, error) {
	comment, community, err := s.target(ctx, act)
	if err != nil {
		return nil, err
	}
	if err := s.checkCreator(ctx, comment, act.Actor); err != nil {
		return nil, err
	}

	deleted := act.Kind == activity.KindDelete
	if !flagApplies(comment.DeletedStateAt, deleted, act.Published) {
		return community, nil
	}
	if err := s.repos.WithContext(ctx).Comments.UpdateDeleted(comment.ID, deleted, act.Published); err != nil {
		return nil, err
	}
	return community, nil
}

func (s *IngestService) applyRemove(ctx context.Context, act *activity.Activity) (*model.Community, error) {
	comment, community, err := s.target(ctx, act)
	if err != nil {
		return nil, err
	}
	actor, err := s.resolver.ResolvePerson(ctx, act.Actor)
	if err != nil {
		return nil, err
	}
	err = s.guard.AuthorizeInbound(ctx, actor, community)
	if errors.Is(err, ErrUnauthorized) && !community.Local {
		// 缓存的版主集合可能过期，重新拉取社区后再判断一次
		refreshed, rerr := s.resolver.RefreshCommunity(ctx, community)
		if rerr != nil {
			s.log.Warn("failed to refresh community", zap.String("community", community.ApID), zap.Error(rerr))
		} else {
			community = refreshed
			err = s.guard.AuthorizeInbound(ctx, actor, community)
		}
	}
	if err != nil {
		return nil, err
	}

	removed := act.Kind == activity.KindRemove
	if !flagApplies(comment.RemovedStateAt, removed, act.Published) {
		return community, nil
	}
	if err := s.repos.WithContext(ctx).Comments.UpdateRemoved(comment.ID, removed, act.Published); err != nil {
		return nil, err
	}
	return community, nil
}

// flagApplies 删除/移除标记按活动时间取最后写入者；时间相同时置位优先
func flagApplies(stateAt *time.Time, next bool, at time.Time) bool {
	if stateAt == nil {
		return true
	}
	if at.Before(*stateAt) {
		return false
	}
	return !at.Equal(*stateAt) || next
}

func (s *IngestService) applyVote(ctx context.Context, act *activity.Activity) (*model.Community, error) {
	comment, community, err := s.target(ctx, act)
	if err != nil {
		return nil, err
	}
	voter, err := s.resolver.ResolvePerson(ctx, act.Actor)
	if err != nil {
		return nil, err
	}
	if _, _, err := s.votes.Upsert(ctx, comment.ID, voter.ID, act.Score, act.Published); err != nil {
		return nil, err
	}
	return community, nil
}

// applyReport 只在社区所在实例存储，内容快照在接收时冻结
func (s *IngestService) applyReport(ctx context.Context, act *activity.Activity) (*model.Community, error) {
	comment, community, err := s.target(ctx, act)
	if err != nil {
		return nil, err
	}
	if !community.Local {
		return nil, fmt.Errorf("%w: report for remote community %s", ErrOutOfScope, community.ApID)
	}
	reporter, err := s.resolver.ResolvePerson(ctx, act.Actor)
	if err != nil {
		return nil, err
	}

	report := &model.CommentReport{
		ApID:                act.ID,
		CreatorID:           reporter.ID,
		CommentID:           comment.ID,
		OriginalCommentText: comment.Content,
		Reason:              act.Summary,
	}
	created, err := s.repos.WithContext(ctx).Reports.CreateIfAbsent(report)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, fmt.Errorf("%w: report %s exists", ErrDuplicateActivity, act.ID)
	}
	return community, nil
}

func (s *IngestService) applyFollow(ctx context.Context, act *activity.Activity) (*model.Community, error) {
	apID, err := act.ObjectID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidActivity, err)
	}
	repos := s.repos.WithContext(ctx)
	community, err := repos.Communities.GetByApID(apID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, apID)
	}
	if err != nil {
		return nil, err
	}
	if !community.Local {
		return nil, fmt.Errorf("%w: follow of remote community %s", ErrOutOfScope, apID)
	}
	if act.Announcer != "" {
		return nil, fmt.Errorf("%w: follow cannot be announced", ErrInvalidActivity)
	}

	follower, err := s.resolver.ResolvePerson(ctx, act.Actor)
	if err != nil {
		return nil, err
	}
	if act.Kind == activity.KindUnfollow {
		return community, repos.Communities.RemoveFollower(community.ID, follower.ID)
	}
	_, err = repos.Communities.AddFollower(community.ID, follower.ID)
	return community, err
}
