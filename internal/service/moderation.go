package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/keylock"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

// ModerationService 版主移除/恢复，区别于作者的删除/撤销删除
type ModerationService struct {
	repos      *repository.Repos
	dispatcher *Dispatcher
	locks      *keylock.Locker
	instance   Instance
	log        *zap.Logger
}

func NewModerationService(repos *repository.Repos, dispatcher *Dispatcher, locks *keylock.Locker, instance Instance, log *zap.Logger) *ModerationService {
	return &ModerationService{
		repos:      repos,
		dispatcher: dispatcher,
		locks:      locks,
		instance:   instance,
		log:        log,
	}
}

// AuthorizeInbound 入站 Remove/Restore 的检查：本实例须在社区的联邦范围内
// （社区在本地，或有本地用户关注），且执行者是版主或社区所在实例的管理员
func (s *ModerationService) AuthorizeInbound(ctx context.Context, actor *model.Person, community *model.Community) error {
	repos := s.repos.WithContext(ctx)

	if !community.Local {
		following, err := repos.Communities.HasLocalFollower(community.ID)
		if err != nil {
			return err
		}
		if !following {
			return fmt.Errorf("%w: %s", ErrOutOfScope, community.ApID)
		}
	}

	ok, err := s.canModerate(ctx, actor, community)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s cannot moderate %s", ErrUnauthorized, actor.ApID, community.ApID)
	}
	return nil
}

func (s *ModerationService) canModerate(ctx context.Context, actor *model.Person, community *model.Community) (bool, error) {
	if actor.Admin && actor.Domain == community.Domain {
		return true, nil
	}
	return s.repos.WithContext(ctx).Communities.IsModerator(community.ID, actor.ID)
}

// Remove 本地移除评论。版主的操作会联邦；非版主的本实例管理员只能移除远程社区评论的本地副本
func (s *ModerationService) Remove(ctx context.Context, personID, commentID int64, reason string) (*dto.CommentItem, error) {
	return s.setRemoved(ctx, personID, commentID, true, reason)
}

// Restore 本地恢复评论
func (s *ModerationService) Restore(ctx context.Context, personID, commentID int64, reason string) (*dto.CommentItem, error) {
	return s.setRemoved(ctx, personID, commentID, false, reason)
}

func (s *ModerationService) setRemoved(ctx context.Context, personID, commentID int64, removed bool, reason string) (*dto.CommentItem, error) {
	repos := s.repos.WithContext(ctx)

	mod, err := repos.Persons.GetByID(personID)
	if err != nil {
		return nil, notFound(err)
	}
	comment, err := repos.Comments.GetByIDWithRelations(commentID)
	if err != nil {
		return nil, notFound(err)
	}

	unlock, err := s.locks.Lock(ctx, comment.ApID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// 加锁后重新读取
	comment, err = repos.Comments.GetByIDWithRelations(commentID)
	if err != nil {
		return nil, err
	}
	community := comment.Community

	federate, err := s.canModerate(ctx, mod, community)
	if err != nil {
		return nil, err
	}
	if !federate && !(mod.Admin && mod.Local && !community.Local) {
		return nil, ErrUnauthorized
	}

	at := nextStamp(comment.RemovedStateAt)
	if err := repos.Comments.UpdateRemoved(comment.ID, removed, at); err != nil {
		return nil, err
	}
	comment.Removed = removed
	comment.RemovedStateAt = &at

	if !federate {
		s.log.Info("comment removal applied locally only",
			zap.String("comment", comment.ApID), zap.Bool("removed", removed), zap.Int64("admin_id", mod.ID))
		return CommentItem(comment), nil
	}

	env, err := s.removeActivity(mod, comment, community, removed, reason, at)
	if err != nil {
		return nil, err
	}
	if err := s.dispatcher.Send(ctx, env, community, nil); err != nil {
		s.log.Error("failed to dispatch moderation", zap.String("comment", comment.ApID), zap.Error(err))
	}
	return CommentItem(comment), nil
}

// removeActivity Remove，或 Undo{Remove} 表示恢复
func (s *ModerationService) removeActivity(mod *model.Person, comment *model.Comment, community *model.Community, removed bool, reason string, at time.Time) (*activity.Envelope, error) {
	remove, err := activity.New(activity.KindRemove, s.instance.NewActivityID(activity.KindRemove),
		mod.ApID, comment.ApID, community.ApID, at)
	if err != nil {
		return nil, err
	}
	remove.Summary = reason
	if removed {
		return remove, nil
	}
	return activity.New(activity.KindUndo, s.instance.NewActivityID(activity.KindUndo),
		mod.ApID, remove, community.ApID, at)
}

// nextStamp 本地变更的活动时间，严格晚于上一次状态变更
func nextStamp(prev *time.Time) time.Time {
	now := activity.Timestamp(time.Now())
	if prev != nil && !now.After(*prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
