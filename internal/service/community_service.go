package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

var (
	ErrCommunityExists   = errors.New("社区已存在")
	ErrCommunityNotLocal = errors.New("社区不属于本实例")
)

// CommunityService 社区、帖子与关注关系
type CommunityService struct {
	repos      *repository.Repos
	resolver   *Resolver
	dispatcher *Dispatcher
	instance   Instance
	log        *zap.Logger
}

func NewCommunityService(repos *repository.Repos, resolver *Resolver, dispatcher *Dispatcher, instance Instance, log *zap.Logger) *CommunityService {
	return &CommunityService{
		repos:      repos,
		resolver:   resolver,
		dispatcher: dispatcher,
		instance:   instance,
		log:        log,
	}
}

// CreateCommunity 创建本地社区，创建者成为版主
func (s *CommunityService) CreateCommunity(ctx context.Context, personID int64, name string) (*dto.CommunityItem, error) {
	if !namePattern.MatchString(name) {
		return nil, ErrInvalidName
	}

	var community *model.Community
	err := s.repos.Transaction(ctx, func(tx *repository.Repos) error {
		creator, err := tx.Persons.GetByID(personID)
		if err != nil {
			return notFound(err)
		}
		if _, err := tx.Communities.GetLocalByName(name); err == nil {
			return ErrCommunityExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		community = &model.Community{
			ApID:     s.instance.CommunityID(name),
			Name:     name,
			Domain:   s.instance.Domain,
			InboxURL: s.instance.Inbox(),
			Local:    true,
		}
		if err := tx.Communities.Create(community); err != nil {
			return err
		}
		return tx.Communities.AddModerator(community.ID, creator.ID)
	})
	if err != nil {
		return nil, err
	}
	return CommunityItem(community), nil
}

// AddModerator 添加版主，仅现有版主可操作
func (s *CommunityService) AddModerator(ctx context.Context, personID, communityID, moderatorID int64) error {
	repos := s.repos.WithContext(ctx)
	community, err := repos.Communities.GetByID(communityID)
	if err != nil {
		return notFound(err)
	}
	if !community.Local {
		return ErrCommunityNotLocal
	}
	ok, err := repos.Communities.IsModerator(community.ID, personID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	if _, err := repos.Persons.GetByID(moderatorID); err != nil {
		return notFound(err)
	}
	return repos.Communities.AddModerator(community.ID, moderatorID)
}

// CreatePost 在本地社区下创建帖子
func (s *CommunityService) CreatePost(ctx context.Context, personID, communityID int64, req *dto.CreatePostRequest) (*dto.PostItem, error) {
	repos := s.repos.WithContext(ctx)

	creator, err := repos.Persons.GetByID(personID)
	if err != nil {
		return nil, notFound(err)
	}
	community, err := repos.Communities.GetByID(communityID)
	if err != nil {
		return nil, notFound(err)
	}
	if !community.Local {
		return nil, ErrCommunityNotLocal
	}

	post := &model.Post{
		ApID:        s.instance.NewPostID(),
		Name:        SanitizeContent(req.Name),
		CommunityID: community.ID,
		CreatorID:   creator.ID,
		Local:       true,
		Published:   activity.Timestamp(time.Now()),
	}
	if err := repos.Posts.Create(post); err != nil {
		return nil, err
	}
	return PostItem(post, community), nil
}

// Follow 本地用户关注社区；远程社区会收到 Follow
func (s *CommunityService) Follow(ctx context.Context, personID int64, communityApID string) (*dto.CommunityItem, error) {
	return s.setFollow(ctx, personID, communityApID, true)
}

// Unfollow 取消关注；远程社区会收到 Undo{Follow}
func (s *CommunityService) Unfollow(ctx context.Context, personID int64, communityApID string) (*dto.CommunityItem, error) {
	return s.setFollow(ctx, personID, communityApID, false)
}

func (s *CommunityService) setFollow(ctx context.Context, personID int64, communityApID string, follow bool) (*dto.CommunityItem, error) {
	person, err := s.repos.WithContext(ctx).Persons.GetByID(personID)
	if err != nil {
		return nil, notFound(err)
	}
	community, err := s.resolver.ResolveCommunity(ctx, communityApID)
	if err != nil {
		return nil, err
	}

	repos := s.repos.WithContext(ctx)
	if follow {
		if _, err := repos.Communities.AddFollower(community.ID, person.ID); err != nil {
			return nil, err
		}
	} else if err := repos.Communities.RemoveFollower(community.ID, person.ID); err != nil {
		return nil, err
	}

	if community.Local {
		return CommunityItem(community), nil
	}

	now := time.Now()
	env, err := activity.New(activity.KindFollow, s.instance.NewActivityID(activity.KindFollow),
		person.ApID, community.ApID, "", now)
	if err == nil && !follow {
		env, err = activity.New(activity.KindUndo, s.instance.NewActivityID(activity.KindUndo),
			person.ApID, env, "", now)
	}
	if err != nil {
		return nil, err
	}
	if err := s.dispatcher.SendTo(ctx, env, []string{community.InboxURL}); err != nil {
		return nil, err
	}
	return CommunityItem(community), nil
}

// GetCommunity 获取社区
func (s *CommunityService) GetCommunity(ctx context.Context, communityID int64) (*dto.CommunityItem, error) {
	community, err := s.repos.WithContext(ctx).Communities.GetByID(communityID)
	if err != nil {
		return nil, notFound(err)
	}
	return CommunityItem(community), nil
}

// GetPost 获取帖子
func (s *CommunityService) GetPost(ctx context.Context, postID int64) (*dto.PostItem, error) {
	repos := s.repos.WithContext(ctx)
	post, err := repos.Posts.GetByID(postID)
	if err != nil {
		return nil, notFound(err)
	}
	community, err := repos.Communities.GetByID(post.CommunityID)
	if err != nil {
		return nil, err
	}
	return PostItem(post, community), nil
}
