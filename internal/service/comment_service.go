package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/keylock"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

var (
	ErrCommentPermission = errors.New("无权操作此评论")
	ErrParentNotInPost   = errors.New("父评论不属于该帖子")
	ErrEmptyContent      = errors.New("评论内容为空")
	ErrCommentDeleted    = errors.New("评论已删除")
)

// CommentService 本地用户对评论的操作；每次变更都生成活动交给 Dispatcher
type CommentService struct {
	repos      *repository.Repos
	votes      *VoteAggregator
	mentions   *MentionEngine
	notifier   *NotificationService
	dispatcher *Dispatcher
	objects    *ObjectService
	locks      *keylock.Locker
	instance   Instance
	log        *zap.Logger
}

func NewCommentService(
	repos *repository.Repos,
	votes *VoteAggregator,
	mentions *MentionEngine,
	notifier *NotificationService,
	dispatcher *Dispatcher,
	objects *ObjectService,
	locks *keylock.Locker,
	instance Instance,
	log *zap.Logger,
) *CommentService {
	return &CommentService{
		repos:      repos,
		votes:      votes,
		mentions:   mentions,
		notifier:   notifier,
		dispatcher: dispatcher,
		objects:    objects,
		locks:      locks,
		instance:   instance,
		log:        log,
	}
}

// Create 创建评论
func (s *CommentService) Create(ctx context.Context, personID int64, req *dto.CreateCommentRequest) (*dto.CommentItem, error) {
	repos := s.repos.WithContext(ctx)

	creator, err := repos.Persons.GetByID(personID)
	if err != nil {
		return nil, notFound(err)
	}
	post, err := repos.Posts.GetByID(req.PostID)
	if err != nil {
		return nil, notFound(err)
	}

	// 如果是回复，验证父评论
	var parent *model.Comment
	if req.ParentID != nil {
		parent, err = repos.Comments.GetByID(*req.ParentID)
		if err != nil {
			return nil, notFound(err)
		}
		if parent.PostID != post.ID {
			return nil, ErrParentNotInPost
		}
	}

	content := SanitizeContent(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	comment := &model.Comment{
		ApID:        s.instance.NewCommentID(),
		PostID:      post.ID,
		CreatorID:   creator.ID,
		CommunityID: post.CommunityID,
		Content:     content,
		Published:   activity.Timestamp(time.Now()),
		Local:       true,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if _, err := s.votes.InsertComment(ctx, comment); err != nil {
		return nil, err
	}
	comment.Creator = creator

	notifyNew(ctx, s.repos, s.mentions, s.notifier, s.log, comment, post, parent)

	if err := s.publishNote(ctx, activity.KindCreate, comment.ID, comment.Published); err != nil {
		s.log.Error("failed to dispatch comment", zap.String("comment", comment.ApID), zap.Error(err))
	}
	return s.Get(ctx, comment.ID)
}

// Edit 编辑评论，仅作者可操作
func (s *CommentService) Edit(ctx context.Context, personID, commentID int64, req *dto.EditCommentRequest) (*dto.CommentItem, error) {
	content := SanitizeContent(req.Content)
	if content == "" {
		return nil, ErrEmptyContent
	}

	var at time.Time
	err := s.mutate(ctx, personID, commentID, func(repos *repository.Repos, c *model.Comment) error {
		if c.Deleted {
			return ErrCommentDeleted
		}
		prev := c.Revision()
		at = nextStamp(&prev)
		if err := repos.Comments.UpdateContent(c.ID, content, at); err != nil {
			return err
		}
		c.Content = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	comment, err := s.repos.WithContext(ctx).Comments.GetByIDWithRelations(commentID)
	if err != nil {
		return nil, err
	}
	if err := s.mentions.Notify(ctx, comment); err != nil {
		s.log.Warn("failed to create mention notifications", zap.String("comment", comment.ApID), zap.Error(err))
	}
	if err := s.publishNote(ctx, activity.KindUpdate, commentID, at); err != nil {
		s.log.Error("failed to dispatch comment update", zap.Int64("comment_id", commentID), zap.Error(err))
	}
	return CommentItem(comment), nil
}

// Delete 作者删除评论，行保留以便撤销
func (s *CommentService) Delete(ctx context.Context, personID, commentID int64) (*dto.CommentItem, error) {
	return s.setDeleted(ctx, personID, commentID, true)
}

// Undelete 作者撤销删除
func (s *CommentService) Undelete(ctx context.Context, personID, commentID int64) (*dto.CommentItem, error) {
	return s.setDeleted(ctx, personID, commentID, false)
}

func (s *CommentService) setDeleted(ctx context.Context, personID, commentID int64, deleted bool) (*dto.CommentItem, error) {
	var at time.Time
	var comment *model.Comment
	err := s.mutate(ctx, personID, commentID, func(repos *repository.Repos, c *model.Comment) error {
		at = nextStamp(c.DeletedStateAt)
		if err := repos.Comments.UpdateDeleted(c.ID, deleted, at); err != nil {
			return err
		}
		c.Deleted = deleted
		c.DeletedStateAt = &at
		comment = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	env, err := activity.New(activity.KindDelete, s.instance.NewActivityID(activity.KindDelete),
		comment.Creator.ApID, comment.ApID, "", at)
	if err == nil && !deleted {
		env, err = activity.New(activity.KindUndo, s.instance.NewActivityID(activity.KindUndo),
			comment.Creator.ApID, env, "", at)
	}
	if err == nil {
		err = s.dispatcher.Send(ctx, env, comment.Community, nil)
	}
	if err != nil {
		s.log.Error("failed to dispatch comment deletion", zap.String("comment", comment.ApID), zap.Error(err))
	}
	return CommentItem(comment), nil
}

// mutate 在评论 ap_id 的锁内执行作者的变更
func (s *CommentService) mutate(ctx context.Context, personID, commentID int64, fn func(*repository.Repos, *model.Comment) error) error {
	repos := s.repos.WithContext(ctx)
	comment, err := repos.Comments.GetByID(commentID)
	if err != nil {
		return notFound(err)
	}

	unlock, err := s.locks.Lock(ctx, comment.ApID)
	if err != nil {
		return err
	}
	defer unlock()

	comment, err = repos.Comments.GetByIDWithRelations(commentID)
	if err != nil {
		return err
	}
	if comment.CreatorID != personID || !comment.Local {
		return ErrCommentPermission
	}
	return fn(repos, comment)
}

// Vote 投票：1 为 Like，-1 为 Dislike，0 为撤销
func (s *CommentService) Vote(ctx context.Context, personID, commentID int64, score int) (*dto.VoteResponse, error) {
	repos := s.repos.WithContext(ctx)

	voter, err := repos.Persons.GetByID(personID)
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

	var prev *time.Time
	if v, err := repos.Votes.Get(comment.ID, voter.ID); err == nil {
		prev = &v.VotedAt
	}
	at := nextStamp(prev)
	agg, _, err := s.votes.Upsert(ctx, comment.ID, voter.ID, score, at)
	if err != nil {
		return nil, err
	}

	if env, err := s.voteActivity(voter, comment, score, at); err != nil {
		s.log.Error("failed to build vote", zap.String("comment", comment.ApID), zap.Error(err))
	} else if err := s.dispatcher.Send(ctx, env, comment.Community, nil); err != nil {
		s.log.Error("failed to dispatch vote", zap.String("comment", comment.ApID), zap.Error(err))
	}

	return &dto.VoteResponse{
		Score:     agg.Score,
		Upvotes:   agg.Upvotes,
		Downvotes: agg.Downvotes,
	}, nil
}

func (s *CommentService) voteActivity(voter *model.Person, comment *model.Comment, score int, at time.Time) (*activity.Envelope, error) {
	kind := activity.KindLike
	if score < 0 {
		kind = activity.KindDislike
	}
	env, err := activity.New(kind, s.instance.NewActivityID(kind), voter.ApID, comment.ApID, "", at)
	if err != nil || score != 0 {
		return env, err
	}
	return activity.New(activity.KindUndo, s.instance.NewActivityID(activity.KindUndo), voter.ApID, env, "", at)
}

// publishNote 以 Create/Update 发送评论，被提及者也在受众内
func (s *CommentService) publishNote(ctx context.Context, kind activity.Kind, commentID int64, at time.Time) error {
	comment, err := s.repos.WithContext(ctx).Comments.GetByIDWithRelations(commentID)
	if err != nil {
		return err
	}

	mentioned := s.mentions.Recipients(ctx, comment.Content)
	note, err := s.objects.Note(ctx, comment)
	if err != nil {
		return err
	}
	note.Tag = Tags(mentioned)

	env, err := activity.New(kind, s.instance.NewActivityID(kind), comment.Creator.ApID, note, "", at)
	if err != nil {
		return err
	}
	return s.dispatcher.Send(ctx, env, comment.Community, mentioned)
}

// Get 获取评论
func (s *CommentService) Get(ctx context.Context, commentID int64) (*dto.CommentItem, error) {
	comment, err := s.repos.WithContext(ctx).Comments.GetByIDWithRelations(commentID)
	if err != nil {
		return nil, notFound(err)
	}
	return CommentItem(comment), nil
}

// ListByPost 获取帖子下的全部评论（按发布时间），删除/移除的评论以占位内容保留在树中
func (s *CommentService) ListByPost(ctx context.Context, postID int64) ([]*dto.CommentItem, error) {
	repos := s.repos.WithContext(ctx)
	if _, err := repos.Posts.GetByID(postID); err != nil {
		return nil, notFound(err)
	}

	comments, err := repos.Comments.ListByPostID(postID)
	if err != nil {
		return nil, err
	}
	items := make([]*dto.CommentItem, len(comments))
	for i, c := range comments {
		items[i] = CommentItem(c)
	}
	return items, nil
}
