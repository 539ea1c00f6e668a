package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/pubsub"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

// NotificationPublisher 新通知事件的发布端（Redis pub/sub）
type NotificationPublisher interface {
	PublishNotification(ctx context.Context, msg *pubsub.NotificationMessage) error
}

type NotificationService struct {
	repos     *repository.Repos
	publisher NotificationPublisher
	log       *zap.Logger
}

// NewNotificationService publisher 可为 nil
func NewNotificationService(repos *repository.Repos, publisher NotificationPublisher, log *zap.Logger) *NotificationService {
	return &NotificationService{
		repos:     repos,
		publisher: publisher,
		log:       log,
	}
}

// NotifyMention 创建提及通知，只针对本地用户
func (s *NotificationService) NotifyMention(ctx context.Context, recipient *model.Person, comment *model.Comment) error {
	if !recipient.Local {
		return nil
	}
	m := &model.PersonMention{RecipientID: recipient.ID, CommentID: comment.ID}
	created, err := s.repos.WithContext(ctx).Notifications.CreateMention(m)
	if err != nil || !created {
		return err
	}
	s.publish(ctx, pubsub.TypeMention, recipient.ID, m.ID, comment)
	return nil
}

// NotifyReply 创建回复通知；回复自己不通知
func (s *NotificationService) NotifyReply(ctx context.Context, recipient *model.Person, comment *model.Comment) error {
	if !recipient.Local || recipient.ID == comment.CreatorID {
		return nil
	}
	reply := &model.CommentReply{RecipientID: recipient.ID, CommentID: comment.ID}
	created, err := s.repos.WithContext(ctx).Notifications.CreateReply(reply)
	if err != nil || !created {
		return err
	}
	s.publish(ctx, pubsub.TypeReply, recipient.ID, reply.ID, comment)
	return nil
}

func (s *NotificationService) publish(ctx context.Context, typ string, recipientID, notificationID int64, comment *model.Comment) {
	if s.publisher == nil {
		return
	}
	msg := &pubsub.NotificationMessage{
		Type:           typ,
		RecipientID:    recipientID,
		CommentID:      comment.ID,
		CommentApID:    comment.ApID,
		NotificationID: notificationID,
	}
	if comment.Creator != nil {
		msg.CreatorApID = comment.Creator.ApID
	}
	if err := s.publisher.PublishNotification(ctx, msg); err != nil {
		s.log.Warn("failed to publish notification", zap.Int64("recipient_id", recipientID), zap.Error(err))
	}
}

// UnreadCount 未读提及与回复数
func (s *NotificationService) UnreadCount(ctx context.Context, personID int64) (*dto.UnreadCount, error) {
	mentions, replies, err := s.repos.WithContext(ctx).Notifications.CountUnread(personID)
	if err != nil {
		return nil, err
	}
	return &dto.UnreadCount{Mentions: mentions, Replies: replies}, nil
}

// ListMentions 提及列表
func (s *NotificationService) ListMentions(ctx context.Context, personID int64, req *dto.NotificationListRequest) ([]*dto.NotificationItem, int64, error) {
	mentions, total, err := s.repos.WithContext(ctx).Notifications.ListMentions(personID, req.UnreadOnly, req.Page, req.PageSize)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*dto.NotificationItem, len(mentions))
	for i, m := range mentions {
		items[i] = notificationItem(m.ID, pubsub.TypeMention, m.Read, m.Comment, m.CreatedAt)
	}
	return items, total, nil
}

// ListReplies 回复列表
func (s *NotificationService) ListReplies(ctx context.Context, personID int64, req *dto.NotificationListRequest) ([]*dto.NotificationItem, int64, error) {
	replies, total, err := s.repos.WithContext(ctx).Notifications.ListReplies(personID, req.UnreadOnly, req.Page, req.PageSize)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*dto.NotificationItem, len(replies))
	for i, r := range replies {
		items[i] = notificationItem(r.ID, pubsub.TypeReply, r.Read, r.Comment, r.CreatedAt)
	}
	return items, total, nil
}

// MarkMentionRead 标记一条提及已读
func (s *NotificationService) MarkMentionRead(ctx context.Context, personID, id int64) error {
	ok, err := s.repos.WithContext(ctx).Notifications.MarkMentionRead(id, personID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// MarkReplyRead 标记一条回复已读
func (s *NotificationService) MarkReplyRead(ctx context.Context, personID, id int64) error {
	ok, err := s.repos.WithContext(ctx).Notifications.MarkReplyRead(id, personID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// MarkAllRead 全部标记已读
func (s *NotificationService) MarkAllRead(ctx context.Context, personID int64) error {
	return s.repos.WithContext(ctx).Notifications.MarkAllRead(personID)
}

func notificationItem(id int64, typ string, read bool, comment *model.Comment, created time.Time) *dto.NotificationItem {
	item := &dto.NotificationItem{
		ID:      id,
		Type:    typ,
		Read:    read,
		Created: created.Format(time.RFC3339),
	}
	if comment != nil {
		item.Comment = CommentItem(comment)
	}
	return item
}
