package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

// ReportService 举报：社区在本地时直接存储，否则以 Flag 转发到社区所在实例
type ReportService struct {
	repos      *repository.Repos
	dispatcher *Dispatcher
	instance   Instance
	log        *zap.Logger
}

func NewReportService(repos *repository.Repos, dispatcher *Dispatcher, instance Instance, log *zap.Logger) *ReportService {
	return &ReportService{
		repos:      repos,
		dispatcher: dispatcher,
		instance:   instance,
		log:        log,
	}
}

// Create 举报评论
func (s *ReportService) Create(ctx context.Context, personID, commentID int64, req *dto.CreateReportRequest) (*dto.ReportResult, error) {
	repos := s.repos.WithContext(ctx)

	reporter, err := repos.Persons.GetByID(personID)
	if err != nil {
		return nil, notFound(err)
	}
	comment, err := repos.Comments.GetByIDWithRelations(commentID)
	if err != nil {
		return nil, notFound(err)
	}
	community := comment.Community
	reason := SanitizeContent(req.Reason)
	activityID := s.instance.NewActivityID(activity.KindReport)

	if community.Local {
		report := &model.CommentReport{
			ApID:                activityID,
			CreatorID:           reporter.ID,
			CommentID:           comment.ID,
			OriginalCommentText: comment.Content,
			Reason:              reason,
		}
		if _, err := repos.Reports.CreateIfAbsent(report); err != nil {
			return nil, err
		}
		return &dto.ReportResult{Stored: true, ReportID: &report.ID}, nil
	}

	env, err := activity.New(activity.KindReport, activityID, reporter.ApID, comment.ApID, community.ApID, time.Now())
	if err != nil {
		return nil, err
	}
	env.Summary = reason
	if err := s.dispatcher.SendTo(ctx, env, []string{community.InboxURL}); err != nil {
		return nil, err
	}
	return &dto.ReportResult{Forwarded: true}, nil
}

// List 社区的举报列表，仅版主或本实例管理员可见
func (s *ReportService) List(ctx context.Context, personID, communityID int64, req *dto.ReportListRequest) ([]*dto.ReportItem, int64, error) {
	repos := s.repos.WithContext(ctx)

	community, err := repos.Communities.GetByID(communityID)
	if err != nil {
		return nil, 0, notFound(err)
	}
	if err := s.checkModerator(ctx, personID, community); err != nil {
		return nil, 0, err
	}

	reports, total, err := repos.Reports.ListByCommunity(community.ID, req.UnresolvedOnly, req.Page, req.PageSize)
	if err != nil {
		return nil, 0, err
	}

	items := make([]*dto.ReportItem, len(reports))
	for i, r := range reports {
		items[i] = s.buildReportItem(ctx, r)
	}
	return items, total, nil
}

// Resolve 标记举报已处理/未处理
func (s *ReportService) Resolve(ctx context.Context, personID, reportID int64, resolved bool) (*dto.ReportItem, error) {
	repos := s.repos.WithContext(ctx)

	report, err := repos.Reports.GetByID(reportID)
	if err != nil {
		return nil, notFound(err)
	}
	comment, err := repos.Comments.GetByID(report.CommentID)
	if err != nil {
		return nil, err
	}
	community, err := repos.Communities.GetByID(comment.CommunityID)
	if err != nil {
		return nil, err
	}
	if err := s.checkModerator(ctx, personID, community); err != nil {
		return nil, err
	}

	if err := repos.Reports.Resolve(report.ID, personID, resolved); err != nil {
		return nil, err
	}
	report.Resolved = resolved
	report.ResolverID = &personID
	return s.buildReportItem(ctx, report), nil
}

func (s *ReportService) checkModerator(ctx context.Context, personID int64, community *model.Community) error {
	repos := s.repos.WithContext(ctx)
	person, err := repos.Persons.GetByID(personID)
	if err != nil {
		return notFound(err)
	}
	if person.Admin && person.Local && community.Local {
		return nil
	}
	ok, err := repos.Communities.IsModerator(community.ID, person.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

func (s *ReportService) buildReportItem(ctx context.Context, r *model.CommentReport) *dto.ReportItem {
	repos := s.repos.WithContext(ctx)
	item := &dto.ReportItem{
		ID:                  r.ID,
		ApID:                r.ApID,
		OriginalCommentText: r.OriginalCommentText,
		Reason:              r.Reason,
		Resolved:            r.Resolved,
		Created:             r.CreatedAt.Format(time.RFC3339),
	}
	if c, err := repos.Comments.GetByID(r.CommentID); err == nil {
		item.CommentApID = c.ApID
	}
	if p, err := repos.Persons.GetByID(r.CreatorID); err == nil {
		item.Reporter = p.ApID
	}
	return item
}
