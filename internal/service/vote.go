package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

// VoteAggregator 维护 (评论, 投票人) 的当前投票以及由其重算的分数。
// 调用方需持有评论 ap_id 的 keylock
type VoteAggregator struct {
	repos *repository.Repos
}

func NewVoteAggregator(repos *repository.Repos) *VoteAggregator {
	return &VoteAggregator{repos: repos}
}

// InsertComment 插入评论（已存在则不变），新评论附带作者的隐式 +1 票
func (v *VoteAggregator) InsertComment(ctx context.Context, comment *model.Comment) (bool, error) {
	var created bool
	err := v.repos.Transaction(ctx, func(tx *repository.Repos) error {
		var err error
		created, err = tx.Comments.CreateIfAbsent(comment)
		if err != nil || !created {
			return err
		}
		_, _, err = upsertVote(tx, comment.ID, comment.CreatorID, 1, comment.Published)
		return err
	})
	return created, err
}

// Upsert 写入投票并在同一事务内重算分数。较旧的投票不会覆盖较新的；
// 时间相同时取较大的分值。返回是否生效
func (v *VoteAggregator) Upsert(ctx context.Context, commentID, personID int64, score int, at time.Time) (*model.CommentAggregate, bool, error) {
	var agg *model.CommentAggregate
	var applied bool
	err := v.repos.Transaction(ctx, func(tx *repository.Repos) error {
		var err error
		agg, applied, err = upsertVote(tx, commentID, personID, score, at)
		return err
	})
	return agg, applied, err
}

// Score 当前分数
func (v *VoteAggregator) Score(ctx context.Context, commentID int64) (*model.CommentAggregate, error) {
	agg, err := v.repos.WithContext(ctx).Votes.GetAggregate(commentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.CommentAggregate{CommentID: commentID}, nil
	}
	return agg, err
}

func upsertVote(tx *repository.Repos, commentID, personID int64, score int, at time.Time) (*model.CommentAggregate, bool, error) {
	existing, err := tx.Votes.Get(commentID, personID)
	switch {
	case err == nil:
		if at.Before(existing.VotedAt) || (at.Equal(existing.VotedAt) && score <= existing.Score) {
			agg, err := tx.Votes.GetAggregate(commentID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				agg, err = tx.Votes.RecomputeAggregate(commentID)
			}
			return agg, false, err
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, err
	}

	vote := &model.CommentVote{
		CommentID: commentID,
		PersonID:  personID,
		Score:     score,
		VotedAt:   at,
	}
	if err := tx.Votes.Save(vote); err != nil {
		return nil, false, err
	}
	agg, err := tx.Votes.RecomputeAggregate(commentID)
	return agg, true, err
}
