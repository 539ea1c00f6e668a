package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repos 一个数据库上的全部仓库，便于在事务中整体切换
type Repos struct {
	db *gorm.DB

	Persons       *PersonRepository
	Communities   *CommunityRepository
	Posts         *PostRepository
	Comments      *CommentRepository
	Votes         *VoteRepository
	Notifications *NotificationRepository
	Reports       *ReportRepository
	Activities    *ActivityRepository
}

func NewRepos(db *gorm.DB) *Repos {
	return &Repos{
		db:            db,
		Persons:       NewPersonRepository(db),
		Communities:   NewCommunityRepository(db),
		Posts:         NewPostRepository(db),
		Comments:      NewCommentRepository(db),
		Votes:         NewVoteRepository(db),
		Notifications: NewNotificationRepository(db),
		Reports:       NewReportRepository(db),
		Activities:    NewActivityRepository(db),
	}
}

// WithContext 返回携带 ctx 的仓库集合
func (r *Repos) WithContext(ctx context.Context) *Repos {
	return NewRepos(r.db.WithContext(ctx))
}

// Transaction 在同一事务内执行 fn
func (r *Repos) Transaction(ctx context.Context, fn func(tx *Repos) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepos(tx))
	})
}

// DB 底层连接
func (r *Repos) DB() *gorm.DB {
	return r.db
}
