package service

import (
	"time"

	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
)

// CommentItem 把评论转为 API 视图；不可见时隐藏内容
func CommentItem(c *model.Comment) *dto.CommentItem {
	item := &dto.CommentItem{
		ID:        c.ID,
		ApID:      c.ApID,
		ParentID:  c.ParentID,
		Content:   c.Content,
		Deleted:   c.Deleted,
		Removed:   c.Removed,
		Local:     c.Local,
		Published: c.Published.Format(time.RFC3339Nano),
	}
	switch {
	case c.Deleted:
		item.Content = model.DeletedContent
	case c.Removed:
		item.Content = model.RemovedContent
	}
	if c.Updated != nil {
		item.Updated = c.Updated.Format(time.RFC3339Nano)
	}
	if c.Creator != nil {
		item.Creator = PersonBrief(c.Creator)
	}
	if c.Post != nil {
		item.PostApID = c.Post.ApID
	}
	if c.Community != nil {
		item.Community = c.Community.ApID
	}
	if c.Counts != nil {
		item.Score = c.Counts.Score
		item.Upvotes = c.Counts.Upvotes
		item.Downvotes = c.Counts.Downvotes
	}
	return item
}

func PersonBrief(p *model.Person) *dto.PersonBrief {
	return &dto.PersonBrief{
		ID:    p.ID,
		ApID:  p.ApID,
		Name:  p.Name,
		Local: p.Local,
	}
}

func CommunityItem(c *model.Community) *dto.CommunityItem {
	return &dto.CommunityItem{
		ID:     c.ID,
		ApID:   c.ApID,
		Name:   c.Name,
		Domain: c.Domain,
		Local:  c.Local,
	}
}

func PostItem(p *model.Post, community *model.Community) *dto.PostItem {
	item := &dto.PostItem{
		ID:        p.ID,
		ApID:      p.ApID,
		Name:      p.Name,
		Published: p.Published.Format(time.RFC3339Nano),
	}
	if community != nil {
		item.Community = community.ApID
	}
	return item
}
