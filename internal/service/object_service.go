package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

// ErrGone 对象已被作者删除或版主移除，返回 Tombstone
var ErrGone = errors.New("对象已删除")

// ObjectService 对外提供本实例拥有的对象
type ObjectService struct {
	repos    *repository.Repos
	instance Instance
}

func NewObjectService(repos *repository.Repos, instance Instance) *ObjectService {
	return &ObjectService{
		repos:    repos,
		instance: instance,
	}
}

// Get 按 ap_id 返回本地对象；只提供 local 对象，缓存的远程副本不对外
func (s *ObjectService) Get(ctx context.Context, apID string) (interface{}, error) {
	repos := s.repos.WithContext(ctx)

	if c, err := repos.Comments.GetByApIDWithRelations(apID); err == nil && c.Local {
		if !c.Visible() {
			return &activity.Tombstone{Context: activity.Context, Type: activity.TypeTombstone, ID: c.ApID}, ErrGone
		}
		return s.Note(ctx, c)
	}
	if p, err := repos.Posts.GetByApID(apID); err == nil && p.Local {
		return s.page(ctx, p)
	}
	if p, err := repos.Persons.GetByApID(apID); err == nil && p.Local {
		return personObject(p), nil
	}
	if c, err := repos.Communities.GetByApID(apID); err == nil && c.Local {
		return s.group(ctx, c)
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, apID)
}

// Note 评论的联邦表示，c 需预加载 Creator/Post/Community
func (s *ObjectService) Note(ctx context.Context, c *model.Comment) (*activity.Note, error) {
	inReplyTo := c.Post.ApID
	if c.ParentID != nil {
		parent, err := s.repos.WithContext(ctx).Comments.GetByID(*c.ParentID)
		if err != nil {
			return nil, err
		}
		inReplyTo = parent.ApID
	}
	return buildNote(c, c.Creator, c.Community, inReplyTo, Tags(s.cachedMentions(ctx, c.Content))), nil
}

// cachedMentions 只查已缓存的用户，不触发远程解析
func (s *ObjectService) cachedMentions(ctx context.Context, content string) []*model.Person {
	repos := s.repos.WithContext(ctx)
	var persons []*model.Person
	for _, m := range ExtractMentions(content) {
		if p, err := repos.Persons.GetByNameAndDomain(m.Name, m.Instance); err == nil {
			persons = append(persons, p)
		}
	}
	return persons
}

func buildNote(c *model.Comment, creator *model.Person, community *model.Community, inReplyTo string, tags []activity.Tag) *activity.Note {
	return &activity.Note{
		Context:      activity.Context,
		Type:         activity.TypeNote,
		ID:           c.ApID,
		AttributedTo: creator.ApID,
		Content:      c.Content,
		InReplyTo:    inReplyTo,
		Audience:     community.ApID,
		Published:    c.Published,
		Updated:      c.Updated,
		Tag:          tags,
	}
}

func (s *ObjectService) page(ctx context.Context, p *model.Post) (*activity.Page, error) {
	repos := s.repos.WithContext(ctx)
	community, err := repos.Communities.GetByID(p.CommunityID)
	if err != nil {
		return nil, err
	}
	creator, err := repos.Persons.GetByID(p.CreatorID)
	if err != nil {
		return nil, err
	}
	return &activity.Page{
		Context:      activity.Context,
		Type:         activity.TypePage,
		ID:           p.ApID,
		AttributedTo: creator.ApID,
		Name:         p.Name,
		Audience:     community.ApID,
		Published:    p.Published,
	}, nil
}

func (s *ObjectService) group(ctx context.Context, c *model.Community) (*activity.Group, error) {
	mods, err := s.repos.WithContext(ctx).Communities.ListModerators(c.ID)
	if err != nil {
		return nil, err
	}
	group := &activity.Group{
		Context:           activity.Context,
		Type:              activity.TypeGroup,
		ID:                c.ApID,
		PreferredUsername: c.Name,
		Inbox:             c.InboxURL,
	}
	for _, m := range mods {
		group.Moderators = append(group.Moderators, m.ApID)
	}
	return group, nil
}

func personObject(p *model.Person) *activity.PersonObject {
	return &activity.PersonObject{
		Context:           activity.Context,
		Type:              activity.TypePerson,
		ID:                p.ApID,
		PreferredUsername: p.Name,
		Inbox:             p.InboxURL,
		Admin:             p.Admin,
	}
}

// WebFinger 解析 acct:name@domain，先查用户再查社区
func (s *ObjectService) WebFinger(ctx context.Context, resource string) (*activity.WebFinger, error) {
	acct := strings.TrimPrefix(resource, "acct:")
	name, domain, ok := strings.Cut(acct, "@")
	if !ok || name == "" || strings.ToLower(domain) != s.instance.Domain {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resource)
	}

	repos := s.repos.WithContext(ctx)
	var href string
	if p, err := repos.Persons.GetLocalByName(name); err == nil {
		href = p.ApID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	} else if c, err := repos.Communities.GetLocalByName(name); err == nil {
		href = c.ApID
	} else if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, resource)
	} else {
		return nil, err
	}

	return &activity.WebFinger{
		Subject: "acct:" + acct,
		Links: []activity.WebFingerLink{
			{Rel: "self", Type: activity.ContentType, Href: href},
		},
	}, nil
}
