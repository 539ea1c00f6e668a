package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/metrics"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/pkg/apclient"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

// Fetcher 远程对象获取
type Fetcher interface {
	Fetch(ctx context.Context, apID string) ([]byte, error)
	WebFinger(ctx context.Context, name, instance string) (string, error)
}

// Resolved Resolve 的结果，只有与 Type 对应的字段非空
type Resolved struct {
	Type      string
	Person    *model.Person
	Community *model.Community
	Post      *model.Post
	Comment   *model.Comment
}

// Resolver 把 ap_id 或 @name@instance 解析为本地缓存副本，缺失时远程获取
type Resolver struct {
	repos    *repository.Repos
	fetcher  Fetcher
	votes    *VoteAggregator
	instance Instance
	maxDepth int
	group    singleflight.Group
	log      *zap.Logger
}

func NewResolver(repos *repository.Repos, fetcher Fetcher, votes *VoteAggregator, instance Instance, maxDepth int, log *zap.Logger) *Resolver {
	return &Resolver{
		repos:    repos,
		fetcher:  fetcher,
		votes:    votes,
		instance: instance,
		maxDepth: maxDepth,
		log:      log,
	}
}

// Resolve 解析任意引用
func (r *Resolver) Resolve(ctx context.Context, ref string) (*Resolved, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "@") {
		name, instance, ok := strings.Cut(strings.TrimPrefix(ref, "@"), "@")
		if !ok || name == "" || instance == "" {
			return nil, fmt.Errorf("%w: bad reference %q", ErrNotFound, ref)
		}
		p, err := r.ResolveMention(ctx, name, instance)
		if err != nil {
			return nil, err
		}
		return &Resolved{Type: activity.TypePerson, Person: p}, nil
	}
	if activity.Host(ref) == "" {
		return nil, fmt.Errorf("%w: bad reference %q", ErrNotFound, ref)
	}

	repos := r.repos.WithContext(ctx)
	if c, err := repos.Comments.GetByApID(ref); err == nil {
		if c.Deleted {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return &Resolved{Type: activity.TypeNote, Comment: c}, nil
	}
	if p, err := repos.Posts.GetByApID(ref); err == nil {
		return &Resolved{Type: activity.TypePage, Post: p}, nil
	}
	if p, err := repos.Persons.GetByApID(ref); err == nil {
		return &Resolved{Type: activity.TypePerson, Person: p}, nil
	}
	if c, err := repos.Communities.GetByApID(ref); err == nil {
		return &Resolved{Type: activity.TypeGroup, Community: c}, nil
	}

	v, err, _ := r.group.Do("object:"+ref, func() (interface{}, error) {
		body, err := r.fetch(ctx, ref)
		if err != nil {
			return nil, err
		}
		typ, err := activity.PeekType(body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		switch typ {
		case activity.TypeNote:
			c, err := r.storeNote(ctx, ref, body)
			return &Resolved{Type: typ, Comment: c}, err
		case activity.TypePage:
			p, err := r.storePage(ctx, ref, body)
			return &Resolved{Type: typ, Post: p}, err
		case activity.TypePerson:
			p, err := r.storePerson(ctx, ref, body)
			return &Resolved{Type: typ, Person: p}, err
		case activity.TypeGroup:
			c, err := r.storeGroup(ctx, ref, body)
			return &Resolved{Type: typ, Community: c}, err
		}
		return nil, fmt.Errorf("%w: %s is a %s", ErrNotFound, ref, typ)
	})
	if err != nil {
		return nil, err
	}
	res := *v.(*Resolved)
	return &res, nil
}

// ResolvePerson 解析用户
func (r *Resolver) ResolvePerson(ctx context.Context, apID string) (*model.Person, error) {
	p, err := r.repos.WithContext(ctx).Persons.GetByApID(apID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	v, err, _ := r.group.Do("person:"+apID, func() (interface{}, error) {
		body, err := r.fetch(ctx, apID)
		if err != nil {
			return nil, err
		}
		return r.storePerson(ctx, apID, body)
	})
	if err != nil {
		return nil, err
	}
	person := *v.(*model.Person)
	return &person, nil
}

// ResolveCommunity 解析社区及其版主
func (r *Resolver) ResolveCommunity(ctx context.Context, apID string) (*model.Community, error) {
	c, err := r.repos.WithContext(ctx).Communities.GetByApID(apID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	v, err, _ := r.group.Do("community:"+apID, func() (interface{}, error) {
		body, err := r.fetch(ctx, apID)
		if err != nil {
			return nil, err
		}
		return r.storeGroup(ctx, apID, body)
	})
	if err != nil {
		return nil, err
	}
	community := *v.(*model.Community)
	return &community, nil
}

// RefreshCommunity 重新拉取远程社区，同步名称与版主集合；本地社区原样返回
func (r *Resolver) RefreshCommunity(ctx context.Context, community *model.Community) (*model.Community, error) {
	if community.Local {
		return community, nil
	}
	v, err, _ := r.group.Do("refresh:"+community.ApID, func() (interface{}, error) {
		body, err := r.fetch(ctx, community.ApID)
		if err != nil {
			return nil, err
		}
		return r.storeGroup(ctx, community.ApID, body)
	})
	if err != nil {
		return nil, err
	}
	refreshed := *v.(*model.Community)
	return &refreshed, nil
}

// ResolvePost 解析帖子及其社区、作者
func (r *Resolver) ResolvePost(ctx context.Context, apID string) (*model.Post, error) {
	p, err := r.repos.WithContext(ctx).Posts.GetByApID(apID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	v, err, _ := r.group.Do("post:"+apID, func() (interface{}, error) {
		body, err := r.fetch(ctx, apID)
		if err != nil {
			return nil, err
		}
		return r.storePage(ctx, apID, body)
	})
	if err != nil {
		return nil, err
	}
	post := *v.(*model.Post)
	return &post, nil
}

// ResolveComment 解析评论；作者已删除的评论视为不存在
func (r *Resolver) ResolveComment(ctx context.Context, apID string) (*model.Comment, error) {
	c, err := r.FindComment(ctx, apID)
	if err != nil {
		return nil, err
	}
	if c.Deleted {
		return nil, fmt.Errorf("%w: %s deleted by creator", ErrNotFound, apID)
	}
	return c, nil
}

// FindComment 获取评论行（不论删除/移除状态），缺失时远程获取。
// 入站活动需要作用于已删除的评论（例如 Undelete），因此不过滤状态
func (r *Resolver) FindComment(ctx context.Context, apID string) (*model.Comment, error) {
	c, err := r.repos.WithContext(ctx).Comments.GetByApID(apID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	v, err, _ := r.group.Do("comment:"+apID, func() (interface{}, error) {
		body, err := r.fetch(ctx, apID)
		if err != nil {
			return nil, err
		}
		return r.storeNote(ctx, apID, body)
	})
	if err != nil {
		return nil, err
	}
	comment := *v.(*model.Comment)
	return &comment, nil
}

// ResolveMention 解析 @name@instance；本实例用户只查本地
func (r *Resolver) ResolveMention(ctx context.Context, name, instance string) (*model.Person, error) {
	instance = strings.ToLower(instance)
	repos := r.repos.WithContext(ctx)

	if instance == r.instance.Domain {
		p, err := repos.Persons.GetLocalByName(name)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: @%s@%s", ErrNotFound, name, instance)
		}
		return p, err
	}

	if p, err := repos.Persons.GetByNameAndDomain(name, instance); err == nil {
		return p, nil
	}

	v, err, _ := r.group.Do("acct:"+name+"@"+instance, func() (interface{}, error) {
		apID, err := r.fetcher.WebFinger(ctx, name, instance)
		if err != nil {
			return nil, remoteError(err)
		}
		return r.ResolvePerson(ctx, apID)
	})
	if err != nil {
		return nil, err
	}
	person := *v.(*model.Person)
	return &person, nil
}

func (r *Resolver) fetch(ctx context.Context, apID string) ([]byte, error) {
	if r.instance.IsLocal(apID) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, apID)
	}
	body, err := r.fetcher.Fetch(ctx, apID)
	if err != nil {
		err = remoteError(err)
		metrics.ResolvesProcessed.WithLabelValues(ReasonCode(err)).Inc()
		return nil, err
	}
	metrics.ResolvesProcessed.WithLabelValues(ReasonAccepted).Inc()
	return body, nil
}

func remoteError(err error) error {
	if errors.Is(err, apclient.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func (r *Resolver) storePerson(ctx context.Context, apID string, body []byte) (*model.Person, error) {
	var obj activity.PersonObject
	if err := json.Unmarshal(body, &obj); err != nil || obj.Type != activity.TypePerson || obj.ID != apID {
		return nil, fmt.Errorf("%w: %s is not a person", ErrNotFound, apID)
	}

	person := &model.Person{
		ApID:     obj.ID,
		Name:     obj.PreferredUsername,
		Domain:   activity.Host(obj.ID),
		InboxURL: obj.Inbox,
		Admin:    obj.Admin,
	}
	if err := r.repos.WithContext(ctx).Persons.Upsert(person); err != nil {
		return nil, err
	}
	return person, nil
}

func (r *Resolver) storeGroup(ctx context.Context, apID string, body []byte) (*model.Community, error) {
	var obj activity.Group
	if err := json.Unmarshal(body, &obj); err != nil || obj.Type != activity.TypeGroup || obj.ID != apID {
		return nil, fmt.Errorf("%w: %s is not a community", ErrNotFound, apID)
	}

	repos := r.repos.WithContext(ctx)
	community := &model.Community{
		ApID:     obj.ID,
		Name:     obj.PreferredUsername,
		Domain:   activity.Host(obj.ID),
		InboxURL: obj.Inbox,
	}
	if err := repos.Communities.Upsert(community); err != nil {
		return nil, err
	}

	// 有版主解析失败时只增不减，避免因暂时不可达撤下版主
	modIDs := make([]int64, 0, len(obj.Moderators))
	complete := true
	for _, modID := range obj.Moderators {
		mod, err := r.ResolvePerson(ctx, modID)
		if err != nil {
			r.log.Warn("skipping unresolvable moderator",
				zap.String("community", apID), zap.String("moderator", modID), zap.Error(err))
			complete = false
			continue
		}
		modIDs = append(modIDs, mod.ID)
	}
	if complete {
		return community, repos.Communities.SetModerators(community.ID, modIDs)
	}
	for _, id := range modIDs {
		if err := repos.Communities.AddModerator(community.ID, id); err != nil {
			return nil, err
		}
	}
	return community, nil
}

func (r *Resolver) storePage(ctx context.Context, apID string, body []byte) (*model.Post, error) {
	var page activity.Page
	if err := json.Unmarshal(body, &page); err != nil || page.Type != activity.TypePage || page.ID != apID {
		return nil, fmt.Errorf("%w: %s is not a post", ErrNotFound, apID)
	}

	community, err := r.ResolveCommunity(ctx, page.Audience)
	if err != nil {
		return nil, err
	}
	creator, err := r.ResolvePerson(ctx, page.AttributedTo)
	if err != nil {
		return nil, err
	}

	post := &model.Post{
		ApID:        page.ID,
		Name:        page.Name,
		CommunityID: community.ID,
		CreatorID:   creator.ID,
		Published:   activity.Timestamp(page.Published),
	}
	if err := r.repos.WithContext(ctx).Posts.CreateIfAbsent(post); err != nil {
		return nil, err
	}
	return post, nil
}

func (r *Resolver) storeNote(ctx context.Context, apID string, body []byte) (*model.Comment, error) {
	var note activity.Note
	if err := json.Unmarshal(body, &note); err != nil || note.Type != activity.TypeNote || note.ID != apID {
		return nil, fmt.Errorf("%w: %s is not a comment", ErrNotFound, apID)
	}
	c, _, err := r.materialize(ctx, &note, 0, true)
	return c, err
}

// materialize 把 Note 写入缓存（插入即幂等），父链与作者先行解析。
// fetched 表示来自拉取而非 Create 活动。返回是否为新插入
func (r *Resolver) materialize(ctx context.Context, note *activity.Note, depth int, fetched bool) (*model.Comment, bool, error) {
	if note.ID == "" || note.AttributedTo == "" || note.InReplyTo == "" {
		return nil, false, fmt.Errorf("%w: incomplete note", ErrInvalidActivity)
	}
	if activity.Host(note.ID) != activity.Host(note.AttributedTo) {
		return nil, false, fmt.Errorf("%w: note %s not hosted by its creator", ErrInvalidActivity, note.ID)
	}

	repos := r.repos.WithContext(ctx)
	if existing, err := repos.Comments.GetByApID(note.ID); err == nil {
		return existing, false, nil
	}

	creator, err := r.ResolvePerson(ctx, note.AttributedTo)
	if err != nil {
		return nil, false, err
	}
	post, parent, err := r.resolveParent(ctx, note.InReplyTo, depth)
	if err != nil {
		return nil, false, err
	}

	comment := &model.Comment{
		ApID:        note.ID,
		PostID:      post.ID,
		CreatorID:   creator.ID,
		CommunityID: post.CommunityID,
		Content:     SanitizeContent(note.Content),
		Published:   activity.Timestamp(note.Published),
		Local:       r.instance.IsLocal(note.ID),
		Fetched:     fetched,
	}
	if parent != nil {
		comment.ParentID = &parent.ID
	}
	if note.Updated != nil {
		updated := activity.Timestamp(*note.Updated)
		comment.Updated = &updated
	}

	created, err := r.votes.InsertComment(ctx, comment)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := repos.Comments.GetByApID(note.ID)
		return existing, false, err
	}
	return comment, true, nil
}

// resolveParent inReplyTo 可能是帖子或父评论
func (r *Resolver) resolveParent(ctx context.Context, apID string, depth int) (*model.Post, *model.Comment, error) {
	repos := r.repos.WithContext(ctx)
	if c, err := repos.Comments.GetByApID(apID); err == nil {
		post, err := repos.Posts.GetByID(c.PostID)
		return post, c, err
	}
	if p, err := repos.Posts.GetByApID(apID); err == nil {
		return p, nil, nil
	}
	if depth >= r.maxDepth {
		return nil, nil, fmt.Errorf("%w: reply chain deeper than %d", ErrMissingParent, r.maxDepth)
	}

	body, err := r.fetch(ctx, apID)
	if err != nil {
		return nil, nil, parentError(err)
	}
	typ, err := activity.PeekType(body)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMissingParent, err)
	}

	switch typ {
	case activity.TypePage:
		post, err := r.storePage(ctx, apID, body)
		return post, nil, parentError(err)
	case activity.TypeNote:
		var note activity.Note
		if err := json.Unmarshal(body, &note); err != nil || note.ID != apID {
			return nil, nil, fmt.Errorf("%w: bad parent %s", ErrMissingParent, apID)
		}
		parent, _, err := r.materialize(ctx, &note, depth+1, true)
		if err != nil {
			return nil, nil, parentError(err)
		}
		post, err := repos.Posts.GetByID(parent.PostID)
		return post, parent, err
	}
	return nil, nil, fmt.Errorf("%w: %s is a %s", ErrMissingParent, apID, typ)
}

// parentError 父对象不存在时归为 MissingParent，其余原样返回
func parentError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidActivity) {
		return fmt.Errorf("%w: %v", ErrMissingParent, err)
	}
	return err
}
