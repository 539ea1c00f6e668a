package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/internal/model"
)

// LocalDomain 测试数据库所属实例
const LocalDomain = "lemmy-alpha"

var seq int64

func next() int64 {
	return atomic.AddInt64(&seq, 1)
}

// TestPerson 创建测试用户，默认是 LocalDomain 上的本地用户
func TestPerson(t *testing.T, db *gorm.DB, opts ...func(*model.Person)) *model.Person {
	t.Helper()

	person := &model.Person{
		Name:   fmt.Sprintf("testuser_%d", next()),
		Domain: LocalDomain,
		Local:  true,
	}

	for _, opt := range opts {
		opt(person)
	}
	if person.ApID == "" {
		person.ApID = fmt.Sprintf("http://%s/u/%s", person.Domain, person.Name)
	}
	if person.InboxURL == "" {
		person.InboxURL = fmt.Sprintf("http://%s/inbox", person.Domain)
	}

	if err := db.Create(person).Error; err != nil {
		t.Fatalf("Failed to create test person: %v", err)
	}

	return person
}

// WithName 设置用户名
func WithName(name string) func(*model.Person) {
	return func(p *model.Person) {
		p.Name = name
	}
}

// WithRemoteDomain 设置为远程实例用户
func WithRemoteDomain(domain string) func(*model.Person) {
	return func(p *model.Person) {
		p.Domain = domain
		p.Local = false
	}
}

// WithAdmin 设置为所在实例管理员
func WithAdmin() func(*model.Person) {
	return func(p *model.Person) {
		p.Admin = true
	}
}

// TestCommunity 创建测试社区
func TestCommunity(t *testing.T, db *gorm.DB, opts ...func(*model.Community)) *model.Community {
	t.Helper()

	community := &model.Community{
		Name:   fmt.Sprintf("community_%d", next()),
		Domain: LocalDomain,
		Local:  true,
	}

	for _, opt := range opts {
		opt(community)
	}
	if community.ApID == "" {
		community.ApID = fmt.Sprintf("http://%s/c/%s", community.Domain, community.Name)
	}
	if community.InboxURL == "" {
		community.InboxURL = fmt.Sprintf("http://%s/inbox", community.Domain)
	}

	if err := db.Create(community).Error; err != nil {
		t.Fatalf("Failed to create test community: %v", err)
	}

	return community
}

// WithCommunityDomain 设置为远程社区
func WithCommunityDomain(domain string) func(*model.Community) {
	return func(c *model.Community) {
		c.Domain = domain
		c.Local = false
	}
}

// TestModerator 添加社区版主
func TestModerator(t *testing.T, db *gorm.DB, communityID, personID int64) {
	t.Helper()

	if err := db.Create(&model.CommunityModerator{CommunityID: communityID, PersonID: personID}).Error; err != nil {
		t.Fatalf("Failed to create test moderator: %v", err)
	}
}

// TestFollower 添加社区关注者
func TestFollower(t *testing.T, db *gorm.DB, communityID, personID int64) {
	t.Helper()

	if err := db.Create(&model.CommunityFollower{CommunityID: communityID, PersonID: personID}).Error; err != nil {
		t.Fatalf("Failed to create test follower: %v", err)
	}
}

// TestPost 创建测试帖子，域名与社区一致
func TestPost(t *testing.T, db *gorm.DB, community *model.Community, creatorID int64) *model.Post {
	t.Helper()

	id := next()
	post := &model.Post{
		ApID:        fmt.Sprintf("http://%s/post/%d", community.Domain, id),
		Name:        fmt.Sprintf("post %d", id),
		CommunityID: community.ID,
		CreatorID:   creatorID,
		Local:       community.Local,
		Published:   time.Now().UTC(),
	}

	if err := db.Create(post).Error; err != nil {
		t.Fatalf("Failed to create test post: %v", err)
	}

	return post
}

// TestComment 创建测试评论
func TestComment(t *testing.T, db *gorm.DB, post *model.Post, creator *model.Person, content string, opts ...func(*model.Comment)) *model.Comment {
	t.Helper()

	comment := &model.Comment{
		ApID:        fmt.Sprintf("http://%s/comment/%s", creator.Domain, uuid.NewString()),
		PostID:      post.ID,
		CreatorID:   creator.ID,
		CommunityID: post.CommunityID,
		Content:     content,
		Published:   time.Now().UTC(),
		Local:       creator.Local,
	}

	for _, opt := range opts {
		opt(comment)
	}

	if err := db.Create(comment).Error; err != nil {
		t.Fatalf("Failed to create test comment: %v", err)
	}

	return comment
}

// WithParent 设置父评论
func WithParent(parentID int64) func(*model.Comment) {
	return func(c *model.Comment) {
		c.ParentID = &parentID
	}
}

// WithPublished 设置发布时间
func WithPublished(ts time.Time) func(*model.Comment) {
	return func(c *model.Comment) {
		c.Published = ts
	}
}

// TestVote 写入一条投票
func TestVote(t *testing.T, db *gorm.DB, commentID, personID int64, score int) *model.CommentVote {
	t.Helper()

	vote := &model.CommentVote{
		CommentID: commentID,
		PersonID:  personID,
		Score:     score,
		VotedAt:   time.Now().UTC(),
	}
	if err := db.Create(vote).Error; err != nil {
		t.Fatalf("Failed to create test vote: %v", err)
	}

	return vote
}
