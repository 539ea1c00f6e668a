package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/qs3c/fed_comment_server/internal/activity"
)

// Instance 本实例的联邦身份，负责分配和识别 ap_id
type Instance struct {
	BaseURL string // 例如 http://lemmy-alpha:8541
	Domain  string // 例如 lemmy-alpha:8541
}

// NewInstance 由 base_url 推导域名
func NewInstance(baseURL string) (Instance, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Instance{}, fmt.Errorf("invalid instance base url %q", baseURL)
	}
	return Instance{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Domain:  strings.ToLower(u.Host),
	}, nil
}

// Scheme http 或 https
func (i Instance) Scheme() string {
	if strings.HasPrefix(i.BaseURL, "http://") {
		return "http"
	}
	return "https"
}

func (i Instance) PersonID(name string) string {
	return i.BaseURL + "/u/" + name
}

func (i Instance) CommunityID(name string) string {
	return i.BaseURL + "/c/" + name
}

func (i Instance) NewPostID() string {
	return i.BaseURL + "/post/" + uuid.NewString()
}

// NewCommentID 为本地新评论分配不可变的 ap_id
func (i Instance) NewCommentID() string {
	return i.BaseURL + "/comment/" + uuid.NewString()
}

// NewActivityID 为出站活动分配 id
func (i Instance) NewActivityID(kind activity.Kind) string {
	return fmt.Sprintf("%s/activities/%s/%s", i.BaseURL, strings.ToLower(string(kind)), uuid.NewString())
}

func (i Instance) Inbox() string {
	return i.BaseURL + "/inbox"
}

// IsLocal ap_id 是否属于本实例
func (i Instance) IsLocal(apID string) bool {
	return activity.Host(apID) == i.Domain
}

// ObjectURL 请求路径对应的本地 ap_id
func (i Instance) ObjectURL(path string) string {
	return i.BaseURL + path
}
