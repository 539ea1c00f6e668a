package activity

import (
	"encoding/json"
	"fmt"
	"time"
)

// 实例对外提供、解析器拉取的对象类型
const (
	TypeNote      = "Note"
	TypePage      = "Page"
	TypeGroup     = "Group"
	TypePerson    = "Person"
	TypeTombstone = "Tombstone"
	TypeMention   = "Mention"
)

// Note 评论
type Note struct {
	Context      string     `json:"@context,omitempty"`
	Type         string     `json:"type"`
	ID           string     `json:"id"`
	AttributedTo string     `json:"attributedTo"`
	Content      string     `json:"content"`
	InReplyTo    string     `json:"inReplyTo"` // post or parent comment
	Audience     string     `json:"audience"`  // community
	Published    time.Time  `json:"published"`
	Updated      *time.Time `json:"updated,omitempty"`
	Tag          []Tag      `json:"tag,omitempty"`
}

type Tag struct {
	Type string `json:"type"`
	Href string `json:"href"`
	Name string `json:"name"`
}

// Page 帖子
type Page struct {
	Context      string    `json:"@context,omitempty"`
	Type         string    `json:"type"`
	ID           string    `json:"id"`
	AttributedTo string    `json:"attributedTo"`
	Name         string    `json:"name"`
	Audience     string    `json:"audience"`
	Published    time.Time `json:"published"`
}

// Group 社区
type Group struct {
	Context           string   `json:"@context,omitempty"`
	Type              string   `json:"type"`
	ID                string   `json:"id"`
	PreferredUsername string   `json:"preferredUsername"`
	Inbox             string   `json:"inbox"`
	Moderators        []string `json:"moderators,omitempty"`
}

// PersonObject 用户
type PersonObject struct {
	Context           string `json:"@context,omitempty"`
	Type              string `json:"type"`
	ID                string `json:"id"`
	PreferredUsername string `json:"preferredUsername"`
	Inbox             string `json:"inbox"`
	Admin             bool   `json:"admin,omitempty"`
}

type Tombstone struct {
	Context string `json:"@context,omitempty"`
	Type    string `json:"type"`
	ID      string `json:"id"`
}

// PeekType 读取对象的 type 字段
func PeekType(raw []byte) (string, error) {
	var head struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if head.Type == "" || head.ID == "" {
		return "", fmt.Errorf("%w: object without type or id", ErrMalformed)
	}
	return head.Type, nil
}

// WebFinger /.well-known/webfinger 的响应
type WebFinger struct {
	Subject string          `json:"subject"`
	Links   []WebFingerLink `json:"links"`
}

type WebFingerLink struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href,omitempty"`
}

const ContentType = "application/activity+json"

func (w *WebFinger) Self() (string, bool) {
	for _, l := range w.Links {
		if l.Rel == "self" && l.Href != "" {
			return l.Href, true
		}
	}
	return "", false
}
