// Package activity 联邦线上格式：活动信封、其承载的对象，以及入站处理使用的规范化形式
package activity

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const Context = "https://www.w3.org/ns/activitystreams"

// Kind 活动类型。线上类型在实例间传输；Undelete、Restore、Vote、Unfollow
// 只在 Normalize 拆开 Undo 之后出现
type Kind string

const (
	KindCreate   Kind = "Create"
	KindUpdate   Kind = "Update"
	KindDelete   Kind = "Delete"
	KindRemove   Kind = "Remove"
	KindLike     Kind = "Like"
	KindDislike  Kind = "Dislike"
	KindReport   Kind = "Flag"
	KindFollow   Kind = "Follow"
	KindUndo     Kind = "Undo"
	KindAnnounce Kind = "Announce"

	KindUndelete Kind = "Undelete"
	KindRestore  Kind = "Restore"
	KindVote     Kind = "Vote"
	KindUnfollow Kind = "Unfollow"
)

var (
	ErrMalformed   = errors.New("malformed activity")
	ErrUnsupported = errors.New("unsupported activity type")
)

// Envelope 线上的活动
type Envelope struct {
	Context   string          `json:"@context,omitempty"`
	ID        string          `json:"id"`
	Type      Kind            `json:"type"`
	Actor     string          `json:"actor"`
	Object    json.RawMessage `json:"object"`
	Target    string          `json:"target,omitempty"`
	Summary   string          `json:"summary,omitempty"`
	Published time.Time       `json:"published"`
}

// New 构造活动信封。object 可以是 id 字符串，也可以是可序列化的对象（Note、内层 Envelope 等）
func New(kind Kind, id, actor string, object interface{}, target string, published time.Time) (*Envelope, error) {
	raw, err := json.Marshal(object)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s object: %w", kind, err)
	}
	return &Envelope{
		Context:   Context,
		ID:        id,
		Type:      kind,
		Actor:     actor,
		Object:    raw,
		Target:    target,
		Published: Timestamp(published),
	}, nil
}

// Decode 解析并校验线上活动
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return &env, nil
}

// Validate 校验必需字段。活动 id 必须与执行者同主机；
// published 用于与同一对象的其他变更排序，不可缺失
func (e *Envelope) Validate() error {
	if e.ID == "" || e.Actor == "" || e.Type == "" || len(e.Object) == 0 {
		return fmt.Errorf("%w: id, type, actor and object are required", ErrMalformed)
	}
	if !e.Type.wire() {
		return fmt.Errorf("%w: %s", ErrUnsupported, e.Type)
	}
	idHost, actorHost := Host(e.ID), Host(e.Actor)
	if idHost == "" || actorHost == "" {
		return fmt.Errorf("%w: id and actor must be absolute urls", ErrMalformed)
	}
	if idHost != actorHost {
		return fmt.Errorf("%w: activity %s not hosted by actor %s", ErrMalformed, e.ID, e.Actor)
	}
	if e.Published.IsZero() {
		return fmt.Errorf("%w: activity %s has no published time", ErrMalformed, e.ID)
	}
	return nil
}

// Inner 解析内嵌活动（Undo、Announce）
func (e *Envelope) Inner() (*Envelope, error) {
	var inner Envelope
	if err := json.Unmarshal(e.Object, &inner); err != nil {
		return nil, fmt.Errorf("%w: %s has no embedded activity", ErrMalformed, e.Type)
	}
	if err := inner.Validate(); err != nil {
		return nil, err
	}
	return &inner, nil
}

func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func (k Kind) wire() bool {
	switch k {
	case KindCreate, KindUpdate, KindDelete, KindRemove, KindLike, KindDislike,
		KindReport, KindFollow, KindUndo, KindAnnounce:
		return true
	}
	return false
}

// Timestamp 活动时间统一为 UTC 毫秒精度
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// Host ap_id 的主机（含端口），非绝对 URL 时返回空串
func Host(apID string) string {
	u, err := url.Parse(apID)
	if err != nil || u.Scheme == "" {
		return ""
	}
	return strings.ToLower(u.Host)
}

// objectID object 为字符串 id 或带 id 字段的内嵌对象
func objectID(raw json.RawMessage) (string, error) {
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		if id == "" {
			return "", fmt.Errorf("%w: empty object id", ErrMalformed)
		}
		return id, nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil || obj.ID == "" {
		return "", fmt.Errorf("%w: object has no id", ErrMalformed)
	}
	return obj.ID, nil
}
