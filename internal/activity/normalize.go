package activity

import (
	"encoding/json"
	"fmt"
	"time"
)

// Activity 规范化后的入站活动。Undo 与 Announce 已被拆开，不会出现在这里
type Activity struct {
	ID        string
	Kind      Kind
	Actor     string
	Object    json.RawMessage
	Target    string
	Summary   string
	Published time.Time
	Score     int

	// 转发该活动的社区，直接投递时为空
	Announcer string
}

// Normalize 把 Announce 与 Undo 拆为单个可分发的活动
func Normalize(env *Envelope) (*Activity, error) {
	if env.Type == KindAnnounce {
		inner, err := env.Inner()
		if err != nil {
			return nil, err
		}
		if inner.Type == KindAnnounce {
			return nil, fmt.Errorf("%w: nested announce", ErrMalformed)
		}
		act, err := Normalize(inner)
		if err != nil {
			return nil, err
		}
		act.Announcer = env.Actor
		return act, nil
	}

	act := &Activity{
		ID:        env.ID,
		Kind:      env.Type,
		Actor:     env.Actor,
		Object:    env.Object,
		Target:    env.Target,
		Summary:   env.Summary,
		Published: Timestamp(env.Published),
	}

	switch env.Type {
	case KindCreate, KindUpdate, KindDelete, KindRemove, KindReport, KindFollow:
	case KindLike:
		act.Kind, act.Score = KindVote, 1
	case KindDislike:
		act.Kind, act.Score = KindVote, -1
	case KindUndo:
		inner, err := env.Inner()
		if err != nil {
			return nil, err
		}
		if inner.Actor != env.Actor {
			return nil, fmt.Errorf("%w: undo by %s of activity by %s", ErrMalformed, env.Actor, inner.Actor)
		}
		act.Object = inner.Object
		act.Target = inner.Target
		switch inner.Type {
		case KindDelete:
			act.Kind = KindUndelete
		case KindRemove:
			act.Kind = KindRestore
		case KindLike, KindDislike:
			act.Kind, act.Score = KindVote, 0
		case KindFollow:
			act.Kind = KindUnfollow
		default:
			return nil, fmt.Errorf("%w: undo of %s", ErrUnsupported, inner.Type)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, env.Type)
	}

	return act, nil
}

// ObjectID 活动作用对象的 ap_id
func (a *Activity) ObjectID() (string, error) {
	return objectID(a.Object)
}

// Note 解析 Create/Update 内嵌的评论
func (a *Activity) Note() (*Note, error) {
	var note Note
	if err := json.Unmarshal(a.Object, &note); err != nil {
		return nil, fmt.Errorf("%w: %s object is not a note", ErrMalformed, a.Kind)
	}
	if note.Type != TypeNote || note.ID == "" || note.AttributedTo == "" || note.InReplyTo == "" {
		return nil, fmt.Errorf("%w: incomplete note", ErrMalformed)
	}
	return &note, nil
}

// Key 同一对象上的处理按此 ap_id 串行
func (a *Activity) Key() string {
	if id, err := a.ObjectID(); err == nil {
		return id
	}
	return a.ID
}
