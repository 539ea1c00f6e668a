package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/qs3c/fed_comment_server/internal/activity"
	"github.com/qs3c/fed_comment_server/internal/model"
)

// @name@instance，instance 可带端口
var mentionPattern = regexp.MustCompile(`@([a-zA-Z0-9_]+)@([a-zA-Z0-9][a-zA-Z0-9.\-:]*[a-zA-Z0-9])`)

type Mention struct {
	Name     string
	Instance string
}

func (m Mention) String() string {
	return "@" + m.Name + "@" + m.Instance
}

// ExtractMentions 提取并去重内容中的提及
func ExtractMentions(content string) []Mention {
	matches := mentionPattern.FindAllStringSubmatch(content, -1)
	mentions := lo.Map(matches, func(m []string, _ int) Mention {
		return Mention{Name: m[1], Instance: strings.ToLower(m[2])}
	})
	return lo.Uniq(mentions)
}

// MentionEngine 解析提及并生成通知
type MentionEngine struct {
	resolver *Resolver
	notifier *NotificationService
	instance Instance
	log      *zap.Logger
}

func NewMentionEngine(resolver *Resolver, notifier *NotificationService, instance Instance, log *zap.Logger) *MentionEngine {
	return &MentionEngine{
		resolver: resolver,
		notifier: notifier,
		instance: instance,
		log:      log,
	}
}

// Notify 为本实例的被提及者创建通知（每个 (评论, 用户) 至多一条）。
// 其他实例的用户由其所在实例负责通知，这里不解析
func (e *MentionEngine) Notify(ctx context.Context, comment *model.Comment) error {
	for _, m := range ExtractMentions(comment.Content) {
		if m.Instance != e.instance.Domain {
			continue
		}
		person, err := e.resolver.ResolveMention(ctx, m.Name, m.Instance)
		if err != nil {
			e.log.Debug("skipping unresolvable mention", zap.String("mention", m.String()), zap.Error(err))
			continue
		}
		if person.ID == comment.CreatorID {
			continue
		}
		if err := e.notifier.NotifyMention(ctx, person, comment); err != nil {
			return err
		}
	}
	return nil
}

// Recipients 解析全部被提及者，无法解析的跳过
func (e *MentionEngine) Recipients(ctx context.Context, content string) []*model.Person {
	var persons []*model.Person
	for _, m := range ExtractMentions(content) {
		person, err := e.resolver.ResolveMention(ctx, m.Name, m.Instance)
		if err != nil {
			e.log.Debug("skipping unresolvable mention", zap.String("mention", m.String()), zap.Error(err))
			continue
		}
		persons = append(persons, person)
	}
	return lo.UniqBy(persons, func(p *model.Person) int64 { return p.ID })
}

// Tags 出站 Note 的提及标签
func Tags(persons []*model.Person) []activity.Tag {
	return lo.Map(persons, func(p *model.Person, _ int) activity.Tag {
		return activity.Tag{
			Type: activity.TypeMention,
			Href: p.ApID,
			Name: "@" + p.Name + "@" + p.Domain,
		}
	})
}
