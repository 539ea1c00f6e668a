package service

import (
	"context"
	"errors"
	"regexp"

	"gorm.io/gorm"

	"github.com/qs3c/fed_comment_server/config"
	"github.com/qs3c/fed_comment_server/internal/model"
	"github.com/qs3c/fed_comment_server/internal/model/dto"
	"github.com/qs3c/fed_comment_server/internal/pkg/jwt"
	"github.com/qs3c/fed_comment_server/internal/repository"
)

var (
	ErrPersonExists = errors.New("用户名已被使用")
	ErrInvalidName  = errors.New("用户名只能包含字母、数字和下划线")
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{1,50}$`)

// PersonService 本地用户与访问令牌。登录流程由外部负责，这里只签发 JWT
type PersonService struct {
	repos    *repository.Repos
	instance Instance
	jwtCfg   config.JWTConfig
}

func NewPersonService(repos *repository.Repos, instance Instance, jwtCfg config.JWTConfig) *PersonService {
	return &PersonService{
		repos:    repos,
		instance: instance,
		jwtCfg:   jwtCfg,
	}
}

// Create 创建本地用户
func (s *PersonService) Create(ctx context.Context, name string, admin bool) (*model.Person, error) {
	if !namePattern.MatchString(name) {
		return nil, ErrInvalidName
	}

	repos := s.repos.WithContext(ctx)
	if _, err := repos.Persons.GetLocalByName(name); err == nil {
		return nil, ErrPersonExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	person := &model.Person{
		ApID:     s.instance.PersonID(name),
		Name:     name,
		Domain:   s.instance.Domain,
		InboxURL: s.instance.Inbox(),
		Local:    true,
		Admin:    admin,
	}
	if err := repos.Persons.Create(person); err != nil {
		return nil, err
	}
	return person, nil
}

// IssueToken 为本地用户签发访问令牌
func (s *PersonService) IssueToken(ctx context.Context, personID int64) (*dto.TokenResponse, error) {
	person, err := s.repos.WithContext(ctx).Persons.GetByID(personID)
	if err != nil {
		return nil, notFound(err)
	}
	if !person.Local {
		return nil, ErrUnauthorized
	}

	token, err := jwt.GenerateToken(person.ID, s.jwtCfg.Secret, s.jwtCfg.ExpireHours)
	if err != nil {
		return nil, err
	}
	return &dto.TokenResponse{
		AccessToken: token,
		ExpiresIn:   s.jwtCfg.ExpireHours * 3600,
		Person:      PersonBrief(person),
	}, nil
}

// Get 获取用户
func (s *PersonService) Get(ctx context.Context, personID int64) (*dto.PersonBrief, error) {
	person, err := s.repos.WithContext(ctx).Persons.GetByID(personID)
	if err != nil {
		return nil, notFound(err)
	}
	return PersonBrief(person), nil
}
