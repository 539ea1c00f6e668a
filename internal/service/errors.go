package service

import (
	"errors"
)

// 联邦处理结果；均可用 errors.Is 判断
var (
	ErrNotFound           = errors.New("对象不存在")
	ErrUnreachable        = errors.New("远程实例不可达")
	ErrUnauthorized       = errors.New("无权执行此操作")
	ErrMissingParent      = errors.New("父对象无法解析")
	ErrDuplicateActivity  = errors.New("重复的活动")
	ErrUnresolvableTarget = errors.New("目标对象无法解析")
	ErrOutOfScope         = errors.New("社区不在本实例的联邦范围内")
	ErrInvalidActivity    = errors.New("无效的活动")
)

// 入站处理结果的对外编码
const (
	ReasonAccepted           = "accepted"
	ReasonDuplicateActivity  = "duplicate_activity"
	ReasonNotFound           = "not_found"
	ReasonUnreachable        = "unreachable"
	ReasonUnauthorized       = "unauthorized"
	ReasonMissingParent      = "missing_parent"
	ReasonUnresolvableTarget = "unresolvable_target"
	ReasonOutOfScope         = "out_of_scope"
	ReasonInvalidActivity    = "invalid_activity"
	ReasonInternal           = "internal_error"
)

// ReasonCode 把处理结果映射为对外编码
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ReasonAccepted
	case errors.Is(err, ErrDuplicateActivity):
		return ReasonDuplicateActivity
	case errors.Is(err, ErrUnresolvableTarget):
		return ReasonUnresolvableTarget
	case errors.Is(err, ErrMissingParent):
		return ReasonMissingParent
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, ErrUnreachable):
		return ReasonUnreachable
	case errors.Is(err, ErrUnauthorized):
		return ReasonUnauthorized
	case errors.Is(err, ErrOutOfScope):
		return ReasonOutOfScope
	case errors.Is(err, ErrInvalidActivity):
		return ReasonInvalidActivity
	}
	return ReasonInternal
}

// Retriable 远程状态可能稍后可用，值得退避重试
func Retriable(err error) bool {
	return errors.Is(err, ErrUnreachable) ||
		errors.Is(err, ErrMissingParent) ||
		errors.Is(err, ErrUnresolvableTarget)
}
