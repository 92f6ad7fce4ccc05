// Package apperr 定义对外可区分的错误分类：NotFound / Forbidden / Validation / Infrastructure。
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInfrastructure Kind = iota
	KindNotFound
	KindForbidden
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindValidation:
		return "validation"
	default:
		return "infrastructure"
	}
}

// Error 携带分类的业务错误
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, apperr.ErrNotFound) 之类按分类匹配
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Kind == e.Kind
}

// 分类哨兵，仅用于 errors.Is 比较
var (
	ErrNotFound       = &Error{Kind: KindNotFound}
	ErrForbidden      = &Error{Kind: KindForbidden}
	ErrValidation     = &Error{Kind: KindValidation}
	ErrInfrastructure = &Error{Kind: KindInfrastructure}
)

func NotFound(msg string) error   { return &Error{Kind: KindNotFound, Msg: msg} }
func Forbidden(msg string) error  { return &Error{Kind: KindForbidden, Msg: msg} }
func Validation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }

// Infra 包装存储 / 网络失败
func Infra(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindInfrastructure, Msg: msg, Err: err}
}

// KindOf 返回错误分类；未分类的错误一律视为基础设施错误
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInfrastructure
}

// Message 返回可以给客户端看的文案；基础设施错误不暴露细节
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInfrastructure {
		return e.Msg
	}
	return "internal server error"
}
