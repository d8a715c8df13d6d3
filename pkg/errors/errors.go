package errors

import (
	"context"
	stderrors "errors"
	"fmt"

	"gorm.io/gorm"
)

// ========== 错误码常量定义 ==========

// CodeSuccess 成功码
const (
	CodeSuccess = 200
)

// HTTP层错误码 (400-599)
const (
	CodeInvalidParam = 400
	CodeUnauthorized = 401
	CodeForbidden    = 403
	CodeNotFound     = 404
	CodeConflict     = 409
	CodeServerError  = 500
	CodeUnavailable  = 503
)

// ========== 业务错误分类 ==========

// Kind 错误类别
type Kind int

const (
	KindUnknown   Kind = iota
	KindNotFound       // 引用的领域/角色/用户/菜单/接口不存在，不重试
	KindConflict       // 唯一键冲突、自引用、存在子节点，不重试
	KindInvalid        // 参数错误
	KindTransient      // 存储或缓存不可用、超时，调用方可自行退避重试
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid_param"
	case KindTransient:
		return "transient"
	default:
		return "unknown"
	}
}

// Error 带类别的业务错误
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is 同类别即视为匹配，便于 errors.Is(err, ErrNotFound)
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && t.Kind == e.Kind
}

// 哨兵错误，仅用于 errors.Is 比较
var (
	ErrNotFound  = &Error{Kind: KindNotFound}
	ErrConflict  = &Error{Kind: KindConflict}
	ErrInvalid   = &Error{Kind: KindInvalid}
	ErrTransient = &Error{Kind: KindTransient}
)

// NotFound 创建不存在错误
func NotFound(format string, args ...interface{}) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Conflict 创建冲突错误
func Conflict(format string, args ...interface{}) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// Invalid 创建参数错误
func Invalid(format string, args ...interface{}) error {
	return &Error{Kind: KindInvalid, Message: fmt.Sprintf(format, args...)}
}

// Transient 包装底层存储错误为可重试错误
func Transient(op string, err error) error {
	return &Error{Kind: KindTransient, Message: op, Err: err}
}

// KindOf 返回错误类别，非业务错误返回 KindUnknown
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Classify 将存储层错误归类；已分类的错误原样返回
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}
	switch {
	case stderrors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Message: op, Err: err}
	case stderrors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Message: op, Err: err}
	default:
		// 超时、连接断开等都按可重试处理，核心逻辑自身不做重试
		return Transient(op, err)
	}
}

// IsTimeout 判断是否为超时
func IsTimeout(err error) bool {
	return stderrors.Is(err, context.DeadlineExceeded)
}

// HTTPCode 错误类别对应的响应码
func HTTPCode(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return CodeNotFound
	case KindConflict:
		return CodeConflict
	case KindInvalid:
		return CodeInvalidParam
	case KindTransient:
		return CodeUnavailable
	default:
		return CodeServerError
	}
}
