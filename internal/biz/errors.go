package biz

import (
	"errors"
	"fmt"

	kerrors "github.com/go-kratos/kratos/v2/errors"
)

const (
	ReasonInvalidRequest  = "INVALID_REQUEST"
	ReasonSessionNotFound = "SESSION_NOT_FOUND"
)

var (
	// 单个连接写入失败，只记录日志，不影响其他连接
	ErrSessionClosed = errors.New("session closed")
	ErrSendQueueFull = errors.New("session send queue full")
)

func ErrorInvalidRequest(format string, args ...any) *kerrors.Error {
	return kerrors.New(400, ReasonInvalidRequest, fmt.Sprintf(format, args...))
}

func IsInvalidRequest(err error) bool {
	if err == nil {
		return false
	}
	e := kerrors.FromError(err)
	return e.Reason == ReasonInvalidRequest && e.Code == 400
}

func ErrorSessionNotFound(format string, args ...any) *kerrors.Error {
	return kerrors.New(404, ReasonSessionNotFound, fmt.Sprintf(format, args...))
}

func IsSessionNotFound(err error) bool {
	if err == nil {
		return false
	}
	e := kerrors.FromError(err)
	return e.Reason == ReasonSessionNotFound && e.Code == 404
}
