package middleware

import (
	"context"
	"errors"
	"strconv"

	"github.com/xinghe903/chatify/notify/pkg/sign"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
)

const (
	ReasonInvalidSignature = "INVALID_SIGNATURE"
	ReasonRequestExpired   = "REQUEST_EXPIRED"
	ReasonRequestReplayed  = "REQUEST_REPLAYED"
)

// Signature 校验服务端之间调用的共享密钥签名，签名参数从请求头中读取
func Signature(checker *sign.ReplayChecker, secretKey string) middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return nil, kerrors.Unauthorized(ReasonInvalidSignature, "missing transport")
			}
			header := tr.RequestHeader()
			ts, err := strconv.ParseInt(header.Get(sign.HeaderTimestamp), 10, 64)
			if err != nil {
				return nil, kerrors.Unauthorized(ReasonInvalidSignature, "invalid timestamp")
			}
			param := &sign.SignParam{
				RequestID: header.Get(sign.HeaderRequestID),
				Timestamp: ts,
				Signature: header.Get(sign.HeaderSignature),
			}
			if err := checker.ValidateRequest(ctx, param, secretKey); err != nil {
				return nil, toError(err)
			}
			return handler(ctx, req)
		}
	}
}

func toError(err error) error {
	switch {
	case errors.Is(err, sign.ErrInvalidSign):
		return kerrors.Unauthorized(ReasonInvalidSignature, err.Error())
	case errors.Is(err, sign.ErrRequestExpired):
		return kerrors.Unauthorized(ReasonRequestExpired, err.Error())
	case errors.Is(err, sign.ErrRequestRepeat):
		return kerrors.Unauthorized(ReasonRequestReplayed, err.Error())
	default:
		return kerrors.InternalServer("SIGNATURE_CHECK_FAILED", "signature check failed").WithCause(err)
	}
}
