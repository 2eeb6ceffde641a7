package server

import (
	"encoding/json"
	basehttp "net/http"

	"github.com/xinghe903/chatify/notify/internal/conf"
	"github.com/xinghe903/chatify/notify/internal/service"
	"github.com/xinghe903/chatify/notify/pkg/middleware"
	"github.com/xinghe903/chatify/notify/pkg/monitoring"
	"github.com/xinghe903/chatify/notify/pkg/sign"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	kmiddleware "github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/logging"
	"github.com/go-kratos/kratos/v2/middleware/metrics"
	"github.com/go-kratos/kratos/v2/middleware/ratelimit"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"github.com/go-kratos/kratos/v2/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	PathWebsocket = "/socket"
	PathMetrics   = "/metrics"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(cb *conf.Bootstrap, svc *service.NotifyService, replayCache sign.Cache, logger log.Logger) *http.Server {
	ms := []kmiddleware.Middleware{
		recovery.Recovery(),
		tracing.Server(),
		logging.Server(logger),
	}
	if monitoring.MetricRequests != nil && monitoring.MetricSeconds != nil {
		ms = append(ms, metrics.Server(
			metrics.WithSeconds(monitoring.MetricSeconds),
			metrics.WithRequests(monitoring.MetricRequests),
		))
	}
	ms = append(ms, ratelimit.Server())
	if ingest := ingestConf(cb); ingest != nil && ingest.Secret != "" {
		// 只有后端投递接口需要共享密钥
		checker := sign.NewReplayChecker(replayCache, ingest.ReplayExpire.AsDuration(), ingest.TimeWindow.AsDuration())
		ms = append(ms, selector.Server(middleware.Signature(checker, ingest.Secret)).
			Path(service.OperationNotifySendNotification, service.OperationNotifyGetPresence).
			Build())
	}
	var opts = []http.ServerOption{
		http.Middleware(ms...),
		http.ErrorEncoder(encodeError),
	}
	if cb.Server != nil && cb.Server.Http != nil {
		c := cb.Server.Http
		if c.Network != "" {
			opts = append(opts, http.Network(c.Network))
		}
		if c.Addr != "" {
			opts = append(opts, http.Address(c.Addr))
		}
		if c.Timeout != nil {
			opts = append(opts, http.Timeout(c.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)
	srv.Handle(PathMetrics, promhttp.Handler())
	srv.HandleFunc(PathWebsocket, func(w basehttp.ResponseWriter, r *basehttp.Request) {
		ctx := r.Context()
		// 从请求头中提取 trace 信息，没有则为连接创建新的 span
		spanCtx := trace.SpanContextFromContext(ctx)
		if !spanCtx.IsValid() {
			tracer := otel.Tracer("websocket")
			var span trace.Span
			ctx, span = tracer.Start(ctx, r.URL.Path)
			defer span.End()
			svc.ServeHTTP(w, r.WithContext(ctx))
		} else {
			svc.ServeHTTP(w, r)
		}
	})
	service.RegisterNotifyHTTPServer(srv, svc)
	return srv
}

func ingestConf(cb *conf.Bootstrap) *conf.Ingest {
	if cb.Server == nil {
		return nil
	}
	return cb.Server.Ingest
}

type errorReply struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Reason  string `json:"reason,omitempty"`
}

// encodeError 错误统一返回 {success:false, message}，状态码取 kratos 错误码
func encodeError(w basehttp.ResponseWriter, r *basehttp.Request, err error) {
	se := errors.FromError(err)
	code := int(se.Code)
	if code < 400 || code > 599 {
		code = basehttp.StatusInternalServerError
	}
	body, merr := json.Marshal(&errorReply{
		Success: false,
		Message: se.Message,
		Reason:  se.Reason,
	})
	if merr != nil {
		w.WriteHeader(basehttp.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}
