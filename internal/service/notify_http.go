package service

import (
	"context"

	"github.com/go-kratos/kratos/v2/transport/http"
)

const (
	OperationNotifySendNotification = "/chatify.notify.v1.Notify/SendNotification"
	OperationNotifyGetPresence      = "/chatify.notify.v1.Notify/GetPresence"
)

type NotifyHTTPServer interface {
	SendNotification(context.Context, *SendNotificationRequest) (*SendNotificationReply, error)
	GetPresence(context.Context, *GetPresenceRequest) (*GetPresenceReply, error)
}

// RegisterNotifyHTTPServer 注册 http 路由，请求经过 server 配置的 middleware
func RegisterNotifyHTTPServer(s *http.Server, srv NotifyHTTPServer) {
	r := s.Route("/")
	r.POST("/send-notification", sendNotificationHandler(srv))
	r.GET("/presence/{userId}", getPresenceHandler(srv))
}

func sendNotificationHandler(srv NotifyHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		var in SendNotificationRequest
		if err := ctx.Bind(&in); err != nil {
			return err
		}
		http.SetOperation(ctx, OperationNotifySendNotification)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.SendNotification(ctx, req.(*SendNotificationRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*SendNotificationReply)
		return ctx.Result(200, reply)
	}
}

func getPresenceHandler(srv NotifyHTTPServer) func(ctx http.Context) error {
	return func(ctx http.Context) error {
		in := GetPresenceRequest{UserId: ctx.Vars().Get("userId")}
		http.SetOperation(ctx, OperationNotifyGetPresence)
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return srv.GetPresence(ctx, req.(*GetPresenceRequest))
		})
		out, err := h(ctx, &in)
		if err != nil {
			return err
		}
		reply := out.(*GetPresenceReply)
		return ctx.Result(200, reply)
	}
}
