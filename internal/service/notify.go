package service

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/xinghe903/chatify/notify/internal/biz"
	"github.com/xinghe903/chatify/notify/internal/biz/bo"
	"github.com/xinghe903/chatify/notify/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
)

// QueryUserID 建立连接时携带用户身份的查询参数
const QueryUserID = "userId"

type SendNotificationRequest struct {
	TargetUserId bo.Identity     `json:"targetUserId"`
	EventName    string          `json:"eventName"`
	Data         json.RawMessage `json:"data"`
}

type SendNotificationReply struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Delivered int    `json:"delivered"`
}

type GetPresenceRequest struct {
	UserId string `json:"userId"`
}

type GetPresenceReply struct {
	UserId   string             `json:"userId"`
	Online   bool               `json:"online"`
	Sessions []*PresenceSession `json:"sessions"`
}

type PresenceSession struct {
	SessionId   string    `json:"sessionId"`
	ConnectedAt time.Time `json:"connectedAt"`
}

type NotifyService struct {
	log      *log.Helper
	logger   log.Logger
	gateway  *biz.Gateway
	gwConf   *conf.Gateway
	upgrader websocket.Upgrader
}

func NewNotifyService(cb *conf.Bootstrap, logger log.Logger, gateway *biz.Gateway) *NotifyService {
	svc := &NotifyService{
		log:     log.NewHelper(log.With(logger, "module", "service/notify")),
		logger:  logger,
		gateway: gateway,
		gwConf:  cb.Gateway,
	}
	var allowed []string
	if cb.Gateway != nil {
		allowed = cb.Gateway.AllowedOrigins
	}
	svc.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowed),
	}
	return svc
}

// ServeHTTP 升级为 websocket 并阻塞到连接断开
func (s *NotifyService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithContext(r.Context()).Errorf("WebSocket upgrade error: %v", err)
		return
	}
	// 连接的生命周期不受 http server 请求超时影响
	ctx := context.WithoutCancel(r.Context())
	wc := biz.NewWebsocketConn(conn, s.gwConf, s.logger)
	session := s.gateway.Connect(ctx, wc, r.URL.Query().Get(QueryUserID))
	wc.OnHeartbeat = func(ctx context.Context) {
		s.gateway.Renew(ctx, session.ID)
	}
	s.log.WithContext(ctx).Debugf("Client connected: %s, session=%s", conn.RemoteAddr(), session.ID)
	defer s.gateway.Disconnect(ctx, session.ID)

	wc.Run(ctx, func(ctx context.Context, frame *bo.Frame) {
		s.dispatch(ctx, session, frame)
	})
}

func (s *NotifyService) dispatch(ctx context.Context, session *biz.Session, frame *bo.Frame) {
	switch frame.Event {
	case bo.EventJoin:
		var identity bo.Identity
		if err := json.Unmarshal(frame.Data, &identity); err != nil {
			s.log.WithContext(ctx).Warnf("session=%s, invalid join payload: %v", session.ID, err)
			return
		}
		if err := s.gateway.RegisterIdentity(ctx, session.ID, identity.String()); err != nil {
			s.log.WithContext(ctx).Warnf("session=%s, join error: %v", session.ID, err)
		}
	case bo.EventClientPing:
		if err := session.Emit(ctx, bo.EventServerPong, nil); err != nil {
			s.log.WithContext(ctx).Warnf("session=%s, pong error: %v", session.ID, err)
		}
	default:
		s.log.WithContext(ctx).Debugf("session=%s, ignore event %s", session.ID, frame.Event)
	}
}

// SendNotification 后端投递入口，用户不在线同样返回成功
func (s *NotifyService) SendNotification(ctx context.Context, req *SendNotificationRequest) (*SendNotificationReply, error) {
	delivered, err := s.gateway.Deliver(ctx, req.TargetUserId.String(), req.EventName, req.Data)
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Infof("Received request to send '%s' to user %s, delivered=%d", req.EventName, req.TargetUserId, delivered)
	return &SendNotificationReply{
		Success:   true,
		Message:   "Event emitted",
		Delivered: delivered,
	}, nil
}

func (s *NotifyService) GetPresence(ctx context.Context, req *GetPresenceRequest) (*GetPresenceReply, error) {
	userID := strings.TrimSpace(req.UserId)
	if userID == "" {
		return nil, biz.ErrorInvalidRequest("missing userId")
	}
	sessions := s.gateway.Presence(userID)
	reply := &GetPresenceReply{
		UserId:   userID,
		Online:   len(sessions) > 0,
		Sessions: make([]*PresenceSession, 0, len(sessions)),
	}
	for _, session := range sessions {
		reply.Sessions = append(reply.Sessions, &PresenceSession{
			SessionId:   session.ID,
			ConnectedAt: session.ConnectedAt,
		})
	}
	return reply, nil
}

// checkOrigin allowed 为空时允许所有来源，非浏览器客户端不带 Origin 同样放行
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if strings.EqualFold(strings.TrimSuffix(o, "/"), origin) {
				return true
			}
		}
		return false
	}
}
