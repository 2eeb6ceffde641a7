package biz

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/xinghe903/chatify/notify/internal/biz/bo"
	"github.com/xinghe903/chatify/notify/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PresenceRepo 在线状态镜像，仅用于观测，注册表才是权威数据
type PresenceRepo interface {
	SetSession(ctx context.Context, session *bo.Session) error
	ClearSession(ctx context.Context, uid string, connectionId string) error
	RenewSession(ctx context.Context, uid string) error
	BatchClearSession(ctx context.Context, uids []string) error
}

// StatePublisher 发布用户上下线事件
type StatePublisher interface {
	PublishUserState(ctx context.Context, msg *bo.UserStateMessage) error
}

// Transport 一个存活连接的下行通道
type Transport interface {
	// Emit 不能阻塞，写入失败直接返回错误
	Emit(ctx context.Context, event string, data json.RawMessage) error
	Close() error
}

// Session 一个存活的连接
type Session struct {
	ID          string
	ConnectedAt time.Time
	transport   Transport

	mu     sync.RWMutex
	userID string
	closed bool
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *Session) Emit(ctx context.Context, event string, data json.RawMessage) error {
	if s.Closed() {
		return ErrSessionClosed
	}
	return s.transport.Emit(ctx, event, data)
}

func (s *Session) record(nodeID string) *bo.Session {
	return &bo.Session{
		Uid:            s.UserID(),
		ConnectionId:   s.ID,
		ConnectionTime: s.ConnectedAt.UnixMilli(),
		NodeId:         nodeID,
	}
}

// Gateway 管理所有连接，并把后端投递的事件扇出到目标用户的每个连接
type Gateway struct {
	log       *log.Helper
	registry  *Registry
	presence  PresenceRepo
	publisher StatePublisher
	instance  *conf.ServerInstance
	metrics   *gatewayMetrics
	tracer    trace.Tracer

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewGateway 创建网关，cleanup 会关闭所有连接并清理在线状态镜像
func NewGateway(logger log.Logger,
	registry *Registry,
	presence PresenceRepo,
	publisher StatePublisher,
	instance *conf.ServerInstance,
) (*Gateway, func()) {
	g := &Gateway{
		log:       log.NewHelper(log.With(logger, "module", "gateway")),
		registry:  registry,
		presence:  presence,
		publisher: publisher,
		instance:  instance,
		metrics:   newGatewayMetrics(),
		tracer:    otel.Tracer(instrumentationName),
		sessions:  make(map[string]*Session),
	}
	cleanup := func() {
		g.log.Info("closing the gateway sessions")
		ctx := context.Background()
		g.mu.Lock()
		sessions := make([]*Session, 0, len(g.sessions))
		bound := make(map[string]string, len(g.sessions))
		for id, s := range g.sessions {
			// 在 g.mu 内标记关闭，bind 据此补偿
			s.markClosed()
			sessions = append(sessions, s)
			delete(g.sessions, id)
			if userID, ok := g.registry.Leave(id); ok {
				bound[id] = userID
			}
		}
		g.mu.Unlock()
		uids := make([]string, 0, len(bound))
		for _, s := range sessions {
			s.transport.Close()
			g.metrics.sessionClosed(ctx)
			if userID, ok := bound[s.ID]; ok {
				uids = append(uids, userID)
				g.publishState(ctx, s, userID, bo.UserStateOffline)
			}
		}
		if len(uids) == 0 {
			return
		}
		if err := g.presence.BatchClearSession(ctx, uids); err != nil {
			g.log.Errorf("Batch clear presence error: %v", err)
		}
	}
	return g, cleanup
}

// Connect 接入一个新连接，userID 非空时等同于立即调用 RegisterIdentity
func (g *Gateway) Connect(ctx context.Context, transport Transport, userID string) *Session {
	s := &Session{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now(),
		transport:   transport,
	}
	g.mu.Lock()
	g.sessions[s.ID] = s
	g.mu.Unlock()
	g.metrics.sessionOpened(ctx)
	g.log.WithContext(ctx).Debugf("Session %s connected", s.ID)

	if userID = strings.TrimSpace(userID); userID != "" {
		if err := g.bind(ctx, s.ID, userID); err != nil {
			g.log.WithContext(ctx).Warnf("Bind session %s to user %s error: %v", s.ID, userID, err)
		}
	}
	return s
}

// RegisterIdentity 连接建立后显式绑定用户，幂等；允许改绑到其他用户
func (g *Gateway) RegisterIdentity(ctx context.Context, sessionID, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrorInvalidRequest("missing user identity")
	}
	return g.bind(ctx, sessionID, userID)
}

// Disconnect 关闭连接并从注册表移除，重复调用无副作用
func (g *Gateway) Disconnect(ctx context.Context, sessionID string) {
	g.mu.Lock()
	s, ok := g.sessions[sessionID]
	delete(g.sessions, sessionID)
	userID, bound := g.registry.Leave(sessionID)
	if ok {
		s.markClosed()
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	if err := s.transport.Close(); err != nil {
		g.log.WithContext(ctx).Debugf("Close session %s transport: %v", sessionID, err)
	}
	g.metrics.sessionClosed(ctx)
	g.log.WithContext(ctx).Debugf("Session %s disconnected", sessionID)
	if bound {
		g.unbound(ctx, s, userID)
	}
}

// Deliver 把事件投递给目标用户的所有连接
// 用户不在线时直接返回成功；单个连接写入失败不影响其他连接，也不会返回错误
func (g *Gateway) Deliver(ctx context.Context, target, event string, data json.RawMessage) (int, error) {
	target = strings.TrimSpace(target)
	if target == "" || strings.TrimSpace(event) == "" || bo.IsEmptyPayload(data) {
		g.metrics.delivery(ctx, resultInvalid)
		return 0, ErrorInvalidRequest("Missing targetUserId, eventName, or data")
	}
	ctx, span := g.tracer.Start(ctx, "Gateway.Deliver", trace.WithAttributes(
		attribute.String("notify.target", target),
		attribute.String("notify.event", event),
	))
	defer span.End()

	ids := g.registry.SessionsFor(target)
	if len(ids) == 0 {
		g.metrics.delivery(ctx, resultOffline)
		g.log.WithContext(ctx).Debugf("User %s has no live session, skip event %s", target, event)
		return 0, nil
	}
	g.mu.RLock()
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := g.sessions[id]; ok {
			sessions = append(sessions, s)
		}
	}
	g.mu.RUnlock()

	delivered := 0
	for _, s := range sessions {
		if err := s.Emit(ctx, event, data); err != nil {
			g.metrics.emit(ctx, resultFailed)
			g.log.WithContext(ctx).Warnf("userId=%s, session=%s, emit %s error: %v", target, s.ID, event, err)
			continue
		}
		g.metrics.emit(ctx, resultOK)
		delivered++
	}
	span.SetAttributes(attribute.Int("notify.delivered", delivered))
	if delivered < len(ids) {
		span.SetStatus(codes.Error, "partial delivery")
	}
	g.metrics.delivery(ctx, resultDelivered)
	g.log.WithContext(ctx).Debugf("Event %s delivered to user %s, sessions=%d, delivered=%d", event, target, len(ids), delivered)
	return delivered, nil
}

// Renew 心跳时续期在线状态镜像
func (g *Gateway) Renew(ctx context.Context, sessionID string) {
	userID, ok := g.registry.UserOf(sessionID)
	if !ok {
		return
	}
	if err := g.presence.RenewSession(ctx, userID); err != nil {
		g.log.WithContext(ctx).Errorf("userId=%s, Renew presence error: %v", userID, err)
	}
}

// Presence 返回用户当前所有连接的快照
func (g *Gateway) Presence(userID string) []*Session {
	ids := g.registry.SessionsFor(strings.TrimSpace(userID))
	g.mu.RLock()
	defer g.mu.RUnlock()
	sessions := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := g.sessions[id]; ok {
			sessions = append(sessions, s)
		}
	}
	return sessions
}

// Count 返回当前连接数
func (g *Gateway) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.sessions)
}

func (g *Gateway) bind(ctx context.Context, sessionID, userID string) error {
	// 持有 g.mu 保证与 Disconnect 互斥，已断开的连接不会再写入注册表
	g.mu.Lock()
	s, ok := g.sessions[sessionID]
	if !ok {
		g.mu.Unlock()
		return ErrorSessionNotFound("session %s not found", sessionID)
	}
	previous, changed := g.registry.Join(userID, sessionID)
	s.setUser(userID)
	g.mu.Unlock()
	if !changed {
		return nil
	}
	g.log.WithContext(ctx).Infof("User %s joined with session %s", userID, sessionID)
	if previous != "" {
		g.unbound(ctx, s, previous)
	}
	if s.Closed() {
		return nil
	}
	if err := g.presence.SetSession(ctx, s.record(g.instance.NodeID())); err != nil {
		g.log.WithContext(ctx).Errorf("userId=%s, Set presence error: %v", userID, err)
	}
	g.publishState(ctx, s, userID, bo.UserStateOnline)
	// 写镜像期间连接被关闭，关闭方的清理可能先于本次写入，这里补一次下线
	if s.Closed() {
		g.unbound(ctx, s, userID)
	}
	return nil
}

func (g *Gateway) unbound(ctx context.Context, s *Session, userID string) {
	g.log.WithContext(ctx).Infof("User %s left session %s", userID, s.ID)
	if err := g.presence.ClearSession(ctx, userID, s.ID); err != nil {
		g.log.WithContext(ctx).Errorf("userId=%s, Clear presence error: %v", userID, err)
	}
	g.publishState(ctx, s, userID, bo.UserStateOffline)
}

func (g *Gateway) publishState(ctx context.Context, s *Session, userID string, state bo.UserState) {
	err := g.publisher.PublishUserState(ctx, &bo.UserStateMessage{
		UserID:         userID,
		State:          state,
		ConnectionTime: s.ConnectedAt.UnixMilli(),
		ConnectionId:   s.ID,
		NodeId:         g.instance.NodeID(),
	})
	if err != nil {
		g.log.WithContext(ctx).Errorf("userId=%s, Publish %s state error: %v", userID, state, err)
	}
}

func (s *Session) setUser(userID string) {
	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()
}

func (s *Session) markClosed() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
