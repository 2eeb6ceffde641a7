package biz

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/xinghe903/chatify/notify/internal/biz/bo"
	"github.com/xinghe903/chatify/notify/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
)

const (
	defaultSendQueueSize  = 256
	defaultMaxMessageSize = 512 << 10 // 512KB
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
)

var _ Transport = (*WebsocketConn)(nil)

type sendContext struct {
	ctx  context.Context
	data []byte
}

// WebsocketConn 基于 gorilla/websocket 的连接，写操作只在 writePump 中进行
type WebsocketConn struct {
	conn      *websocket.Conn
	send      chan *sendContext
	done      chan struct{}
	closeOnce sync.Once
	log       *log.Helper

	maxMessageSize int64
	writeWait      time.Duration
	pongWait       time.Duration
	pingPeriod     time.Duration

	// OnHeartbeat 每次成功发送 ping 后调用，需在 Run 之前设置
	OnHeartbeat func(ctx context.Context)
}

func NewWebsocketConn(conn *websocket.Conn, c *conf.Gateway, logger log.Logger) *WebsocketConn {
	wc := &WebsocketConn{
		conn:           conn,
		done:           make(chan struct{}),
		log:            log.NewHelper(logger),
		maxMessageSize: defaultMaxMessageSize,
		writeWait:      defaultWriteWait,
		pongWait:       defaultPongWait,
	}
	queueSize := defaultSendQueueSize
	if c != nil {
		if c.SendQueueSize > 0 {
			queueSize = int(c.SendQueueSize)
		}
		if c.MaxMessageSize > 0 {
			wc.maxMessageSize = c.MaxMessageSize
		}
		if d := c.WriteWait.AsDuration(); d > 0 {
			wc.writeWait = d
		}
		if d := c.PongWait.AsDuration(); d > 0 {
			wc.pongWait = d
		}
		wc.pingPeriod = c.PingPeriod.AsDuration()
	}
	// ping 间隔必须小于 pong 等待时间
	if wc.pingPeriod <= 0 || wc.pingPeriod >= wc.pongWait {
		wc.pingPeriod = wc.pongWait * 9 / 10
	}
	wc.send = make(chan *sendContext, queueSize)
	return wc
}

// Emit 将消息放入发送队列，队列满时丢弃该消息
func (c *WebsocketConn) Emit(ctx context.Context, event string, data json.RawMessage) error {
	select {
	case <-c.done:
		return ErrSessionClosed
	default:
	}
	payload, err := json.Marshal(&bo.Frame{Event: event, Data: data})
	if err != nil {
		return err
	}
	select {
	case c.send <- &sendContext{ctx: context.WithoutCancel(ctx), data: payload}:
		return nil
	case <-c.done:
		return ErrSessionClosed
	default:
		return ErrSendQueueFull
	}
}

func (c *WebsocketConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeWait))
		err = c.conn.Close()
	})
	return err
}

// Run 启动 writePump 并在当前 goroutine 中读取消息，直到连接断开
func (c *WebsocketConn) Run(ctx context.Context, handle func(ctx context.Context, frame *bo.Frame)) {
	go c.writePump(ctx)
	c.readPump(ctx, handle)
}

func (c *WebsocketConn) readPump(ctx context.Context, handle func(ctx context.Context, frame *bo.Frame)) {
	defer c.Close()
	c.conn.SetReadLimit(c.maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	for {
		msgType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WithContext(ctx).Warnf("Read message error: %v", err)
			} else {
				c.log.WithContext(ctx).Debugf("Read loop closed: %v", err)
			}
			return
		}
		select {
		case <-ctx.Done():
			c.log.WithContext(ctx).Errorf("read context done")
			return
		case <-c.done:
			return
		default:
		}
		if msgType != websocket.TextMessage {
			c.log.WithContext(ctx).Warnf("Invalid message type: %d", msgType)
			continue
		}
		var frame bo.Frame
		if err := json.Unmarshal(message, &frame); err != nil || frame.Event == "" {
			c.log.WithContext(ctx).Warnf("Invalid frame: %s", string(message))
			continue
		}
		handle(ctx, &frame)
	}
}

func (c *WebsocketConn) writePump(ctx context.Context) {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg.data); err != nil {
				c.log.WithContext(msg.ctx).Errorf("Write message error: %v", err)
				return
			}
			c.log.WithContext(msg.ctx).Debugf("Sent %s", string(msg.data))
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.WithContext(ctx).Errorf("Write ping error: %v", err)
				return
			}
			if c.OnHeartbeat != nil {
				c.OnHeartbeat(ctx)
			}
		}
	}
}
