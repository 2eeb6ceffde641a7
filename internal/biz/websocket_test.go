package biz

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xinghe903/chatify/notify/internal/biz/bo"
	"github.com/xinghe903/chatify/notify/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newConnPair 返回服务端 WebsocketConn 与客户端连接
func newConnPair(t *testing.T, c *conf.Gateway) (*WebsocketConn, *websocket.Conn) {
	t.Helper()
	serverSide := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serverSide <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	var conn *websocket.Conn
	select {
	case conn = <-serverSide:
	case <-time.After(5 * time.Second):
		t.Fatal("server side connection not established")
	}
	wc := NewWebsocketConn(conn, c, log.NewStdLogger(io.Discard))
	t.Cleanup(func() { wc.Close() })
	return wc, client
}

func TestNewWebsocketConn_Defaults(t *testing.T) {
	wc, _ := newConnPair(t, nil)
	assert.Equal(t, defaultSendQueueSize, cap(wc.send))
	assert.Equal(t, int64(defaultMaxMessageSize), wc.maxMessageSize)
	assert.Equal(t, defaultWriteWait, wc.writeWait)
	assert.Equal(t, defaultPongWait, wc.pongWait)
	assert.Less(t, wc.pingPeriod, wc.pongWait)
}

func TestNewWebsocketConn_PingPeriodClamped(t *testing.T) {
	wc, _ := newConnPair(t, &conf.Gateway{
		SendQueueSize: 4,
		PongWait:      conf.NewDuration(10 * time.Second),
		PingPeriod:    conf.NewDuration(20 * time.Second),
	})
	assert.Equal(t, 4, cap(wc.send))
	assert.Equal(t, 9*time.Second, wc.pingPeriod)
}

func TestWebsocketConn_EmitQueueFull(t *testing.T) {
	wc, _ := newConnPair(t, &conf.Gateway{SendQueueSize: 1})
	ctx := context.Background()

	// 未启动 writePump，队列不会被消费
	require.NoError(t, wc.Emit(ctx, "a", json.RawMessage(`1`)))
	assert.ErrorIs(t, wc.Emit(ctx, "b", json.RawMessage(`2`)), ErrSendQueueFull)
}

func TestWebsocketConn_EmitAfterClose(t *testing.T) {
	wc, _ := newConnPair(t, nil)

	require.NoError(t, wc.Close())
	assert.NoError(t, wc.Close())
	assert.ErrorIs(t, wc.Emit(context.Background(), "a", json.RawMessage(`1`)), ErrSessionClosed)
}

func TestWebsocketConn_RunRoundTrip(t *testing.T) {
	wc, client := newConnPair(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan *bo.Frame, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		wc.Run(ctx, func(ctx context.Context, frame *bo.Frame) {
			received <- frame
		})
	}()

	// 非法帧与二进制帧被跳过，连接保持
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"data":1}`)))
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte(`{"event":"x"}`)))
	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte(`{"event":"join","data":"u1"}`)))

	select {
	case frame := <-received:
		assert.Equal(t, bo.EventJoin, frame.Event)
		assert.JSONEq(t, `"u1"`, string(frame.Data))
	case <-time.After(5 * time.Second):
		t.Fatal("frame not received")
	}
	assert.Empty(t, received)

	require.NoError(t, wc.Emit(ctx, "taskAssigned", json.RawMessage(`{"id":1,"title":"t"}`)))
	client.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, message, err := client.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"taskAssigned","data":{"id":1,"title":"t"}}`, string(message))

	client.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("read loop did not stop after client close")
	}
	assert.ErrorIs(t, wc.Emit(ctx, "late", json.RawMessage(`1`)), ErrSessionClosed)
}

func TestWebsocketConn_HeartbeatHook(t *testing.T) {
	wc, client := newConnPair(t, &conf.Gateway{
		PongWait:   conf.NewDuration(time.Second),
		PingPeriod: conf.NewDuration(50 * time.Millisecond),
	})
	beats := make(chan struct{}, 16)
	wc.OnHeartbeat = func(context.Context) {
		select {
		case beats <- struct{}{}:
		default:
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go wc.Run(ctx, func(context.Context, *bo.Frame) {})
	// 客户端需要持续读取才能响应 ping
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-beats:
	case <-time.After(5 * time.Second):
		t.Fatal("heartbeat hook not called")
	}
}
