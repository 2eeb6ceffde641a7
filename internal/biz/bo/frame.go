package bo

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

const (
	// 客户端上行事件
	EventJoin       = "join"
	EventClientPing = "clientPing"
	// 服务端下行事件
	EventServerPong = "serverPong"
)

var ErrInvalidIdentity = errors.New("identity must be a string or a number")

// Frame websocket 上下行的消息帧，data 原样透传
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Identity 用户身份，兼容 JSON 字符串与数字两种写法
type Identity string

func (i *Identity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*i = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*i = Identity(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return ErrInvalidIdentity
	}
	// 数字 0 视为缺失
	if isZeroNumber(n) {
		*i = ""
		return nil
	}
	*i = Identity(n.String())
	return nil
}

func (i Identity) String() string {
	return string(i)
}

// IsEmptyPayload data 缺失，或为 null、false、空字符串、数字 0
func IsEmptyPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return true
	}
	switch string(trimmed) {
	case "null", "false", `""`:
		return true
	}
	if c := trimmed[0]; c == '-' || (c >= '0' && c <= '9') {
		var n json.Number
		return json.Unmarshal(trimmed, &n) == nil && isZeroNumber(n)
	}
	return false
}

func isZeroNumber(n json.Number) bool {
	f, err := n.Float64()
	return err == nil && f == 0
}
