package sign

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"
)

const (
	HeaderRequestID = "X-Request-Id"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"

	defaultReplayExpire = time.Hour
	defaultTimeWindow   = 5 * time.Minute
)

var (
	ErrInvalidSign    = errors.New("invalid signature")
	ErrRequestExpired = errors.New("request expired")
	ErrRequestRepeat  = errors.New("replay attack detected")
)

// SignParam 签名参数，用于请求的签名和防重放校验
type SignParam struct {
	RequestID string `json:"request_id"` // 请求ID，要求唯一性，调用方生成
	Timestamp int64  `json:"timestamp"`  // 请求发送时间戳 Unix时间戳 单位毫秒
	Signature string `json:"signature"`  // 签名 HMAC-SHA256(request_id + "_" + timestamp)
}

// ReplayChecker 防重放校验器，负责签名验证、时间窗口验证和防重放
type ReplayChecker struct {
	cache        Cache
	replayExpire time.Duration
	timeWindow   time.Duration
	now          func() time.Time
}

// NewReplayChecker 参数小于等于0时使用默认值：请求ID保留1小时，时间窗口5分钟
func NewReplayChecker(cache Cache, replayExpire, timeWindow time.Duration) *ReplayChecker {
	if replayExpire <= 0 {
		replayExpire = defaultReplayExpire
	}
	if timeWindow <= 0 {
		timeWindow = defaultTimeWindow
	}
	return &ReplayChecker{
		cache:        cache,
		replayExpire: replayExpire,
		timeWindow:   timeWindow,
		now:          time.Now,
	}
}

// GenerateSignature 生成十六进制编码的签名
func GenerateSignature(requestID string, timestamp int64, secretKey string) string {
	message := requestID + "_" + strconv.FormatInt(timestamp, 10)
	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// NewSignParam 调用方使用，为一次请求生成签名参数
func NewSignParam(requestID string, now time.Time, secretKey string) *SignParam {
	ts := now.UnixMilli()
	return &SignParam{
		RequestID: requestID,
		Timestamp: ts,
		Signature: GenerateSignature(requestID, ts, secretKey),
	}
}

func VerifySignature(signParam *SignParam, secretKey string) bool {
	expected := GenerateSignature(signParam.RequestID, signParam.Timestamp, secretKey)
	return hmac.Equal([]byte(signParam.Signature), []byte(expected))
}

// CheckReplay 请求ID已出现过时返回true
func (rc *ReplayChecker) CheckReplay(ctx context.Context, requestID string) (bool, error) {
	stored, err := rc.cache.SetNX(ctx, formatReplayCheckKey(requestID), "1", rc.replayExpire)
	if err != nil {
		return false, err
	}
	return !stored, nil
}

// ValidateRequest 依次校验签名、时间窗口和重放
func (rc *ReplayChecker) ValidateRequest(ctx context.Context, signParam *SignParam, secretKey string) error {
	if signParam.RequestID == "" || !VerifySignature(signParam, secretKey) {
		return ErrInvalidSign
	}
	skew := rc.now().Sub(time.UnixMilli(signParam.Timestamp))
	if skew < 0 {
		skew = -skew
	}
	if skew > rc.timeWindow {
		return ErrRequestExpired
	}
	isReplay, err := rc.CheckReplay(ctx, signParam.RequestID)
	if err != nil {
		return err
	}
	if isReplay {
		return ErrRequestRepeat
	}
	return nil
}

func formatReplayCheckKey(requestID string) string {
	return "chatify:notify:sign:replay_check:" + requestID
}
