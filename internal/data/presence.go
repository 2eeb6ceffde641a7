package data

import (
	"context"
	"encoding/json"
	"time"

	"github.com/xinghe903/chatify/notify/internal/biz"
	"github.com/xinghe903/chatify/notify/internal/biz/bo"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
)

const defaultPresenceTTL = 2 * time.Minute

var (
	_ biz.PresenceRepo = (*presenceRepo)(nil)
	_ biz.PresenceRepo = noopPresenceRepo{}
)

// presenceRepo 每个用户一个 hash：field 为连接ID，value 为连接记录
type presenceRepo struct {
	data *Data
	log  *log.Helper
}

func NewPresenceRepo(data *Data, logger log.Logger) biz.PresenceRepo {
	if data.redisClient == nil {
		return noopPresenceRepo{}
	}
	return &presenceRepo{
		data: data,
		log:  log.NewHelper(logger),
	}
}

func (p *presenceRepo) SetSession(ctx context.Context, session *bo.Session) error {
	if session == nil {
		return nil
	}
	sessionJson, err := json.Marshal(session)
	if err != nil {
		return err
	}
	key := bo.PresenceKeyPrefix + session.Uid
	_, err = p.data.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, session.ConnectionId, sessionJson)
		pipe.Expire(ctx, key, p.data.presenceTTL)
		return nil
	})
	return err
}

func (p *presenceRepo) ClearSession(ctx context.Context, uid string, connectionId string) error {
	return p.data.redisClient.HDel(ctx, bo.PresenceKeyPrefix+uid, connectionId).Err()
}

func (p *presenceRepo) RenewSession(ctx context.Context, uid string) error {
	return p.data.redisClient.Expire(ctx, bo.PresenceKeyPrefix+uid, p.data.presenceTTL).Err()
}

func (p *presenceRepo) BatchClearSession(ctx context.Context, uids []string) error {
	if len(uids) == 0 {
		return nil
	}
	keys := make([]string, len(uids))
	for i, uid := range uids {
		keys[i] = bo.PresenceKeyPrefix + uid
	}
	return p.data.redisClient.Del(ctx, keys...).Err()
}

// ListSessions 读取镜像中用户的所有连接记录
func (p *presenceRepo) ListSessions(ctx context.Context, uid string) ([]*bo.Session, error) {
	values, err := p.data.redisClient.HGetAll(ctx, bo.PresenceKeyPrefix+uid).Result()
	if err != nil {
		return nil, err
	}
	sessions := make([]*bo.Session, 0, len(values))
	for connectionId, value := range values {
		var session bo.Session
		if err := json.Unmarshal([]byte(value), &session); err != nil {
			p.log.WithContext(ctx).Warnf("invalid presence record uid=%s connection=%s: %v", uid, connectionId, err)
			continue
		}
		sessions = append(sessions, &session)
	}
	return sessions, nil
}

type noopPresenceRepo struct{}

func (noopPresenceRepo) SetSession(context.Context, *bo.Session) error      { return nil }
func (noopPresenceRepo) ClearSession(context.Context, string, string) error { return nil }
func (noopPresenceRepo) RenewSession(context.Context, string) error         { return nil }
func (noopPresenceRepo) BatchClearSession(context.Context, []string) error  { return nil }
