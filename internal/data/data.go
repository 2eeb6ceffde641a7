package data

import (
	"context"
	"fmt"
	"time"

	"github.com/xinghe903/chatify/notify/internal/conf"
	"github.com/xinghe903/chatify/notify/pkg/sign"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

// ProviderSet is data providers.
var ProviderSet = wire.NewSet(NewData, NewPresenceRepo, NewStatePublisher, NewEtcdClient, NewRegistrar, NewReplayCache)

// Data redis 为空表示未配置，相关仓库退化为空实现
type Data struct {
	redisClient *redis.Client
	presenceTTL time.Duration
}

func NewData(cb *conf.Bootstrap, logger log.Logger) (*Data, func(), error) {
	logg := log.NewHelper(logger)
	d := &Data{presenceTTL: defaultPresenceTTL}
	if cb.Data != nil && cb.Data.Redis != nil {
		rdb, err := initRedisClient(cb.Data.Redis, logger)
		if err != nil {
			return nil, nil, err
		}
		d.redisClient = rdb
		if ttl := cb.Data.Redis.PresenceTtl.AsDuration(); ttl > 0 {
			d.presenceTTL = ttl
		}
	}
	cleanup := func() {
		if d.redisClient != nil {
			if err := d.redisClient.Close(); err != nil {
				logg.Errorf("Failed to close redis client: %v", err)
			}
		}
		logg.Info("closing the data resources")
	}
	return d, cleanup, nil
}

// NewDataWithRedis 直接使用已有的 redis 客户端
func NewDataWithRedis(client *redis.Client, presenceTTL time.Duration) *Data {
	if presenceTTL <= 0 {
		presenceTTL = defaultPresenceTTL
	}
	return &Data{redisClient: client, presenceTTL: presenceTTL}
}

// NewReplayCache 签名防重放缓存，未配置 redis 时使用内存缓存，键保留时长与 replay_expire 一致
func NewReplayCache(cb *conf.Bootstrap, d *Data) sign.Cache {
	if d.redisClient == nil {
		var ttl time.Duration
		if cb.Server != nil && cb.Server.Ingest != nil {
			ttl = cb.Server.Ingest.ReplayExpire.AsDuration()
		}
		return sign.NewMemoryCache(0, ttl)
	}
	return sign.NewRedisCache(d.redisClient)
}

func initRedisClient(c *conf.Data_Redis, logger log.Logger) (*redis.Client, error) {
	// 默认配置
	network := "tcp"
	addr := "localhost:6379"
	readTimeout := 3 * time.Second
	writeTimeout := 3 * time.Second

	if c.Network != "" {
		network = c.Network
	}
	if c.Addr != "" {
		addr = c.Addr
	}
	if d := c.ReadTimeout.AsDuration(); d > 0 {
		readTimeout = d
	}
	if d := c.WriteTimeout.AsDuration(); d > 0 {
		writeTimeout = d
	}

	client := redis.NewClient(&redis.Options{
		Network:      network,
		Addr:         addr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		Password:     c.Password,
		DB:           int(c.Db),
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.NewHelper(logger).Info("Redis client initialized successfully")

	return client, nil
}
