package data

import (
	"time"

	"github.com/xinghe903/chatify/notify/internal/conf"

	etcd "github.com/go-kratos/kratos/contrib/registry/etcd/v2"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/registry"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// NewEtcdClient 创建etcd客户端，未配置 endpoints 时返回 nil
func NewEtcdClient(cb *conf.Bootstrap, logger log.Logger) (*clientv3.Client, func(), error) {
	if cb.Data == nil || cb.Data.Etcd == nil || len(cb.Data.Etcd.Endpoints) == 0 {
		return nil, func() {}, nil
	}
	c := cb.Data.Etcd
	dialTimeout := c.DialTimeout.AsDuration()
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   c.Endpoints,
		DialTimeout: dialTimeout,
		Username:    c.Username,
		Password:    c.Password,
	})
	if err != nil {
		log.NewHelper(logger).Errorw("msg", "failed to create etcd client", "err", err)
		return nil, nil, err
	}
	log.NewHelper(logger).Info("etcd client created successfully")
	cleanup := func() {
		if err := client.Close(); err != nil {
			log.NewHelper(logger).Errorf("Failed to close etcd client: %v", err)
		}
	}
	return client, cleanup, nil
}

// NewRegistrar 创建服务注册器，client 为 nil 时不注册
func NewRegistrar(client *clientv3.Client) registry.Registrar {
	if client == nil {
		return nil
	}
	return etcd.New(client)
}
