package data

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/xinghe903/chatify/notify/internal/biz"
	"github.com/xinghe903/chatify/notify/internal/biz/bo"
	"github.com/xinghe903/chatify/notify/internal/conf"
	"github.com/xinghe903/chatify/notify/pkg/idgen"

	"github.com/IBM/sarama"
	"github.com/go-kratos/kratos/v2/log"
)

const (
	KafkaTopicUserState = "user_state"
)

const publishTimeout = time.Second

var (
	ErrPublishTimeout  = errors.New("kafka producer input timeout")
	ErrPublisherClosed = errors.New("kafka producer closed")
)

var (
	_ biz.StatePublisher = (*KafkaStatePublisher)(nil)
	_ biz.StatePublisher = noopStatePublisher{}
)

// KafkaStatePublisher 将用户上下线事件异步写入 kafka，key 为用户ID
type KafkaStatePublisher struct {
	producer  sarama.AsyncProducer
	topic     string
	log       *log.Helper
	snowflake *idgen.Sonyflake
	wg        sync.WaitGroup

	// 保护 producer.Input()，关闭后不能再写入
	mu     sync.RWMutex
	closed bool
}

// NewStatePublisher 未配置 kafka brokers 时返回空实现
func NewStatePublisher(cb *conf.Bootstrap, logger log.Logger) (biz.StatePublisher, func(), error) {
	if cb.Data == nil || cb.Data.Kafka == nil || len(cb.Data.Kafka.Brokers) == 0 {
		return noopStatePublisher{}, func() {}, nil
	}
	c := cb.Data.Kafka
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForLocal // 本地确认
	config.Producer.Retry.Max = int(c.RetryCount)      // 重试次数
	config.Producer.Return.Successes = true            // 返回成功消息
	config.Producer.Return.Errors = true               // 返回错误消息
	if d := c.Timeout.AsDuration(); d > 0 {
		config.Producer.Timeout = d
	}
	config.Producer.Compression = sarama.CompressionSnappy
	// 同一用户的状态事件落在同一分区，保持顺序
	config.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewAsyncProducer(c.Brokers, config)
	if err != nil {
		return nil, nil, err
	}
	topic := c.Topic
	if topic == "" {
		topic = KafkaTopicUserState
	}
	kp := NewKafkaStatePublisher(producer, topic, idgen.MustHostSonyflake(), logger)
	return kp, kp.Close, nil
}

// NewKafkaStatePublisher 启动后台 goroutine 处理发送结果
func NewKafkaStatePublisher(producer sarama.AsyncProducer, topic string, sf *idgen.Sonyflake, logger log.Logger) *KafkaStatePublisher {
	kp := &KafkaStatePublisher{
		producer:  producer,
		topic:     topic,
		log:       log.NewHelper(log.With(logger, "module", "state_publisher")),
		snowflake: sf,
	}
	kp.wg.Add(1)
	go kp.monitor()
	return kp
}

func (k *KafkaStatePublisher) PublishUserState(ctx context.Context, msg *bo.UserStateMessage) error {
	if msg.Id == "" {
		id, err := k.snowflake.GenerateBase62()
		if err != nil {
			return err
		}
		msg.Id = id
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pm := &sarama.ProducerMessage{
		Topic:     k.topic,
		Key:       sarama.StringEncoder(msg.UserID),
		Value:     sarama.ByteEncoder(value),
		Timestamp: time.Now(),
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		return ErrPublisherClosed
	}
	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case k.producer.Input() <- pm:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrPublishTimeout
	}
}

// Close 关闭生产者并等待结果处理完成
func (k *KafkaStatePublisher) Close() {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return
	}
	k.closed = true
	k.mu.Unlock()
	if err := k.producer.Close(); err != nil {
		k.log.Errorf("Failed to close kafka producer: %v", err)
	}
	k.wg.Wait()
	k.log.Info("Kafka producer closed")
}

func (k *KafkaStatePublisher) monitor() {
	defer k.wg.Done()
	successes, errs := k.producer.Successes(), k.producer.Errors()
	for successes != nil || errs != nil {
		select {
		case suc, ok := <-successes:
			if !ok {
				successes = nil
				continue
			}
			k.log.Debugf("user state sent offset=%d partition=%d topic=%s", suc.Offset, suc.Partition, suc.Topic)
		case fail, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			k.log.Errorf("user state send failed topic=%s: %v", fail.Msg.Topic, fail.Err)
		}
	}
}

type noopStatePublisher struct{}

func (noopStatePublisher) PublishUserState(context.Context, *bo.UserStateMessage) error { return nil }
