package conf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Bootstrap 服务启动配置，由 kratos config 从 yaml 文件扫描得到
type Bootstrap struct {
	Server     *Server     `json:"server"`
	Data       *Data       `json:"data"`
	Gateway    *Gateway    `json:"gateway"`
	Monitoring *Monitoring `json:"monitoring"`
}

type Server struct {
	Http   *Server_HTTP `json:"http"`
	Ingest *Ingest      `json:"ingest"`
}

type Server_HTTP struct {
	Network string    `json:"network"`
	Addr    string    `json:"addr"`
	Timeout *Duration `json:"timeout"`
}

// Ingest 后端投递接口的共享密钥校验配置，Secret 为空时不校验
type Ingest struct {
	Secret string `json:"secret"`
	// 时间戳允许的偏差
	TimeWindow *Duration `json:"time_window"`
	// request id 去重保留时长
	ReplayExpire *Duration `json:"replay_expire"`
}

type Data struct {
	Redis *Data_Redis `json:"redis"`
	Kafka *Data_Kafka `json:"kafka"`
	Etcd  *Data_Etcd  `json:"etcd"`
}

type Data_Redis struct {
	Network      string    `json:"network"`
	Addr         string    `json:"addr"`
	Password     string    `json:"password"`
	Db           int32     `json:"db"`
	ReadTimeout  *Duration `json:"read_timeout"`
	WriteTimeout *Duration `json:"write_timeout"`
	// 在线状态镜像的过期时间，心跳时续期
	PresenceTtl *Duration `json:"presence_ttl"`
}

type Data_Kafka struct {
	Brokers    []string  `json:"brokers"`
	Topic      string    `json:"topic"`
	RetryCount int32     `json:"retry_count"`
	Timeout    *Duration `json:"timeout"`
}

type Data_Etcd struct {
	Endpoints   []string  `json:"endpoints"`
	DialTimeout *Duration `json:"dial_timeout"`
	Username    string    `json:"username"`
	Password    string    `json:"password"`
}

// Gateway websocket 连接相关参数
type Gateway struct {
	SendQueueSize  int32     `json:"send_queue_size"`
	MaxMessageSize int64     `json:"max_message_size"`
	WriteWait      *Duration `json:"write_wait"`
	PongWait       *Duration `json:"pong_wait"`
	PingPeriod     *Duration `json:"ping_period"`
	// 允许建立 websocket 的 Origin，为空表示不限制
	AllowedOrigins []string `json:"allowed_origins"`
}

type Monitoring struct {
	ServiceName string              `json:"service_name"`
	Logging     *Monitoring_Logging `json:"logging"`
	Tracing     *Monitoring_Tracing `json:"tracing"`
}

type Monitoring_Logging struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

type Monitoring_Tracing struct {
	Exporter string  `json:"exporter"`
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"`
}

// Duration 支持 "10s"、"1m30s" 形式的配置，数字按秒处理
type Duration struct {
	time.Duration
}

func NewDuration(d time.Duration) *Duration {
	return &Duration{Duration: d}
}

// AsDuration 为 nil 时返回 0
func (d *Duration) AsDuration() time.Duration {
	if d == nil {
		return 0
	}
	return d.Duration
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
		return nil
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		d.Duration = parsed
		return nil
	case nil:
		d.Duration = 0
		return nil
	default:
		return fmt.Errorf("invalid duration %s", string(b))
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
