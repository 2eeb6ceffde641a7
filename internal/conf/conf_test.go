package conf

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: `"10s"`, want: 10 * time.Second},
		{input: `"1m30s"`, want: 90 * time.Second},
		{input: `2`, want: 2 * time.Second},
		{input: `0.5`, want: 500 * time.Millisecond},
		{input: `null`, want: 0},
		{input: `"soon"`, wantErr: true},
		{input: `true`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.input), &d)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.AsDuration())
		})
	}
}

func TestDuration_NilAndMarshal(t *testing.T) {
	var d *Duration
	assert.Zero(t, d.AsDuration())

	out, err := json.Marshal(NewDuration(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, `"1.5s"`, string(out))
}

func TestServerInstance_NodeID(t *testing.T) {
	var s *ServerInstance
	assert.Empty(t, s.NodeID())
	assert.Equal(t, "notify", (&ServerInstance{Name: "notify"}).NodeID())
	assert.Equal(t, "id-1", (&ServerInstance{Id: "id-1", Name: "notify"}).NodeID())
}

func TestBootstrap_ScanYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  http:
    addr: 0.0.0.0:8000
    timeout: 5s
  ingest:
    secret: s3cret
    time_window: 1m
data:
  redis:
    addr: 127.0.0.1:6379
    presence_ttl: 90s
  kafka:
    brokers:
      - 127.0.0.1:9092
gateway:
  send_queue_size: 64
  pong_wait: 30s
  allowed_origins:
    - http://localhost:3000
monitoring:
  service_name: notify
  logging:
    level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c := config.New(config.WithSource(file.NewSource(path)))
	require.NoError(t, c.Load())
	defer c.Close()

	var bc Bootstrap
	require.NoError(t, c.Scan(&bc))

	assert.Equal(t, "0.0.0.0:8000", bc.Server.Http.Addr)
	assert.Equal(t, 5*time.Second, bc.Server.Http.Timeout.AsDuration())
	assert.Equal(t, "s3cret", bc.Server.Ingest.Secret)
	assert.Equal(t, time.Minute, bc.Server.Ingest.TimeWindow.AsDuration())
	assert.Equal(t, 90*time.Second, bc.Data.Redis.PresenceTtl.AsDuration())
	assert.Equal(t, []string{"127.0.0.1:9092"}, bc.Data.Kafka.Brokers)
	assert.Nil(t, bc.Data.Etcd)
	assert.Equal(t, int32(64), bc.Gateway.SendQueueSize)
	assert.Equal(t, 30*time.Second, bc.Gateway.PongWait.AsDuration())
	assert.Equal(t, []string{"http://localhost:3000"}, bc.Gateway.AllowedOrigins)
	assert.Equal(t, "debug", bc.Monitoring.Logging.Level)
}
