package monitoring

import (
	"fmt"

	"github.com/xinghe903/chatify/notify/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/tracing"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// helper -> log.With -> Logger.Log
const callerSkip = 3

// NewLogger 按 monitoring.logging 构建带 trace 信息的 kratos 日志器
// c 为 nil 时输出 info 级别 json 到 stdout；返回的函数负责刷盘并关闭输出
func NewLogger(c *conf.Monitoring_Logging) (log.Logger, func(), error) {
	zl, closer, err := NewZapLogger(c)
	if err != nil {
		return nil, nil, err
	}
	return WithTrace(Wrap(zl)), closer, nil
}

// NewZapLogger 按配置构建 zap 日志器，output 支持 stdout、stderr 与文件路径
func NewZapLogger(c *conf.Monitoring_Logging) (*zap.Logger, func(), error) {
	if c == nil {
		c = &conf.Monitoring_Logging{}
	}
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, nil, fmt.Errorf("monitoring.logging.level: %w", err)
		}
	}

	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder
	var encoder zapcore.Encoder
	switch c.Format {
	case "", "json":
		encoder = zapcore.NewJSONEncoder(ec)
	case "console":
		encoder = zapcore.NewConsoleEncoder(ec)
	default:
		return nil, nil, fmt.Errorf("monitoring.logging.format: unknown format %q", c.Format)
	}

	output := c.Output
	if output == "" {
		output = "stdout"
	}
	sink, closeSink, err := zap.Open(output)
	if err != nil {
		return nil, nil, fmt.Errorf("monitoring.logging.output: %w", err)
	}

	zl := zap.New(zapcore.NewCore(encoder, sink, level),
		zap.AddCaller(),
		zap.AddCallerSkip(callerSkip),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return zl, func() {
		_ = zl.Sync()
		closeSink()
	}, nil
}

// WithTrace 为日志附加 traceId 与 spanId
func WithTrace(logger log.Logger) log.Logger {
	return log.With(logger, "traceId", tracing.TraceID(), "spanId", tracing.SpanID())
}

// Logger 将 zap 适配为 kratos log.Logger
type Logger struct {
	zl *zap.Logger
}

var _ log.Logger = (*Logger)(nil)

func Wrap(zl *zap.Logger) *Logger {
	return &Logger{zl: zl}
}

func (l *Logger) Log(level log.Level, keyvals ...any) error {
	if len(keyvals) == 0 {
		return nil
	}
	if len(keyvals)%2 != 0 {
		l.zl.Warn(fmt.Sprint("keyvals must appear in pairs: ", keyvals))
		return nil
	}
	var msg string
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		if key == log.DefaultMessageKey {
			msg = fmt.Sprint(keyvals[i+1])
			continue
		}
		fields = append(fields, zap.Any(key, keyvals[i+1]))
	}
	if ce := l.zl.Check(zapLevel(level), msg); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func zapLevel(level log.Level) zapcore.Level {
	switch level {
	case log.LevelDebug:
		return zapcore.DebugLevel
	case log.LevelWarn:
		return zapcore.WarnLevel
	case log.LevelError:
		return zapcore.ErrorLevel
	case log.LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}
