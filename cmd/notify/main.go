package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/xinghe903/chatify/notify/internal/conf"
	"github.com/xinghe903/chatify/notify/pkg/monitoring"

	"github.com/go-kratos/kratos/v2"
	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/registry"
	"github.com/go-kratos/kratos/v2/transport/http"
	_ "go.uber.org/automaxprocs"
)

// go build -ldflags "-X main.Version=x.y.z"
var (
	// Name is the name of the compiled software.
	Name string = "notify"
	// Version is the version of the compiled software.
	Version string
	// flagconf is the config flag.
	flagconf string

	id, _ = os.Hostname()
)

func init() {
	flag.StringVar(&flagconf, "conf", "../../configs", "config path, eg: -conf config.yaml")
}

func newApp(logger log.Logger, hs *http.Server, r registry.Registrar) *kratos.App {
	opts := []kratos.Option{
		kratos.Name(Name),
		kratos.Version(Version),
		kratos.Metadata(map[string]string{}),
		kratos.Logger(logger),
		kratos.Server(
			hs,
		),
	}
	if r != nil {
		opts = append(opts, kratos.Registrar(r))
	}
	return kratos.New(opts...)
}

func main() {
	flag.Parse()
	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}
	if bc.Monitoring == nil {
		bc.Monitoring = &conf.Monitoring{}
	}
	serviceName := bc.Monitoring.ServiceName
	if serviceName == "" {
		serviceName = Name
	}
	zapLogger, closeLogger, err := monitoring.NewLogger(bc.Monitoring.Logging)
	if err != nil {
		panic(err)
	}
	defer closeLogger()
	logger := log.With(zapLogger, "service.id", id, "service.name", Name, "service.version", Version)

	if t := bc.Monitoring.Tracing; t != nil {
		shutdown, err := monitoring.InitTraceProvider(t.Endpoint, serviceName, t.Exporter, t.Sampler)
		if err != nil {
			panic(err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdown(ctx)
		}()
	}
	if err := monitoring.InitPrometheus(serviceName); err != nil {
		panic(err)
	}

	svrInstance := conf.ServerInstance{Name: Name, Version: Version, Metadata: map[string]string{}}
	app, cleanup, err := wireApp(&bc, logger, &svrInstance)
	if err != nil {
		panic(err)
	}
	defer cleanup()
	svrInstance.Id = app.ID()
	// start and wait for stop signal
	if err := app.Run(); err != nil {
		panic(err)
	}
}
