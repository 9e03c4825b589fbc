package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sokolovgit/code-hive-sub000/internal/users"
	"github.com/sokolovgit/code-hive-sub000/pkg/config/xconf"
	"github.com/sokolovgit/code-hive-sub000/pkg/lifecycle/xrun"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xobs"
	"github.com/sokolovgit/code-hive-sub000/pkg/util/xid"
)

type app struct {
	cfg     Config
	src     *xconf.Source
	obs     *xobs.Observability
	repo    *users.CachedRepository
	handler http.Handler
}

func newApp(ctx context.Context, cfg Config, src *xconf.Source, obsOpts ...xobs.Option) (*app, error) {
	obs, err := xobs.New(ctx, cfg.Observability, obsOpts...)
	if err != nil {
		return nil, err
	}
	ids, err := newIDGenerator(cfg.MachineID)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}
	repo, err := users.NewCachedRepository(users.NewMemoryRepository(), cfg.Cache)
	if err != nil {
		_ = obs.Shutdown(ctx)
		return nil, err
	}

	metrics := users.NewMetrics(serviceName)
	metrics.RegisterCache(serviceName, repo.Stats)
	svc := users.NewService(repo, ids, users.WithTracer(obs.Tracer()), users.WithLogger(obs.Logger()))

	return &app{
		cfg:     cfg,
		src:     src,
		obs:     obs,
		repo:    repo,
		handler: users.NewHandler(svc, obs, metrics).Routes(),
	}, nil
}

func newIDGenerator(machineID uint16) (*xid.Generator, error) {
	if machineID != 0 {
		return xid.NewGenerator(xid.WithMachineID(machineID))
	}
	id, ok, err := xid.MachineID()
	if err != nil {
		return nil, err
	}
	if ok {
		return xid.NewGenerator(xid.WithMachineID(id))
	}
	return xid.NewGenerator()
}

// run 阻塞直到收到信号、ctx 取消或某个 actor 失败。
func (a *app) run(ctx context.Context, watch bool, opts ...xrun.Option) error {
	log := a.obs.Logger()
	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: a.cfg.HTTP.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(xlog.Handler(log), slog.LevelError),
	}
	actors := []xrun.Actor{xrun.HTTPServer("http", srv, a.cfg.HTTP.ShutdownTimeout)}
	if watch && a.src != nil && a.src.Path() != "" {
		actors = append(actors, xrun.Func("config-watch", func(ctx context.Context) error {
			return a.src.Watch(ctx, func(err error) { a.reload(ctx, err) })
		}))
	}

	log.Info(ctx, "users service starting",
		slog.String("addr", a.cfg.HTTP.Addr),
		slog.String("exporter", a.obs.Pipeline().ExporterName()),
		slog.Bool("watch", watch))

	opts = append([]xrun.Option{xrun.WithLogger(log), xrun.WithName(serviceName)}, opts...)
	err := xrun.Run(ctx, opts, actors...)
	if errors.Is(err, xrun.ErrSignal) {
		err = nil
	}
	if err != nil {
		log.Error(ctx, "users service stopped", xlog.Err(err))
	} else {
		log.Info(ctx, "users service stopped")
	}
	return err
}

// reload 响应配置文件变化，目前只有日志级别支持热更新。
func (a *app) reload(ctx context.Context, err error) {
	log := a.obs.Logger()
	if err != nil {
		log.Warn(ctx, "config reload failed, keeping previous config", xlog.Err(err))
		return
	}
	cfg, err := loadConfig(a.src)
	if err != nil {
		log.Warn(ctx, "reloaded config is invalid, keeping previous config", xlog.Err(err))
		return
	}
	level := cfg.Observability.WithDefaults().Level
	if err := a.obs.SetLevel(level); err != nil {
		log.Warn(ctx, "invalid log level", slog.String("level", level), xlog.Err(err))
		return
	}
	log.Info(ctx, "log level updated", slog.String("level", level))
}

// close 释放资源，可观测性最后关闭。
func (a *app) close(ctx context.Context) error {
	a.repo.Close()
	if err := a.obs.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown observability: %w", err)
	}
	return nil
}
