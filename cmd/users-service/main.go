// users-service 用户 CRUD 服务。
//
// 用法:
//
//	users-service [--config users.yaml] [--addr :8080] [--watch]
//
// 配置项可由环境变量覆盖：USERS_ 前缀，双下划线分隔层级，
// 如 USERS_OBSERVABILITY__LEVEL=warn、USERS_HTTP__ADDR=:9090。
//
// 退出码:
//
//	0: 正常退出（含收到 SIGINT/SIGTERM）
//	1: 运行期错误
//	2: 配置错误
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"
)

// 版本信息，通过 -ldflags "-X main.Version=..." 注入
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
)

const shutdownGrace = 10 * time.Second

type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func main() {
	os.Exit(run(context.Background(), os.Args))
}

func run(ctx context.Context, args []string) int {
	if err := newCommand().Run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "users-service: %v\n", err)
		var cfgErr *configError
		if errors.As(err, &cfgErr) {
			return 2
		}
		return 1
	}
	return 0
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "users-service",
		Usage:   "用户 CRUD 服务",
		Version: fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（.yaml/.yml/.json）",
				Sources: cli.EnvVars("USERS_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "HTTP 监听地址，覆盖配置文件中的 http.addr",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "监听配置文件变化并热更新日志级别",
			},
		},
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
		Action:         serve,
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	src, err := openSource(cmd.String("config"))
	if err != nil {
		return &configError{err}
	}
	cfg, err := loadConfig(src)
	if err != nil {
		return &configError{err}
	}
	if addr := cmd.String("addr"); addr != "" {
		cfg.HTTP.Addr = addr
	}
	if cfg.Observability.ServiceVersion == "" {
		cfg.Observability.ServiceVersion = Version
	}

	a, err := newApp(ctx, cfg, src)
	if err != nil {
		return &configError{err}
	}
	runErr := a.run(ctx, cmd.Bool("watch"))

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	return errors.Join(runErr, a.close(sctx))
}
