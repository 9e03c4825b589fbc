package main

import (
	"errors"
	"time"

	"github.com/sokolovgit/code-hive-sub000/pkg/config/xconf"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xobs"
	"github.com/sokolovgit/code-hive-sub000/pkg/util/xlru"
)

const (
	serviceName = "users"
	envPrefix   = "USERS_"
)

// Config 服务配置
type Config struct {
	Observability xobs.Config `koanf:"observability"`
	HTTP          HTTPConfig  `koanf:"http"`
	Cache         xlru.Config `koanf:"cache"`
	// MachineID 用户 id 生成器的机器号，0 表示从环境推导
	MachineID uint16 `koanf:"machine_id"`
}

// HTTPConfig HTTP 监听配置
type HTTPConfig struct {
	Addr              string        `koanf:"addr" validate:"required"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout" validate:"gte=0"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

func defaultConfig() Config {
	return Config{
		Observability: xobs.Config{
			ServiceName: serviceName,
			IgnorePaths: []string{"/healthz", "/metrics"},
		},
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   15 * time.Second,
		},
		Cache: xlru.Config{Size: 1024, TTL: time.Minute},
	}
}

// Validate 校验嵌套配置
func (c Config) Validate() error {
	return errors.Join(c.Observability.WithDefaults().Validate(), c.Cache.Validate())
}

// openSource 打开配置源；path 为空时只读取环境变量。
func openSource(path string) (*xconf.Source, error) {
	if path == "" {
		return xconf.FromBytes(nil, xconf.FormatYAML, xconf.WithEnvPrefix(envPrefix))
	}
	return xconf.Open(path, xconf.WithEnvPrefix(envPrefix))
}

func loadConfig(src *xconf.Source) (Config, error) {
	return xconf.Load(src, "", defaultConfig())
}
