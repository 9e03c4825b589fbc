package xlog

import (
	"log/slog"
	"os"
	"sync"
)

// 基础设施字段 Key
const (
	KeyHost           = "host"
	KeyPID            = "pid"
	KeyEnv            = "env"
	KeyServiceName    = "serviceName"
	KeyServiceVersion = "serviceVersion"
)

// Infra 进程级元数据，附加到每条日志。
type Infra struct {
	Host           string
	PID            int
	Env            string
	ServiceName    string
	ServiceVersion string
}

var (
	hostOnce sync.Once
	hostName string
)

func cachedHostname() string {
	hostOnce.Do(func() {
		h, err := os.Hostname()
		if err != nil || h == "" {
			h = "unknown"
		}
		hostName = h
	})
	return hostName
}

// NewInfra 创建 Infra，主机名与 pid 在进程内只解析一次。
func NewInfra(env, serviceName, serviceVersion string) Infra {
	return Infra{
		Host:           cachedHostname(),
		PID:            os.Getpid(),
		Env:            env,
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	}
}

// Attrs 返回非空字段对应的日志属性。
func (i Infra) Attrs() []slog.Attr {
	attrs := make([]slog.Attr, 0, 5)
	if i.Host != "" {
		attrs = append(attrs, slog.String(KeyHost, i.Host))
	}
	if i.PID != 0 {
		attrs = append(attrs, slog.Int(KeyPID, i.PID))
	}
	if i.Env != "" {
		attrs = append(attrs, slog.String(KeyEnv, i.Env))
	}
	if i.ServiceName != "" {
		attrs = append(attrs, slog.String(KeyServiceName, i.ServiceName))
	}
	if i.ServiceVersion != "" {
		attrs = append(attrs, slog.String(KeyServiceVersion, i.ServiceVersion))
	}
	return attrs
}
