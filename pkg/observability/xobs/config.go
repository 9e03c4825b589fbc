package xobs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xlog"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xotel"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xrotate"
	"github.com/sokolovgit/code-hive-sub000/pkg/observability/xsampling"
)

// 运行环境
const (
	EnvProduction  = "production"
	EnvStaging     = "staging"
	EnvDevelopment = "development"
)

// 导出协议
const (
	ProtocolGRPC = "grpc"
	ProtocolHTTP = "http"
	ProtocolNone = "none"
)

// Batch span 批量导出参数，零值使用 SDK 默认值。
type Batch struct {
	MaxQueueSize       int           `koanf:"max_queue_size" json:"maxQueueSize"`
	MaxExportBatchSize int           `koanf:"max_export_batch_size" json:"maxExportBatchSize"`
	BatchTimeout       time.Duration `koanf:"batch_timeout" json:"batchTimeout"`
	ExportTimeout      time.Duration `koanf:"export_timeout" json:"exportTimeout"`
}

// ExportBreaker span 导出熔断参数，Failures 为 0 时关闭。
type ExportBreaker struct {
	Failures uint32        `koanf:"failures" json:"failures"`
	Cooldown time.Duration `koanf:"cooldown" json:"cooldown"`
}

// Config 可观测性配置。空字段由 WithDefaults 按 Environment 补全。
type Config struct {
	Environment    string `koanf:"environment" json:"environment"`
	ServiceName    string `koanf:"service_name" json:"serviceName"`
	ServiceVersion string `koanf:"service_version" json:"serviceVersion"`

	// Level 日志级别 trace|debug|info|warn|error|fatal
	Level string `koanf:"level" json:"level"`
	// Format 日志格式 json|text
	Format string `koanf:"format" json:"format"`
	// Redact 在 xlog.DefaultRedactKeys 之外追加的脱敏关键字
	Redact          []string     `koanf:"redact" json:"redact"`
	LogFile         xrotate.File `koanf:"log_file" json:"logFile"`
	CallerInference bool         `koanf:"caller_inference" json:"callerInference"`
	// AsyncBuffer 异步日志队列长度，0 表示同步写
	AsyncBuffer int `koanf:"async_buffer" json:"asyncBuffer"`

	// Sampler 采样策略，见 xsampling.ParsePolicy
	Sampler          string            `koanf:"sampler" json:"sampler"`
	Protocol         string            `koanf:"protocol" json:"protocol"`
	ExporterEndpoint string            `koanf:"exporter_endpoint" json:"exporterEndpoint"`
	Insecure         bool              `koanf:"insecure" json:"insecure"`
	Headers          map[string]string `koanf:"headers" json:"headers"`
	Batch            Batch             `koanf:"batch" json:"batch"`
	ExportBreaker    ExportBreaker     `koanf:"export_breaker" json:"exportBreaker"`
	MetricInterval   time.Duration     `koanf:"metric_interval" json:"metricInterval"`

	// IgnorePaths 不创建 span、不写访问日志的 HTTP 路径
	IgnorePaths      []string `koanf:"ignore_paths" json:"ignorePaths"`
	DisableAccessLog bool     `koanf:"disable_access_log" json:"disableAccessLog"`
}

// DefaultConfig 返回 env 环境下 service 的默认配置。
func DefaultConfig(env, service string) Config {
	return Config{Environment: env, ServiceName: service, IgnorePaths: []string{"/healthz", "/metrics"}}.WithDefaults()
}

// WithDefaults 补全未设置的字段：
//
//	production  info  parent:0.1  json
//	staging     debug parent:0.5  json
//	其他         debug always      text
func (c Config) WithDefaults() Config {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	if c.Environment == "" {
		c.Environment = EnvDevelopment
	}
	level, sampler, format := "debug", "always", "text"
	switch c.Environment {
	case EnvProduction:
		level, sampler, format = "info", "parent:0.1", "json"
	case EnvStaging:
		level, sampler, format = "debug", "parent:0.5", "json"
	}
	if c.Level == "" {
		c.Level = level
	}
	if c.Sampler == "" {
		c.Sampler = sampler
	}
	if c.Format == "" {
		c.Format = format
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolNone
		if c.ExporterEndpoint != "" {
			c.Protocol = ProtocolGRPC
		}
	}
	return c
}

// Validate 校验配置，返回所有问题的合并错误。
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.ServiceName) == "" {
		errs = append(errs, errors.New("service_name is required"))
	}
	if c.Level != "" {
		if _, err := xlog.ParseLevel(c.Level); err != nil {
			errs = append(errs, fmt.Errorf("level: %w", err))
		}
	}
	switch strings.ToLower(c.Format) {
	case "", "json", "text":
	default:
		errs = append(errs, fmt.Errorf("format: unknown %q", c.Format))
	}
	if c.Sampler != "" {
		if _, err := xsampling.ParsePolicy(c.Sampler); err != nil {
			errs = append(errs, fmt.Errorf("sampler: %w", err))
		}
	}
	switch c.Protocol {
	case "", ProtocolNone:
	case ProtocolGRPC, ProtocolHTTP:
		if c.ExporterEndpoint == "" {
			errs = append(errs, fmt.Errorf("exporter_endpoint is required for protocol %q", c.Protocol))
		}
	default:
		errs = append(errs, fmt.Errorf("protocol: unknown %q", c.Protocol))
	}
	if err := c.Batch.otel().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.ExportBreaker.otel().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.AsyncBuffer < 0 {
		errs = append(errs, fmt.Errorf("async_buffer: must not be negative, got %d", c.AsyncBuffer))
	}
	if c.MetricInterval < 0 {
		errs = append(errs, fmt.Errorf("metric_interval: must not be negative, got %s", c.MetricInterval))
	}
	return errors.Join(errs...)
}

func (b Batch) otel() xotel.Batch {
	return xotel.Batch{
		MaxQueueSize:       b.MaxQueueSize,
		MaxExportBatchSize: b.MaxExportBatchSize,
		BatchTimeout:       b.BatchTimeout,
		ExportTimeout:      b.ExportTimeout,
	}
}

func (b ExportBreaker) otel() xotel.Breaker {
	return xotel.Breaker{Failures: b.Failures, Cooldown: b.Cooldown}
}

func (c Config) exporter() xotel.Exporter {
	switch c.Protocol {
	case ProtocolGRPC:
		return xotel.OTLPGRPC{Endpoint: c.ExporterEndpoint, Insecure: c.Insecure, Headers: c.Headers}
	case ProtocolHTTP:
		return xotel.OTLPHTTP{Endpoint: c.ExporterEndpoint, Insecure: c.Insecure, Headers: c.Headers}
	default:
		return xotel.NoExporter{}
	}
}
