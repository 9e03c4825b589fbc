package xid

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	retry "github.com/avast/retry-go/v5"
	"github.com/sony/sonyflake/v2"
)

var (
	// ErrInvalidMachineID XID_MACHINE_ID 不是 0-65535 的整数
	ErrInvalidMachineID = errors.New("xid: invalid machine id")

	// ErrInvalidID 字符串不是合法的 ID
	ErrInvalidID = errors.New("xid: invalid id")

	// ErrOverTimeLimit 时间分量溢出，生成器不可再用
	ErrOverTimeLimit = errors.New("xid: time component overflow")
)

// DefaultMaxWait 生成失败时的最长重试等待
const DefaultMaxWait = 500 * time.Millisecond

const retryInterval = 10 * time.Millisecond

// Generator 唯一 ID 生成器，并发安全。
type Generator struct {
	maxWait time.Duration
	next    func() (int64, error)
}

// Option 配置 Generator
type Option func(*settings)

type settings struct {
	machineID func() (uint16, bool, error)
	maxWait   time.Duration
}

// WithMachineID 固定机器 ID
func WithMachineID(id uint16) Option {
	return func(s *settings) {
		s.machineID = func() (uint16, bool, error) { return id, true, nil }
	}
}

// WithMaxWait 设置重试等待上限
func WithMaxWait(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.maxWait = d
		}
	}
}

// NewGenerator 创建生成器，默认机器 ID 见 [MachineID]。
func NewGenerator(opts ...Option) (*Generator, error) {
	s := settings{machineID: MachineID, maxWait: DefaultMaxWait}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	var st sonyflake.Settings
	id, ok, err := s.machineID()
	if err != nil {
		return nil, err
	}
	if ok {
		st.MachineID = func() (int, error) { return int(id), nil }
	}
	sf, err := sonyflake.New(st)
	if err != nil {
		return nil, fmt.Errorf("xid: init sonyflake: %w", err)
	}
	return &Generator{maxWait: s.maxWait, next: sf.NextID}, nil
}

// Next 生成新 ID 的 base36 字符串，失败时在 maxWait 内重试。
func (g *Generator) Next(ctx context.Context) (string, error) {
	id, err := g.nextInt(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 36), nil
}

func (g *Generator) nextInt(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// 首次尝试之外，每 retryInterval 重试一次直到 maxWait 用尽
	attempts := uint(g.maxWait/retryInterval) + 1
	return retry.NewWithData[int64](
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(retryInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !errors.Is(err, ErrOverTimeLimit) }),
	).Do(func() (int64, error) {
		id, err := g.next()
		if errors.Is(err, sonyflake.ErrOverTimeLimit) {
			return 0, fmt.Errorf("%w: %w", ErrOverTimeLimit, err)
		}
		return id, err
	})
}

// Sonyflake v2 位布局：39 位时间（10ms）+ 8 位序列 + 16 位机器
const (
	machineBits  = 16
	sequenceBits = 8
	machineMask  = 1<<machineBits - 1
	sequenceMask = 1<<sequenceBits - 1
)

// Parts ID 的组成部分
type Parts struct {
	// Ticks 自 Sonyflake 起始时间以来的 10ms 个数
	Ticks    int64
	Sequence int64
	Machine  int64
}

// Parse 解析 Next 生成的字符串。
func Parse(s string) (Parts, error) {
	id, err := strconv.ParseInt(s, 36, 64)
	if err != nil || id <= 0 {
		return Parts{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return Parts{
		Ticks:    id >> (machineBits + sequenceBits),
		Sequence: (id >> machineBits) & sequenceMask,
		Machine:  id & machineMask,
	}, nil
}
