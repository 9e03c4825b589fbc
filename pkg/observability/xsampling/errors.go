package xsampling

import (
	"errors"
	"math"
)

var (
	// ErrInvalidRate 比率不在 [0, 1] 内或为 NaN
	ErrInvalidRate = errors.New("xsampling: rate must be in [0.0, 1.0]")
	// ErrNilKeyFunc 未提供 KeyFunc
	ErrNilKeyFunc = errors.New("xsampling: keyFunc must not be nil")
	// ErrNilOption 选项为 nil
	ErrNilOption = errors.New("xsampling: nil option")
	// ErrNilSampler 父级采样器缺少 root
	ErrNilSampler = errors.New("xsampling: sampler must not be nil")
	// ErrInvalidPolicy 策略字符串无法解析
	ErrInvalidPolicy = errors.New("xsampling: invalid sampler policy")
)

func validateRate(rate float64) error {
	if math.IsNaN(rate) || rate < 0 || rate > 1 {
		return ErrInvalidRate
	}
	return nil
}
