package xlru

import "errors"

var (
	// ErrInvalidSize 缓存容量必须为正数
	ErrInvalidSize = errors.New("xlru: size must be greater than 0")

	// ErrSizeExceedsMax 缓存容量超过 MaxSize
	ErrSizeExceedsMax = errors.New("xlru: size exceeds max")

	// ErrInvalidTTL TTL 不能为负
	ErrInvalidTTL = errors.New("xlru: ttl must not be negative")
)
