package xrotate

import "errors"

var (
	// ErrEmptyFilename 文件名为空
	ErrEmptyFilename = errors.New("xrotate: filename is required")

	// ErrInvalidMaxSize MaxSizeMB 不在 1~10240 范围内
	ErrInvalidMaxSize = errors.New("xrotate: invalid MaxSizeMB")

	// ErrInvalidRetention MaxBackups/MaxAgeDays 为负，或二者同时为 0
	ErrInvalidRetention = errors.New("xrotate: invalid retention")

	// ErrClosed 写入器已关闭
	ErrClosed = errors.New("xrotate: rotator is closed")
)
