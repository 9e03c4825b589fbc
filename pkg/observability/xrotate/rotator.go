package xrotate

import "io"

// Rotator 可轮转的日志文件写入器，并发安全。
//
// Close 之后的 Write 与 Rotate 返回 [ErrClosed]。
type Rotator interface {
	io.WriteCloser

	// Rotate 立即关闭当前文件并开始写入新文件
	Rotate() error
}
