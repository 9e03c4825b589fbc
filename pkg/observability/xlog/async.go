package xlog

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// DefaultAsyncBuffer 异步写入队列默认容量（条）
const DefaultAsyncBuffer = 1024

// ErrWriterClosed 向已关闭的 AsyncWriter 写入时返回
var ErrWriterClosed = errors.New("xlog: async writer closed")

// AsyncWriter 在后台 goroutine 中写出日志，调用方永不阻塞。
//
// 队列满时丢弃新记录并计数；Close 会写完队列中剩余的记录。
type AsyncWriter struct {
	out     io.Writer
	queue   chan []byte
	done    chan struct{}
	mu      sync.RWMutex
	closed  bool
	once    sync.Once
	dropped atomic.Uint64
	onError func(error)
}

// NewAsyncWriter 创建 AsyncWriter，buffer <= 0 时使用 DefaultAsyncBuffer。
func NewAsyncWriter(out io.Writer, buffer int, onError func(error)) *AsyncWriter {
	if buffer <= 0 {
		buffer = DefaultAsyncBuffer
	}
	w := &AsyncWriter{
		out:     out,
		queue:   make(chan []byte, buffer),
		done:    make(chan struct{}),
		onError: onError,
	}
	go w.loop()
	return w
}

func (w *AsyncWriter) loop() {
	defer close(w.done)
	for p := range w.queue {
		if _, err := w.out.Write(p); err != nil && w.onError != nil {
			w.onError(err)
		}
	}
}

// Write 复制 p 并入队。slog handler 在返回后会复用缓冲区，因此必须复制。
func (w *AsyncWriter) Write(p []byte) (int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return 0, ErrWriterClosed
	}
	buf := make([]byte, len(p))
	copy(buf, p)
	select {
	case w.queue <- buf:
	default:
		w.dropped.Add(1)
	}
	return len(p), nil
}

// Dropped 返回因队列满而丢弃的记录数
func (w *AsyncWriter) Dropped() uint64 {
	return w.dropped.Load()
}

// Close 停止接收新记录，等待队列写完。重复调用安全。
func (w *AsyncWriter) Close() error {
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		close(w.queue)
		w.mu.Unlock()
	})
	<-w.done
	return nil
}
