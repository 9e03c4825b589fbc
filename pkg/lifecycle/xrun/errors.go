package xrun

import (
	"errors"
	"fmt"
	"os"
)

// ErrSignal 因收到系统信号而退出，配合 errors.Is 使用。
var ErrSignal = errors.New("received signal")

// ErrNilActor Actor 没有 Run 函数
var ErrNilActor = errors.New("xrun: nil actor func")

// SignalError 携带触发退出的信号。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	return fmt.Sprintf("received signal %v", e.Signal)
}

// Unwrap 使 errors.Is(err, ErrSignal) 成立。
func (e *SignalError) Unwrap() error { return ErrSignal }
