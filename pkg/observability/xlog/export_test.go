package xlog

// SetNewBuilderForTest 替换 Default 使用的构建器工厂，用于覆盖构建失败的退化路径。
// 返回恢复函数，测试结束时必须调用。
func SetNewBuilderForTest(fn func() *Builder) func() {
	old := newBuilder
	newBuilder = fn
	return func() { newBuilder = old }
}

// ErrorCount 返回 logger 的内部错误计数
func ErrorCount(l Logger) uint64 {
	xl, ok := l.(*xlogger)
	if !ok {
		return 0
	}
	return xl.errs.Load()
}

// SplitFunction 暴露给黑盒测试
var SplitFunction = splitFunction
