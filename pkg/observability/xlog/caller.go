package xlog

import (
	"runtime"
	"strings"
)

// maxCallerDepth 推断调用方时最多检查的栈帧数
const maxCallerDepth = 32

// frameworkPrefixes 推断调用方时跳过的函数名前缀（标准库与传输框架）。
var frameworkPrefixes = []string{
	"runtime.",
	"log/slog.",
	"net/http.",
	"reflect.",
	"sync.",
	"github.com/go-chi/",
	"google.golang.org/grpc",
	"github.com/gorilla/websocket",
	modulePath + "/pkg/context/xctx.",
	modulePath + "/pkg/context/xinbound.",
	modulePath + "/pkg/observability/xlog.",
	modulePath + "/pkg/observability/xtrace.",
	modulePath + "/pkg/observability/xreport.",
	modulePath + "/pkg/observability/xobs.",
}

const modulePath = "github.com/sokolovgit/code-hive-sub000"

// genericNames 通用方法名，不能代表业务操作。
var genericNames = map[string]struct{}{
	"ServeHTTP": {},
	"Handle":    {},
	"Do":        {},
	"Run":       {},
	"Go":        {},
	"Start":     {},
	"func":      {},
	"Range":     {},
	"Call":      {},
}

// inferCaller 从调用栈中寻找第一个非框架帧，返回 service（接收者类型或包名）与 method。
//
// 这是启发式推断，找不到时返回空字符串。
func inferCaller(skip int, extraPrefixes []string) (service, method string) {
	var pcs [maxCallerDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !isFrameworkFrame(frame.Function, extraPrefixes) {
			if s, m, ok := splitFunction(frame.Function); ok {
				return s, m
			}
		}
		if !more {
			return "", ""
		}
	}
}

func isFrameworkFrame(fn string, extra []string) bool {
	for _, p := range frameworkPrefixes {
		if strings.HasPrefix(fn, p) {
			return true
		}
	}
	for _, p := range extra {
		if p != "" && strings.HasPrefix(fn, p) {
			return true
		}
	}
	return false
}

// splitFunction 解析 runtime 函数全名：
//
//	example.com/app/users.(*Service).Create       → Service, Create
//	example.com/app/users.(*Service).Create.func1 → Service, Create
//	example.com/app/users.Register                → users, Register
//
// 方法名为通用名称时返回 ok=false。
func splitFunction(full string) (service, method string, ok bool) {
	// 泛型实例化显示为 Do[...]
	rest := strings.ReplaceAll(full, "[...]", "")
	if slash := strings.LastIndex(rest, "/"); slash >= 0 {
		rest = rest[slash+1:]
	}
	dot := strings.Index(rest, ".")
	if dot < 0 {
		return "", "", false
	}
	pkg := rest[:dot]
	parts := strings.Split(rest[dot+1:], ".")

	// 去掉闭包后缀 funcN / glob..funcN
	for len(parts) > 1 && isClosureName(parts[len(parts)-1]) {
		parts = parts[:len(parts)-1]
	}
	if len(parts) == 0 || isClosureName(parts[0]) {
		return "", "", false
	}

	if len(parts) >= 2 {
		service = strings.Trim(parts[0], "(*)")
		method = parts[1]
	} else {
		service = pkg
		method = parts[0]
	}
	if _, generic := genericNames[method]; generic || method == "" {
		return "", "", false
	}
	return service, method, true
}

func isClosureName(s string) bool {
	if s == "" || s == "glob" {
		return true
	}
	if !strings.HasPrefix(s, "func") {
		return false
	}
	for _, c := range s[len("func"):] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
