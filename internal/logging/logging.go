package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	mu     sync.RWMutex
	logger = New(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
)

// New builds a leveled go-kit logger. format is "json" (default) or "logfmt".
func New(w io.Writer, lvl, format string) log.Logger {
	var opt level.Option
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	default:
		opt = level.AllowInfo()
	}

	var l log.Logger
	if strings.EqualFold(strings.TrimSpace(format), "logfmt") {
		l = log.NewLogfmtLogger(log.NewSyncWriter(w))
	} else {
		l = log.NewJSONLogger(log.NewSyncWriter(w))
	}

	l = level.NewFilter(l, opt)
	return log.With(l, "ts", log.DefaultTimestampUTC)
}

// SetLogger replaces the package logger. Lambda mains call it once with
// settings-derived options; tests use it to capture output.
func SetLogger(l log.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l
}

func current() log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, keyvals ...any) {
	_ = level.Debug(current()).Log(append([]any{"msg", msg}, keyvals...)...)
}

func Info(msg string, keyvals ...any) {
	_ = level.Info(current()).Log(append([]any{"msg", msg}, keyvals...)...)
}

func Warn(msg string, keyvals ...any) {
	_ = level.Warn(current()).Log(append([]any{"msg", msg}, keyvals...)...)
}

func Error(msg string, keyvals ...any) {
	_ = level.Error(current()).Log(append([]any{"msg", msg}, keyvals...)...)
}
