package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// zapFormatter sends chi's request log lines to zap
type zapFormatter struct {
	logger *zap.Logger
}

func (f zapFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &zapEntry{logger: f.logger.With(
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("remote", r.RemoteAddr),
	)}
}

type zapEntry struct {
	logger *zap.Logger
}

func (e *zapEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	fields := []zap.Field{
		zap.Int("status", status),
		zap.Int("bytes", bytes),
		zap.Duration("elapsed", elapsed),
	}
	if status >= http.StatusInternalServerError {
		e.logger.Warn("Request served", fields...)
		return
	}
	e.logger.Debug("Request served", fields...)
}

func (e *zapEntry) Panic(v interface{}, stack []byte) {
	e.logger.Error("Request panicked", zap.Any("panic", v), zap.ByteString("stack", stack))
}

// requestLogger logs one line per request through logger
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return middleware.RequestLogger(zapFormatter{logger: logger})
}
