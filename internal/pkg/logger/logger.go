// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var base atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	base.Store(&l)
}

// Init replaces the process logger. An unknown level falls back to info.
func Init(serviceName, level string, w io.Writer) {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	l := zerolog.New(w).Level(lvl).With().
		Timestamp().
		Str("service", serviceName).
		Logger()
	base.Store(&l)
}

// L returns the process logger without request scope.
func L() *zerolog.Logger {
	return base.Load()
}

// Ctx returns the process logger enriched with the trace and span id of the
// span carried by ctx, if any.
func Ctx(ctx context.Context) *zerolog.Logger {
	l := base.Load()
	if ctx == nil {
		return l
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	scoped := l.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &scoped
}
