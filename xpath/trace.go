package xpath

import (
	"io"
	"log/slog"
	"os"
)

// Tracer follows the rules entered by the compiler.
type Tracer interface {
	Enter(string)
	Leave(string)
	Error(string, error)
}

type discardTracer struct{}

func (_ discardTracer) Enter(_ string)          {}
func (_ discardTracer) Leave(_ string)          {}
func (_ discardTracer) Error(_ string, _ error) {}

type logTracer struct {
	logger   *slog.Logger
	depth    int
	errcount int
}

func TraceStdout() Tracer {
	return TraceLogger(stdioLogger(os.Stdout))
}

func TraceStderr() Tracer {
	return TraceLogger(stdioLogger(os.Stderr))
}

// TraceLogger reports the compiler rules at debug level to logger.
func TraceLogger(logger *slog.Logger) Tracer {
	tracer := logTracer{
		logger: logger,
	}
	return &tracer
}

func stdioLogger(w io.Writer) *slog.Logger {
	opts := slog.HandlerOptions{
		Level: slog.LevelDebug,
	}
	return slog.New(slog.NewTextHandler(w, &opts))
}

func (t *logTracer) Enter(rule string) {
	t.depth++
	args := []any{
		"expression",
		rule,
		"depth",
		t.depth,
	}
	t.logger.Debug("enter rule", args...)
}

func (t *logTracer) Leave(rule string) {
	t.depth--
	args := []any{
		"expression",
		rule,
		"depth",
		t.depth,
	}
	t.logger.Debug("leave rule", args...)
}

func (t *logTracer) Error(rule string, err error) {
	t.errcount++
	args := []any{
		"expression",
		rule,
		"depth",
		t.depth,
		"errors",
		t.errcount,
		"err",
		err,
	}
	t.logger.Error("compile failed", args...)
}