// Package logging configures structured JSON logging for the staking daemon.
package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"
)

// levelEnvKey selects the minimum log level; unset or unknown means info.
const levelEnvKey = "NFTSTAKE_LOG_LEVEL"

func levelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(levelEnvKey))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup wires process-wide JSON logging for the staking daemon and returns
// the root logger. Every line carries the service name and, when provided,
// the deployment environment, so gateway request logs and engine errors from
// one process group together in log search.
func Setup(service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: levelFromEnv(),
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "timestamp"
			case slog.LevelKey:
				attr = slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				attr.Key = "message"
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	root := slog.New(handler).With(args...)
	slog.SetDefault(root)

	// Route the stdlib logger through the same handler so third-party code
	// logging via package log lands in the same JSON stream.
	bridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	log.SetOutput(bridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return root
}
