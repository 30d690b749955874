package telemetry

import (
	"io"
	"os"
	"time"

	binding "github.com/goliatone/go-binding"
	"github.com/rs/zerolog"
)

// Logger writes binding request and evaluation events with zerolog.
type Logger struct {
	zlog   zerolog.Logger
	closer io.Closer
}

var (
	_ binding.RequestLogger   = (*Logger)(nil)
	_ binding.EvaluatorLogger = (*Logger)(nil)
)

// NewLogger creates a logger from cfg.
func NewLogger(cfg LoggingConfig) (*Logger, error) {
	var writer io.Writer
	var closer io.Closer
	switch cfg.Output {
	case "", "stderr":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		writer = file
		closer = file
	}

	if cfg.Format == "console" {
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}

	zctx := zerolog.New(writer).With().Timestamp()
	if cfg.Component != "" {
		zctx = zctx.Str("component", cfg.Component)
	}
	if cfg.EnableCaller {
		zctx = zctx.Caller()
	}
	logger := NewLoggerFrom(zctx.Logger().Level(parseLogLevel(cfg.Level)))
	logger.closer = closer
	return logger, nil
}

// NewLoggerFrom wraps an existing zerolog logger.
func NewLoggerFrom(zlog zerolog.Logger) *Logger {
	return &Logger{zlog: zlog}
}

// Zerolog returns the underlying logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.zlog
}

// WithField returns a logger with an additional field.
func (l *Logger) WithField(key string, value any) *Logger {
	return &Logger{zlog: l.zlog.With().Interface(key, value).Logger(), closer: l.closer}
}

// Close closes the output file, if the logger opened one.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// LogRequest implements binding.RequestLogger. Transport failures log at
// error, responses with errors at warn, discarded responses at debug and
// everything else at info.
func (l *Logger) LogRequest(event binding.RequestLogEvent) {
	var entry *zerolog.Event
	switch {
	case event.Err != nil:
		entry = l.zlog.Error().Err(event.Err)
	case event.Discarded:
		entry = l.zlog.Debug()
	case event.Errors > 0:
		entry = l.zlog.Warn()
	default:
		entry = l.zlog.Info()
	}
	entry = entry.
		Str("request_id", event.RequestID).
		Str("resource", event.Resource).
		Str("operation", string(event.Operation)).
		Uint64("sequence", event.Sequence).
		Dur("duration", event.Duration).
		Int("errors", event.Errors).
		Int("records", event.Records).
		Bool("discarded", event.Discarded)
	if event.ActivityErr != nil {
		entry = entry.AnErr("activity_error", event.ActivityErr)
	}
	entry.Msg("binding request")
}

// LogEvaluation implements binding.EvaluatorLogger.
func (l *Logger) LogEvaluation(event binding.EvaluatorLogEvent) {
	entry := l.zlog.Debug()
	if event.Err != nil {
		entry = l.zlog.Warn().Err(event.Err)
	}
	entry.
		Str("engine", event.Engine).
		Str("expr", event.Expr).
		Str("field", event.Field).
		Dur("duration", event.Duration).
		Msg("mapping evaluation")
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
