package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const LoggerKey contextKey = "logger"

type Logger struct {
	*zerolog.Logger
}

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stdout
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "@timestamp" // ELK compatible
}

// New creates a new logger instance with service context
func New(service string) *Logger {
	hostname, _ := os.Hostname()

	outputMu.RLock()
	w := output
	outputMu.RUnlock()

	logger := zerolog.New(w).
		With().
		Timestamp().
		Str("service", service).
		Str("hostname", hostname).
		Str("environment", environment()).
		Str("version", getEnv("SERVICE_VERSION", "unknown")).
		Logger()

	return &Logger{&logger}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	logger := zerolog.Nop()
	return &Logger{&logger}
}

// WithContext returns the logger stored in ctx, or a fresh one for service
func WithContext(ctx context.Context, service string) *Logger {
	if logger, ok := ctx.Value(LoggerKey).(*Logger); ok {
		return logger
	}
	return New(service)
}

// ToContext stores the logger in ctx
func (l *Logger) ToContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

func (l *Logger) with(fn func(zerolog.Context) zerolog.Context) *Logger {
	logger := fn(l.Logger.With()).Logger()
	return &Logger{&logger}
}

// WithRequestID tags every event with a correlation id
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context {
		return c.Str("request_id", requestID)
	})
}

// WithMethod tags every event with a download method
func (l *Logger) WithMethod(method string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context {
		return c.Str("method", method)
	})
}

// WithSchedule tags events emitted by a schedule firing
func (l *Logger) WithSchedule(scheduleID int64, jobName string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context {
		return c.Int64("schedule_id", scheduleID).Str("job_name", jobName).Str("job_type", "cron")
	})
}

// WithJob tags events emitted by a cron job
func (l *Logger) WithJob(jobName string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context {
		return c.Str("job_name", jobName).Str("job_type", "cron")
	})
}

// outcome picks Info for success and Error with the cause otherwise
func (l *Logger) outcome(err error) *zerolog.Event {
	if err != nil {
		return l.Error().Err(err)
	}
	return l.Info()
}

func (l *Logger) LogJobStart(jobName string, schedule string) {
	l.Info().
		Str("action", "job_start").
		Str("job_name", jobName).
		Str("schedule", schedule).
		Msg("Starting job execution")
}

func (l *Logger) LogJobComplete(jobName string, duration time.Duration) {
	l.Info().
		Str("action", "job_complete").
		Str("job_name", jobName).
		Dur("duration", duration).
		Msg("Job execution completed")
}

// LogTransferStart logs the start of a download run
func (l *Logger) LogTransferStart(method string, runID string) {
	l.Info().
		Str("action", "transfer_start").
		Str("method", method).
		Str("run_id", runID).
		Msg("Starting download transfer")
}

// LogTransferComplete logs a finished run. err is the artifact sink failure, if any.
func (l *Logger) LogTransferComplete(method string, runID string, duration time.Duration, artifact string, err error) {
	l.outcome(err).
		Str("action", "transfer_complete").
		Str("method", method).
		Str("run_id", runID).
		Dur("duration", duration).
		Str("artifact", artifact).
		Bool("artifact_emitted", err == nil).
		Msg("Download transfer completed")
}

// LogAPICall logs a call to the backup backend
func (l *Logger) LogAPICall(method, url string, statusCode int, duration time.Duration, err error) {
	l.outcome(err).
		Str("action", "api_call").
		Str("http_method", method).
		Str("url", url).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Bool("success", err == nil).
		Msg("Backend API call")
}

// LogDatabaseOperation logs a schedule table statement
func (l *Logger) LogDatabaseOperation(operation string, table string, affectedRows int, duration time.Duration, err error) {
	l.outcome(err).
		Str("action", "db_operation").
		Str("operation", operation).
		Str("table", table).
		Int("affected_rows", affectedRows).
		Dur("duration", duration).
		Bool("success", err == nil).
		Msg("Database operation")
}

// SetupLogger sets the global level from LOG_LEVEL and switches loggers
// created afterwards to a console writer in development.
func SetupLogger() {
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if environment() == "development" {
		level = zerolog.DebugLevel
		SetOutput(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	zerolog.SetGlobalLevel(level)
}

// SetOutput changes the writer used by loggers created afterwards
func SetOutput(w io.Writer) {
	outputMu.Lock()
	defer outputMu.Unlock()
	output = w
}

func environment() string {
	return getEnv("ENVIRONMENT", "development")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
