package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

var (
	// Default is the default logger instance
	Default *Logger

	initOnce sync.Once
)

// Init initializes the default logger writing to stdout
func Init() {
	initOnce.Do(func() {
		InitWithWriter(os.Stdout)
	})
}

// InitWithWriter initializes the default logger on an arbitrary writer
func InitWithWriter(out io.Writer) {
	level := getLogLevel()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	output := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}

	Default = &Logger{logger: zerolog.New(output).With().Timestamp().Logger()}

	Default.Debug().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if os.Getenv("WATCH_ENVIRONMENT") == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// SetVerbose forces debug level when v is true
func SetVerbose(v bool) {
	if v {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// WithStr creates a new logger with a string field
func (l *Logger) WithStr(key, value string) *Logger {
	return &Logger{logger: l.logger.With().Str(key, value).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

// Fatal returns a fatal event
func (l *Logger) Fatal() *zerolog.Event {
	return l.logger.Fatal()
}

// IsDebugEnabled returns true if debug logging is enabled
func IsDebugEnabled() bool {
	return zerolog.GlobalLevel() <= zerolog.DebugLevel
}

func component(name string) *Logger {
	if Default == nil {
		Init()
	}
	return Default.WithStr("component", name)
}

// ForCrawler creates a logger for retrieval of a single search URL
func ForCrawler(searchURL string) *Logger {
	return component("crawler").WithStr("url", searchURL)
}

// ForWorker creates a logger for the cycle runner and scheduler
func ForWorker() *Logger {
	return component("worker")
}

// ForDetector creates a logger for the deal detector
func ForDetector() *Logger {
	return component("detector")
}

// ForStore creates a logger for the seen store
func ForStore() *Logger {
	return component("store")
}

// ForPublisher creates a logger for the publisher
func ForPublisher() *Logger {
	return component("publisher")
}

// ForCache creates a logger for the cache
func ForCache() *Logger {
	return component("cache")
}

// ForMetrics creates a logger for the metrics server
func ForMetrics() *Logger {
	return component("metrics")
}
