// Package logger wraps logrus with the pipeline's logging conventions:
// JSON output by default, level and destination from configuration, and
// a process-wide standard logger for components that are not handed an
// injected one.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config holds the logger settings.
type Config struct {
	Level      string `json:"level" yaml:"level"`             // trace..panic, default info
	Format     string `json:"format" yaml:"format"`           // json or text
	Output     string `json:"output" yaml:"output"`           // stdout, stderr, file
	OutputFile string `json:"output_file" yaml:"output_file"` // path when output=file
}

// Logger wraps a logrus logger with its cleanup handle.
type Logger struct {
	*logrus.Logger
	logFile *os.File
}

var (
	standard *Logger
	once     sync.Once
)

// StandardLogger returns the process-wide logger instance.
func StandardLogger() *Logger {
	once.Do(func() {
		standard = &Logger{Logger: logrus.New()}
		standard.SetFormatter(&logrus.JSONFormatter{})
	})
	return standard
}

// Init applies the configuration and returns a cleanup function that
// closes any opened log file.
func (l *Logger) Init(c *Config) (func(), error) {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch c.Format {
	case "text":
		l.SetFormatter(&logrus.TextFormatter{})
	default:
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	switch c.Output {
	case "stderr":
		l.SetOutput(os.Stderr)
	case "file":
		if c.OutputFile == "" {
			return nil, fmt.Errorf("logger: output is file but output_file is empty")
		}
		if err := os.MkdirAll(filepath.Dir(c.OutputFile), 0o755); err != nil {
			return nil, fmt.Errorf("logger: create log directory: %w", err)
		}
		f, err := os.OpenFile(c.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logger: open log file: %w", err)
		}
		l.logFile = f
		l.SetOutput(f)
	default:
		l.SetOutput(os.Stdout)
	}

	return func() {
		if l.logFile != nil {
			_ = l.logFile.Close()
		}
	}, nil
}
