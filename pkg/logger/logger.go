// Package logger provides the leveled, colored logger used across thermalctl
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Level is a log severity
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	OffLevel
)

var (
	debugPrintf = color.New(color.FgCyan).SprintfFunc()
	infoPrintf  = color.New(color.FgGreen).SprintfFunc()
	warnPrintf  = color.New(color.FgYellow).SprintfFunc()
	errorPrintf = color.New(color.FgRed).SprintfFunc()

	defaultLogger = New(os.Stderr, "", InfoLevel)
)

// Logger writes leveled messages through a standard library logger
type Logger struct {
	mu     sync.Mutex
	logger *log.Logger
	level  Level
	prefix string
}

// New creates a logger writing to w. Color is disabled when w is not a terminal.
func New(w io.Writer, prefix string, level Level) *Logger {
	if f, ok := w.(*os.File); !ok || (f != os.Stdout && f != os.Stderr) {
		color.NoColor = true
	}
	return &Logger{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
		prefix: prefix,
	}
}

// Default returns the process default logger
func Default() *Logger {
	return defaultLogger
}

// OrDefault returns l, or the default logger when l is nil
func OrDefault(l *Logger) *Logger {
	if l == nil {
		return defaultLogger
	}
	return l
}

// ParseLevel converts a level name (debug, info, warn, error, off)
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "off", "none":
		return OffLevel, nil
	}
	return InfoLevel, fmt.Errorf("unknown log level %q", s)
}

// With returns a child logger sharing the output with an extra prefix
func (l *Logger) With(prefix string) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := prefix
	if l.prefix != "" {
		p = l.prefix + " " + prefix
	}
	return &Logger{logger: l.logger, level: l.level, prefix: p}
}

// SetLevel changes the minimum level written
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// SetOutput redirects the logger
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = log.New(w, "", log.LstdFlags)
	if f, ok := w.(*os.File); !ok || (f != os.Stdout && f != os.Stderr) {
		color.NoColor = true
	}
}

// Std exposes the underlying standard logger, e.g. for http.Server.ErrorLog
func (l *Logger) Std() *log.Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logger
}

func (l *Logger) print(level Level, paint func(string, ...interface{}) string, tag, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level < l.level {
		return
	}
	if l.prefix != "" {
		format = "[" + l.prefix + "] " + format
	}
	l.logger.Print(paint(tag+" "+format, v...))
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.print(DebugLevel, debugPrintf, "[DEBUG]", format, v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.print(InfoLevel, infoPrintf, "[INFO]", format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.print(WarnLevel, warnPrintf, "[WARN]", format, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.print(ErrorLevel, errorPrintf, "[ERROR]", format, v...)
}
