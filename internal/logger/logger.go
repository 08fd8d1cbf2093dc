// Package logger provides leveled logging for the migration tool.
//
// A Logger is created once by the driver and passed explicitly to every
// component. The console sink shows informational messages (and debug
// messages when debug mode is enabled); the optional file sink always
// receives everything, including debug output.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelSuccess
	levelWarning
	levelError
)

var prefixes = map[level]string{
	levelDebug:   "[DEBUG] ",
	levelInfo:    "[INFO] ",
	levelSuccess: "[DONE] ",
	levelWarning: "[WARNING] ",
	levelError:   "[ERROR] ",
}

// sink is a set of per-level loggers writing to a single destination.
type sink map[level]*log.Logger

func newSink(w io.Writer, flags int) sink {
	s := make(sink, len(prefixes))
	for lvl, prefix := range prefixes {
		s[lvl] = log.New(w, prefix, flags)
	}
	return s
}

// Logger provides structured logging with different severity levels.
type Logger struct {
	console sink
	file    sink
	debug   bool
	scope   string
	logFile *os.File
}

// New creates a new Logger instance writing to stderr only.
func New(debug bool) *Logger {
	return newLogger(debug, os.Stderr, nil)
}

// NewWithWriter creates a Logger whose console output goes to w.
func NewWithWriter(debug bool, w io.Writer) *Logger {
	return newLogger(debug, w, nil)
}

// NewWithFile creates a new Logger instance that writes to both console and a file.
// The file receives debug messages regardless of the debug flag.
func NewWithFile(debug bool, logFilePath string) (*Logger, error) {
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	l := newLogger(debug, os.Stderr, logFile)
	l.logFile = logFile
	return l, nil
}

func newLogger(debug bool, console, file io.Writer) *Logger {
	l := &Logger{
		console: newSink(console, log.Ldate|log.Ltime),
		debug:   debug,
	}
	if file != nil {
		l.file = newSink(file, log.Ldate|log.Ltime|log.Lmicroseconds)
	}
	return l
}

// With returns a logger that tags every message with the given scope,
// e.g. a region name. The returned logger shares sinks with its parent.
func (l *Logger) With(scope string) *Logger {
	child := *l
	if l.scope != "" {
		child.scope = l.scope + "/" + scope
	} else {
		child.scope = scope
	}
	child.logFile = nil
	return &child
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

// DebugEnabled reports whether debug messages reach the console.
func (l *Logger) DebugEnabled() bool {
	return l.debug
}

func (l *Logger) emit(lvl level, msg string) {
	if l.scope != "" {
		msg = "(" + l.scope + ") " + msg
	}
	if lvl != levelDebug || l.debug {
		l.console[lvl].Println(msg)
	}
	if l.file != nil {
		l.file[lvl].Println(msg)
	}
}

// Info logs an informational message.
func (l *Logger) Info(msg string) {
	l.emit(levelInfo, msg)
}

// Infof logs a formatted informational message.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.emit(levelInfo, fmt.Sprintf(format, args...))
}

// Success logs a success message.
func (l *Logger) Success(msg string) {
	l.emit(levelSuccess, msg)
}

// Successf logs a formatted success message.
func (l *Logger) Successf(format string, args ...interface{}) {
	l.emit(levelSuccess, fmt.Sprintf(format, args...))
}

// Warning logs a warning message.
func (l *Logger) Warning(msg string) {
	l.emit(levelWarning, msg)
}

// Warningf logs a formatted warning message.
func (l *Logger) Warningf(format string, args ...interface{}) {
	l.emit(levelWarning, fmt.Sprintf(format, args...))
}

// Error logs an error message.
func (l *Logger) Error(msg string) {
	l.emit(levelError, msg)
}

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.emit(levelError, fmt.Sprintf(format, args...))
}

// Debug logs a debug message. It always reaches the log file and reaches the
// console only if debug mode is enabled.
func (l *Logger) Debug(msg string) {
	l.emit(levelDebug, msg)
}

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.emit(levelDebug, fmt.Sprintf(format, args...))
}

// Step logs a step header for workflow progress.
func (l *Logger) Step(stepNum, total int, description string) {
	l.Info("")
	l.Info("=========================================")
	l.Infof("[Step %d/%d] %s", stepNum, total, description)
	l.Info("=========================================")
}

// Banner logs a block of lines framed by separators.
func (l *Logger) Banner(lines ...string) {
	l.Info("=========================================")
	for _, line := range lines {
		l.Info(line)
	}
	l.Info("=========================================")
}
