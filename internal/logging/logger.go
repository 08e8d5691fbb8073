package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type LogLevel uint8

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelCritical
)

type Logger struct {
	level   LogLevel
	output  io.Writer
	file    *os.File
	logChan chan string
	wg      sync.WaitGroup

	// mu guards closed; senders hold it shared so Close never races a send
	mu     sync.RWMutex
	closed bool
}

// NewLogger opens path for appending. An empty path logs to stderr.
func NewLogger(level LogLevel, path string) (*Logger, error) {
	l := &Logger{
		level:   level,
		output:  os.Stderr,
		logChan: make(chan string, 4096),
	}

	if path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, err
		}
		l.output = file
		l.file = file
	}

	l.wg.Add(1)
	go l.worker()

	return l, nil
}

func (l *Logger) worker() {
	defer l.wg.Done()
	for line := range l.logChan {
		io.WriteString(l.output, line)
	}
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	if level < l.level {
		return
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	levelStr := l.levelString(level)
	message := fmt.Sprintf(format, args...)

	line := fmt.Sprintf("[%s] [%s] %s\n", timestamp, levelStr, message)

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.logChan <- line:
	default:
		// Drop log if buffer full so the event loop never blocks on I/O
	}
}

func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(LevelDebug, format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.log(LevelInfo, format, args...)
}

func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(LevelWarn, format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.log(LevelError, format, args...)
}

func (l *Logger) Critical(format string, args ...interface{}) {
	l.log(LevelCritical, format, args...)
}

func (l *Logger) levelString(level LogLevel) string {
	switch level {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Close flushes pending lines and closes the log file. Lines logged after
// Close are dropped; further calls return nil.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.logChan)
	l.mu.Unlock()

	l.wg.Wait()
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// ParseLevel maps a config string to a level. Unknown names fall back to info.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "critical":
		return LevelCritical
	default:
		return LevelInfo
	}
}

var globalLogger atomic.Pointer[Logger]

// InitGlobalLogger installs a new global logger. A previous one is closed.
func InitGlobalLogger(level LogLevel, path string) error {
	logger, err := NewLogger(level, path)
	if err != nil {
		return err
	}
	if old := globalLogger.Swap(logger); old != nil {
		old.Close()
	}
	return nil
}

func GetGlobalLogger() *Logger {
	return globalLogger.Load()
}

// CloseGlobalLogger flushes and detaches the global logger. It is safe to
// call while other goroutines are still logging.
func CloseGlobalLogger() error {
	logger := globalLogger.Swap(nil)
	if logger == nil {
		return nil
	}
	return logger.Close()
}

func Debug(format string, args ...interface{}) {
	if l := globalLogger.Load(); l != nil {
		l.Debug(format, args...)
	}
}

func Info(format string, args ...interface{}) {
	if l := globalLogger.Load(); l != nil {
		l.Info(format, args...)
	}
}

func Warn(format string, args ...interface{}) {
	if l := globalLogger.Load(); l != nil {
		l.Warn(format, args...)
	}
}

func Error(format string, args ...interface{}) {
	if l := globalLogger.Load(); l != nil {
		l.Error(format, args...)
	}
}

func Critical(format string, args ...interface{}) {
	if l := globalLogger.Load(); l != nil {
		l.Critical(format, args...)
	}
}
