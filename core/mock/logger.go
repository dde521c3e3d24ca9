package mock

import (
	"fmt"
	"sync"

	"github.com/daflip/daflip/core"
)

var _ core.Logger = (*Logger)(nil)

// Logger records formatted messages per level.
type Logger struct {
	mu       sync.Mutex
	messages map[string][]string
}

func NewLogger() *Logger {
	return &Logger{messages: make(map[string][]string)}
}

func (l *Logger) add(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages[level] = append(l.messages[level], msg)
}

// Messages returns the messages logged at level ("debug", "info", "warn" or
// "error").
func (l *Logger) Messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages[level]...)
}

func (l *Logger) Debug(msg string) { l.add("debug", msg) }
func (l *Logger) Debugf(format string, args ...any) { l.add("debug", fmt.Sprintf(format, args...)) }
func (l *Logger) Info(msg string) { l.add("info", msg) }
func (l *Logger) Infof(format string, args ...any) { l.add("info", fmt.Sprintf(format, args...)) }
func (l *Logger) Warn(msg string) { l.add("warn", msg) }
func (l *Logger) Warnf(format string, args ...any) { l.add("warn", fmt.Sprintf(format, args...)) }
func (l *Logger) Error(msg string) { l.add("error", msg) }
func (l *Logger) Errorf(format string, args ...any) { l.add("error", fmt.Sprintf(format, args...)) }
