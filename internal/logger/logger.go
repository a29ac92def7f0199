// Package logger contains a logger implementation.
package logger

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gookit/color"
	"golang.org/x/term"
)

// Level is a log level.
type Level int

// Log levels.
const (
	Debug Level = iota + 1
	Info
	Warn
	Error
)

// Writer is an object that provides a log method.
type Writer interface {
	Log(level Level, format string, args ...interface{})
}

// Logger is a log handler.
type Logger struct {
	level    Level
	file     *os.File
	useColor bool

	mutex sync.Mutex
	buf   bytes.Buffer
}

// New allocates a Logger. filePath may be empty.
func New(level Level, filePath string) (*Logger, error) {
	lh := &Logger{
		level:    level,
		useColor: term.IsTerminal(int(os.Stdout.Fd())),
	}

	if filePath != "" {
		var err error
		lh.file, err = os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}

	return lh, nil
}

// Close closes a Logger.
func (lh *Logger) Close() {
	if lh.file != nil {
		lh.file.Close()
	}
}

func levelPrefix(level Level) (string, color.Color) {
	switch level {
	case Debug:
		return "DEB", color.Gray
	case Info:
		return "INF", color.Green
	case Warn:
		return "WAR", color.Yellow
	default:
		return "ERR", color.Red
	}
}

// Log writes a log entry.
func (lh *Logger) Log(level Level, format string, args ...interface{}) {
	if level < lh.level {
		return
	}

	lh.mutex.Lock()
	defer lh.mutex.Unlock()

	prefix, col := levelPrefix(level)
	now := time.Now().Format("2006/01/02 15:04:05")

	lh.buf.Reset()
	lh.buf.WriteString(now)
	lh.buf.WriteByte(' ')
	if lh.useColor {
		lh.buf.WriteString(col.Sprint(prefix))
	} else {
		lh.buf.WriteString(prefix)
	}
	lh.buf.WriteByte(' ')
	fmt.Fprintf(&lh.buf, format, args...)
	lh.buf.WriteByte('\n')

	os.Stdout.Write(lh.buf.Bytes())

	if lh.file != nil {
		fmt.Fprintf(lh.file, "%s %s %s\n", now, prefix, fmt.Sprintf(format, args...))
	}
}
