package core

import (
	"bytes"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// LogSink selects where a Logger's output is written.
type LogSink int

const (
	LogSinkStdout LogSink = iota
	LogSinkFile
	LogSinkRing
)

// LoggerConfig is the "optional logger configuration" from the renderer
// init parameters: sink selection, a sink-specific target, a ring
// capacity, and an enabled flag.
type LoggerConfig struct {
	Sink         LogSink
	Target       string
	RingCapacity int
	Enabled      bool
}

// ringWriter is a small fixed-capacity ring buffer of log lines, used by
// test builds to inject a recording sink instead of stdout.
type ringWriter struct {
	mu       sync.Mutex
	cap      int
	lines    [][]byte
	overflow int
}

func newRingWriter(capacity int) *ringWriter {
	if capacity <= 0 {
		capacity = 256
	}
	return &ringWriter{cap: capacity}
}

func (r *ringWriter) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	line := append([]byte(nil), p...)
	if len(r.lines) >= r.cap {
		r.lines = r.lines[1:]
		r.overflow++
	}
	r.lines = append(r.lines, line)
	return len(p), nil
}

// Lines returns a snapshot of the buffered log lines, oldest first.
func (r *ringWriter) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	for i, l := range r.lines {
		out[i] = string(bytes.TrimRight(l, "\n"))
	}
	return out
}

// Logger wraps a charmbracelet/log.Logger. Unlike the teacher's
// process-global singleton, a Logger is an explicit handle passed by
// reference into the backend and engine, so test code can inject a
// recording sink without touching stdout.
type Logger struct {
	*log.Logger
	ring *ringWriter
}

// NewLogger builds a Logger from a LoggerConfig. A disabled config still
// returns a usable Logger whose output is discarded.
func NewLogger(cfg LoggerConfig) (*Logger, error) {
	var w io.Writer
	var ring *ringWriter

	if !cfg.Enabled {
		w = io.Discard
	} else {
		switch cfg.Sink {
		case LogSinkFile:
			f, err := os.OpenFile(cfg.Target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return nil, err
			}
			w = f
		case LogSinkRing:
			ring = newRingWriter(cfg.RingCapacity)
			w = ring
		default:
			w = os.Stdout
		}
	}

	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "kiln",
	})
	l.SetLevel(log.DebugLevel)

	return &Logger{Logger: l, ring: ring}, nil
}

// Default returns a Logger writing to stdout, the logger used before any
// config is loaded.
func Default() *Logger {
	l, _ := NewLogger(LoggerConfig{Sink: LogSinkStdout, Enabled: true})
	return l
}

// RingLines returns the buffered lines when the logger was built with a
// ring sink; nil otherwise.
func (l *Logger) RingLines() []string {
	if l.ring == nil {
		return nil
	}
	return l.ring.Lines()
}

func (l *Logger) LogDebug(msg string, args ...interface{}) { l.Debugf(msg, args...) }
func (l *Logger) LogInfo(msg string, args ...interface{})  { l.Infof(msg, args...) }
func (l *Logger) LogWarn(msg string, args ...interface{})  { l.Warnf(msg, args...) }
func (l *Logger) LogError(msg string, args ...interface{}) { l.Errorf(msg, args...) }
func (l *Logger) LogFatal(msg string, args ...interface{}) { l.Fatalf(msg, args...) }
