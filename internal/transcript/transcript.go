// Package transcript records every gateway exchange as NDJSON, one file per
// user session.
package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/firstprinciples/internal/gateway"
	"github.com/ashureev/firstprinciples/internal/identity"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/afero"
)

// Event is one line of a transcript.
type Event struct {
	Timestamp  string `json:"ts"`
	UserID     string `json:"user_id"`
	SessionID  string `json:"session_id"`
	RequestID  string `json:"request_id,omitempty"`
	Operation  string `json:"operation"`
	Model      string `json:"model"`
	Prompt     string `json:"prompt"`
	Response   string `json:"response"`
	Failed     bool   `json:"failed,omitempty"`
	ErrorKind  string `json:"error_kind,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// Logger accepts transcript events. Log must not block.
type Logger interface {
	Log(ev Event)
	Close() error
}

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
	// Fs defaults to the OS filesystem.
	Fs afero.Fs
}

// NewLogger returns a file-backed logger, or a no-op logger when disabled.
func NewLogger(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Nop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Fs == nil {
		cfg.Fs = afero.NewOsFs()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if err := cfg.Fs.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	l := &FileLogger{
		fs:     cfg.Fs,
		dir:    cfg.Dir,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.run()
	return l, nil
}

// Nop discards every event.
type Nop struct{}

// Log discards ev.
func (Nop) Log(Event) {}

// Close does nothing.
func (Nop) Close() error { return nil }

// FileLogger appends events to <dir>/<user>/<session>.ndjson from a single
// background goroutine. Events are dropped when the queue is full.
type FileLogger struct {
	fs     afero.Fs
	dir    string
	queue  chan Event
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
	dropped   atomic.Int64
}

// Log enqueues ev.
func (l *FileLogger) Log(ev Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- ev:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("Transcript queue full, dropping events", "dropped", n)
		}
	}
}

// Dropped returns how many events were discarded.
func (l *FileLogger) Dropped() int64 {
	return l.dropped.Load()
}

// Close stops accepting events and waits for queued events to be written.
func (l *FileLogger) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
	})
	<-l.done
	return nil
}

func (l *FileLogger) run() {
	defer close(l.done)
	for ev := range l.queue {
		if err := l.write(ev); err != nil {
			l.logger.Warn("Failed to write transcript event",
				"user_id", ev.UserID,
				"session_id", ev.SessionID,
				"error", err)
		}
	}
}

func (l *FileLogger) write(ev Event) error {
	dir := filepath.Join(l.dir, safeName(ev.UserID))
	if err := l.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create user directory: %w", err)
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(dir, safeName(ev.SessionID)+".ndjson")
	f, err := l.fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("append transcript: %w", err)
	}
	return f.Close()
}

// safeName maps an identifier onto a single path element.
func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "unknown"
	}
	return s
}

// Observer adapts a Logger to gateway.Observer. The user and session are
// read from the request context.
func Observer(l Logger) gateway.Observer {
	return gateway.ObserverFunc(func(ctx context.Context, ex gateway.Exchange) {
		ev := Event{
			Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			UserID:     identity.UserIDFromContext(ctx),
			SessionID:  identity.SessionIDFromContext(ctx),
			RequestID:  chiMiddleware.GetReqID(ctx),
			Operation:  string(ex.Operation),
			Model:      ex.Model,
			Prompt:     ex.Prompt,
			Response:   ex.Result.Content(),
			Failed:     ex.Result.Failed(),
			DurationMS: ex.Duration.Milliseconds(),
		}
		if ex.Result.Failed() {
			ev.ErrorKind = gateway.KindOf(ex.Result.Err).String()
		}
		l.Log(ev)
	})
}
