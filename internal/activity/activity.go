// Package activity keeps a capped, newest-first audit trail of user actions in
// Redis. Writes are normally batched by a background worker; when the queue is
// full or the log has been closed, Record writes to Redis on the caller's
// goroutine instead. Write failures are logged and never returned.
package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"donations/internal/cache"
)

const (
	listKey       = "activity_logs"
	batchSize     = 10
	flushInterval = time.Second
	queueSize     = 100
)

// Action names a recorded user action.
type Action string

const (
	ActionLoginSuccess  Action = "LOGIN_SUCCESS"
	ActionRegister      Action = "REGISTER"
	ActionMakeDonation  Action = "MAKE_DONATION"
	ActionCreateProject Action = "CREATE_PROJECT"
	ActionUpdateProject Action = "UPDATE_PROJECT"
	ActionDeleteProject Action = "DELETE_PROJECT"
)

// Entry is one audit record.
type Entry struct {
	Timestamp time.Time              `json:"timestamp"`
	UserEmail string                 `json:"user_email,omitempty"`
	Action    Action                 `json:"action"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Recorder is the write side used by services.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Log is the Redis-backed activity log.
type Log struct {
	cache  *cache.Client
	max    int64
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	closed  bool
	entries chan Entry
	done    chan struct{}
	once    sync.Once
}

// Ensure Log implements Recorder
var _ Recorder = (*Log)(nil)

// New creates the log and starts its flush worker. Close must be called to
// flush pending entries.
func New(cache *cache.Client, max int64, logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Log{
		cache:   cache,
		max:     max,
		logger:  logger,
		now:     time.Now,
		entries: make(chan Entry, queueSize),
		done:    make(chan struct{}),
	}
	go l.worker()
	return l
}

// Record queues entry. When the queue is full or the log is closed the entry
// is written synchronously.
func (l *Log) Record(ctx context.Context, entry Entry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now().UTC()
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.closed {
		select {
		case l.entries <- entry:
			return
		default:
		}
	}
	l.flush(ctx, []Entry{entry})
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int64) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	raw, err := l.cache.Range(ctx, listKey, 0, limit-1)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var e Entry
		if err := json.Unmarshal(item, &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Close stops accepting entries and waits for the worker to flush.
func (l *Log) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.entries)
		l.mu.Unlock()
		<-l.done
	})
}

func (l *Log) worker() {
	defer close(l.done)

	batch := make([]Entry, 0, batchSize)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry, ok := <-l.entries:
			if !ok {
				l.flush(context.Background(), batch)
				return
			}
			batch = append(batch, entry)
			if len(batch) >= batchSize {
				l.flush(context.Background(), batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				l.flush(context.Background(), batch)
				batch = batch[:0]
			}
		}
	}
}

func (l *Log) flush(ctx context.Context, batch []Entry) {
	if len(batch) == 0 {
		return
	}
	values := make([][]byte, 0, len(batch))
	for _, e := range batch {
		payload, err := json.Marshal(e)
		if err != nil {
			l.logger.WarnContext(ctx, "activity entry not encodable", slog.String("action", string(e.Action)), slog.Any("error", err))
			continue
		}
		values = append(values, payload)
	}
	if err := l.cache.PushCapped(ctx, listKey, l.max, values...); err != nil {
		// the audit trail is secondary; losing it must not fail requests
		l.logger.WarnContext(ctx, "activity log write failed", slog.Int("entries", len(values)), slog.Any("error", err))
	}
}
