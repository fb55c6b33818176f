package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"preventcoach/internal/logger"
	"preventcoach/internal/model"
)

// AuditSink is an append-only writer of audit records. The core never reads
// records back.
type AuditSink interface {
	Append(ctx context.Context, record model.AuditRecord) error
}

// RedisAuditSink appends records to a per-user Redis list "audit:<user_id>".
type RedisAuditSink struct {
	client *redis.Client
}

func NewRedisAuditSink(ctx context.Context, redisURL string) (*RedisAuditSink, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisAuditSink{client: client}, nil
}

func (r *RedisAuditSink) Append(ctx context.Context, record model.AuditRecord) error {
	data, err := sonic.MarshalString(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	key := "audit:" + record.UserID
	if err := r.client.RPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}
	return nil
}

// FileAuditSink appends records to per-user JSON files under a base
// directory, one file per user.
type FileAuditSink struct {
	baseDir string
}

func NewFileAuditSink(baseDir string) *FileAuditSink {
	return &FileAuditSink{baseDir: baseDir}
}

func (f *FileAuditSink) Append(ctx context.Context, record model.AuditRecord) error {
	if err := os.MkdirAll(f.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	filePath := filepath.Join(f.baseDir, record.UserID+".json")

	var records []model.AuditRecord
	if data, err := os.ReadFile(filePath); err == nil {
		if err := sonic.Unmarshal(data, &records); err != nil {
			logger.Warn().Err(err).Str("path", filePath).Msg("Unreadable audit file, starting fresh")
			records = nil
		}
	}

	records = append(records, record)

	data, err := sonic.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal audit records: %w", err)
	}
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write audit file: %w", err)
	}
	return nil
}

// AsyncAuditWriter decouples audit writes from the request path. Enqueue
// never blocks; records are dropped (and the drop logged) when the queue is
// full, and sink failures are logged, never propagated.
type AsyncAuditWriter struct {
	sink  AuditSink
	queue chan model.AuditRecord
	done  chan struct{}
}

func NewAsyncAuditWriter(sink AuditSink, queueSize int) *AsyncAuditWriter {
	if queueSize <= 0 {
		queueSize = 256
	}
	w := &AsyncAuditWriter{
		sink:  sink,
		queue: make(chan model.AuditRecord, queueSize),
		done:  make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *AsyncAuditWriter) run() {
	defer close(w.done)
	for record := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := w.sink.Append(ctx, record); err != nil {
			logger.Warn().Err(err).
				Str("user_id", record.UserID).
				Str("request_kind", record.RequestKind).
				Msg("Audit write failed")
		}
		cancel()
	}
}

// Enqueue hands a record to the background writer without blocking.
func (w *AsyncAuditWriter) Enqueue(record model.AuditRecord) {
	select {
	case w.queue <- record:
	default:
		logger.Warn().
			Str("user_id", record.UserID).
			Msg("Audit queue full, dropping record")
	}
}

// Close drains the queue and stops the background writer.
func (w *AsyncAuditWriter) Close() {
	close(w.queue)
	<-w.done
}
