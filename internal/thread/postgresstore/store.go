package postgresstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"weft/internal/logging"
	"weft/internal/thread"
	id "weft/internal/utils/id"
)

var threadIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Store implements a Postgres-backed thread store.
type Store struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// New constructs a Postgres-backed thread store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:   pool,
		logger: logging.NewComponentLogger("ThreadPostgresStore"),
	}
}

// EnsureSchema creates the thread tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("thread store not initialized")
	}

	query := `
CREATE TABLE IF NOT EXISTS threads (
    id TEXT PRIMARY KEY,
    parent_thread_id TEXT REFERENCES threads(id),
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS llm_calls (
    id TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL REFERENCES threads(id),
    usage JSONB NOT NULL DEFAULT '{}'::jsonb,
    timestamp TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    thread_id TEXT NOT NULL REFERENCES threads(id),
    llm_call_id TEXT REFERENCES llm_calls(id),
    message JSONB NOT NULL,
    timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_thread_ts ON messages (thread_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_llm_calls_thread_ts ON llm_calls (thread_id, timestamp);
`
	_, err := s.pool.Exec(ctx, query)
	return err
}

// EnsureThread creates the thread row if absent and returns its record.
func (s *Store) EnsureThread(ctx context.Context, threadID, parentID string) (thread.Record, error) {
	if err := ctx.Err(); err != nil {
		return thread.Record{}, err
	}
	if !isSafeThreadID(threadID) {
		return thread.Record{}, fmt.Errorf("invalid thread ID")
	}
	if parentID != "" && !isSafeThreadID(parentID) {
		return thread.Record{}, fmt.Errorf("invalid parent thread ID")
	}
	if s == nil || s.pool == nil {
		return thread.Record{}, fmt.Errorf("thread store not initialized")
	}

	var parentParam any
	if parentID != "" {
		parentParam = parentID
	}

	query := `
INSERT INTO threads (id, parent_thread_id, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING
`
	if _, err := s.pool.Exec(ctx, query, threadID, parentParam, time.Now()); err != nil {
		return thread.Record{}, fmt.Errorf("ensure thread: %w", err)
	}
	return s.GetThread(ctx, threadID)
}

// GetThread returns the persisted record for a thread.
func (s *Store) GetThread(ctx context.Context, threadID string) (thread.Record, error) {
	if err := ctx.Err(); err != nil {
		return thread.Record{}, err
	}
	if !isSafeThreadID(threadID) {
		return thread.Record{}, fmt.Errorf("invalid thread ID")
	}
	if s == nil || s.pool == nil {
		return thread.Record{}, fmt.Errorf("thread store not initialized")
	}

	var (
		record thread.Record
		parent *string
	)
	err := s.pool.QueryRow(ctx, `
SELECT id, parent_thread_id, created_at
FROM threads
WHERE id = $1
`, threadID).Scan(&record.ID, &parent, &record.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return thread.Record{}, fmt.Errorf("thread %s not found", threadID)
		}
		return thread.Record{}, err
	}
	if parent != nil {
		record.ParentID = *parent
	}
	return record, nil
}

// AddMessages appends messages to a thread, stamping ids and timestamps.
func (s *Store) AddMessages(ctx context.Context, threadID string, messages []thread.Message) ([]thread.Message, error) {
	return s.insertMessages(ctx, threadID, "", messages)
}

func (s *Store) insertMessages(ctx context.Context, threadID, llmCallID string, messages []thread.Message) ([]thread.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isSafeThreadID(threadID) {
		return nil, fmt.Errorf("invalid thread ID")
	}
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("thread store not initialized")
	}

	stored := make([]thread.Message, 0, len(messages))
	batch := &pgx.Batch{}
	for _, msg := range messages {
		msg.ID = id.NewMessageID()
		msg.ThreadID = threadID
		msg.LLMCallID = llmCallID
		msg.Timestamp = time.Now()

		payload, err := json.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("encode message: %w", err)
		}

		var callParam any
		if llmCallID != "" {
			callParam = llmCallID
		}
		batch.Queue(`
INSERT INTO messages (id, thread_id, llm_call_id, message, timestamp)
VALUES ($1, $2, $3, $4::jsonb, $5)
`, msg.ID, threadID, callParam, payload, msg.Timestamp)
		stored = append(stored, msg)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range messages {
		if _, err := results.Exec(); err != nil {
			logging.OrNop(s.logger).Error("Failed to persist messages for thread %s: %v", threadID, err)
			return nil, err
		}
	}
	return stored, nil
}

// Messages returns the thread's own messages matching the query, oldest first.
func (s *Store) Messages(ctx context.Context, threadID string, query thread.MessageQuery) ([]thread.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isSafeThreadID(threadID) {
		return nil, fmt.Errorf("invalid thread ID")
	}
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("thread store not initialized")
	}

	sql := `
SELECT message
FROM messages
WHERE thread_id = $1
`
	args := []any{threadID}
	if query.Before != nil {
		args = append(args, *query.Before)
		sql += fmt.Sprintf("AND timestamp < $%d\n", len(args))
	}
	if query.After != nil {
		args = append(args, *query.After)
		sql += fmt.Sprintf("AND timestamp > $%d\n", len(args))
	}
	sql += "ORDER BY timestamp ASC"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []thread.Message
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var msg thread.Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		if !query.IncludeSystem && msg.Role == thread.RoleSystem {
			continue
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if query.Limit > 0 && len(out) > query.Limit {
		out = out[len(out)-query.Limit:]
	}
	return out, nil
}

// RecordLLMCall persists the call record and its completion messages in one
// transaction.
func (s *Store) RecordLLMCall(ctx context.Context, call thread.LLMCall, messages []thread.Message) (thread.LLMCall, error) {
	if err := ctx.Err(); err != nil {
		return thread.LLMCall{}, err
	}
	if !isSafeThreadID(call.ThreadID) {
		return thread.LLMCall{}, fmt.Errorf("invalid thread ID")
	}
	if s == nil || s.pool == nil {
		return thread.LLMCall{}, fmt.Errorf("thread store not initialized")
	}

	if call.ID == "" {
		call.ID = id.NewLLMCallID()
	}
	call.Timestamp = time.Now()

	usage, err := json.Marshal(call.Usage)
	if err != nil {
		return thread.LLMCall{}, fmt.Errorf("encode usage: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return thread.LLMCall{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
INSERT INTO llm_calls (id, thread_id, usage, timestamp)
VALUES ($1, $2, $3::jsonb, $4)
`, call.ID, call.ThreadID, usage, call.Timestamp); err != nil {
		logging.OrNop(s.logger).Error("Failed to persist llm call for thread %s: %v", call.ThreadID, err)
		return thread.LLMCall{}, err
	}

	for _, msg := range messages {
		msg.ID = id.NewMessageID()
		msg.ThreadID = call.ThreadID
		msg.LLMCallID = call.ID
		msg.Timestamp = time.Now()

		payload, err := json.Marshal(msg)
		if err != nil {
			return thread.LLMCall{}, fmt.Errorf("encode message: %w", err)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO messages (id, thread_id, llm_call_id, message, timestamp)
VALUES ($1, $2, $3, $4::jsonb, $5)
`, msg.ID, call.ThreadID, call.ID, payload, msg.Timestamp); err != nil {
			return thread.LLMCall{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return thread.LLMCall{}, err
	}
	return call, nil
}

// LLMCalls returns call records within the window, oldest first.
func (s *Store) LLMCalls(ctx context.Context, threadID string, query thread.CallQuery) ([]thread.LLMCall, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isSafeThreadID(threadID) {
		return nil, fmt.Errorf("invalid thread ID")
	}
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("thread store not initialized")
	}

	sql := `
SELECT id, thread_id, usage, timestamp
FROM llm_calls
WHERE thread_id = $1
`
	args := []any{threadID}
	if query.Before != nil {
		args = append(args, *query.Before)
		sql += fmt.Sprintf("AND timestamp < $%d\n", len(args))
	}
	if query.After != nil {
		args = append(args, *query.After)
		sql += fmt.Sprintf("AND timestamp > $%d\n", len(args))
	}
	sql += "ORDER BY timestamp ASC"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []thread.LLMCall
	for rows.Next() {
		var (
			call  thread.LLMCall
			usage []byte
		)
		if err := rows.Scan(&call.ID, &call.ThreadID, &usage, &call.Timestamp); err != nil {
			return nil, err
		}
		if len(usage) > 0 {
			if err := json.Unmarshal(usage, &call.Usage); err != nil {
				return nil, fmt.Errorf("decode usage: %w", err)
			}
		}
		out = append(out, call)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func isSafeThreadID(id string) bool {
	return threadIDPattern.MatchString(id)
}
