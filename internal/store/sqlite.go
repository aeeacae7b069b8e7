package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/supportstack/conversation-core/internal/model"
	"github.com/supportstack/conversation-core/pkg/logger"
)

// SQLiteStore is a durable SessionStore backed by SQLite. Conversation state
// is stored as a JSON blob alongside indexed columns for the fields queries
// filter on.
type SQLiteStore struct {
	db     *sql.DB
	logger *logger.Logger
}

// NewSQLiteStore opens (or creates) a SQLite store at the given path.
// Parent directories are created if needed.
func NewSQLiteStore(path string, log *logger.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL mode for concurrent readers alongside the single writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: log}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			key TEXT PRIMARY KEY,
			channel TEXT NOT NULL,
			user_id TEXT NOT NULL,
			state TEXT NOT NULL,
			escalated INTEGER NOT NULL DEFAULT 0,
			sentiment REAL NOT NULL DEFAULT 0,
			version INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_conversations_state_updated
			ON conversations(state, updated_at);

		CREATE TABLE IF NOT EXISTS turn_intents (
			key TEXT NOT NULL,
			sequence INTEGER NOT NULL,
			intent TEXT NOT NULL,
			PRIMARY KEY (key, sequence)
		);

		CREATE INDEX IF NOT EXISTS idx_turn_intents_intent
			ON turn_intents(intent);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Load returns the conversation for a key, or ErrNotFound.
func (s *SQLiteStore) Load(ctx context.Context, key model.ConversationKey) (*model.Conversation, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM conversations WHERE key = ?", key.String(),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("decoding conversation: %w", err)
	}
	if conv.Slots == nil {
		conv.Slots = make(map[string]model.Slot)
	}
	return &conv, nil
}

// Save persists a conversation with an optimistic version check.
func (s *SQLiteStore) Save(ctx context.Context, conv *model.Conversation) error {
	prev := conv.Version
	conv.Version++

	data, err := json.Marshal(conv)
	if err != nil {
		conv.Version = prev
		return fmt.Errorf("encoding conversation: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		conv.Version = prev
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer tx.Rollback()

	if prev == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversations
				(key, channel, user_id, state, escalated, sentiment, version, data, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			conv.Key.String(), string(conv.Key.Channel), conv.Key.UserID,
			string(conv.State), boolToInt(conv.Escalated), conv.Sentiment,
			conv.Version, data, conv.CreatedAt, conv.UpdatedAt,
		)
		if err != nil {
			conv.Version = prev
			return ErrVersionConflict
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			UPDATE conversations
			SET state = ?, escalated = ?, sentiment = ?, version = ?, data = ?, updated_at = ?
			WHERE key = ? AND version = ?`,
			string(conv.State), boolToInt(conv.Escalated), conv.Sentiment,
			conv.Version, data, conv.UpdatedAt,
			conv.Key.String(), prev,
		)
		if err != nil {
			conv.Version = prev
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			conv.Version = prev
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if n == 0 {
			conv.Version = prev
			return ErrVersionConflict
		}
	}

	// Index classified intents of the latest turn for analytics.
	if n := len(conv.Turns); n > 0 {
		t := conv.Turns[n-1]
		if t.Intent != "" && t.Intent != model.IntentUnknown {
			if _, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO turn_intents (key, sequence, intent)
				VALUES (?, ?, ?)`,
				conv.Key.String(), t.Sequence, t.Intent,
			); err != nil {
				conv.Version = prev
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		conv.Version = prev
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Expire closes the conversation for a key, retaining it for audit.
func (s *SQLiteStore) Expire(ctx context.Context, key model.ConversationKey) error {
	conv, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if conv.State == model.StateClosed {
		return nil
	}

	now := time.Now()
	conv.State = model.StateClosed
	conv.ClosedAt = &now
	conv.UpdatedAt = now
	return s.Save(ctx, conv)
}

// ListIdle returns keys of open conversations not updated since before.
func (s *SQLiteStore) ListIdle(ctx context.Context, before time.Time) ([]model.ConversationKey, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel, user_id FROM conversations
		WHERE state != ? AND updated_at < ?`,
		string(model.StateClosed), before,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	var keys []model.ConversationKey
	for rows.Next() {
		var channel, userID string
		if err := rows.Scan(&channel, &userID); err != nil {
			return nil, err
		}
		keys = append(keys, model.ConversationKey{
			UserID:  userID,
			Channel: model.Channel(channel),
		})
	}
	return keys, rows.Err()
}

// Summary aggregates analytics over stored conversations.
func (s *SQLiteStore) Summary(ctx context.Context) (*model.AnalyticsSummary, error) {
	summary := &model.AnalyticsSummary{GeneratedAt: time.Now()}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN state != ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(escalated), 0),
		       COALESCE(AVG(sentiment), 0)
		FROM conversations`,
		string(model.StateClosed),
	).Scan(&summary.TotalConversations, &summary.OpenConversations,
		&summary.EscalatedCount, &summary.AverageSentiment)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if summary.TotalConversations > 0 {
		summary.EscalationRate = float64(summary.EscalatedCount) / float64(summary.TotalConversations)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT intent, COUNT(*) AS n FROM turn_intents
		GROUP BY intent ORDER BY n DESC LIMIT 5`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		var ic model.IntentCount
		if err := rows.Scan(&ic.Intent, &ic.Count); err != nil {
			return nil, err
		}
		summary.TopIntents = append(summary.TopIntents, ic)
	}
	return summary, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
