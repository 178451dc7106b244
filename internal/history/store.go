package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/voicefusion-labs/voicefusion-core/internal/config"
	"github.com/voicefusion-labs/voicefusion-core/internal/conversation"
)

// Store keeps a durable timeline of conversation turns in SQLite. With the
// ephemeral retention mode it becomes a no-op and nothing touches disk.
type Store struct {
	db    *sql.DB
	cfg   config.HistoryConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the history store according to config.
func Open(ctx context.Context, cfg config.HistoryConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if err := s.vacuum(ctx); err != nil {
			log.Warn("history vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("history prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS conversations (
    conversation_id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS turns (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    conversation_id TEXT NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(conversation_id) REFERENCES conversations(conversation_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_turns_conversation_created ON turns(conversation_id, id);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *Store) vacuum(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// AppendConversation ensures a conversation row exists.
func (s *Store) AppendConversation(ctx context.Context, conversationID string) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations(conversation_id, created_at)
		 VALUES(?, ?)
		 ON CONFLICT(conversation_id) DO NOTHING`,
		conversationID, s.clock().UTC())
	return err
}

// RecordTurn appends a turn to a conversation's durable timeline. It
// satisfies the pipeline's Recorder contract.
func (s *Store) RecordTurn(ctx context.Context, conversationID string, turn conversation.Turn) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	if err := s.AppendConversation(ctx, conversationID); err != nil {
		return err
	}
	created := turn.CreatedAt
	if created.IsZero() {
		created = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO turns(conversation_id, role, content, created_at)
		 VALUES(?, ?, ?, ?)`,
		conversationID, string(turn.Role), turn.Content, created)
	return err
}

// ListTurns retrieves up to limit turns for a conversation in append order.
func (s *Store) ListTurns(ctx context.Context, conversationID string, limit int) ([]conversation.Turn, error) {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content, created_at
		 FROM turns WHERE conversation_id = ? ORDER BY id ASC LIMIT ?`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []conversation.Turn
	for rows.Next() {
		var role, content string
		var created time.Time
		if err := rows.Scan(&role, &content, &created); err != nil {
			return nil, err
		}
		turns = append(turns, conversation.Turn{
			Role:      conversation.Role(role),
			Content:   content,
			CreatedAt: created,
		})
	}
	return turns, rows.Err()
}

// Prune enforces the retention policy: drops conversations older than the
// retention window and trims the table down to max_conversations newest rows.
func (s *Store) Prune(ctx context.Context) error {
	if s.cfg.RetentionMode == "ephemeral" || s.db == nil {
		return nil
	}
	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM conversations WHERE created_at < ?`, cutoff); err != nil {
			return err
		}
	}
	if s.cfg.MaxConversations > 0 {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM conversations WHERE conversation_id NOT IN (
			     SELECT conversation_id FROM conversations ORDER BY created_at DESC LIMIT ?
			 )`, s.cfg.MaxConversations); err != nil {
			return err
		}
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM turns WHERE conversation_id NOT IN (SELECT conversation_id FROM conversations)`)
	return err
}
