package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flemzord/recall/internal/memory"
	"github.com/flemzord/recall/pkg/message"
)

// Store implements memory.SummaryStore and memory.UserDirectory.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time interface guards.
var (
	_ memory.SummaryStore  = (*Store)(nil)
	_ memory.UserDirectory = (*Store)(nil)
)

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: ping: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stop closes the database. It satisfies the lifecycle stopper.
func (s *Store) Stop(_ context.Context) error {
	s.logger.Info("sqlite store stopping")
	return s.Close()
}

// AppendMessage persists a validated message and returns it with the
// sequence id and creation time that were written.
func (s *Store) AppendMessage(ctx context.Context, userID string, role message.Role, content string) (message.Message, error) {
	msg, err := message.New(role, content)
	if err != nil {
		return msg, err
	}
	msg.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (user_id, role, content, created_at) VALUES (?, ?, ?, ?)",
		userID, string(role), content, formatTime(msg.CreatedAt),
	)
	if err != nil {
		return msg, fmt.Errorf("sqlite: append message: %w", err)
	}
	if msg.Seq, err = res.LastInsertId(); err != nil {
		return msg, fmt.Errorf("sqlite: append message id: %w", err)
	}
	return msg, nil
}

// ReadMessagesAfter returns the user's messages with seq > afterSeq in
// ascending order.
func (s *Store) ReadMessagesAfter(ctx context.Context, userID string, afterSeq int64) ([]message.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, role, content, created_at
		FROM messages
		WHERE user_id = ? AND seq > ?
		ORDER BY seq ASC`,
		userID, afterSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read messages: %w", err)
	}
	return collectMessages(rows)
}

// ReadRecentMessages returns up to limit of the user's newest messages,
// most recent first.
func (s *Store) ReadRecentMessages(ctx context.Context, userID string, limit int) ([]message.Message, error) {
	return s.ReadMessages(ctx, userID, limit, 0)
}

// ReadMessages pages through the user's log newest first, skipping the
// offset most recent messages.
func (s *Store) ReadMessages(ctx context.Context, userID string, limit, offset int) ([]message.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, role, content, created_at
		FROM messages
		WHERE user_id = ?
		ORDER BY seq DESC
		LIMIT ? OFFSET ?`,
		userID, limit, max(offset, 0),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: read messages page: %w", err)
	}
	return collectMessages(rows)
}

// CountMessagesAfter counts the user's messages with seq > afterSeq.
func (s *Store) CountMessagesAfter(ctx context.Context, userID string, afterSeq int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM messages WHERE user_id = ? AND seq > ?", userID, afterSeq,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count messages: %w", err)
	}
	return n, nil
}

// ReadSummary returns the user's summary. The boolean is false when no
// summary was ever written; the returned Summary then has empty text and
// a zero watermark.
func (s *Store) ReadSummary(ctx context.Context, userID string) (memory.Summary, bool, error) {
	sum := memory.Summary{UserID: userID}
	var updated string
	err := s.db.QueryRowContext(ctx,
		"SELECT summary, last_folded_seq, updated_at FROM summaries WHERE user_id = ?", userID,
	).Scan(&sum.Text, &sum.LastFoldedSeq, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sum, false, nil
		}
		return sum, false, fmt.Errorf("sqlite: read summary: %w", err)
	}
	sum.UpdatedAt = parseTime(updated)
	return sum, true, nil
}

// UpsertSummary replaces the summary text and advances the watermark in a
// single transaction. A watermark that would move backwards is rejected
// with memory.ErrSummaryRegression; one that names no message of the user
// with memory.ErrUnknownMessage.
func (s *Store) UpsertSummary(ctx context.Context, userID, text string, lastFoldedSeq int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin upsert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM messages WHERE user_id = ? AND seq = ?", userID, lastFoldedSeq,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlite: seq %d for user %s: %w", lastFoldedSeq, userID, memory.ErrUnknownMessage)
	}
	if err != nil {
		return fmt.Errorf("sqlite: verify folded message: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO summaries (user_id, summary, last_folded_seq, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			summary         = excluded.summary,
			last_folded_seq = excluded.last_folded_seq,
			updated_at      = excluded.updated_at
		WHERE excluded.last_folded_seq >= summaries.last_folded_seq`,
		userID, text, lastFoldedSeq, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upsert summary: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: upsert summary rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sqlite: seq %d for user %s: %w", lastFoldedSeq, userID, memory.ErrSummaryRegression)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit upsert: %w", err)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(sc scanner) (message.Message, error) {
	var (
		msg     message.Message
		role    string
		created string
	)
	if err := sc.Scan(&msg.Seq, &role, &msg.Content, &created); err != nil {
		return msg, fmt.Errorf("sqlite: scan message: %w", err)
	}
	r, err := message.ParseRole(role)
	if err != nil {
		return msg, fmt.Errorf("sqlite: message %d: %w", msg.Seq, err)
	}
	msg.Role = r
	msg.CreatedAt = parseTime(created)
	return msg, nil
}

func collectMessages(rows *sql.Rows) ([]message.Message, error) {
	defer func() { _ = rows.Close() }()

	var msgs []message.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: read rows: %w", err)
	}
	return msgs, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
