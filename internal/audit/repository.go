// Package audit stores the history of commands sent to Shelly devices.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-shelly/internal/bridges/shelly"
)

// timeLayout is fixed-width so sent_at sorts correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// Page size limits for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// CommandEntry is one row of the command log.
type CommandEntry struct {
	ID       string    `json:"id"`
	DeviceID string    `json:"device_id"`
	Kind     string    `json:"kind"`
	Topic    string    `json:"topic"`
	Payload  string    `json:"payload"`
	Success  bool      `json:"success"`
	Error    string    `json:"error,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

// Filter controls which entries List returns.
type Filter struct {
	DeviceID string // optional
	Kind     string // optional: set_relay, roller_state, roller_position, set_white
	Limit    int    // default 50, max 200
	Offset   int
}

// ListResult is a page of command log entries.
type ListResult struct {
	Commands []CommandEntry `json:"commands"`
	Total    int            `json:"total"`
	Limit    int            `json:"limit"`
	Offset   int            `json:"offset"`
}

// Repository defines the command log operations.
type Repository interface {
	Create(ctx context.Context, entry *CommandEntry) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository keeps the command log in the commands table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a command log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordCommand stores a dispatched command and its outcome. It makes the
// repository usable as the dispatcher's recorder.
func (r *SQLiteRepository) RecordCommand(ctx context.Context, rec shelly.CommandRecord) error {
	entry := &CommandEntry{
		ID:       rec.Command.ID,
		DeviceID: rec.Command.DeviceID,
		Kind:     rec.Command.Kind.String(),
		Topic:    rec.Topic,
		Payload:  rec.Payload,
		Success:  rec.Err == nil,
		SentAt:   rec.SentAt,
	}
	if rec.Err != nil {
		entry.Error = rec.Err.Error()
	}
	return r.Create(ctx, entry)
}

// Create inserts an entry. ID and SentAt are generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, entry *CommandEntry) error {
	if entry.ID == "" {
		entry.ID = "cmd-" + uuid.NewString()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO commands (id, device_id, kind, topic, payload, success, error, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.DeviceID, entry.Kind, entry.Topic, entry.Payload,
		boolToInt(entry.Success), nullableString(entry.Error),
		entry.SentAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command log entry: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// nullableString maps "" to NULL for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM commands %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command log entries: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		"SELECT id, device_id, kind, topic, payload, success, error, sent_at FROM commands %s ORDER BY sent_at DESC, id LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying command log: %w", err)
	}
	defer rows.Close()

	entries := []CommandEntry{}
	for rows.Next() {
		var e CommandEntry
		var success int
		var errText sql.NullString
		var sentAt string

		if err := rows.Scan(&e.ID, &e.DeviceID, &e.Kind, &e.Topic, &e.Payload,
			&success, &errText, &sentAt); err != nil {
			return nil, fmt.Errorf("scanning command log entry: %w", err)
		}
		e.Success = success == 1
		e.Error = errText.String

		e.SentAt, err = time.Parse(timeLayout, sentAt)
		if err != nil {
			return nil, fmt.Errorf("parsing command timestamp %q: %w", sentAt, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command log: %w", err)
	}

	return &ListResult{
		Commands: entries,
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}, nil
}
