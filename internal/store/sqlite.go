// Package store persists recordings, documents, and offline drafts in a
// local SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"voxnote/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id          TEXT PRIMARY KEY,
	title       TEXT NOT NULL DEFAULT '',
	audio_path  TEXT NOT NULL,
	transcript  TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	captured_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_recordings_status ON recordings(status);

CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS drafts (
	id           TEXT PRIMARY KEY,
	recording_id TEXT NOT NULL DEFAULT '',
	title        TEXT NOT NULL,
	content      TEXT NOT NULL,
	sync_status  TEXT NOT NULL,
	created_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_drafts_sync_status ON drafts(sync_status);
`

// Store implements the recording, document, and draft persistence ports on a
// single SQLite database file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path)
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite handles a single writer; a larger pool just causes lock errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateRecording inserts a new recording. A missing ID is generated and a
// missing status defaults to pending.
func (s *Store) CreateRecording(ctx context.Context, rec domain.Recording) (domain.Recording, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = domain.StatusPending
	}
	if rec.CapturedAt.IsZero() {
		rec.CapturedAt = s.now()
	}
	if strings.TrimSpace(rec.AudioPath) == "" {
		return domain.Recording{}, domain.NewError(domain.ErrorKindValidation, "recording audio path is required", nil)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO recordings (id, title, audio_path, transcript, status, duration_ms, captured_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Title, rec.AudioPath, rec.Transcript, string(rec.Status),
		rec.Duration.Milliseconds(), rec.CapturedAt.UTC(),
	)
	if err != nil {
		return domain.Recording{}, fmt.Errorf("failed to insert recording: %w", err)
	}
	return rec, nil
}

// GetRecording fetches one recording by ID.
func (s *Store) GetRecording(ctx context.Context, id string) (domain.Recording, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, audio_path, transcript, status, duration_ms, captured_at
		 FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Recording{}, fmt.Errorf("recording %q: %w", id, ErrNotFound)
	}
	return rec, err
}

// ListByStatus returns recordings matching any of the given statuses, oldest
// capture first.
func (s *Store) ListByStatus(ctx context.Context, statuses ...domain.RecordingStatus) ([]domain.Recording, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(statuses))
	for i, status := range statuses {
		args[i] = string(status)
	}

	query := fmt.Sprintf(
		`SELECT id, title, audio_path, transcript, status, duration_ms, captured_at
		 FROM recordings WHERE status IN (%s) ORDER BY captured_at ASC`, placeholders)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	var out []domain.Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateStatus sets the status of one recording.
func (s *Store) UpdateStatus(ctx context.Context, id string, status domain.RecordingStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update recording status: %w", err)
	}
	return requireRow(result, id)
}

// UpdateTranscript sets both the transcript and status of one recording.
func (s *Store) UpdateTranscript(ctx context.Context, id string, transcript string, status domain.RecordingStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE recordings SET transcript = ?, status = ? WHERE id = ?`,
		transcript, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update recording transcript: %w", err)
	}
	return requireRow(result, id)
}

// CreateDocument stores a durable document and returns its ID.
func (s *Store) CreateDocument(ctx context.Context, title string, content string) (string, error) {
	if strings.TrimSpace(title) == "" {
		return "", domain.NewError(domain.ErrorKindValidation, "document title is required", nil)
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, title, content, created_at) VALUES (?, ?, ?, ?)`,
		id, title, content, s.now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

// Document is a stored document row.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ListDocuments returns all documents, newest first.
func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, content, created_at FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// SaveDraft inserts an offline draft.
func (s *Store) SaveDraft(ctx context.Context, draft domain.OfflineDraft) error {
	if draft.ID == "" {
		draft.ID = uuid.NewString()
	}
	if draft.SyncStatus == "" {
		draft.SyncStatus = domain.SyncPending
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO drafts (id, recording_id, title, content, sync_status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		draft.ID, draft.RecordingID, draft.Title, draft.Content,
		string(draft.SyncStatus), draft.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert draft: %w", err)
	}
	return nil
}

// UpdateDraftSync sets the sync status of one draft.
func (s *Store) UpdateDraftSync(ctx context.Context, id string, status domain.SyncStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE drafts SET sync_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update draft: %w", err)
	}
	return requireRow(result, id)
}

// ListDrafts returns drafts in the given sync status, oldest first.
func (s *Store) ListDrafts(ctx context.Context, status domain.SyncStatus) ([]domain.OfflineDraft, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recording_id, title, content, sync_status, created_at
		 FROM drafts WHERE sync_status = ? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list drafts: %w", err)
	}
	defer rows.Close()

	var out []domain.OfflineDraft
	for rows.Next() {
		var draft domain.OfflineDraft
		var syncStatus string
		if err := rows.Scan(&draft.ID, &draft.RecordingID, &draft.Title, &draft.Content, &syncStatus, &draft.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan draft: %w", err)
		}
		draft.SyncStatus = domain.SyncStatus(syncStatus)
		out = append(out, draft)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecording(row scanner) (domain.Recording, error) {
	var rec domain.Recording
	var status string
	var durationMS int64
	if err := row.Scan(&rec.ID, &rec.Title, &rec.AudioPath, &rec.Transcript, &status, &durationMS, &rec.CapturedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Recording{}, err
		}
		return domain.Recording{}, fmt.Errorf("failed to scan recording: %w", err)
	}
	rec.Status = domain.RecordingStatus(status)
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	return rec, nil
}

func requireRow(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recording or draft %q: %w", id, ErrNotFound)
	}
	return nil
}
