// Package store persists analyses in PostgreSQL.
//
// Each analysis is one row: searchable metadata in plain columns and the
// settings, normalized summary and result rows as JSONB. Result rows are
// only loaded by Get; listings read metadata alone.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/labliq/internal/results"
	"github.com/JonMunkholm/labliq/internal/upstream"
)

// ErrNotFound is returned when no analysis has the requested ID.
var ErrNotFound = errors.New("analysis not found")

// History paging limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// StatusComplete marks an analysis whose rows were stored.
const StatusComplete = "complete"

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Analysis is one stored analysis run.
type Analysis struct {
	ID        string            `json:"id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	FileID    string            `json:"file_id"`
	FileName  string            `json:"file_name"`
	Merchant  string            `json:"merchant"`
	Title     string            `json:"title"`
	Tags      []string          `json:"tags"`
	Notes     string            `json:"notes"`
	Status    string            `json:"status"`
	Warning   string            `json:"warning,omitempty"`
	Settings  upstream.Settings `json:"settings"`
	Summary   results.Summary   `json:"summary"`
	RowCount  int               `json:"row_count"`
	Rows      []results.Row     `json:"rows,omitempty"`
}

// HistoryFilter selects analyses for the history list.
type HistoryFilter struct {
	Merchant string // case-insensitive exact match
	FileID   string // exact match on the uploaded file
	Query    string // substring of id, file name, title, merchant, notes or status
	Tag      string
	Limit    int
	Offset   int
}

// Normalize applies the paging defaults and bounds.
func (f HistoryFilter) Normalize() HistoryFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	f.Limit = min(f.Limit, MaxHistoryLimit)
	f.Offset = max(f.Offset, 0)
	return f
}

// HistoryPage is one page of the history list, newest first.
type HistoryPage struct {
	Items  []Analysis `json:"items"`
	Total  int64      `json:"total"`
	Limit  int        `json:"limit"`
	Offset int        `json:"offset"`
}

// MetaUpdate changes user-editable metadata. Nil fields are left unchanged.
type MetaUpdate struct {
	Merchant *string   `json:"merchant"`
	Title    *string   `json:"title"`
	Tags     *[]string `json:"tags"`
	Notes    *string   `json:"notes"`
}

// IsEmpty reports whether u changes nothing.
func (u MetaUpdate) IsEmpty() bool {
	return u.Merchant == nil && u.Title == nil && u.Tags == nil && u.Notes == nil
}

// MerchantCount is the number of analyses stored for one merchant.
type MerchantCount struct {
	Merchant string    `json:"merchant"`
	Count    int64     `json:"count"`
	LastRun  time.Time `json:"last_run"`
}

// Store reads and writes analyses.
type Store struct {
	db DBTX
}

// New returns a Store using db.
func New(db DBTX) *Store {
	return &Store{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id         UUID PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	file_id    TEXT NOT NULL,
	file_name  TEXT NOT NULL DEFAULT '',
	merchant   TEXT NOT NULL DEFAULT '',
	title      TEXT NOT NULL DEFAULT '',
	tags       TEXT[] NOT NULL DEFAULT '{}',
	notes      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'complete',
	warning    TEXT NOT NULL DEFAULT '',
	settings   JSONB NOT NULL,
	summary    JSONB NOT NULL,
	row_count  INTEGER NOT NULL DEFAULT 0,
	rows       JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS analyses_created_at_idx ON analyses (created_at DESC);
CREATE INDEX IF NOT EXISTS analyses_merchant_idx ON analyses (lower(merchant));
`

// EnsureSchema creates the analyses table and indexes if missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

const metaColumns = `id, created_at, updated_at, file_id, file_name, merchant, title,
	tags, notes, status, warning, settings, summary, row_count`

// Create inserts a, assigning an ID when empty and filling the timestamps.
func (s *Store) Create(ctx context.Context, a *Analysis) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	id := toPgUUID(a.ID)
	if !id.Valid {
		return fmt.Errorf("create analysis: invalid id %q", a.ID)
	}
	if a.Status == "" {
		a.Status = StatusComplete
	}
	if a.Rows == nil {
		a.Rows = []results.Row{}
	}
	a.Tags = normalizeTags(a.Tags)
	a.RowCount = len(a.Rows)

	settings, err := json.Marshal(a.Settings)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	summary, err := json.Marshal(a.Summary)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	rows, err := json.Marshal(a.Rows)
	if err != nil {
		return fmt.Errorf("encode rows: %w", err)
	}

	const q = `INSERT INTO analyses
		(id, file_id, file_name, merchant, title, tags, notes, status, warning, settings, summary, row_count, rows)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, q,
		id, a.FileID, a.FileName, a.Merchant, a.Title, a.Tags, a.Notes, a.Status, a.Warning,
		settings, summary, a.RowCount, rows,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert analysis: %w", err)
	}
	return nil
}

// Get loads one analysis including its rows.
func (s *Store) Get(ctx context.Context, id string) (*Analysis, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return nil, ErrNotFound
	}

	row := s.db.QueryRow(ctx, `SELECT `+metaColumns+`, rows FROM analyses WHERE id = $1`, pgID)
	a, err := scanAnalysis(row, true)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get analysis: %w", err)
	}
	return a, nil
}

// List returns one page of analysis metadata, newest first.
func (s *Store) List(ctx context.Context, f HistoryFilter) (*HistoryPage, error) {
	f = f.Normalize()

	wb := newWhereBuilder()
	wb.AddFold("merchant", f.Merchant)
	wb.Add("file_id", f.FileID)
	wb.AddTagged("tags", f.Tag)
	wb.AddSearch(f.Query, "id::text", "file_name", "title", "merchant", "notes", "status")
	whereClause, args := wb.Build()

	var total int64
	if err := s.db.QueryRow(ctx, "SELECT COUNT(*) FROM analyses"+whereClause, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count analyses: %w", err)
	}

	query := "SELECT " + metaColumns + " FROM analyses" + whereClause +
		fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", wb.NextArgIndex(), wb.NextArgIndex()+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	items := make([]Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		items = append(items, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}

	return &HistoryPage{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

// UpdateMeta applies u and returns the updated metadata (without rows).
func (s *Store) UpdateMeta(ctx context.Context, id string, u MetaUpdate) (*Analysis, error) {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return nil, ErrNotFound
	}

	var tags *[]string
	if u.Tags != nil {
		normalized := normalizeTags(*u.Tags)
		tags = &normalized
	}

	const q = `UPDATE analyses SET
		merchant = COALESCE($2, merchant),
		title = COALESCE($3, title),
		tags = COALESCE($4::text[], tags),
		notes = COALESCE($5, notes),
		updated_at = now()
		WHERE id = $1
		RETURNING ` + metaColumns

	row := s.db.QueryRow(ctx, q, pgID, trimmed(u.Merchant), trimmed(u.Title), tags, u.Notes)
	a, err := scanAnalysis(row, false)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update analysis: %w", err)
	}
	return a, nil
}

// Delete removes an analysis.
func (s *Store) Delete(ctx context.Context, id string) error {
	pgID := toPgUUID(id)
	if !pgID.Valid {
		return ErrNotFound
	}

	tag, err := s.db.Exec(ctx, `DELETE FROM analyses WHERE id = $1`, pgID)
	if err != nil {
		return fmt.Errorf("delete analysis: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Merchants returns per-merchant analysis counts, alphabetically.
func (s *Store) Merchants(ctx context.Context) ([]MerchantCount, error) {
	rows, err := s.db.Query(ctx, `SELECT merchant, COUNT(*), MAX(created_at)
		FROM analyses WHERE merchant <> ''
		GROUP BY merchant ORDER BY lower(merchant), merchant`)
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	defer rows.Close()

	out := make([]MerchantCount, 0)
	for rows.Next() {
		var m MerchantCount
		if err := rows.Scan(&m.Merchant, &m.Count, &m.LastRun); err != nil {
			return nil, fmt.Errorf("scan merchant: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	return out, nil
}

// PurgeOlderThan deletes analyses created more than days ago, batchSize rows
// per statement, and returns the IDs deleted. days <= 0 deletes nothing.
// On error the IDs of batches already committed are still returned.
func (s *Store) PurgeOlderThan(ctx context.Context, days, batchSize int) ([]string, error) {
	if days <= 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = 500
	}

	const q = `DELETE FROM analyses WHERE id IN (
		SELECT id FROM analyses
		WHERE created_at < now() - make_interval(days => $1)
		ORDER BY created_at
		LIMIT $2)
		RETURNING id`

	var purged []string
	for {
		if err := ctx.Err(); err != nil {
			return purged, err
		}
		ids, err := s.purgeBatch(ctx, q, days, batchSize)
		purged = append(purged, ids...)
		if err != nil {
			return purged, fmt.Errorf("purge analyses: %w", err)
		}
		if len(ids) < batchSize {
			return purged, nil
		}
	}
}

func (s *Store) purgeBatch(ctx context.Context, q string, days, batchSize int) ([]string, error) {
	rows, err := s.db.Query(ctx, q, days, batchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id pgtype.UUID
		if err := rows.Scan(&id); err != nil {
			return ids, err
		}
		ids = append(ids, pgUUIDToString(id))
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row scanner, withRows bool) (*Analysis, error) {
	var (
		a        Analysis
		id       pgtype.UUID
		settings []byte
		summary  []byte
		rowsJSON []byte
	)

	dest := []any{
		&id, &a.CreatedAt, &a.UpdatedAt, &a.FileID, &a.FileName, &a.Merchant, &a.Title,
		&a.Tags, &a.Notes, &a.Status, &a.Warning, &settings, &summary, &a.RowCount,
	}
	if withRows {
		dest = append(dest, &rowsJSON)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	a.ID = pgUUIDToString(id)
	if a.Tags == nil {
		a.Tags = []string{}
	}
	if err := json.Unmarshal(settings, &a.Settings); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if err := json.Unmarshal(summary, &a.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if withRows {
		rows, err := results.DecodeRows(rowsJSON)
		if err != nil {
			return nil, err
		}
		a.Rows = rows
	}
	return &a, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}
