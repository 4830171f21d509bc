package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/shortlink/pkg/ports"
	_ "modernc.org/sqlite" // Local SQLite driver
)

const defaultTimeout = 5 * time.Second

type SQLiteRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLiteRepository opens dbURL with the libsql driver for Turso URLs and the
// local SQLite driver otherwise. Every query is bounded by timeout.
func NewSQLiteRepository(dbURL string, timeout time.Duration) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://") {
		driverName = "libsql"
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if driverName == "sqlite" {
		// One writer at a time avoids SQLITE_BUSY on local files and shared memory DBs.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := migrate(db); err != nil {
		return nil, err
	}

	return &SQLiteRepository{db: db, timeout: timeout}, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Timestamps are stored as Unix milliseconds so range deletes compare integers.
func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS links (
		id TEXT PRIMARY KEY,
		original_url TEXT NOT NULL,
		short_code TEXT NOT NULL UNIQUE,
		custom_alias INTEGER NOT NULL DEFAULT 0,
		owner_id TEXT,
		created_at INTEGER NOT NULL,
		expires_at INTEGER,
		is_active INTEGER NOT NULL DEFAULT 1,
		tags JSON,
		description TEXT NOT NULL DEFAULT '',
		click_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_links_owner_id ON links(owner_id);
	CREATE INDEX IF NOT EXISTS idx_links_expires_at ON links(expires_at);

	CREATE TABLE IF NOT EXISTS clicks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		link_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		ip_address TEXT,
		user_agent TEXT,
		referrer TEXT,
		FOREIGN KEY(link_id) REFERENCES links(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_clicks_link_id ON clicks(link_id);
	`
	_, err := db.Exec(query)
	return err
}

func (r *SQLiteRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

func (r *SQLiteRepository) Create(ctx context.Context, link *domain.Link) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `INSERT INTO links (id, original_url, short_code, custom_alias, owner_id, created_at, expires_at, is_active, tags, description, click_count)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`

	tagsJSON, err := json.Marshal(link.Tags)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		link.ID, link.OriginalURL, link.ShortCode, link.CustomAlias, nullString(link.OwnerID),
		link.CreatedAt.UnixMilli(), nullMillis(link.ExpiresAt), link.IsActive, string(tagsJSON), link.Description,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrConflict, link.ShortCode)
		}
		return fmt.Errorf("insert link: %w", err)
	}
	return nil
}

const linkColumns = `id, original_url, short_code, custom_alias, owner_id, created_at, expires_at, is_active, tags, description, click_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLink(row rowScanner) (*domain.Link, error) {
	var (
		link      domain.Link
		ownerID   sql.NullString
		createdAt int64
		expiresAt sql.NullInt64
		tagsJSON  []byte
	)
	err := row.Scan(
		&link.ID, &link.OriginalURL, &link.ShortCode, &link.CustomAlias, &ownerID,
		&createdAt, &expiresAt, &link.IsActive, &tagsJSON, &link.Description, &link.ClickCount,
	)
	if err != nil {
		return nil, err
	}

	if ownerID.Valid {
		link.OwnerID = &ownerID.String
	}
	link.CreatedAt = time.UnixMilli(createdAt).UTC()
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64).UTC()
		link.ExpiresAt = &t
	}
	link.Tags = []string{}
	if len(tagsJSON) > 0 {
		_ = json.Unmarshal(tagsJSON, &link.Tags)
	}
	return &link, nil
}

func (r *SQLiteRepository) GetByShortCode(ctx context.Context, code string) (*domain.Link, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + linkColumns + ` FROM links WHERE short_code = ?`
	link, err := scanLink(r.db.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

func (r *SQLiteRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Link, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + linkColumns + ` FROM links WHERE owner_id = ? ORDER BY created_at DESC, rowid DESC`
	return r.queryLinks(ctx, query, ownerID)
}

func (r *SQLiteRepository) queryLinks(ctx context.Context, query string, args ...any) ([]domain.Link, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := []domain.Link{}
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, *l)
	}
	return links, rows.Err()
}

// Update writes the owner-mutable columns only; click_count is left to RecordClick.
func (r *SQLiteRepository) Update(ctx context.Context, link *domain.Link) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `UPDATE links SET is_active = ?, tags = ?, description = ? WHERE id = ?`

	tagsJSON, err := json.Marshal(link.Tags)
	if err != nil {
		return err
	}

	if _, err := r.db.ExecContext(ctx, query, link.IsActive, string(tagsJSON), link.Description, link.ID); err != nil {
		return fmt.Errorf("update link: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, link *domain.Link) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM clicks WHERE link_id = ?`, link.ID); err != nil {
		return fmt.Errorf("delete clicks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM links WHERE id = ?`, link.ID); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return tx.Commit()
}

func (r *SQLiteRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	cutoff := before.UnixMilli()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM clicks WHERE link_id IN (
			SELECT id FROM links WHERE expires_at IS NOT NULL AND expires_at < ?
		)`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired clicks: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM links WHERE expires_at IS NOT NULL AND expires_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired links: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *SQLiteRepository) Dump(ctx context.Context) ([]domain.Link, error) {
	qctx, cancel := r.withTimeout(ctx)
	links, err := r.queryLinks(qctx, `SELECT `+linkColumns+` FROM links ORDER BY created_at ASC, rowid ASC`)
	cancel()
	if err != nil {
		return nil, err
	}
	for i := range links {
		clicks, err := r.ListClicks(ctx, links[i].ID)
		if err != nil {
			return nil, err
		}
		links[i].Clicks = clicks
	}
	return links, nil
}

// RecordClick inserts the click and increments the counter in one transaction.
// A link deleted concurrently yields domain.ErrNotFound.
func (r *SQLiteRepository) RecordClick(ctx context.Context, link *domain.Link, click *domain.Click) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Increment Link Clicks Counter (Atomic)
	res, err := tx.ExecContext(ctx, `UPDATE links SET click_count = click_count + 1 WHERE id = ?`, link.ID)
	if err != nil {
		return fmt.Errorf("increment clicks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	// 2. Insert Click Record
	queryClick := `INSERT INTO clicks (link_id, created_at, ip_address, user_agent, referrer) VALUES (?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, queryClick, link.ID, click.Timestamp.UnixMilli(), click.IPAddress, click.UserAgent, click.Referrer)
	if err != nil {
		return fmt.Errorf("insert click: %w", err)
	}

	return tx.Commit()
}

func (r *SQLiteRepository) ListClicks(ctx context.Context, linkID string) ([]domain.Click, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		`SELECT created_at, ip_address, user_agent, referrer FROM clicks WHERE link_id = ? ORDER BY id ASC`, linkID)
	if err != nil {
		return nil, fmt.Errorf("query clicks: %w", err)
	}
	defer rows.Close()

	clicks := []domain.Click{}
	for rows.Next() {
		var (
			c                  domain.Click
			ts                 int64
			ip, agent, referer sql.NullString
		)
		if err := rows.Scan(&ts, &ip, &agent, &referer); err != nil {
			return nil, fmt.Errorf("scan click: %w", err)
		}
		c.Timestamp = time.UnixMilli(ts).UTC()
		c.IPAddress = ip.String
		c.UserAgent = agent.String
		c.Referrer = referer.String
		clicks = append(clicks, c)
	}
	return clicks, rows.Err()
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

// Ensure interface compliance
var _ ports.LinkRepository = (*SQLiteRepository)(nil)
