// Package storage persists transactions and categories in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finanzas/internal/core"

	_ "modernc.org/sqlite"
)

type SQLiteRepository struct {
	db      *sql.DB
	version uint
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath
// and migrates it to the latest schema.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db, version: version}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SchemaVersion is the migration version applied at open time.
func (r *SQLiteRepository) SchemaVersion() uint { return r.version }

const categoryColumns = `id, name, type, color, icon, owner_id, is_default`

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var c core.Category
	var typ string
	var isDefault int
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.Color, &c.Icon, &c.OwnerID, &isDefault); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TransactionType(typ)
	c.IsDefault = isDefault == 1
	return c, nil
}

func (r *SQLiteRepository) LookupCategory(ctx context.Context, id, ownerID int64) (core.Category, bool, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND (owner_id = ? OR is_default = 1)`,
		id, ownerID)
	c, err := scanCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, false, nil
	}
	if err != nil {
		return core.Category{}, false, fmt.Errorf("lookup category %d: %w", id, err)
	}
	return c, true, nil
}

func (r *SQLiteRepository) QueryCategories(ctx context.Context, ownerID int64, typ *core.TransactionType) ([]core.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE (owner_id = ? OR is_default = 1)`
	args := []any{ownerID}
	if typ != nil {
		query += ` AND type = ?`
		args = append(args, string(*typ))
	}
	query += ` ORDER BY type, name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertTransaction validates t and stores it as pending sync.
func (r *SQLiteRepository) InsertTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO transactions (type, amount_cents, description, category_id, date, notes, owner_id, import_batch)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Type), t.Amount.Cents, t.Description, t.CategoryID, string(t.Date), t.Notes, t.OwnerID, t.ImportBatch)
	if err != nil {
		return 0, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read transaction id: %w", err)
	}
	slog.DebugContext(ctx, "Transaction saved to SQLite",
		"id", id, "owner_id", t.OwnerID, "type", t.Type, "amount_cents", t.Amount.Cents)
	return id, nil
}

// UpdateTransaction rewrites the editable fields of t and queues the row for
// mirroring again.
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE transactions
		SET type = ?, amount_cents = ?, description = ?, category_id = ?, date = ?, notes = ?, sync_status = 'pending'
		WHERE id = ? AND owner_id = ?`,
		string(t.Type), t.Amount.Cents, t.Description, t.CategoryID, string(t.Date), t.Notes, t.ID, t.OwnerID)
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction %d: %w", t.ID, err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

const transactionColumns = `t.id, t.type, t.amount_cents, t.description, t.category_id, t.date, t.notes, t.owner_id, t.import_batch`

func scanTransaction(row interface{ Scan(...any) error }) (core.Transaction, error) {
	var t core.Transaction
	var typ, date string
	if err := row.Scan(&t.ID, &typ, &t.Amount.Cents, &t.Description, &t.CategoryID, &date, &t.Notes, &t.OwnerID, &t.ImportBatch); err != nil {
		return core.Transaction{}, err
	}
	t.Type = core.TransactionType(typ)
	t.Date = core.ISODate(date)
	return t, nil
}

// filterClause renders f as a WHERE clause over transactions t joined with categories c.
func filterClause(ownerID int64, f core.TransactionFilter) (string, []any) {
	conds := []string{"t.owner_id = ?"}
	args := []any{ownerID}
	if f.Type != nil {
		conds = append(conds, "t.type = ?")
		args = append(args, string(*f.Type))
	}
	if f.CategoryID != 0 {
		conds = append(conds, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Range.Start != "" {
		conds = append(conds, "t.date >= ?")
		args = append(args, string(f.Range.Start))
	}
	if f.Range.End != "" {
		conds = append(conds, "t.date <= ?")
		args = append(args, string(f.Range.End))
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		conds = append(conds, "(t.description LIKE ? OR c.name LIKE ?)")
		args = append(args, like, like)
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

const fromTransactions = ` FROM transactions t LEFT JOIN categories c ON c.id = t.category_id`

func (r *SQLiteRepository) QueryTransactions(ctx context.Context, ownerID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	where, args := filterClause(ownerID, f)
	query := `SELECT ` + transactionColumns + fromTransactions + where + ` ORDER BY t.date DESC, t.id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	} else if f.Offset > 0 {
		query += ` LIMIT -1 OFFSET ?`
		args = append(args, f.Offset)
	}
	return r.queryTransactions(ctx, query, args...)
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CountTransactions(ctx context.Context, ownerID int64, f core.TransactionFilter) (int, error) {
	where, args := filterClause(ownerID, f)
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+fromTransactions+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, id int64) (core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.id = ? AND t.owner_id = ?`, id, ownerID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	return t, nil
}

// TransactionsByIDs returns the owner's rows among ids, in id order.
// Unknown ids are skipped.
func (r *SQLiteRepository) TransactionsByIDs(ctx context.Context, ownerID int64, ids []int64) ([]core.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, 0, len(ids)+1)
	args = append(args, ownerID)
	for _, id := range ids {
		args = append(args, id)
	}
	return r.queryTransactions(ctx,
		`SELECT `+transactionColumns+` FROM transactions t WHERE t.owner_id = ? AND t.id IN (`+placeholders+`) ORDER BY t.id`,
		args...)
}

// PendingSync identifies a transaction not yet mirrored.
type PendingSync struct {
	ID        int64
	OwnerID   int64
	CreatedAt time.Time
}

// PendingSync lists up to limit rows still waiting for the mirror, oldest first.
func (r *SQLiteRepository) PendingSync(ctx context.Context, limit int) ([]PendingSync, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, owner_id, created_at FROM transactions
		WHERE sync_status = 'pending'
		ORDER BY created_at, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync transactions: %w", err)
	}
	defer rows.Close()

	var out []PendingSync
	for rows.Next() {
		var p PendingSync
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending sync: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// MarkSynced flags ids as mirrored.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, ids ...int64) error {
	return r.setSyncStatus(ctx, "synced", ids)
}

// MarkSyncError flags ids whose mirroring failed.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, ids ...int64) error {
	if err := r.setSyncStatus(ctx, "error", ids); err != nil {
		return err
	}
	slog.WarnContext(ctx, "Transactions marked with sync error", "count", len(ids))
	return nil
}

func (r *SQLiteRepository) setSyncStatus(ctx context.Context, status string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{status, status}
	for _, id := range ids {
		args = append(args, id)
	}
	query := `UPDATE transactions
		SET sync_status = ?, synced_at = CASE WHEN ? = 'synced' THEN CURRENT_TIMESTAMP ELSE synced_at END
		WHERE id IN (` + placeholders + `)`
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark %s: %w", status, err)
	}
	return nil
}

// RetryFailedSyncs puts rows in error back to pending and returns how many moved.
func (r *SQLiteRepository) RetryFailedSyncs(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE transactions SET sync_status = 'pending' WHERE sync_status = 'error'`)
	if err != nil {
		return 0, fmt.Errorf("retry failed syncs: %w", err)
	}
	return res.RowsAffected()
}
