package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/0x0BSoD/animeTimes/internal/ledger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS posted_items (
	id  TEXT PRIMARY KEY,
	seq INTEGER NOT NULL
)`

// LedgerStorage keeps the ledger in a posted_items table. seq preserves
// insertion order so that retention drops the oldest entries first.
type LedgerStorage struct {
	db *sqlx.DB
}

// Open connects to the database and creates the schema when missing.
func Open(ctx context.Context, driver, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// a single writer keeps sqlite away from SQLITE_BUSY
		db.SetMaxOpenConns(1)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return db, nil
}

func NewLedgerStorage(db *sqlx.DB) *LedgerStorage {
	return &LedgerStorage{db: db}
}

type dbPostedItem struct {
	ID  string `db:"id"`
	Seq int64  `db:"seq"`
}

func (s *LedgerStorage) Load(ctx context.Context) (*ledger.Ledger, error) {
	conn, err := s.db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ledger.ErrLoad, err)
	}
	defer conn.Close()

	var items []dbPostedItem
	if err := conn.SelectContext(ctx, &items, `SELECT id, seq FROM posted_items ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("%w: select posted items: %w", ledger.ErrLoad, err)
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	slog.Debug("ledger loaded from database", "entries", len(ids))
	return ledger.New(ids...), nil
}

// Save replaces the table content with the ledger inside one transaction.
func (s *LedgerStorage) Save(ctx context.Context, l *ledger.Ledger) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", ledger.ErrSave, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM posted_items`); err != nil {
		return fmt.Errorf("%w: clear posted items: %w", ledger.ErrSave, err)
	}

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO posted_items (id, seq) VALUES (?, ?)`))
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %w", ledger.ErrSave, err)
	}
	defer stmt.Close()

	for seq, id := range l.IDs() {
		if _, err = stmt.ExecContext(ctx, id, seq); err != nil {
			return fmt.Errorf("%w: insert %q: %w", ledger.ErrSave, id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", ledger.ErrSave, err)
	}

	return nil
}
