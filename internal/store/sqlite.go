package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/quizlens/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS context_documents (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	extracted_text TEXT NOT NULL,
	size_bytes     INTEGER NOT NULL DEFAULT 0,
	uploaded_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_context_documents_uploaded_at ON context_documents(uploaded_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetSettings(ctx context.Context) (model.Settings, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return model.Settings{}, eris.Wrap(err, "sqlite: get settings")
	}
	defer rows.Close() //nolint:errcheck

	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return model.Settings{}, eris.Wrap(err, "sqlite: scan setting")
		}
		values[k] = v
	}
	if err := rows.Err(); err != nil {
		return model.Settings{}, eris.Wrap(err, "sqlite: iterate settings")
	}

	settings := fromValues(values)
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	settings.Documents = docs
	return settings, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, settings model.Settings) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	values := toValues(settings)
	for _, k := range Keys() {
		if err := upsertSQLite(ctx, tx, k, values[k], now); err != nil {
			return err
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit settings")
}

func (s *SQLiteStore) SetValue(ctx context.Context, key, value string) error {
	if err := ValidateKey(key, value); err != nil {
		return err
	}
	return upsertSQLite(ctx, s.db, key, value, time.Now().UTC())
}

type sqliteExecer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSQLite(ctx context.Context, db sqliteExecer, key, value string, now time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	return eris.Wrapf(err, "sqlite: set %s", key)
}

func (s *SQLiteStore) AddDocument(ctx context.Context, doc model.ContextDocument) (model.ContextDocument, error) {
	doc, err := prepareDocument(doc)
	if err != nil {
		return doc, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO context_documents (id, name, extracted_text, size_bytes, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Name, doc.ExtractedText, doc.SizeBytes, doc.UploadedAt,
	)
	if err != nil {
		return doc, eris.Wrap(err, "sqlite: add document")
	}
	return doc, nil
}

func (s *SQLiteStore) ListDocuments(ctx context.Context) ([]model.ContextDocument, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, extracted_text, size_bytes, uploaded_at FROM context_documents ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list documents")
	}
	defer rows.Close() //nolint:errcheck

	var docs []model.ContextDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan document")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "sqlite: iterate documents")
}

func (s *SQLiteStore) DeleteDocument(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM context_documents WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete document %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrDocumentNotFound, "sqlite: delete document %s", id)
	}
	return nil
}

// scannable covers both *sql.Row(s) and pgx.Row(s).
type scannable interface {
	Scan(dest ...any) error
}

func scanDocument(row scannable) (model.ContextDocument, error) {
	var d model.ContextDocument
	err := row.Scan(&d.ID, &d.Name, &d.ExtractedText, &d.SizeBytes, &d.UploadedAt)
	d.UploadedAt = d.UploadedAt.UTC()
	return d, err
}
