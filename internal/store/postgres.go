package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/quizlens/internal/model"
)

// Pool is the subset of *pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS context_documents (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name           TEXT NOT NULL,
	extracted_text TEXT NOT NULL,
	size_bytes     BIGINT NOT NULL DEFAULT 0,
	uploaded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_context_documents_uploaded_at ON context_documents(uploaded_at);
`

const upsertSettingSQL = `INSERT INTO settings (key, value, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetSettings(ctx context.Context) (model.Settings, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return model.Settings{}, eris.Wrap(err, "postgres: get settings")
	}
	values := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			rows.Close()
			return model.Settings{}, eris.Wrap(err, "postgres: scan setting")
		}
		values[k] = v
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return model.Settings{}, eris.Wrap(err, "postgres: iterate settings")
	}

	settings := fromValues(values)
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	settings.Documents = docs
	return settings, nil
}

func (s *PostgresStore) SaveSettings(ctx context.Context, settings model.Settings) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	values := toValues(settings)
	for _, k := range Keys() {
		if _, err := tx.Exec(ctx, upsertSettingSQL, k, values[k], now); err != nil {
			return eris.Wrapf(err, "postgres: set %s", k)
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit settings")
}

func (s *PostgresStore) SetValue(ctx context.Context, key, value string) error {
	if err := ValidateKey(key, value); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, upsertSettingSQL, key, value, time.Now().UTC())
	return eris.Wrapf(err, "postgres: set %s", key)
}

func (s *PostgresStore) AddDocument(ctx context.Context, doc model.ContextDocument) (model.ContextDocument, error) {
	doc, err := prepareDocument(doc)
	if err != nil {
		return doc, err
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO context_documents (id, name, extracted_text, size_bytes, uploaded_at) VALUES ($1, $2, $3, $4, $5)`,
		doc.ID, doc.Name, doc.ExtractedText, doc.SizeBytes, doc.UploadedAt,
	)
	if err != nil {
		return doc, eris.Wrap(err, "postgres: add document")
	}
	return doc, nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context) ([]model.ContextDocument, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, extracted_text, size_bytes, uploaded_at FROM context_documents ORDER BY uploaded_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list documents")
	}
	defer rows.Close()

	var docs []model.ContextDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan document")
		}
		docs = append(docs, d)
	}
	return docs, eris.Wrap(rows.Err(), "postgres: iterate documents")
}

func (s *PostgresStore) DeleteDocument(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM context_documents WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete document %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrDocumentNotFound, "postgres: delete document %s", id)
	}
	return nil
}
