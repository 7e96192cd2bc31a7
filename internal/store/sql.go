package store

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/baxromumarov/job-collector/internal/model"
	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

type dialect struct {
	driver      string
	createTable string
	insert      string
}

var dialects = map[string]dialect{
	"postgres": {
		driver: "postgres",
		createTable: `
CREATE TABLE IF NOT EXISTS job_records (
    id BIGSERIAL PRIMARY KEY,
    job_key TEXT NOT NULL UNIQUE,
    job_title TEXT NOT NULL,
    company_name TEXT NOT NULL,
    location TEXT NOT NULL,
    posted_at TEXT NOT NULL DEFAULT '',
    required_degree TEXT NOT NULL,
    required_years_experience TEXT NOT NULL,
    collected_at TIMESTAMPTZ NOT NULL
)`,
		insert: `
INSERT INTO job_records (job_key, job_title, company_name, location, posted_at, required_degree, required_years_experience, collected_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (job_key) DO NOTHING`,
	},
	"mysql": {
		driver: "mysql",
		createTable: `
CREATE TABLE IF NOT EXISTS job_records (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    job_key VARCHAR(768) NOT NULL,
    job_title VARCHAR(512) NOT NULL,
    company_name VARCHAR(512) NOT NULL,
    location VARCHAR(512) NOT NULL,
    posted_at VARCHAR(64) NOT NULL DEFAULT '',
    required_degree VARCHAR(64) NOT NULL,
    required_years_experience VARCHAR(64) NOT NULL,
    collected_at DATETIME NOT NULL,
    UNIQUE KEY uq_job_records_job_key (job_key)
) CHARACTER SET utf8mb4`,
		insert: `
INSERT IGNORE INTO job_records (job_key, job_title, company_name, location, posted_at, required_degree, required_years_experience, collected_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	},
}

const selectRecords = `
SELECT job_key, job_title, company_name, location, posted_at, required_degree, required_years_experience, collected_at
FROM job_records
ORDER BY id`

// SQLStore keeps records in the job_records table of a postgres or mysql database.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// OpenSQL connects to the database, verifies the connection and creates the
// table if it does not exist.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported storage driver %q", driver)
	}
	if driver == "mysql" {
		var err error
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	s := &SQLStore{db: db, dialect: d}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// mysqlDSN forces time parsing in UTC so collected_at scans into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.dialect.createTable); err != nil {
		return &StorageError{Op: "migrate", Path: s.dialect.driver, Err: err}
	}
	return nil
}

func (s *SQLStore) LoadAll(ctx context.Context) ([]model.JobRecord, error) {
	rows, err := s.db.QueryContext(ctx, selectRecords)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: s.dialect.driver, Err: err}
	}
	defer rows.Close()

	var records []model.JobRecord
	for rows.Next() {
		var r model.JobRecord
		if err := rows.Scan(
			&r.Key,
			&r.Title,
			&r.Company,
			&r.Location,
			&r.PostedAt,
			&r.Degree,
			&r.Experience,
			&r.CollectedAt,
		); err != nil {
			return nil, &StorageError{Op: "read", Path: s.dialect.driver, Err: err}
		}
		r.Degree = sentinel(r.Degree)
		r.Experience = sentinel(r.Experience)
		r.CollectedAt = r.CollectedAt.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "read", Path: s.dialect.driver, Err: err}
	}
	return records, nil
}

func (s *SQLStore) ExistingKeys(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT job_key FROM job_records`)
	if err != nil {
		return nil, &StorageError{Op: "read", Path: s.dialect.driver, Err: err}
	}
	defer rows.Close()

	var links []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, &StorageError{Op: "read", Path: s.dialect.driver, Err: err}
		}
		links = append(links, k)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "read", Path: s.dialect.driver, Err: err}
	}
	return canonicalKeys(links), nil
}

// AppendAll inserts records in one transaction; keys already present are skipped.
func (s *SQLStore) AppendAll(ctx context.Context, records []model.JobRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StorageError{Op: "write", Path: s.dialect.driver, Err: err}
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, s.dialect.insert)
	if err != nil {
		return &StorageError{Op: "write", Path: s.dialect.driver, Err: err}
	}
	defer stmt.Close()

	for _, r := range records {
		if strings.TrimSpace(r.Key) == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			r.Key,
			r.Title,
			r.Company,
			r.Location,
			r.PostedAt,
			sentinel(r.Degree),
			sentinel(r.Experience),
			r.CollectedAt.UTC(),
		); err != nil {
			return &StorageError{Op: "write", Path: s.dialect.driver, Err: fmt.Errorf("insert %s: %w", r.Key, err)}
		}
	}
	if err := tx.Commit(); err != nil {
		return &StorageError{Op: "write", Path: s.dialect.driver, Err: err}
	}
	return nil
}

func (s *SQLStore) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM job_records`); err != nil {
		return &StorageError{Op: "reset", Path: s.dialect.driver, Err: err}
	}
	return nil
}

func (s *SQLStore) Export(ctx context.Context, w io.Writer) error {
	records, err := s.LoadAll(ctx)
	if err != nil {
		return err
	}
	if err := writeTable(w, records); err != nil {
		return &StorageError{Op: "export", Path: s.dialect.driver, Err: err}
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
