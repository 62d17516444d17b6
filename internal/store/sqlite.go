package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	retry resilience.RetryConfig
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
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("sqlite write")
	return &SQLiteStore{db: db, retry: retry}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'queued',
	stats      TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS run_stages (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS assessments (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	url             TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	overall_score   REAL NOT NULL,
	is_journalistic INTEGER NOT NULL,
	data            TEXT NOT NULL,
	PRIMARY KEY (run_id, url)
);

CREATE TABLE IF NOT EXISTS contacts (
	run_id              TEXT NOT NULL REFERENCES runs(id),
	id                  TEXT NOT NULL,
	seq                 INTEGER NOT NULL,
	name                TEXT NOT NULL,
	email               TEXT NOT NULL DEFAULT '',
	confidence_score    REAL NOT NULL,
	quality_score       REAL NOT NULL,
	verification_status TEXT NOT NULL,
	is_duplicate        INTEGER NOT NULL,
	data                TEXT NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS duplicate_groups (
	run_id           TEXT NOT NULL REFERENCES runs(id),
	id               TEXT NOT NULL,
	seq              INTEGER NOT NULL,
	duplicate_type   TEXT NOT NULL,
	selected_contact TEXT NOT NULL,
	similarity_score REAL NOT NULL,
	data             TEXT NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS freelancer_profiles (
	contact_id    TEXT PRIMARY KEY,
	is_freelancer INTEGER NOT NULL,
	confidence    REAL NOT NULL,
	data          TEXT NOT NULL,
	analyzed_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS batch_failures (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	stage      TEXT NOT NULL,
	item_key   TEXT NOT NULL,
	error      TEXT NOT NULL,
	error_type TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_batch_failures_run_id ON batch_failures(run_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// write runs fn in a transaction, retrying when SQLite reports it is busy.
func (s *SQLiteStore) write(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	return resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return eris.Wrapf(err, "sqlite: %s: begin tx", op)
		}
		defer tx.Rollback() //nolint:errcheck
		if err := fn(tx); err != nil {
			return eris.Wrapf(err, "sqlite: %s", op)
		}
		return eris.Wrapf(tx.Commit(), "sqlite: %s: commit", op)
	})
}

func (s *SQLiteStore) CreateRun(ctx context.Context, label string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Label:     label,
		Status:    model.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, label, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Label, string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats, runErr string) error {
	var statsJSON sql.NullString
	if stats != nil {
		b, err := json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run stats")
		}
		statsJSON = sql.NullString{String: string(b), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, stats = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), statsJSON, runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, label, status, stats, error, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: run %s", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, label, status, stats, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at > ?`
		args = append(args, filter.CreatedAfter.UTC())
	}
	query += ` ORDER BY created_at DESC, id LIMIT ?`
	args = append(args, limitOrDefault(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SaveStage(ctx context.Context, runID string, stage model.StageResult) error {
	data, err := json.Marshal(stage)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stage")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO run_stages (run_id, name, status, result, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, name) DO UPDATE SET status = excluded.status, result = excluded.result`,
		runID, stage.Name, string(stage.Status), string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save stage %s", stage.Name)
}

func (s *SQLiteStore) ListStages(ctx context.Context, runID string) ([]model.StageResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT result FROM run_stages WHERE run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stages")
	}
	return scanJSONRows[model.StageResult](rows, "sqlite: list stages")
}

func (s *SQLiteStore) SaveAssessments(ctx context.Context, runID string, assessments []*model.ContentQualityAssessment) error {
	if len(assessments) == 0 {
		return nil
	}
	return s.write(ctx, "save assessments", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO assessments (run_id, url, seq, overall_score, is_journalistic, data) VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, url) DO UPDATE SET seq = excluded.seq, overall_score = excluded.overall_score,
			 is_journalistic = excluded.is_journalistic, data = excluded.data`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for i, a := range assessments {
			if a == nil {
				continue
			}
			data, err := json.Marshal(a)
			if err != nil {
				return eris.Wrapf(err, "marshal assessment %s", a.URL)
			}
			if _, err := stmt.ExecContext(ctx, runID, a.URL, i, a.OverallScore, a.IsJournalistic, string(data)); err != nil {
				return eris.Wrapf(err, "insert assessment %s", a.URL)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) SaveContacts(ctx context.Context, runID string, contacts []model.ExtractedContact) error {
	if len(contacts) == 0 {
		return nil
	}
	return s.write(ctx, "save contacts", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO contacts (run_id, id, seq, name, email, confidence_score, quality_score,
			 verification_status, is_duplicate, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, id) DO UPDATE SET seq = excluded.seq, name = excluded.name,
			 email = excluded.email, confidence_score = excluded.confidence_score,
			 quality_score = excluded.quality_score, verification_status = excluded.verification_status,
			 is_duplicate = excluded.is_duplicate, data = excluded.data`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for i, c := range contacts {
			data, err := json.Marshal(c)
			if err != nil {
				return eris.Wrapf(err, "marshal contact %s", c.ID)
			}
			if _, err := stmt.ExecContext(ctx, runID, c.ID, i, c.Name, c.Email, c.ConfidenceScore,
				c.QualityScore, string(c.VerificationStatus), c.IsDuplicate, string(data)); err != nil {
				return eris.Wrapf(err, "insert contact %s", c.ID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListContacts(ctx context.Context, runID string) ([]model.ExtractedContact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM contacts WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contacts")
	}
	return scanJSONRows[model.ExtractedContact](rows, "sqlite: list contacts")
}

func (s *SQLiteStore) SaveDuplicateGroups(ctx context.Context, runID string, groups []model.DuplicateGroup) error {
	if len(groups) == 0 {
		return nil
	}
	return s.write(ctx, "save duplicate groups", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO duplicate_groups (run_id, id, seq, duplicate_type, selected_contact, similarity_score, data)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, id) DO UPDATE SET seq = excluded.seq, duplicate_type = excluded.duplicate_type,
			 selected_contact = excluded.selected_contact, similarity_score = excluded.similarity_score,
			 data = excluded.data`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for i, g := range groups {
			data, err := json.Marshal(g)
			if err != nil {
				return eris.Wrapf(err, "marshal group %s", g.ID)
			}
			if _, err := stmt.ExecContext(ctx, runID, g.ID, i, string(g.DuplicateType), g.SelectedContact,
				g.SimilarityScore, string(data)); err != nil {
				return eris.Wrapf(err, "insert group %s", g.ID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListDuplicateGroups(ctx context.Context, runID string) ([]model.DuplicateGroup, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM duplicate_groups WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list duplicate groups")
	}
	return scanJSONRows[model.DuplicateGroup](rows, "sqlite: list duplicate groups")
}

func (s *SQLiteStore) SaveProfiles(ctx context.Context, profiles []*model.FreelancerProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	return s.write(ctx, "save profiles", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO freelancer_profiles (contact_id, is_freelancer, confidence, data, analyzed_at) VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (contact_id) DO UPDATE SET is_freelancer = excluded.is_freelancer,
			 confidence = excluded.confidence, data = excluded.data, analyzed_at = excluded.analyzed_at`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for _, p := range profiles {
			if p == nil {
				continue
			}
			data, err := json.Marshal(p)
			if err != nil {
				return eris.Wrapf(err, "marshal profile %s", p.ContactID)
			}
			if _, err := stmt.ExecContext(ctx, p.ContactID, p.IsFreelancer, p.Confidence, string(data), p.AnalyzedAt.UTC()); err != nil {
				return eris.Wrapf(err, "insert profile %s", p.ContactID)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) GetProfile(ctx context.Context, contactID string) (*model.FreelancerProfile, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM freelancer_profiles WHERE contact_id = ?`, contactID,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: profile %s", contactID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get profile %s", contactID)
	}
	var p model.FreelancerProfile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal profile")
	}
	return &p, nil
}

func (s *SQLiteStore) SaveFailures(ctx context.Context, failures []resilience.FailureRecord) error {
	if len(failures) == 0 {
		return nil
	}
	return s.write(ctx, "save failures", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO batch_failures (id, run_id, stage, item_key, error, error_type, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close() //nolint:errcheck
		for _, f := range failures {
			if _, err := stmt.ExecContext(ctx, f.ID, f.RunID, f.Stage, f.ItemKey, f.Error, f.ErrorType, f.CreatedAt.UTC()); err != nil {
				return eris.Wrapf(err, "insert failure %s", f.ItemKey)
			}
		}
		return nil
	})
}

func (s *SQLiteStore) ListFailures(ctx context.Context, runID string) ([]resilience.FailureRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, stage, item_key, error, error_type, created_at FROM batch_failures
		 WHERE run_id = ? ORDER BY created_at, stage, item_key`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list failures")
	}
	defer rows.Close() //nolint:errcheck

	var out []resilience.FailureRecord
	for rows.Next() {
		var f resilience.FailureRecord
		if err := rows.Scan(&f.ID, &f.RunID, &f.Stage, &f.ItemKey, &f.Error, &f.ErrorType, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan failure")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list failures iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: %s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var statsJSON sql.NullString

	err := row.Scan(&r.ID, &r.Label, &r.Status, &statsJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if statsJSON.Valid {
		r.Stats = &model.RunStats{}
		if err := json.Unmarshal([]byte(statsJSON.String), r.Stats); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal run stats")
		}
	}
	return &r, nil
}

func scanJSONRows[T any](rows *sql.Rows, op string) ([]T, error) {
	defer rows.Close() //nolint:errcheck

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrapf(err, "%s: scan", op)
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, eris.Wrapf(err, "%s: unmarshal", op)
		}
		out = append(out, v)
	}
	return out, eris.Wrapf(rows.Err(), "%s: iterate", op)
}
