package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-intel/internal/db"
	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
	retry   resilience.RetryConfig
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

	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			pgxCfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			pgxCfg.MinConns = poolCfg.MinConns
		}
	}
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
	return newPostgresStore(pool, pool.Close), nil
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres write")
	return &PostgresStore{pool: pool, closeFn: closeFn, retry: retry}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	label      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'queued',
	stats      JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_stages (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, name)
);

CREATE TABLE IF NOT EXISTS assessments (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	url             TEXT NOT NULL,
	seq             INTEGER NOT NULL,
	overall_score   DOUBLE PRECISION NOT NULL,
	is_journalistic BOOLEAN NOT NULL,
	data            JSONB NOT NULL,
	PRIMARY KEY (run_id, url)
);

CREATE TABLE IF NOT EXISTS contacts (
	run_id              TEXT NOT NULL REFERENCES runs(id),
	id                  TEXT NOT NULL,
	seq                 INTEGER NOT NULL,
	name                TEXT NOT NULL,
	email               TEXT NOT NULL DEFAULT '',
	confidence_score    DOUBLE PRECISION NOT NULL,
	quality_score       DOUBLE PRECISION NOT NULL,
	verification_status TEXT NOT NULL,
	is_duplicate        BOOLEAN NOT NULL,
	data                JSONB NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS duplicate_groups (
	run_id           TEXT NOT NULL REFERENCES runs(id),
	id               TEXT NOT NULL,
	seq              INTEGER NOT NULL,
	duplicate_type   TEXT NOT NULL,
	selected_contact TEXT NOT NULL,
	similarity_score DOUBLE PRECISION NOT NULL,
	data             JSONB NOT NULL,
	PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS freelancer_profiles (
	contact_id    TEXT PRIMARY KEY,
	is_freelancer BOOLEAN NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	data          JSONB NOT NULL,
	analyzed_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS batch_failures (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	stage      TEXT NOT NULL,
	item_key   TEXT NOT NULL,
	error      TEXT NOT NULL,
	error_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_freelancer_profiles_freelancer ON freelancer_profiles(is_freelancer);
CREATE INDEX IF NOT EXISTS idx_batch_failures_run_id ON batch_failures(run_id);
`

// Upsert targets for the bulk writers.
var (
	assessmentUpsert = db.UpsertConfig{
		Table:        "assessments",
		Columns:      []string{"run_id", "url", "seq", "overall_score", "is_journalistic", "data"},
		ConflictKeys: []string{"run_id", "url"},
	}
	contactUpsert = db.UpsertConfig{
		Table: "contacts",
		Columns: []string{"run_id", "id", "seq", "name", "email", "confidence_score", "quality_score",
			"verification_status", "is_duplicate", "data"},
		ConflictKeys: []string{"run_id", "id"},
	}
	groupUpsert = db.UpsertConfig{
		Table:        "duplicate_groups",
		Columns:      []string{"run_id", "id", "seq", "duplicate_type", "selected_contact", "similarity_score", "data"},
		ConflictKeys: []string{"run_id", "id"},
	}
	profileUpsert = db.UpsertConfig{
		Table:        "freelancer_profiles",
		Columns:      []string{"contact_id", "is_freelancer", "confidence", "data", "analyzed_at"},
		ConflictKeys: []string{"contact_id"},
	}
	failureColumns = []string{"id", "run_id", "stage", "item_key", "error", "error_type", "created_at"}
)

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
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

// upsert runs a bulk upsert with retries on transient errors.
func (s *PostgresStore) upsert(ctx context.Context, cfg db.UpsertConfig, rows [][]any) error {
	err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		_, err := db.BulkUpsert(ctx, s.pool, cfg, rows)
		return err
	})
	return eris.Wrapf(err, "postgres: save %s", cfg.Table)
}

func (s *PostgresStore) CreateRun(ctx context.Context, label string) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Label:     label,
		Status:    model.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, label, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, run.Label, string(run.Status), run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, status model.RunStatus, stats *model.RunStats, runErr string) error {
	var statsJSON []byte
	if stats != nil {
		b, err := json.Marshal(stats)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run stats")
		}
		statsJSON = b
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, stats = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(status), statsJSON, runErr, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: run %s", runID)
	}
	return nil
}

const runColumns = `id, label, status, stats, error, created_at, updated_at`

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPostgresRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE true`
	args := []any{}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	if !filter.CreatedAfter.IsZero() {
		args = append(args, filter.CreatedAfter.UTC())
		query += fmt.Sprintf(` AND created_at > $%d`, len(args))
	}
	args = append(args, limitOrDefault(filter.Limit))
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d`, len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var (
		r         model.Run
		status    string
		statsJSON []byte
	)
	if err := row.Scan(&r.ID, &r.Label, &status, &statsJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if len(statsJSON) > 0 {
		r.Stats = &model.RunStats{}
		if err := json.Unmarshal(statsJSON, r.Stats); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal run stats")
		}
	}
	return &r, nil
}

func (s *PostgresStore) SaveStage(ctx context.Context, runID string, stage model.StageResult) error {
	data, err := json.Marshal(stage)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stage")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO run_stages (run_id, name, status, result) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (run_id, name) DO UPDATE SET status = EXCLUDED.status, result = EXCLUDED.result`,
		runID, stage.Name, string(stage.Status), data,
	)
	return eris.Wrapf(err, "postgres: save stage %s", stage.Name)
}

func (s *PostgresStore) ListStages(ctx context.Context, runID string) ([]model.StageResult, error) {
	return queryJSON[model.StageResult](ctx, s.pool, "postgres: list stages",
		`SELECT result FROM run_stages WHERE run_id = $1 ORDER BY created_at, name`, runID)
}

func (s *PostgresStore) SaveAssessments(ctx context.Context, runID string, assessments []*model.ContentQualityAssessment) error {
	rows := make([][]any, 0, len(assessments))
	for i, a := range assessments {
		if a == nil {
			continue
		}
		data, err := json.Marshal(a)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal assessment %s", a.URL)
		}
		rows = append(rows, []any{runID, a.URL, i, a.OverallScore, a.IsJournalistic, data})
	}
	return s.upsert(ctx, assessmentUpsert, rows)
}

func (s *PostgresStore) SaveContacts(ctx context.Context, runID string, contacts []model.ExtractedContact) error {
	rows := make([][]any, 0, len(contacts))
	for i, c := range contacts {
		data, err := json.Marshal(c)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal contact %s", c.ID)
		}
		rows = append(rows, []any{runID, c.ID, i, c.Name, c.Email, c.ConfidenceScore, c.QualityScore,
			string(c.VerificationStatus), c.IsDuplicate, data})
	}
	return s.upsert(ctx, contactUpsert, rows)
}

func (s *PostgresStore) ListContacts(ctx context.Context, runID string) ([]model.ExtractedContact, error) {
	return queryJSON[model.ExtractedContact](ctx, s.pool, "postgres: list contacts",
		`SELECT data FROM contacts WHERE run_id = $1 ORDER BY seq`, runID)
}

func (s *PostgresStore) SaveDuplicateGroups(ctx context.Context, runID string, groups []model.DuplicateGroup) error {
	rows := make([][]any, 0, len(groups))
	for i, g := range groups {
		data, err := json.Marshal(g)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal group %s", g.ID)
		}
		rows = append(rows, []any{runID, g.ID, i, string(g.DuplicateType), g.SelectedContact, g.SimilarityScore, data})
	}
	return s.upsert(ctx, groupUpsert, rows)
}

func (s *PostgresStore) ListDuplicateGroups(ctx context.Context, runID string) ([]model.DuplicateGroup, error) {
	return queryJSON[model.DuplicateGroup](ctx, s.pool, "postgres: list duplicate groups",
		`SELECT data FROM duplicate_groups WHERE run_id = $1 ORDER BY seq`, runID)
}

func (s *PostgresStore) SaveProfiles(ctx context.Context, profiles []*model.FreelancerProfile) error {
	rows := make([][]any, 0, len(profiles))
	for _, p := range profiles {
		if p == nil {
			continue
		}
		data, err := json.Marshal(p)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal profile %s", p.ContactID)
		}
		rows = append(rows, []any{p.ContactID, p.IsFreelancer, p.Confidence, data, p.AnalyzedAt.UTC()})
	}
	return s.upsert(ctx, profileUpsert, rows)
}

func (s *PostgresStore) GetProfile(ctx context.Context, contactID string) (*model.FreelancerProfile, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM freelancer_profiles WHERE contact_id = $1`, contactID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: profile %s", contactID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get profile %s", contactID)
	}
	var p model.FreelancerProfile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal profile")
	}
	return &p, nil
}

// SaveFailures appends failure records with COPY. Records are immutable so
// no conflict handling is needed.
func (s *PostgresStore) SaveFailures(ctx context.Context, failures []resilience.FailureRecord) error {
	rows := make([][]any, len(failures))
	for i, f := range failures {
		rows[i] = []any{f.ID, f.RunID, f.Stage, f.ItemKey, f.Error, f.ErrorType, f.CreatedAt.UTC()}
	}
	err := resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		_, err := db.CopyFrom(ctx, s.pool, "batch_failures", failureColumns, rows)
		return err
	})
	return eris.Wrap(err, "postgres: save failures")
}

func (s *PostgresStore) ListFailures(ctx context.Context, runID string) ([]resilience.FailureRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, run_id, stage, item_key, error, error_type, created_at FROM batch_failures
		 WHERE run_id = $1 ORDER BY created_at, stage, item_key`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list failures")
	}
	defer rows.Close()

	var out []resilience.FailureRecord
	for rows.Next() {
		var f resilience.FailureRecord
		if err := rows.Scan(&f.ID, &f.RunID, &f.Stage, &f.ItemKey, &f.Error, &f.ErrorType, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan failure")
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list failures iterate")
}

func queryJSON[T any](ctx context.Context, pool db.Pool, op, query string, args ...any) ([]T, error) {
	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, op)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrapf(err, "%s: scan", op)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, eris.Wrapf(err, "%s: unmarshal", op)
		}
		out = append(out, v)
	}
	return out, eris.Wrapf(rows.Err(), "%s: iterate", op)
}
