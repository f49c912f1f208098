package jobstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/contentops/cms-translator/internal/metrics"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// ErrClaimed reports that the job's expected prior status did not hold at
// update time: another worker got there first. Callers skip silently.
var ErrClaimed = errors.New("job already claimed by another worker")

type Store struct {
	db *sql.DB
}

func NewStore(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db}
	if err := store.init(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		return fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		version := migrationVersion(entry.Name())
		if version <= 0 {
			continue
		}
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&exists); err != nil {
			return fmt.Errorf("check migration %s: %w", entry.Name(), err)
		}
		if exists > 0 {
			continue
		}
		content, err := migrationFiles.ReadFile(filepath.Join("migrations", entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			return fmt.Errorf("record migration %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// migrationVersion extracts the leading integer from a migration filename (e.g. "001_init.sql" → 1).
func migrationVersion(name string) int {
	for i, c := range name {
		if c < '0' || c > '9' {
			if i == 0 {
				return 0
			}
			n, _ := strconv.Atoi(name[:i])
			return n
		}
	}
	n, _ := strconv.Atoi(name)
	return n
}

// InitializeJobs inserts one pending_translation row per (item × language)
// pair that does not exist yet. Existing rows keep their status untouched,
// so re-scans never disturb in-flight or terminal jobs. Returns the number
// of rows actually inserted.
func (s *Store) InitializeJobs(ctx context.Context, contentType string, items []NewJobSpec, languages []string) (int64, error) {
	if len(items) == 0 || len(languages) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var inserted int64
	for _, item := range items {
		for _, lang := range languages {
			var res sql.Result
			res, err = tx.ExecContext(
				ctx,
				`INSERT INTO translation_jobs (slug, content_type, language, source_item_id, status, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)
				 ON CONFLICT(slug, content_type, language) DO NOTHING`,
				item.Slug,
				contentType,
				lang,
				item.SourceItemID,
				string(StatusPendingTranslation),
				now,
				now,
			)
			if err != nil {
				return 0, fmt.Errorf("initialize job %s/%s/%s: %w", item.Slug, contentType, lang, err)
			}
			n, _ := res.RowsAffected()
			inserted += n
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

const jobColumns = `id, slug, content_type, language, source_item_id, target_item_id, status, last_error, translation_file_path, created_at, updated_at`

// PendingTranslation returns the oldest jobs ready for the translation
// scheduler, failed ones included so they retry every cycle.
func (s *Store) PendingTranslation(ctx context.Context, limit int) ([]Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM translation_jobs
		 WHERE status IN (?, ?)
		 ORDER BY updated_at ASC LIMIT ?`,
		string(StatusPendingTranslation), string(StatusFailedTranslation), limit)
}

// PendingUpload returns jobs whose artifact is ready for delivery.
func (s *Store) PendingUpload(ctx context.Context, limit int) ([]Job, error) {
	return s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM translation_jobs
		 WHERE status IN (?, ?) AND translation_file_path IS NOT NULL
		 ORDER BY updated_at ASC LIMIT ?`,
		string(StatusPendingUpload), string(StatusFailedUpload), limit)
}

// Get loads one job by identity tuple.
func (s *Store) Get(ctx context.Context, slug, contentType, language string) (Job, bool, error) {
	jobs, err := s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM translation_jobs
		 WHERE slug = ? AND content_type = ? AND language = ?`,
		slug, contentType, language)
	if err != nil {
		return Job{}, false, err
	}
	if len(jobs) == 0 {
		return Job{}, false, nil
	}
	return jobs[0], true, nil
}

type transitionUpdate struct {
	lastError    *string
	targetItemID *int64
	artifactPath *string
}

type TransitionOption func(*transitionUpdate)

func WithLastError(msg string) TransitionOption {
	return func(u *transitionUpdate) { u.lastError = &msg }
}

func WithTargetItemID(id int64) TransitionOption {
	return func(u *transitionUpdate) { u.targetItemID = &id }
}

func WithArtifactPath(path string) TransitionOption {
	return func(u *transitionUpdate) { u.artifactPath = &path }
}

// Transition atomically moves a job from one of the expected statuses to
// next ("if current status is X, set to Y"). ErrClaimed signals that no
// expected status held, which under concurrent schedulers is a benign race,
// not a fault. Illegal lifecycle edges are rejected before touching the row.
func (s *Store) Transition(ctx context.Context, id int64, from []Status, to Status, opts ...TransitionOption) error {
	if len(from) == 0 {
		return fmt.Errorf("transition needs at least one expected status")
	}
	for _, f := range from {
		if !f.CanTransitionTo(to) {
			return fmt.Errorf("illegal transition %s -> %s", f, to)
		}
	}

	var update transitionUpdate
	for _, opt := range opts {
		opt(&update)
	}

	set := []string{"status = ?", "updated_at = ?"}
	args := []any{string(to), time.Now().UTC()}
	if update.lastError != nil {
		set = append(set, "last_error = ?")
		args = append(args, *update.lastError)
	}
	if update.targetItemID != nil {
		set = append(set, "target_item_id = ?")
		args = append(args, *update.targetItemID)
	}
	if update.artifactPath != nil {
		set = append(set, "translation_file_path = ?")
		args = append(args, *update.artifactPath)
	}

	args = append(args, id)
	placeholders := make([]string, len(from))
	for i, f := range from {
		placeholders[i] = "?"
		args = append(args, string(f))
	}
	query := fmt.Sprintf(
		`UPDATE translation_jobs SET %s WHERE id = ? AND status IN (%s)`,
		strings.Join(set, ", "),
		strings.Join(placeholders, ", "),
	)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("transition job %d to %s: %w", id, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrClaimed
	}
	metrics.JobTransitions.WithLabelValues(string(to)).Inc()
	return nil
}

// Counts returns the number of jobs per status.
func (s *Store) Counts(ctx context.Context) (map[Status]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM translation_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[Status]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		out[Status(status)] = count
	}
	return out, rows.Err()
}

// List returns one page of jobs, newest activity first, plus the total row
// count for pagination.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Job, int64, error) {
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM translation_jobs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	jobs, err := s.queryJobs(ctx,
		`SELECT `+jobColumns+` FROM translation_jobs
		 ORDER BY updated_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return jobs, total, nil
}

func (s *Store) queryJobs(ctx context.Context, query string, args ...any) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ret := make([]Job, 0)
	for rows.Next() {
		var job Job
		var status string
		var targetItemID sql.NullInt64
		var lastError sql.NullString
		var artifactPath sql.NullString
		if err := rows.Scan(
			&job.ID,
			&job.Slug,
			&job.ContentType,
			&job.Language,
			&job.SourceItemID,
			&targetItemID,
			&status,
			&lastError,
			&artifactPath,
			&job.CreatedAt,
			&job.UpdatedAt,
		); err != nil {
			return nil, err
		}
		job.Status = Status(status)
		if targetItemID.Valid {
			v := targetItemID.Int64
			job.TargetItemID = &v
		}
		job.LastError = lastError.String
		job.ArtifactPath = artifactPath.String
		ret = append(ret, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}
