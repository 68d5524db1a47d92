package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/habitcraft/internal/constants"
	"github.com/julianstephens/habitcraft/internal/logger"
	"github.com/julianstephens/habitcraft/internal/migration"
	"github.com/julianstephens/habitcraft/internal/models"
	"github.com/julianstephens/habitcraft/internal/remote"
	"github.com/julianstephens/habitcraft/migrations"
)

const uniqueViolation = "23505"

type Store struct {
	connStr string
	db      *sql.DB
}

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

func New(connStr string) *Store {
	s := &Store{
		connStr: connStr,
	}
	s.ensureSearchPath()
	return s
}

// ensureSearchPath points unqualified table names at the application schema
// unless the connection string already chooses one.
func (s *Store) ensureSearchPath() {
	if strings.HasPrefix(s.connStr, "postgres://") || strings.HasPrefix(s.connStr, "postgresql://") {
		u, err := url.Parse(s.connStr)
		if err != nil {
			logger.Warn("Failed to parse Postgres connection string", "error", err)
			return
		}
		q := u.Query()
		if q.Get("search_path") == "" {
			q.Set("search_path", constants.AppName)
			u.RawQuery = q.Encode()
			s.connStr = u.String()
		}
	} else if !hasParam(s.connStr, "search_path") {
		s.connStr = strings.TrimSpace(s.connStr) + " search_path=" + constants.AppName
	}
}

// hasParam reports whether a DSN-style connection string sets key
// (case-insensitive).
func hasParam(connStr, key string) bool {
	for _, part := range strings.Fields(connStr) {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 && strings.EqualFold(kv[0], key) {
			return true
		}
	}
	return false
}

// hasSSLMode checks URL and DSN forms for an sslmode parameter.
func hasSSLMode(connStr string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for key := range u.Query() {
			if strings.EqualFold(key, "sslmode") {
				return true
			}
		}
	}
	return hasParam(connStr, "sslmode")
}

// ValidateConnString checks if a connection string is a valid PostgreSQL
// connection string (URI or DSN) that does not embed a password. Passwords
// come from the OS keyring, the environment, or .pgpass.
func ValidateConnString(connStr string) (bool, error) {
	if strings.TrimSpace(connStr) == "" {
		return false, fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}

	if _, err := pq.NewConnector(connStr); err != nil {
		return false, fmt.Errorf("%w: invalid connection string format: %v", ErrInvalidConnectionString, err)
	}

	if HasEmbeddedCredentials(connStr) {
		return false, ErrEmbeddedCredentials
	}

	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		parsedURL, err := url.Parse(connStr)
		if err != nil {
			return false, fmt.Errorf("%w: failed to parse connection URL: %v", ErrInvalidConnectionString, err)
		}
		if parsedURL.Host == "" && parsedURL.User == nil && (parsedURL.Path == "" || parsedURL.Path == "/") {
			return false, fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
		}
	}

	return true, nil
}

// HasEmbeddedCredentials reports whether connStr carries a password.
func HasEmbeddedCredentials(connStr string) bool {
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil || u.User == nil {
			return false
		}
		_, isSet := u.User.Password()
		return isSet
	}
	return hasParam(connStr, "password")
}

func (s *Store) Init(ctx context.Context) error {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasSSLMode(s.connStr) {
			return fmt.Errorf("failed to connect to database: %w (hint: try adding ?sslmode=disable to your connection string)", err)
		}
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(constants.AppName)); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.db = db

	if err := s.runMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) runMigrations(ctx context.Context) error {
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return fmt.Errorf("failed to access postgres migrations: %w", err)
	}

	runner := migration.NewRunner(s.db, subFS, migration.DialectPostgres)
	_, err = runner.ApplyMigrations(ctx, func(msg string) {
		logger.Debug(msg)
	})
	return err
}

// SchemaVersion reports the applied and latest known schema versions.
func (s *Store) SchemaVersion(ctx context.Context) (current, latest int, err error) {
	if s.db == nil {
		return 0, 0, fmt.Errorf("remote store not initialized")
	}
	subFS, err := fs.Sub(migrations.FS, "postgres")
	if err != nil {
		return 0, 0, err
	}
	runner := migration.NewRunner(s.db, subFS, migration.DialectPostgres)
	if current, err = runner.GetCurrentVersion(ctx); err != nil {
		return 0, 0, err
	}
	latest, err = runner.GetLatestVersion()
	return current, latest, err
}

func (s *Store) PullHabits(ctx context.Context, owner string) ([]models.Habit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, motivation, color, cadence, weekdays, goal,
		       completed_dates, is_active, created_at, updated_at, deleted_at
		FROM habits WHERE owner = $1
		ORDER BY created_at, id`, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query habits: %w", err)
	}
	defer rows.Close()

	var out []models.Habit
	for rows.Next() {
		var h models.Habit
		var color, cadence string
		var weekdays pq.Int64Array
		var completed pq.StringArray
		var deletedAt pq.NullTime

		if err := rows.Scan(&h.ID, &h.Title, &h.Description, &h.Motivation, &color, &cadence,
			&weekdays, &h.Goal, &completed, &h.IsActive, &h.CreatedAt, &h.UpdatedAt, &deletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan habit: %w", err)
		}

		h.Color = constants.Color(color)
		h.Cadence = constants.Cadence(cadence)
		for _, d := range weekdays {
			h.Weekdays = append(h.Weekdays, time.Weekday(d))
		}
		h.CompletedDates = []string(completed)
		if deletedAt.Valid {
			t := deletedAt.Time
			h.DeletedAt = &t
		}
		h.Normalize()
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) PushHabits(ctx context.Context, owner string, habits []models.Habit) error {
	if len(habits) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO habits (owner, id, title, description, motivation, color, cadence, weekdays,
		                    goal, completed_dates, is_active, created_at, updated_at, deleted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (owner, id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			motivation = EXCLUDED.motivation,
			color = EXCLUDED.color,
			cadence = EXCLUDED.cadence,
			weekdays = EXCLUDED.weekdays,
			goal = EXCLUDED.goal,
			completed_dates = EXCLUDED.completed_dates,
			is_active = EXCLUDED.is_active,
			updated_at = EXCLUDED.updated_at,
			deleted_at = EXCLUDED.deleted_at
		WHERE habits.updated_at <= EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, h := range habits {
		weekdays := make(pq.Int64Array, len(h.Weekdays))
		for i, d := range h.Weekdays {
			weekdays[i] = int64(d)
		}
		completed := pq.StringArray(h.CompletedDates)
		if completed == nil {
			completed = pq.StringArray{}
		}
		var deletedAt pq.NullTime
		if h.DeletedAt != nil {
			deletedAt = pq.NullTime{Time: h.DeletedAt.UTC(), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, owner, h.ID, h.Title, h.Description, h.Motivation,
			string(h.Color), string(h.Cadence), weekdays, h.Goal, completed, h.IsActive,
			h.CreatedAt.UTC(), h.UpdatedAt.UTC(), deletedAt); err != nil {
			return fmt.Errorf("failed to upsert habit %s: %w", h.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit habits: %w", err)
	}
	return nil
}

func (s *Store) PutSyncCode(ctx context.Context, code remote.SyncCode) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sync_codes (code, owner, created_at, expires_at) VALUES ($1, $2, $3, $4)",
		code.Code, code.Owner, code.CreatedAt.UTC(), code.ExpiresAt.UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return remote.ErrCodeExists
		}
		return fmt.Errorf("failed to store sync code: %w", err)
	}
	return nil
}

func (s *Store) LookupSyncCode(ctx context.Context, code string, now time.Time) (string, error) {
	var owner string
	err := s.db.QueryRowContext(ctx,
		"SELECT owner FROM sync_codes WHERE code = $1 AND expires_at > $2", code, now.UTC()).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", remote.ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up sync code: %w", err)
	}
	return owner, nil
}

func (s *Store) PurgeExpiredCodes(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sync_codes WHERE expires_at <= $1", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge sync codes: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
