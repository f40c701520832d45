package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/raaihank/docsentry/internal/pii"
)

// Store persists findings in PostgreSQL. Findings are immutable once
// inserted; the only mutations are exact-match deletion and a full wipe.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Config contains database configuration
type Config struct {
	DatabaseURL     string        `yaml:"database_url" mapstructure:"database_url"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

// Stats contains store-level finding counts
type Stats struct {
	Total  int64            `json:"total"`
	ByType map[string]int64 `json:"by_type"`
}

const schema = `
CREATE TABLE IF NOT EXISTS findings (
	id         BIGSERIAL PRIMARY KEY,
	file_name  TEXT        NOT NULL,
	pii_type   TEXT        NOT NULL,
	pii_value  TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_findings_file_value ON findings (file_name, pii_value);
`

// NewStore creates a new findings store instance
func NewStore(config *Config, logger *zap.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	store := &Store{
		db:     db,
		logger: logger,
	}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	logger.Info("Findings store initialized successfully",
		zap.String("database_url", maskDatabaseURL(config.DatabaseURL)),
		zap.Int("max_open_conns", config.MaxOpenConns),
		zap.Int("max_idle_conns", config.MaxIdleConns))

	return store, nil
}

// initialize checks the database connection and creates the schema
func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// InsertMany persists findings and returns copies carrying the
// store-assigned identifiers, in insertion order.
func (s *Store) InsertMany(ctx context.Context, findings []pii.Finding) ([]pii.Finding, error) {
	if len(findings) == 0 {
		return []pii.Finding{}, nil
	}

	valueStrings := make([]string, 0, len(findings))
	valueArgs := make([]interface{}, 0, len(findings)*3)
	for i, f := range findings {
		valueStrings = append(valueStrings, fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3))
		valueArgs = append(valueArgs, f.FileName, string(f.Type), f.Value)
	}

	query := fmt.Sprintf(`
		INSERT INTO findings (file_name, pii_type, pii_value)
		VALUES %s
		RETURNING id::text`,
		strings.Join(valueStrings, ","))

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, valueArgs...)
	if err != nil {
		s.logger.Error("Failed to insert findings", zap.Error(err), zap.Int("count", len(findings)))
		return nil, fmt.Errorf("failed to insert findings: %w", err)
	}
	defer rows.Close()

	stored := make([]pii.Finding, 0, len(findings))
	i := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan inserted id: %w", err)
		}
		f := findings[i]
		f.ID = id
		stored = append(stored, f)
		i++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("insert returned incomplete ids: %w", err)
	}

	s.logger.Debug("Findings inserted",
		zap.Int("count", len(stored)),
		zap.Duration("duration", time.Since(start)))

	return stored, nil
}

// FindAll returns persisted findings in insertion order, capped at limit.
func (s *Store) FindAll(ctx context.Context, limit int) ([]pii.Finding, error) {
	findings := []pii.Finding{}
	query := `
		SELECT id::text AS id, file_name, pii_type, pii_value
		FROM findings
		ORDER BY id
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &findings, query, limit); err != nil {
		s.logger.Error("Failed to fetch findings", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch findings: %w", err)
	}

	return findings, nil
}

// FindPage returns one page of findings in insertion order, for batched
// export jobs that walk the whole table.
func (s *Store) FindPage(ctx context.Context, limit, offset int64) ([]pii.Finding, error) {
	findings := []pii.Finding{}
	query := `
		SELECT id::text AS id, file_name, pii_type, pii_value
		FROM findings
		ORDER BY id
		LIMIT $1 OFFSET $2`

	if err := s.db.SelectContext(ctx, &findings, query, limit, offset); err != nil {
		s.logger.Error("Failed to fetch findings page", zap.Error(err))
		return nil, fmt.Errorf("failed to fetch findings page: %w", err)
	}

	return findings, nil
}

// DeleteByMatch removes one finding matching (fileName, piiValue) exactly,
// mirroring the single-record deletion the API exposes. Returns the number
// of rows removed (0 or 1).
func (s *Store) DeleteByMatch(ctx context.Context, fileName, piiValue string) (int64, error) {
	query := `
		DELETE FROM findings
		WHERE id = (
			SELECT id FROM findings
			WHERE file_name = $1 AND pii_value = $2
			ORDER BY id
			LIMIT 1
		)`

	res, err := s.db.ExecContext(ctx, query, fileName, piiValue)
	if err != nil {
		s.logger.Error("Failed to delete finding",
			zap.Error(err),
			zap.String("file_name", fileName))
		return 0, fmt.Errorf("failed to delete finding: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}

	return deleted, nil
}

// DeleteAll wipes the findings collection and returns the removed count.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM findings`)
	if err != nil {
		s.logger.Error("Failed to delete all findings", zap.Error(err))
		return 0, fmt.Errorf("failed to delete all findings: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}

	s.logger.Info("All findings deleted", zap.Int64("count", deleted))
	return deleted, nil
}

// GetStats returns finding counts, overall and per category.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByType: make(map[string]int64)}

	rows, err := s.db.QueryContext(ctx, `SELECT pii_type, COUNT(*) FROM findings GROUP BY pii_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to get finding stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var piiType string
		var count int64
		if err := rows.Scan(&piiType, &count); err != nil {
			return nil, fmt.Errorf("failed to scan finding stats: %w", err)
		}
		stats.ByType[piiType] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read finding stats: %w", err)
	}

	return stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks sensitive information in database URL for logging
func maskDatabaseURL(url string) string {
	// Simple masking - replace password with ***
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
