// internal/store/store.go
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/triage-cli/api/schemas"
	"github.com/xkilldash9x/triage-cli/internal/diagnostics"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store persists processed diagnostic errors to PostgreSQL. It satisfies
// diagnostics.HistoryStore.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a store and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const insertDiagnosticSQL = `
    INSERT INTO diagnostic_errors
        (id, component, operation, message, original_error, execution_time_ms,
         memory_usage, performance_impact, suggestions, context, created_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`

// SaveDiagnostic inserts one processed diagnostic error. Suggestions and
// free-form context are stored as jsonb.
func (s *Store) SaveDiagnostic(ctx context.Context, diagErr *diagnostics.DiagnosticError) error {
	suggestions, err := json.Marshal(diagErr.Suggestions)
	if err != nil {
		return fmt.Errorf("failed to marshal suggestions: %w", err)
	}
	if string(suggestions) == "null" {
		suggestions = []byte("[]")
	}
	errCtx, err := json.Marshal(diagErr.Context)
	if err != nil {
		return fmt.Errorf("failed to marshal error context: %w", err)
	}
	if string(errCtx) == "null" {
		errCtx = []byte("{}")
	}

	originalError := ""
	if diagErr.OriginalError != nil {
		originalError = diagErr.OriginalError.Error()
	}

	_, err = s.pool.Exec(ctx, insertDiagnosticSQL,
		uuid.NewString(),
		string(diagErr.Component),
		diagErr.Operation,
		diagErr.Message,
		originalError,
		diagErr.ExecutionTime.Milliseconds(),
		diagErr.MemoryUsage,
		string(diagErr.PerformanceImpact),
		suggestions,
		errCtx,
		diagErr.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert diagnostic error: %w", err)
	}
	return nil
}

// StoredDiagnostic is the row shape read back out of the history table.
type StoredDiagnostic struct {
	ID                string
	Component         schemas.Component
	Operation         string
	Message           string
	OriginalError     string
	ExecutionTime     time.Duration
	MemoryUsage       uint64
	PerformanceImpact schemas.PerformanceImpact
	Suggestions       []string
	CreatedAt         time.Time
}

// RecentDiagnostics returns errors for one component and operation recorded
// at or after since, oldest first. It backs cross-process recurrence
// analysis, where the in-memory history of a single run is not enough.
func (s *Store) RecentDiagnostics(ctx context.Context, component schemas.Component, operation string, since time.Time) ([]StoredDiagnostic, error) {
	query := `
        SELECT id, component, operation, message, original_error, execution_time_ms,
               memory_usage, performance_impact, suggestions, created_at
        FROM diagnostic_errors
        WHERE component = $1 AND operation = $2 AND created_at >= $3
        ORDER BY created_at ASC;
    `
	rows, err := s.pool.Query(ctx, query, string(component), operation, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostic errors: %w", err)
	}
	defer rows.Close()

	var out []StoredDiagnostic
	for rows.Next() {
		var (
			rec             StoredDiagnostic
			componentStr    string
			impactStr       string
			executionTimeMs int64
			suggestionsRaw  []byte
		)
		err := rows.Scan(
			&rec.ID, &componentStr, &rec.Operation, &rec.Message, &rec.OriginalError,
			&executionTimeMs, &rec.MemoryUsage, &impactStr, &suggestionsRaw, &rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic row: %w", err)
		}
		rec.Component = schemas.Component(componentStr)
		rec.PerformanceImpact = schemas.PerformanceImpact(impactStr)
		rec.ExecutionTime = time.Duration(executionTimeMs) * time.Millisecond
		if len(suggestionsRaw) > 0 {
			if err := json.Unmarshal(suggestionsRaw, &rec.Suggestions); err != nil {
				return nil, fmt.Errorf("failed to decode suggestions for row %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return out, nil
}
