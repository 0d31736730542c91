package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/es0612/health-insight-go/internal/models"
)

// ErrRecordNotFound is returned when a record does not exist or belongs to
// another user.
var ErrRecordNotFound = errors.New("health record not found")

// DatabasePool defines the interface for database pool operations.
// This interface allows for both real pool and mock pool implementations.
type DatabasePool interface {
	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	// Exec executes a query without returning any rows.
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// HealthRecordRepository handles database operations for health records.
type HealthRecordRepository struct {
	pool DatabasePool
}

// NewHealthRecordRepository creates a new health record repository.
func NewHealthRecordRepository(pool DatabasePool) *HealthRecordRepository {
	return &HealthRecordRepository{
		pool: pool,
	}
}

// InsertRecord stores a new measurement for a user and returns the stored row.
// Records without an explicit source are treated as manual entries.
func (r *HealthRecordRepository) InsertRecord(ctx context.Context, userID uuid.UUID, req models.HealthRecordRequest) (*models.HealthRecord, error) {
	source := req.Source
	if source == "" {
		source = models.SourceManual
	}

	query := `
		INSERT INTO health_records (user_id, kind, value, unit, recorded_at, source)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, user_id, kind, value, unit, recorded_at, source, created_at
	`

	var record models.HealthRecord
	err := r.pool.QueryRow(ctx, query, userID, string(req.Kind), req.Value, req.Unit, req.RecordedAt, string(source)).Scan(
		&record.ID,
		&record.UserID,
		&record.Kind,
		&record.Value,
		&record.Unit,
		&record.RecordedAt,
		&record.Source,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert health record: %w", err)
	}

	return &record, nil
}

// GetRecordsByKind returns a user's records for one metric kind recorded in
// [from, to), ordered by recording time ascending.
func (r *HealthRecordRepository) GetRecordsByKind(ctx context.Context, userID uuid.UUID, kind models.MetricKind, from, to time.Time) ([]models.HealthRecord, error) {
	query := `
		SELECT id, user_id, kind, value, unit, recorded_at, source, created_at
		FROM health_records
		WHERE user_id = $1 AND kind = $2 AND recorded_at >= $3 AND recorded_at < $4
		ORDER BY recorded_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, string(kind), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get health records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetRecordsByKinds returns a user's records for several metric kinds in one
// query, ordered by kind and then recording time ascending.
func (r *HealthRecordRepository) GetRecordsByKinds(ctx context.Context, userID uuid.UUID, kinds []models.MetricKind, from, to time.Time) ([]models.HealthRecord, error) {
	names := make([]string, len(kinds))
	for i, kind := range kinds {
		names[i] = string(kind)
	}

	query := `
		SELECT id, user_id, kind, value, unit, recorded_at, source, created_at
		FROM health_records
		WHERE user_id = $1 AND kind = ANY($2) AND recorded_at >= $3 AND recorded_at < $4
		ORDER BY kind ASC, recorded_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID, names, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get health records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// DeleteRecord removes one record owned by the user.
func (r *HealthRecordRepository) DeleteRecord(ctx context.Context, userID, recordID uuid.UUID) error {
	query := `
		DELETE FROM health_records
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.pool.Exec(ctx, query, recordID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete health record: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("record %s: %w", recordID, ErrRecordNotFound)
	}

	return nil
}

func scanRecords(rows pgx.Rows) ([]models.HealthRecord, error) {
	var records []models.HealthRecord
	for rows.Next() {
		var record models.HealthRecord
		err := rows.Scan(
			&record.ID,
			&record.UserID,
			&record.Kind,
			&record.Value,
			&record.Unit,
			&record.RecordedAt,
			&record.Source,
			&record.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan health record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating health records: %w", err)
	}

	return records, nil
}
