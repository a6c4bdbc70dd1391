package columnstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on PostgreSQL using pgx.
// Bulk writes go through the COPY protocol so a full plate of columns loads
// as one streaming operation instead of row-by-row inserts.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
}

// Compile time check to ensure PostgresStore satisfies the Store interface.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store writing to schema.table.
// The table layout is (meas_id bigint, column_name text, values float4[]).
func NewPostgresStore(pool *pgxpool.Pool, schema, table string) *PostgresStore {
	if schema == "" {
		schema = "measservice"
	}
	if table == "" {
		table = "welldata"
	}
	return &PostgresStore{
		pool:  pool,
		table: pgx.Identifier{schema, table},
	}
}

// SaveBulk writes all columns in one transaction via COPY.
func (s *PostgresStore) SaveBulk(ctx context.Context, measID int64, columns map[string][]float32) error {
	if len(columns) == 0 {
		return errors.New("no measurement data provided")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Serializes concurrent bulk writes per measurement so the exists guard
	// below cannot be raced.
	if _, err := tx.Exec(ctx, "select pg_advisory_xact_lock($1)", measID); err != nil {
		return err
	}

	var count int
	err = tx.QueryRow(ctx,
		fmt.Sprintf("select count(*) from %s where meas_id = $1", s.table.Sanitize()),
		measID).Scan(&count)
	if err != nil {
		return err
	}
	if count > 0 {
		return &DataExistsError{MeasID: measID}
	}

	rows := make([][]any, 0, len(columns))
	for column, values := range columns {
		rows = append(rows, []any{measID, column, values})
	}

	if _, err := tx.CopyFrom(ctx, s.table, []string{"meas_id", "column_name", "values"}, pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("bulk load failed for meas %d: %w", measID, err)
	}
	return tx.Commit(ctx)
}

// SaveColumn inserts a single column row in its own transaction.
func (s *PostgresStore) SaveColumn(ctx context.Context, measID int64, column string, values []float32) error {
	if len(values) == 0 {
		return errors.New("no measurement data provided")
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`insert into %s (meas_id, column_name, "values") values ($1, $2, $3)`, s.table.Sanitize()),
		measID, column, values)
	return err
}

// ReadColumn returns one column, or ErrNotFound.
func (s *PostgresStore) ReadColumn(ctx context.Context, measID int64, column string) ([]float32, error) {
	var values []float32
	err := s.pool.QueryRow(ctx,
		fmt.Sprintf(`select "values" from %s where meas_id = $1 and column_name = $2`, s.table.Sanitize()),
		measID, column).Scan(&values)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return values, nil
}

// ReadAll returns all columns of a measurement.
func (s *PostgresStore) ReadAll(ctx context.Context, measID int64) (map[string][]float32, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`select column_name, "values" from %s where meas_id = $1`, s.table.Sanitize()),
		measID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]float32)
	for rows.Next() {
		var column string
		var values []float32
		if err := rows.Scan(&column, &values); err != nil {
			return nil, err
		}
		result[column] = values
	}
	return result, rows.Err()
}

// DeleteAll removes all rows of a measurement.
func (s *PostgresStore) DeleteAll(ctx context.Context, measID int64) error {
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf("delete from %s where meas_id = $1", s.table.Sanitize()),
		measID)
	return err
}
