package namespace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository defines the interface for namespace persistence operations.
// This abstraction allows for different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
type Repository interface {
	// CreateObjectIfNotExists inserts an object unless one already exists
	// at the same path. Returns true if the object was created.
	CreateObjectIfNotExists(ctx context.Context, obj Object) (bool, error)

	// UpsertState writes the current value of a leaf, creating or
	// replacing the state row.
	UpsertState(ctx context.Context, path, value string, ack bool) error

	// GetState retrieves the stored value of a leaf.
	// Returns ErrLeafNotFound if no state exists at the path.
	GetState(ctx context.Context, path string) (string, error)

	// ListObjects retrieves all objects, used to warm the in-memory
	// object set on startup.
	ListObjects(ctx context.Context) ([]Object, error)

	// CountStates returns the number of persisted leaves.
	CountStates(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// namespace migrations applied.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateObjectIfNotExists inserts an object unless one already exists.
func (r *SQLiteRepository) CreateObjectIfNotExists(ctx context.Context, obj Object) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO objects (path, type, name, role, value_type, writable, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO NOTHING`,
		obj.Path, string(obj.Type), obj.Name, obj.Role, string(obj.ValueType), boolToInt(obj.Writable), now, now,
	)
	if err != nil {
		return false, fmt.Errorf("creating object %s: %w", obj.Path, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking object insert: %w", err)
	}
	return n > 0, nil
}

// UpsertState writes the current value of a leaf.
func (r *SQLiteRepository) UpsertState(ctx context.Context, path, value string, ack bool) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO states (path, value, ack, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET value = excluded.value, ack = excluded.ack, updated_at = excluded.updated_at`,
		path, value, boolToInt(ack), now,
	)
	if err != nil {
		return fmt.Errorf("upserting state %s: %w", path, err)
	}
	return nil
}

// GetState retrieves the stored value of a leaf.
func (r *SQLiteRepository) GetState(ctx context.Context, path string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		"SELECT value FROM states WHERE path = ?", path,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrLeafNotFound
		}
		return "", fmt.Errorf("querying state %s: %w", path, err)
	}
	return value, nil
}

// ListObjects retrieves all objects ordered by path.
func (r *SQLiteRepository) ListObjects(ctx context.Context) ([]Object, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT path, type, name, role, value_type, writable FROM objects ORDER BY path",
	)
	if err != nil {
		return nil, fmt.Errorf("querying objects: %w", err)
	}
	defer rows.Close()

	var objects []Object
	for rows.Next() {
		var obj Object
		var typ, valueType string
		var writable int
		if err := rows.Scan(&obj.Path, &typ, &obj.Name, &obj.Role, &valueType, &writable); err != nil {
			return nil, fmt.Errorf("scanning object row: %w", err)
		}
		obj.Type = ObjectType(typ)
		obj.ValueType = ValueType(valueType)
		obj.Writable = writable != 0
		objects = append(objects, obj)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating objects: %w", err)
	}
	return objects, nil
}

// CountStates returns the number of persisted leaves.
func (r *SQLiteRepository) CountStates(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM states").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting states: %w", err)
	}
	return count, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
