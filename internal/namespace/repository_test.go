package namespace

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// setupTestDB creates an in-memory SQLite database with the namespace schema.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE objects (
			path TEXT PRIMARY KEY,
			type TEXT NOT NULL CHECK (type IN ('device', 'channel', 'state')),
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			value_type TEXT NOT NULL DEFAULT '',
			writable INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
		CREATE TABLE states (
			path TEXT PRIMARY KEY REFERENCES objects(path) ON DELETE CASCADE,
			value TEXT NOT NULL,
			ack INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestCreateObjectIfNotExists(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	obj := Object{
		Path:      "site1.ssids.office.ssid",
		Type:      TypeState,
		Name:      "ssid",
		ValueType: ValueString,
		Writable:  true,
	}

	created, err := repo.CreateObjectIfNotExists(ctx, obj)
	if err != nil {
		t.Fatalf("CreateObjectIfNotExists failed: %v", err)
	}
	if !created {
		t.Error("expected object to be created on first insert")
	}

	// Second insert with different metadata must not overwrite.
	obj.Name = "renamed"
	created, err = repo.CreateObjectIfNotExists(ctx, obj)
	if err != nil {
		t.Fatalf("CreateObjectIfNotExists failed on repeat: %v", err)
	}
	if created {
		t.Error("expected repeat insert to be a no-op")
	}

	objects, err := repo.ListObjects(ctx)
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(objects))
	}
	if objects[0].Name != "ssid" {
		t.Errorf("expected original name preserved, got %q", objects[0].Name)
	}
	if !objects[0].Writable {
		t.Error("expected writable flag to round-trip")
	}
}

func TestUpsertState(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.CreateObjectIfNotExists(ctx, Object{
		Path: "site1.clients.aa.ip", Type: TypeState, ValueType: ValueString,
	}); err != nil {
		t.Fatalf("creating object: %v", err)
	}

	if err := repo.UpsertState(ctx, "site1.clients.aa.ip", `"10.0.0.5"`, true); err != nil {
		t.Fatalf("UpsertState failed: %v", err)
	}

	value, err := repo.GetState(ctx, "site1.clients.aa.ip")
	if err != nil {
		t.Fatalf("GetState failed: %v", err)
	}
	if value != `"10.0.0.5"` {
		t.Errorf("expected stored value, got %q", value)
	}

	// Overwrite in place.
	if err := repo.UpsertState(ctx, "site1.clients.aa.ip", `"10.0.0.6"`, true); err != nil {
		t.Fatalf("UpsertState overwrite failed: %v", err)
	}
	value, err = repo.GetState(ctx, "site1.clients.aa.ip")
	if err != nil {
		t.Fatalf("GetState after overwrite failed: %v", err)
	}
	if value != `"10.0.0.6"` {
		t.Errorf("expected overwritten value, got %q", value)
	}

	count, err := repo.CountStates(ctx)
	if err != nil {
		t.Fatalf("CountStates failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 state after overwrite, got %d", count)
	}
}

func TestGetStateNotFound(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))

	_, err := repo.GetState(context.Background(), "site1.missing")
	if !errors.Is(err, ErrLeafNotFound) {
		t.Errorf("expected ErrLeafNotFound, got %v", err)
	}
}

func TestListObjectsOrdered(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()

	paths := []string{"site1.devices", "site1", "site1.clients"}
	for _, p := range paths {
		if _, err := repo.CreateObjectIfNotExists(ctx, Object{Path: p, Type: TypeChannel}); err != nil {
			t.Fatalf("creating %s: %v", p, err)
		}
	}

	objects, err := repo.ListObjects(ctx)
	if err != nil {
		t.Fatalf("ListObjects failed: %v", err)
	}
	if len(objects) != 3 {
		t.Fatalf("expected 3 objects, got %d", len(objects))
	}

	want := []string{"site1", "site1.clients", "site1.devices"}
	for i, p := range want {
		if objects[i].Path != p {
			t.Errorf("position %d: expected %s, got %s", i, p, objects[i].Path)
		}
	}
}
