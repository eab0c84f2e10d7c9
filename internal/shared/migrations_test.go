package shared

import (
	"database/sql"
	"errors"
	"path/filepath"
	"slices"
	"testing"
)

func openMigrated(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDatabase(DatabaseConfig{Path: filepath.Join(t.TempDir(), "shelf.db"), MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func tableExists(t *testing.T, db *sql.DB, kind, name string) bool {
	t.Helper()
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?", kind, name).Scan(&n); err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return n == 1
}

func TestParseMigrationName(t *testing.T) {
	tc := []struct {
		name      string
		version   int
		direction string
		ok        bool
	}{
		{name: "0000_create_sessions_up.sql", version: 0, direction: "up", ok: true},
		{name: "0012_add_index_down.sql", version: 12, direction: "down", ok: true},
		{name: "0001_sideways.sql"},
		{name: "notes_up.sql"},
		{name: "0001_create_up.txt"},
		{name: "README.sql"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			version, direction, ok := parseMigrationName(tt.name)
			if ok != tt.ok || version != tt.version || direction != tt.direction {
				t.Errorf("parseMigrationName(%q) = %d, %q, %v; want %d, %q, %v",
					tt.name, version, direction, ok, tt.version, tt.direction, tt.ok)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	script := `-- header comment
CREATE TABLE a (id TEXT); -- trailing

CREATE INDEX idx_a ON a(id);
;`
	got := splitStatements(script)
	want := []string{"CREATE TABLE a (id TEXT)", "CREATE INDEX idx_a ON a(id)"}
	if !slices.Equal(got, want) {
		t.Errorf("splitStatements() = %q, want %q", got, want)
	}
}

func TestSessionsSchema(t *testing.T) {
	t.Run("embedded migrations pair up", func(t *testing.T) {
		migrations, err := loadMigrations()
		if err != nil {
			t.Fatalf("failed to load migrations: %v", err)
		}
		if len(migrations) == 0 || migrations[0].Version != 0 {
			t.Fatalf("expected the sessions migration at version 0, got %+v", migrations)
		}
	})

	t.Run("creates sessions table and index", func(t *testing.T) {
		db := openMigrated(t)

		if !tableExists(t, db, "table", "sessions") {
			t.Error("expected sessions table")
		}
		if !tableExists(t, db, "index", "idx_sessions_updated_at") {
			t.Error("expected idx_sessions_updated_at index")
		}

		rows, err := db.Query("SELECT name, \"notnull\" FROM pragma_table_info('sessions')")
		if err != nil {
			t.Fatalf("failed to read columns: %v", err)
		}
		defer rows.Close()

		columns := map[string]bool{}
		for rows.Next() {
			var name string
			var notNull bool
			if err := rows.Scan(&name, &notNull); err != nil {
				t.Fatalf("scan failed: %v", err)
			}
			columns[name] = notNull
		}
		for _, col := range []string{"id", "uid", "email", "name", "refresh_token", "created_at", "updated_at"} {
			notNull, ok := columns[col]
			if !ok {
				t.Errorf("missing column %s", col)
				continue
			}
			if col != "id" && !notNull {
				t.Errorf("expected %s to be NOT NULL", col)
			}
		}
	})

	t.Run("name defaults to empty", func(t *testing.T) {
		db := openMigrated(t)

		_, err := db.Exec(`INSERT INTO sessions (id, uid, email, refresh_token, created_at, updated_at)
			VALUES ('s1', 'uid-1', 'ada@example.com', 'rt', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		var name string
		if err := db.QueryRow("SELECT name FROM sessions WHERE id = 's1'").Scan(&name); err != nil {
			t.Fatalf("select failed: %v", err)
		}
		if name != "" {
			t.Errorf("expected empty name, got %q", name)
		}
	})

	t.Run("reopening does not reapply", func(t *testing.T) {
		db := openMigrated(t)
		if err := RunMigrations(db); err != nil {
			t.Fatalf("second run failed: %v", err)
		}

		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&n); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		migrations, _ := loadMigrations()
		if n != len(migrations) {
			t.Errorf("expected %d recorded migrations, got %d", len(migrations), n)
		}
	})

	t.Run("rollback drops sessions", func(t *testing.T) {
		db := openMigrated(t)

		if err := RollbackMigration(db); err != nil {
			t.Fatalf("rollback failed: %v", err)
		}
		if tableExists(t, db, "table", "sessions") {
			t.Error("expected sessions table to be dropped")
		}
		if tableExists(t, db, "index", "idx_sessions_updated_at") {
			t.Error("expected index to be dropped")
		}

		if err := RollbackMigration(db); !errors.Is(err, ErrNoMigrations) {
			t.Errorf("expected ErrNoMigrations, got %v", err)
		}
		if err := RunMigrations(db); err != nil {
			t.Fatalf("migrating again failed: %v", err)
		}
		if !tableExists(t, db, "table", "sessions") {
			t.Error("expected sessions table after migrating again")
		}
	})

	t.Run("rollback on an empty database", func(t *testing.T) {
		db, err := NewDatabase(filepath.Join(t.TempDir(), "empty.db"))
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		defer db.Close()

		if err := RollbackMigration(db); !errors.Is(err, ErrNoMigrations) {
			t.Errorf("expected ErrNoMigrations, got %v", err)
		}
	})
}
