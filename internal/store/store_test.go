package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/dukerupert/famhub/internal/database"
	"github.com/dukerupert/famhub/internal/model"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

type testFamily struct {
	family *model.Family
	parent *model.Profile
	kid    *model.Profile
}

func seedFamily(t *testing.T, db *sql.DB, name string) testFamily {
	t.Helper()
	ctx := context.Background()

	f, err := NewFamilyStore(db).Create(ctx, name)
	if err != nil {
		t.Fatalf("create family: %v", err)
	}
	ps := NewProfileStore(db)
	parent, err := ps.Create(ctx, f.ID, "Mom", model.RoleParent)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	kid, err := ps.Create(ctx, f.ID, "Sam", model.RoleChild)
	if err != nil {
		t.Fatalf("create kid: %v", err)
	}
	return testFamily{family: f, parent: parent, kid: kid}
}

// backdate pins created_at so ordering assertions do not depend on the clock.
func backdate(t *testing.T, db *sql.DB, table, id, ts string) {
	t.Helper()
	if _, err := db.Exec(`UPDATE `+table+` SET created_at = ? WHERE id = ?`, ts, id); err != nil {
		t.Fatalf("backdate %s: %v", table, err)
	}
}
