package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fern-energy/gridbase/internal/schema"
)

// testCatalog returns the embedded catalog shared by store tests.
func testCatalog(t *testing.T) *schema.Catalog {
	t.Helper()
	cat, err := schema.Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}
	return cat
}

// newTestStore opens an initialized store on a fresh temp database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), testCatalog(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	return s
}

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path, testCatalog(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_NilCatalog(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	if err == nil {
		t.Error("expected error for nil catalog, got nil")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat := testCatalog(t)

	s1, err := Open(path, cat)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if err := s1.Init(context.Background()); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	s1.Close()

	// Reopen and verify the seeded rows survived
	s2, err := Open(path, cat)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	var count int
	if err := s2.db.QueryRow("SELECT COUNT(*) FROM t_class").Scan(&count); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if count != len(cat.Classes) {
		t.Errorf("t_class rows = %d, want %d", count, len(cat.Classes))
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	cat := testCatalog(t)

	for i := 0; i < 3; i++ {
		s, err := Open(path, cat)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path, cat)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{
		"t_config", "t_unit", "t_class", "t_category", "t_object",
		"t_collection", "t_property", "t_attribute", "t_attribute_data",
		"t_membership", "t_data", "t_band", "t_date_from", "t_date_to",
		"t_text", "t_memo_data", "t_action", "t_tag",
	}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db", testCatalog(t))
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragma_JournalMode(t *testing.T) {
	s := newTestStore(t)
	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	s := newTestStore(t)
	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	s := newTestStore(t)
	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	s := newTestStore(t)
	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

func TestNoSpaceCollation(t *testing.T) {
	s := newTestStore(t)

	// Exported model files declare NOSPACE on name columns; the driver
	// must supply it for such files to open at all.
	var equal int
	err := s.db.QueryRow(`SELECT 'Max Capacity' = 'MaxCapacity' COLLATE NOSPACE`).Scan(&equal)
	if err != nil {
		t.Fatalf("NOSPACE comparison failed: %v", err)
	}
	if equal != 1 {
		t.Error("NOSPACE collation should ignore spaces")
	}
}

func TestInit_SeedsCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cat := s.Catalog()

	counts := map[string]int{
		"t_unit":       len(cat.Units),
		"t_class":      len(cat.Classes),
		"t_collection": len(cat.Collections),
		"t_property":   len(cat.Properties),
		"t_attribute":  len(cat.Attributes),
	}
	for table, want := range counts {
		var got int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&got); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if got != want {
			t.Errorf("%s rows = %d, want %d", table, got, want)
		}
	}
}

func TestInit_CreatesSystemObject(t *testing.T) {
	s := newTestStore(t)

	obj, err := s.GetObject(context.Background(), schema.SystemClassName, schema.SystemObjectName)
	if err != nil {
		t.Fatalf("GetObject(System) failed: %v", err)
	}
	if obj.Category != DefaultCategoryName {
		t.Errorf("System category = %q, want %q", obj.Category, DefaultCategoryName)
	}
	if obj.GUID == "" {
		t.Error("System object has no GUID")
	}
}

func TestInit_RecordsVersion(t *testing.T) {
	s := newTestStore(t)

	version, err := s.Version(context.Background())
	if err != nil {
		t.Fatalf("Version() failed: %v", err)
	}
	if version != s.Catalog().Version {
		t.Errorf("Version() = %q, want %q", version, s.Catalog().Version)
	}
}

func TestInit_Twice(t *testing.T) {
	s := newTestStore(t)

	err := s.Init(context.Background())
	if !IsConflict(err) {
		t.Errorf("second Init() = %v, want conflict", err)
	}
}

func TestInitialized(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, testCatalog(t))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	ok, err := s.Initialized(ctx)
	if err != nil {
		t.Fatalf("Initialized() failed: %v", err)
	}
	if ok {
		t.Error("fresh database should not be initialized")
	}

	if err := s.Init(ctx); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	ok, err = s.Initialized(ctx)
	if err != nil {
		t.Fatalf("Initialized() failed: %v", err)
	}
	if !ok {
		t.Error("database should be initialized after Init")
	}
}
