package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func openSeeded(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Seed(context.Background(), DemoSeed()); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return store
}

func TestStoreListDatabasesInSeedOrder(t *testing.T) {
	store := openSeeded(t)

	names, err := store.ListDatabases(context.Background())
	if err != nil {
		t.Fatalf("list databases: %v", err)
	}
	if len(names) != 19 {
		t.Fatalf("expected 19 databases, got %d", len(names))
	}
	if names[0] != "CDM_Database" {
		t.Fatalf("expected CDM_Database first, got %s", names[0])
	}
	found := false
	for _, name := range names {
		if name == "u_mock_user__scratch" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected tenant database u_mock_user__scratch in %v", names)
	}
}

func TestStoreListTables(t *testing.T) {
	store := openSeeded(t)

	tables, err := store.ListTables(context.Background(), "CDM_Database")
	if err != nil {
		t.Fatalf("list tables: %v", err)
	}
	if len(tables) != 22 {
		t.Fatalf("expected 22 tables, got %d", len(tables))
	}
	if tables[0] != "person" || tables[len(tables)-1] != "condition_era" {
		t.Fatalf("unexpected table order: first %s last %s", tables[0], tables[len(tables)-1])
	}

	if _, err := store.ListTables(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown database, got %v", err)
	}
}

func TestStoreTableColumns(t *testing.T) {
	store := openSeeded(t)

	cols, err := store.TableColumns(context.Background(), "CDM_Database", "death")
	if err != nil {
		t.Fatalf("table columns: %v", err)
	}
	if len(cols) != 11 {
		t.Fatalf("expected 11 columns, got %d", len(cols))
	}
	if cols[0].Name != "death_id" || !cols[0].PrimaryKey || cols[0].Type != "bigint" {
		t.Fatalf("unexpected surrogate column: %+v", cols[0])
	}
	if cols[1].Name != "person_id" || cols[1].ForeignKey != "person.person_id" {
		t.Fatalf("unexpected person reference: %+v", cols[1])
	}
}

func TestStoreTableColumnsNoDuplicateNames(t *testing.T) {
	store := openSeeded(t)

	for _, table := range []string{"person", "concept", "provider", "visit_occurrence"} {
		cols, err := store.TableColumns(context.Background(), clinicalDatabaseFor(table), table)
		if err != nil {
			t.Fatalf("table columns %s: %v", table, err)
		}
		seen := make(map[string]bool)
		for _, col := range cols {
			if seen[col.Name] {
				t.Fatalf("duplicate column %s in table %s", col.Name, table)
			}
			seen[col.Name] = true
		}
		if !cols[0].PrimaryKey || cols[0].Name != table+"_id" {
			t.Fatalf("expected %s_id primary key, got %+v", table, cols[0])
		}
	}
}

func clinicalDatabaseFor(table string) string {
	if table == "concept" {
		return "Vocabulary"
	}
	return "CDM_Database"
}

func TestStoreTenantTableColumns(t *testing.T) {
	store := openSeeded(t)

	cols, err := store.TableColumns(context.Background(), "globalusers_demo_shared", "tenant_test_table")
	if err != nil {
		t.Fatalf("table columns: %v", err)
	}
	want := []Column{
		{Name: "id", Type: "bigint", PrimaryKey: true},
		{Name: "name", Type: "varchar", Nullable: true},
		{Name: "age", Type: "integer", Nullable: true},
	}
	if len(cols) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(cols))
	}
	for i, col := range cols {
		if col != want[i] {
			t.Fatalf("column %d: expected %+v, got %+v", i, want[i], col)
		}
	}

	if _, err := store.TableColumns(context.Background(), "globalusers_demo_shared", "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown table, got %v", err)
	}
}

func TestStoreFallbackColumnsForUnlistedTables(t *testing.T) {
	store := openSeeded(t)

	cols, err := store.TableColumns(context.Background(), "u_mock_user__my_project", "plots")
	if err != nil {
		t.Fatalf("table columns: %v", err)
	}
	if len(cols) != 5 {
		t.Fatalf("expected 5 fallback columns, got %d", len(cols))
	}
	if cols[0].Name != "id" || cols[4].Name != "updated_at" {
		t.Fatalf("unexpected fallback columns: first %s last %s", cols[0].Name, cols[4].Name)
	}
}

func TestStoreReseedReplacesContents(t *testing.T) {
	store := openSeeded(t)

	err := store.Seed(context.Background(), []SeedDatabase{
		{Name: "only", Tables: []SeedTable{{Name: "t", Columns: []Column{{Name: "id", Type: "bigint", PrimaryKey: true}}}}},
	})
	if err != nil {
		t.Fatalf("reseed: %v", err)
	}
	names, err := store.ListDatabases(context.Background())
	if err != nil {
		t.Fatalf("list databases: %v", err)
	}
	if len(names) != 1 || names[0] != "only" {
		t.Fatalf("expected reseeded catalog [only], got %v", names)
	}
}

func TestStoreClosed(t *testing.T) {
	store, err := Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if _, err := store.ListDatabases(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := store.Seed(context.Background(), DemoSeed()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed from seed, got %v", err)
	}
}
