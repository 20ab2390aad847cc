package catalogprov

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"pkt.systems/canopy/core"
	"pkt.systems/canopy/internal/catalog"
	"pkt.systems/canopy/internal/catalogchan"
	"pkt.systems/canopy/schema"
)

func seededChannel(t *testing.T) core.Channel {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := store.Seed(context.Background(), catalog.DemoSeed()); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	return catalogchan.New(store)
}

func TestDescribe(t *testing.T) {
	info := New(Options{}).Describe()

	if info.Name != Name {
		t.Fatalf("expected provider name %s, got %s", Name, info.Name)
	}
	if !info.IsParentType(TypeDatabase) || !info.IsParentType(TypeTable) {
		t.Fatalf("expected database and table to be parent types, got %v", info.ParentTypes)
	}
	if info.IsParentType(TypeColumn) {
		t.Fatalf("columns must be leaves")
	}
	if info.TypeInfo[TypeTable] != "table-schema" {
		t.Fatalf("expected table-schema renderer on tables, got %q", info.TypeInfo[TypeTable])
	}
	if len(info.TypeMenus[TypeTable]) == 0 {
		t.Fatalf("expected table menu items")
	}
}

func TestFetchRootsListsDatabases(t *testing.T) {
	ch := seededChannel(t)
	provider := New(Options{})

	nodes, err := provider.FetchRoots(context.Background(), ch)
	if err != nil {
		t.Fatalf("fetch roots: %v", err)
	}
	if len(nodes) != 19 {
		t.Fatalf("expected 19 databases, got %d", len(nodes))
	}
	first := nodes[0]
	if first.Name != "CDM_Database" || first.Type != TypeDatabase {
		t.Fatalf("unexpected first node: %+v", first)
	}
	wantID := schema.ChildID(schema.RootID(Name), "CDM_Database")
	if first.ID != wantID {
		t.Fatalf("expected id %s, got %s", wantID, first.ID)
	}
	if first.Loaded() {
		t.Fatalf("shallow roots must leave children unloaded")
	}
}

func TestFetchRootsDeepInlinesTables(t *testing.T) {
	ch := seededChannel(t)
	provider := New(Options{Deep: true})

	nodes, err := provider.FetchRoots(context.Background(), ch)
	if err != nil {
		t.Fatalf("fetch roots: %v", err)
	}
	first := nodes[0]
	if !first.Loaded() {
		t.Fatalf("deep roots must inline table children")
	}
	if len(first.Children) != 22 {
		t.Fatalf("expected 22 tables under CDM_Database, got %d", len(first.Children))
	}
	table := first.Children[0]
	if table.Type != TypeTable || table.Name != "person" {
		t.Fatalf("unexpected first table: %+v", table)
	}
	ref, ok := table.Data.(TableRef)
	if !ok || ref.Database != "CDM_Database" || ref.Table != "person" {
		t.Fatalf("expected table ref payload, got %#v", table.Data)
	}
	if table.Loaded() {
		t.Fatalf("inlined tables must leave columns unloaded")
	}
}

func TestFetchChildrenOfDatabase(t *testing.T) {
	ch := seededChannel(t)
	provider := New(Options{})

	parent := &schema.TreeNode{
		ID:   schema.ChildID(schema.RootID(Name), "Vocabulary"),
		Name: "Vocabulary",
		Type: TypeDatabase,
	}
	nodes, err := provider.FetchChildren(context.Background(), parent, ch)
	if err != nil {
		t.Fatalf("fetch children: %v", err)
	}
	if len(nodes) != 10 || nodes[0].Name != "concept" {
		t.Fatalf("unexpected tables: got %d, first %s", len(nodes), nodes[0].Name)
	}
}

func TestFetchChildrenOfTable(t *testing.T) {
	ch := seededChannel(t)
	provider := New(Options{})

	dbID := schema.ChildID(schema.RootID(Name), "CDM_Database")
	parent := &schema.TreeNode{
		ID:   schema.ChildID(dbID, "death"),
		Name: "death",
		Type: TypeTable,
		Data: TableRef{Database: "CDM_Database", Table: "death"},
	}
	nodes, err := provider.FetchChildren(context.Background(), parent, ch)
	if err != nil {
		t.Fatalf("fetch children: %v", err)
	}
	if len(nodes) != 11 {
		t.Fatalf("expected 11 columns, got %d", len(nodes))
	}
	col := nodes[0]
	if col.Type != TypeColumn || col.Name != "death_id" {
		t.Fatalf("unexpected first column: %+v", col)
	}
	meta, ok := col.Data.(ColumnMeta)
	if !ok || meta.Type != "bigint" || !meta.PrimaryKey {
		t.Fatalf("expected column meta payload, got %#v", col.Data)
	}
}

func TestFetchChildrenOfTableMissingRef(t *testing.T) {
	ch := seededChannel(t)
	provider := New(Options{})

	parent := &schema.TreeNode{ID: "x", Name: "death", Type: TypeTable}
	if _, err := provider.FetchChildren(context.Background(), parent, ch); !errors.Is(err, errMissingRef) {
		t.Fatalf("expected missing ref error, got %v", err)
	}
}

func TestFetchChildrenOfLeafType(t *testing.T) {
	ch := seededChannel(t)
	provider := New(Options{})

	parent := &schema.TreeNode{ID: "x", Name: "c", Type: TypeColumn}
	if _, err := provider.FetchChildren(context.Background(), parent, ch); !errors.Is(err, schema.ErrNoChildFetch) {
		t.Fatalf("expected ErrNoChildFetch, got %v", err)
	}
}

func TestFetchRootsBadPayload(t *testing.T) {
	provider := New(Options{})

	_, err := provider.FetchRoots(context.Background(), garbageChannel{})
	var shape *core.DataShapeError
	if !errors.As(err, &shape) {
		t.Fatalf("expected DataShapeError, got %v", err)
	}
	if core.Retryable(err) {
		t.Fatalf("payload shape errors must not be retryable")
	}
}

type garbageChannel struct{}

func (garbageChannel) Execute(context.Context, core.ExecuteRequest) (core.ExecuteResponse, error) {
	return core.ExecuteResponse{Data: []byte("{not json")}, nil
}
