package tenantprov

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

func demoProvider() *Provider {
	return New(Options{User: catalog.DemoUser, Groups: catalog.DemoGroups()})
}

func TestGroupsForDedupesReadOnlyVariants(t *testing.T) {
	specs := groupsFor("mock_user", []string{"kbase", "kbasero", "globalusers", "globalusersro", "demo"})

	want := []groupSpec{
		{Name: "My Data", Prefix: "u_mock_user__"},
		{Name: "kbase", Prefix: "kbase_"},
		{Name: "globalusers", Prefix: "globalusers_"},
		{Name: "demo", Prefix: "demo_"},
	}
	if len(specs) != len(want) {
		t.Fatalf("expected %d groups, got %d: %v", len(want), len(specs), specs)
	}
	for i, spec := range specs {
		if spec != want[i] {
			t.Fatalf("group %d: expected %+v, got %+v", i, want[i], spec)
		}
	}
}

func TestGroupsForReadOnlyOnlyMembership(t *testing.T) {
	specs := groupsFor("", []string{"kbasero"})
	if len(specs) != 1 || specs[0].Name != "kbase" || specs[0].Prefix != "kbase_" {
		t.Fatalf("expected read-only membership to resolve to kbase, got %v", specs)
	}
}

func TestFetchRootsListsGroups(t *testing.T) {
	provider := demoProvider()

	nodes, err := provider.FetchRoots(context.Background(), nil)
	if err != nil {
		t.Fatalf("fetch roots: %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("expected 4 groups, got %d", len(nodes))
	}
	first := nodes[0]
	if first.Name != "My Data" || first.Type != TypeGroup {
		t.Fatalf("unexpected first group: %+v", first)
	}
	ref, ok := first.Data.(GroupRef)
	if !ok || ref.Prefix != "u_mock_user__" {
		t.Fatalf("expected group ref payload, got %#v", first.Data)
	}
	if first.Loaded() {
		t.Fatalf("group children must start unloaded")
	}
}

func TestFetchChildrenOfGroupFiltersByPrefix(t *testing.T) {
	ch := seededChannel(t)
	provider := demoProvider()

	roots, err := provider.FetchRoots(context.Background(), ch)
	if err != nil {
		t.Fatalf("fetch roots: %v", err)
	}
	myData := roots[0]

	nodes, err := provider.FetchChildren(context.Background(), myData, ch)
	if err != nil {
		t.Fatalf("fetch children: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 user databases, got %d", len(nodes))
	}
	if nodes[0].Name != "scratch" || nodes[1].Name != "my_project" {
		t.Fatalf("expected prefix-stripped names, got %s and %s", nodes[0].Name, nodes[1].Name)
	}
	ref, ok := nodes[0].Data.(DatabaseRef)
	if !ok || ref.Database != "u_mock_user__scratch" {
		t.Fatalf("expected physical database name in payload, got %#v", nodes[0].Data)
	}
}

func TestFetchChildrenOfTenantGroup(t *testing.T) {
	ch := seededChannel(t)
	provider := demoProvider()

	roots, _ := provider.FetchRoots(context.Background(), ch)
	kbase := roots[1]

	nodes, err := provider.FetchChildren(context.Background(), kbase, ch)
	if err != nil {
		t.Fatalf("fetch children: %v", err)
	}
	want := []string{"cdm", "vocabulary", "genomics"}
	if len(nodes) != len(want) {
		t.Fatalf("expected %d kbase databases, got %d", len(want), len(nodes))
	}
	for i, node := range nodes {
		if node.Name != want[i] {
			t.Fatalf("database %d: expected %s, got %s", i, want[i], node.Name)
		}
	}
}

func TestFetchChildrenOfDatabase(t *testing.T) {
	ch := seededChannel(t)
	provider := demoProvider()

	parent := &schema.TreeNode{
		ID:   "g/kbase_cdm",
		Name: "cdm",
		Type: TypeDatabase,
		Data: DatabaseRef{Database: "kbase_cdm"},
	}
	nodes, err := provider.FetchChildren(context.Background(), parent, ch)
	if err != nil {
		t.Fatalf("fetch children: %v", err)
	}
	if len(nodes) != 12 || nodes[0].Name != "person" {
		t.Fatalf("unexpected kbase_cdm tables: got %d, first %s", len(nodes), nodes[0].Name)
	}
	ref, ok := nodes[0].Data.(TableRef)
	if !ok || ref.Database != "kbase_cdm" || ref.Table != "person" {
		t.Fatalf("expected table ref payload, got %#v", nodes[0].Data)
	}
}

func TestFetchChildrenOfTable(t *testing.T) {
	ch := seededChannel(t)
	provider := demoProvider()

	parent := &schema.TreeNode{
		ID:   "g/kbase_cdm/person",
		Name: "person",
		Type: TypeTable,
		Data: TableRef{Database: "kbase_cdm", Table: "person"},
	}
	nodes, err := provider.FetchChildren(context.Background(), parent, ch)
	if err != nil {
		t.Fatalf("fetch children: %v", err)
	}
	want := []string{"person_id", "gender_concept_id", "year_of_birth", "race_concept_id", "ethnicity_concept_id"}
	if len(nodes) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(nodes))
	}
	for i, node := range nodes {
		if node.Name != want[i] || node.Type != TypeColumn {
			t.Fatalf("column %d: expected %s, got %+v", i, want[i], node)
		}
	}
	meta, ok := nodes[0].Data.(ColumnMeta)
	if !ok || meta.Type != "bigint" || !meta.PrimaryKey {
		t.Fatalf("expected primary key meta on person_id, got %#v", nodes[0].Data)
	}
}

func TestFetchChildrenMissingRef(t *testing.T) {
	ch := seededChannel(t)
	provider := demoProvider()

	for _, node := range []*schema.TreeNode{
		{ID: "g", Name: "kbase", Type: TypeGroup},
		{ID: "d", Name: "cdm", Type: TypeDatabase},
		{ID: "t", Name: "person", Type: TypeTable},
	} {
		if _, err := provider.FetchChildren(context.Background(), node, ch); !errors.Is(err, errMissingRef) {
			t.Fatalf("expected missing ref error for %s node, got %v", node.Type, err)
		}
	}
}

func TestFetchChildrenOfLeafType(t *testing.T) {
	provider := demoProvider()

	node := &schema.TreeNode{ID: "c", Name: "person_id", Type: TypeColumn}
	if _, err := provider.FetchChildren(context.Background(), node, nil); !errors.Is(err, schema.ErrNoChildFetch) {
		t.Fatalf("expected ErrNoChildFetch, got %v", err)
	}
}

func TestFetchRootsWithoutUser(t *testing.T) {
	provider := New(Options{Groups: []string{"demo"}})

	nodes, err := provider.FetchRoots(context.Background(), nil)
	if err != nil {
		t.Fatalf("fetch roots: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Name != "demo" {
		t.Fatalf("expected a single demo group, got %v", nodes)
	}
}
