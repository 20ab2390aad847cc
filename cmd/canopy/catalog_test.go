package main

import (
	"strings"
	"testing"

	"pkt.systems/canopy/internal/catalog"
)

func TestCatalogInitAndLs(t *testing.T) {
	cfgPath := writeTestConfig(t)
	runCommand(t, "catalog", "init", "-c", cfgPath)

	out := runCommand(t, "catalog", "ls", "-c", cfgPath)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 19 {
		t.Fatalf("expected 19 databases, got %d:\n%s", len(lines), out)
	}
	if lines[0] != "CDM_Database" {
		t.Fatalf("expected CDM_Database first, got %q", lines[0])
	}

	out = runCommand(t, "catalog", "ls", "-c", cfgPath, "--database", "Vocabulary")
	lines = strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 tables in Vocabulary, got %d:\n%s", len(lines), out)
	}
	if lines[0] != "concept" {
		t.Fatalf("expected concept first, got %q", lines[0])
	}

	out = runCommand(t, "catalog", "ls", "-c", cfgPath, "--database", "CDM_Database", "--table", "death")
	lines = strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 11 {
		t.Fatalf("expected 11 columns in death, got %d:\n%s", len(lines), out)
	}
	if lines[0] != "death_id bigint primary key" {
		t.Fatalf("unexpected first column line: %q", lines[0])
	}
}

func TestCatalogInitIsIdempotent(t *testing.T) {
	cfgPath := writeTestConfig(t)
	runCommand(t, "catalog", "init", "-c", cfgPath)
	runCommand(t, "catalog", "init", "-c", cfgPath)
	runCommand(t, "catalog", "init", "-c", cfgPath, "--force")

	out := runCommand(t, "catalog", "ls", "-c", cfgPath)
	if !strings.Contains(out, "CDM_Database") {
		t.Fatalf("expected seeded catalog after reseed:\n%s", out)
	}
}

func TestCatalogLsTableRequiresDatabase(t *testing.T) {
	cfgPath := writeTestConfig(t)
	root := newRootCmd()
	root.SetArgs([]string{"catalog", "ls", "-c", cfgPath, "--table", "person"})
	if err := root.Execute(); err == nil || !strings.Contains(err.Error(), "--table requires --database") {
		t.Fatalf("expected flag dependency error, got %v", err)
	}
}

func TestFormatColumn(t *testing.T) {
	tests := []struct {
		name   string
		column catalog.Column
		want   string
	}{
		{
			name:   "primary-key",
			column: catalog.Column{Name: "person_id", Type: "bigint", PrimaryKey: true},
			want:   "person_id bigint primary key",
		},
		{
			name:   "nullable",
			column: catalog.Column{Name: "end_date", Type: "date", Nullable: true},
			want:   "end_date date nullable",
		},
		{
			name:   "foreign-key",
			column: catalog.Column{Name: "person_id", Type: "bigint", ForeignKey: "person.person_id"},
			want:   "person_id bigint -> person.person_id",
		},
		{
			name:   "plain",
			column: catalog.Column{Name: "created_date", Type: "timestamp"},
			want:   "created_date timestamp",
		},
	}
	for _, tc := range tests {
		if got := formatColumn(tc.column); got != tc.want {
			t.Fatalf("%s: formatColumn = %q, want %q", tc.name, got, tc.want)
		}
	}
}
