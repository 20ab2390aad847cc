// Package catalogprov is the catalog provider: analytic databases, their
// tables and per-table columns, fetched over the catalog channel protocol.
package catalogprov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pkt.systems/canopy/core"
	"pkt.systems/canopy/internal/catalogchan"
	"pkt.systems/canopy/schema"
)

// Name is the provider's registered name and root label.
const Name schema.ProviderName = "catalog"

// Node types the provider emits.
const (
	TypeDatabase schema.NodeType = "DATABASE"
	TypeTable    schema.NodeType = "TABLE"
	TypeColumn   schema.NodeType = "COLUMN"
)

var errMissingRef = errors.New("catalog node is missing its table reference")

// TableRef locates a table in the catalog. Table nodes carry it in Data so
// child fetches know which schema to request.
type TableRef struct {
	Database string
	Table    string
}

// ColumnMeta is the payload surfaced on column nodes.
type ColumnMeta struct {
	Type       string
	Nullable   bool
	PrimaryKey bool
	ForeignKey string
}

// Options configure the provider.
type Options struct {
	// Deep inlines each database's tables in the root response, so a single
	// fetch loads two levels of the tree.
	Deep bool
}

// Provider implements core.Provider for the catalog backend.
type Provider struct {
	opts Options
}

// New constructs a catalog provider.
func New(opts Options) *Provider {
	return &Provider{opts: opts}
}

// Describe implements core.Provider.
func (p *Provider) Describe() core.ProviderInfo {
	return core.ProviderInfo{
		Name:        Name,
		Icon:        "layers",
		ParentTypes: []schema.NodeType{TypeDatabase, TypeTable},
		TypeIcons: map[schema.NodeType]schema.Icon{
			TypeDatabase: "database",
			TypeTable:    "table",
			TypeColumn:   "column",
		},
		TypeInfo: map[schema.NodeType]schema.InfoRenderer{
			TypeTable: "table-schema",
		},
		TypeMenus: map[schema.NodeType][]schema.MenuItem{
			TypeTable: {
				{ID: "copy-name", Label: "Copy table name"},
				{ID: "preview", Label: "Preview rows"},
			},
			TypeColumn: {
				{ID: "copy-name", Label: "Copy column name"},
			},
		},
	}
}

// FetchRoots implements core.Provider. It lists the catalog's databases; in
// deep mode it also inlines each database's tables one level down.
func (p *Provider) FetchRoots(ctx context.Context, ch core.Channel) ([]*schema.TreeNode, error) {
	resp, err := ch.Execute(ctx, core.ExecuteRequest{Op: catalogchan.OpListDatabases})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Databases []string `json:"databases"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, &core.DataShapeError{Provider: Name, Op: catalogchan.OpListDatabases, Err: err}
	}

	rootID := schema.RootID(Name)
	nodes := make([]*schema.TreeNode, 0, len(payload.Databases))
	for _, database := range payload.Databases {
		node := &schema.TreeNode{
			ID:   schema.ChildID(rootID, database),
			Name: database,
			Type: TypeDatabase,
		}
		if p.opts.Deep {
			tables, err := p.fetchTables(ctx, ch, node.ID, database)
			if err != nil {
				return nil, err
			}
			node.Children = tables
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// FetchChildren implements core.Provider, dispatching on node type.
func (p *Provider) FetchChildren(ctx context.Context, node *schema.TreeNode, ch core.Channel) ([]*schema.TreeNode, error) {
	switch node.Type {
	case TypeDatabase:
		return p.fetchTables(ctx, ch, node.ID, node.Name)
	case TypeTable:
		ref, ok := node.Data.(TableRef)
		if !ok {
			return nil, fmt.Errorf("node %s: %w", node.ID, errMissingRef)
		}
		return p.fetchColumns(ctx, ch, node.ID, ref)
	default:
		return nil, fmt.Errorf("%s nodes: %w", node.Type, schema.ErrNoChildFetch)
	}
}

func (p *Provider) fetchTables(ctx context.Context, ch core.Channel, parent schema.NodeID, database string) ([]*schema.TreeNode, error) {
	resp, err := ch.Execute(ctx, core.ExecuteRequest{
		Op:   catalogchan.OpListTables,
		Args: map[string]string{"database": database},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Tables []string `json:"tables"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, &core.DataShapeError{Provider: Name, Op: catalogchan.OpListTables, Err: err}
	}

	nodes := make([]*schema.TreeNode, 0, len(payload.Tables))
	for _, table := range payload.Tables {
		nodes = append(nodes, &schema.TreeNode{
			ID:   schema.ChildID(parent, table),
			Name: table,
			Type: TypeTable,
			Data: TableRef{Database: database, Table: table},
		})
	}
	return nodes, nil
}

func (p *Provider) fetchColumns(ctx context.Context, ch core.Channel, parent schema.NodeID, ref TableRef) ([]*schema.TreeNode, error) {
	resp, err := ch.Execute(ctx, core.ExecuteRequest{
		Op:   catalogchan.OpTableSchema,
		Args: map[string]string{"database": ref.Database, "table": ref.Table},
	})
	if err != nil {
		return nil, err
	}
	var payload struct {
		Columns []struct {
			Name       string `json:"name"`
			Type       string `json:"type"`
			Nullable   bool   `json:"nullable"`
			PrimaryKey bool   `json:"primary_key"`
			ForeignKey string `json:"foreign_key"`
		} `json:"columns"`
	}
	if err := json.Unmarshal(resp.Data, &payload); err != nil {
		return nil, &core.DataShapeError{Provider: Name, Op: catalogchan.OpTableSchema, Err: err}
	}

	nodes := make([]*schema.TreeNode, 0, len(payload.Columns))
	for _, col := range payload.Columns {
		nodes = append(nodes, &schema.TreeNode{
			ID:   schema.ChildID(parent, col.Name),
			Name: col.Name,
			Type: TypeColumn,
			Data: ColumnMeta{
				Type:       col.Type,
				Nullable:   col.Nullable,
				PrimaryKey: col.PrimaryKey,
				ForeignKey: col.ForeignKey,
			},
		})
	}
	return nodes, nil
}
