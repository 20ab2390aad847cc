// Package tenantprov is the workspace provider: it groups the namespaced
// tenant databases by owner (the user's own data first, then tenant groups),
// then descends databases, tables and columns over the catalog channel
// protocol.
package tenantprov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pkt.systems/canopy/core"
	"pkt.systems/canopy/internal/catalogchan"
	"pkt.systems/canopy/schema"
)

// Name is the provider's registered name and root label.
const Name schema.ProviderName = "workspace"

// Node types the provider emits.
const (
	TypeGroup    schema.NodeType = "GROUP"
	TypeDatabase schema.NodeType = "DATABASE"
	TypeTable    schema.NodeType = "TABLE"
	TypeColumn   schema.NodeType = "COLUMN"
)

var errMissingRef = errors.New("workspace node is missing its reference payload")

// GroupRef is the payload on group nodes: the database-name prefix that
// selects the group's members.
type GroupRef struct {
	Prefix string
}

// DatabaseRef is the payload on database nodes: the physical database name
// behind the prefix-stripped display name.
type DatabaseRef struct {
	Database string
}

// TableRef locates a table; table nodes carry it in Data.
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

// Options configure the provider with the account it browses for.
type Options struct {
	User   string
	Groups []string
}

// Provider implements core.Provider for the workspace view.
type Provider struct {
	groups []groupSpec
}

// New constructs a workspace provider for the given account.
func New(opts Options) *Provider {
	return &Provider{groups: groupsFor(opts.User, opts.Groups)}
}

// Describe implements core.Provider.
func (p *Provider) Describe() core.ProviderInfo {
	return core.ProviderInfo{
		Name:        Name,
		Icon:        "briefcase",
		ParentTypes: []schema.NodeType{TypeGroup, TypeDatabase, TypeTable},
		TypeIcons: map[schema.NodeType]schema.Icon{
			TypeGroup:    "folder",
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

// FetchRoots implements core.Provider. Groups come from the account's
// memberships, not from the backend, so this never touches the channel.
func (p *Provider) FetchRoots(ctx context.Context, ch core.Channel) ([]*schema.TreeNode, error) {
	rootID := schema.RootID(Name)
	nodes := make([]*schema.TreeNode, 0, len(p.groups))
	for _, group := range p.groups {
		nodes = append(nodes, &schema.TreeNode{
			ID:   schema.ChildID(rootID, group.Prefix),
			Name: group.Name,
			Type: TypeGroup,
			Data: GroupRef{Prefix: group.Prefix},
		})
	}
	return nodes, nil
}

// FetchChildren implements core.Provider, dispatching on node type.
func (p *Provider) FetchChildren(ctx context.Context, node *schema.TreeNode, ch core.Channel) ([]*schema.TreeNode, error) {
	switch node.Type {
	case TypeGroup:
		ref, ok := node.Data.(GroupRef)
		if !ok {
			return nil, fmt.Errorf("node %s: %w", node.ID, errMissingRef)
		}
		return p.fetchDatabases(ctx, ch, node.ID, ref.Prefix)
	case TypeDatabase:
		ref, ok := node.Data.(DatabaseRef)
		if !ok {
			return nil, fmt.Errorf("node %s: %w", node.ID, errMissingRef)
		}
		return p.fetchTables(ctx, ch, node.ID, ref.Database)
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

func (p *Provider) fetchDatabases(ctx context.Context, ch core.Channel, parent schema.NodeID, prefix string) ([]*schema.TreeNode, error) {
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

	var nodes []*schema.TreeNode
	for _, database := range payload.Databases {
		if !strings.HasPrefix(database, prefix) {
			continue
		}
		nodes = append(nodes, &schema.TreeNode{
			ID:   schema.ChildID(parent, database),
			Name: strings.TrimPrefix(database, prefix),
			Type: TypeDatabase,
			Data: DatabaseRef{Database: database},
		})
	}
	return nodes, nil
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
