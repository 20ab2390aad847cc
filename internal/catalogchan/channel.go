// Package catalogchan answers catalog queries over the core channel
// contract. Providers stay SQL-free; every reply is a JSON payload.
package catalogchan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pkt.systems/canopy/core"
	"pkt.systems/canopy/internal/catalog"
)

// Operations the channel understands.
const (
	OpListDatabases = "list_databases"
	OpListTables    = "list_tables"
	OpTableSchema   = "table_schema"
)

// Channel serves catalog operations from a catalog.Store.
type Channel struct {
	store *catalog.Store
}

// New wraps a store in a channel.
func New(store *catalog.Store) *Channel {
	return &Channel{store: store}
}

type databasesPayload struct {
	Databases []string `json:"databases"`
}

type tablesPayload struct {
	Database string   `json:"database"`
	Tables   []string `json:"tables"`
}

type schemaPayload struct {
	Database string           `json:"database"`
	Table    string           `json:"table"`
	Columns  []catalog.Column `json:"columns"`
}

// Execute implements core.Channel.
func (c *Channel) Execute(ctx context.Context, req core.ExecuteRequest) (core.ExecuteResponse, error) {
	switch req.Op {
	case OpListDatabases:
		names, err := c.store.ListDatabases(ctx)
		if err != nil {
			return core.ExecuteResponse{}, classify(req.Op, err)
		}
		return marshal(req.Op, databasesPayload{Databases: names})

	case OpListTables:
		database := req.Args["database"]
		if database == "" {
			return core.ExecuteResponse{}, &core.ChannelError{
				Kind: core.ChannelErrorExecution, Op: req.Op, Message: "missing database argument",
			}
		}
		tables, err := c.store.ListTables(ctx, database)
		if err != nil {
			return core.ExecuteResponse{}, classify(req.Op, err)
		}
		return marshal(req.Op, tablesPayload{Database: database, Tables: tables})

	case OpTableSchema:
		database, table := req.Args["database"], req.Args["table"]
		if database == "" || table == "" {
			return core.ExecuteResponse{}, &core.ChannelError{
				Kind: core.ChannelErrorExecution, Op: req.Op, Message: "missing database or table argument",
			}
		}
		cols, err := c.store.TableColumns(ctx, database, table)
		if err != nil {
			return core.ExecuteResponse{}, classify(req.Op, err)
		}
		return marshal(req.Op, schemaPayload{Database: database, Table: table, Columns: cols})

	default:
		return core.ExecuteResponse{}, &core.ChannelError{
			Kind: core.ChannelErrorExecution, Op: req.Op,
			Message: fmt.Sprintf("unknown catalog operation %q", req.Op),
		}
	}
}

// classify maps store failures onto channel error kinds. A closed store is
// gone for good; context expiry is a timeout; everything else failed in
// execution.
func classify(op string, err error) error {
	kind := core.ChannelErrorExecution
	switch {
	case errors.Is(err, catalog.ErrClosed):
		kind = core.ChannelErrorDead
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		kind = core.ChannelErrorTimeout
	}
	return core.NewChannelError(kind, op, err)
}

func marshal(op string, payload any) (core.ExecuteResponse, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return core.ExecuteResponse{}, core.NewChannelError(core.ChannelErrorExecution, op, err)
	}
	return core.ExecuteResponse{Data: data}, nil
}
