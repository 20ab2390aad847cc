package schema

// SessionID identifies one host session against the browser core.
type SessionID string

// NodeID identifies a node within a session's forest.
type NodeID string

// ProviderName identifies a registered tree provider.
type ProviderName string

// NodeType classifies a node within its provider's type vocabulary.
type NodeType string

// NodeTypeRoot is the reserved type of synthetic per-provider root nodes.
const NodeTypeRoot NodeType = "ROOT"

// Icon names a glyph in the host's icon set. The core resolves which name
// applies to a node; rendering is the host's business.
type Icon string

// IconDefault is the fallback icon for nodes whose provider declares none.
const IconDefault Icon = "item"

// InfoRenderer names the detail-panel renderer the host should use for a node.
type InfoRenderer string

// MenuItem describes one context-menu action the host may offer on a node.
type MenuItem struct {
	ID    string
	Label string
}

// RestoreState tracks open-state restoration for a session.
type RestoreState string

const (
	// RestoreUninitialized means persisted open state has not been read yet.
	RestoreUninitialized RestoreState = "uninitialized"
	// RestoreRestoring means persisted open ids are still being replayed;
	// deeper ids resolve as the fetches they depend on land.
	RestoreRestoring RestoreState = "restoring"
	// RestoreIdle means replay has concluded: every persisted id was opened,
	// dropped as unreachable, or cancelled by a live interaction.
	RestoreIdle RestoreState = "idle"
)
