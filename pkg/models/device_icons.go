package models

// NodeKind classifies a node in the exported topology graph.
type NodeKind string

const (
	NodeKindGateway     NodeKind = "gateway"
	NodeKindPlaceholder NodeKind = "placeholder"
	NodeKindHost        NodeKind = "host"
)

// NodeIcon maps a NodeKind to its icon identifier.
// Identifiers use Lucide icon names (https://lucide.dev) so graph viewers
// can pick a matching glyph.
var NodeIcon = map[NodeKind]string{
	NodeKindGateway:     "router",
	NodeKindPlaceholder: "network",
	NodeKindHost:        "monitor",
}

// Icon returns the icon identifier for a NodeKind.
// Returns "help-circle" for unrecognised kinds.
func (k NodeKind) Icon() string {
	if icon, ok := NodeIcon[k]; ok {
		return icon
	}
	return "help-circle"
}
