package recon

import "github.com/HerbHall/netscope/pkg/models"

// Topology layers, from the outside in.
const (
	LayerExternal = 0
	LayerGateway  = 1
	LayerEndpoint = 2
)

// Placeholder identifiers used when no gateway was classified.
const (
	ExternalNodeID    = "external"
	PlaceholderNodeID = "gateway"
	PlaceholderLabel  = "switch/hub"
)

// TopologyNode is one node of the inferred hierarchy.
type TopologyNode struct {
	ID     string
	Label  string
	Kind   models.NodeKind
	Layer  int
	Parent string
	Host   *models.HostRecord
}

// Topology is the inferred star: the gateway (or a placeholder hub) with
// every other host attached to it. Scanner output carries no layer-2
// adjacency, so this is not discovered wiring.
type Topology struct {
	Hub   TopologyNode
	Hosts []TopologyNode
}

// InferTopology builds the hub-and-spoke hierarchy for inv. Hosts keep
// discovery order.
func InferTopology(inv *models.HostInventory) Topology {
	var t Topology
	if inv != nil && inv.Gateway != nil {
		gw := *inv.Gateway
		t.Hub = TopologyNode{
			ID:     gw.Address,
			Label:  gw.Address,
			Kind:   models.NodeKindGateway,
			Layer:  LayerGateway,
			Parent: ExternalNodeID,
			Host:   &gw,
		}
	} else {
		t.Hub = TopologyNode{
			ID:     PlaceholderNodeID,
			Label:  PlaceholderLabel,
			Kind:   models.NodeKindPlaceholder,
			Layer:  LayerGateway,
			Parent: ExternalNodeID,
		}
	}

	for _, h := range inv.Members() {
		t.Hosts = append(t.Hosts, TopologyNode{
			ID:     h.Address,
			Label:  h.DisplayName(),
			Kind:   models.NodeKindHost,
			Layer:  LayerEndpoint,
			Parent: t.Hub.ID,
			Host:   &h,
		})
	}
	return t
}
