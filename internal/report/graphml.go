package report

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/HerbHall/netscope/internal/recon"
	"github.com/HerbHall/netscope/pkg/models"
)

const graphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

type graphMLDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Keys    []graphMLKey `xml:"key"`
	Graph   graphMLGraph `xml:"graph"`
}

type graphMLKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphMLGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Desc        string        `xml:"desc,omitempty"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphMLData `xml:"data"`
}

type graphMLEdge struct {
	ID     string `xml:"id,attr"`
	Source string `xml:"source,attr"`
	Target string `xml:"target,attr"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

var graphMLKeys = []graphMLKey{
	{ID: "label", For: "node", AttrName: "label", AttrType: "string"},
	{ID: "kind", For: "node", AttrName: "kind", AttrType: "string"},
	{ID: "icon", For: "node", AttrName: "icon", AttrType: "string"},
	{ID: "vendor", For: "node", AttrName: "vendor", AttrType: "string"},
	{ID: "hostname", For: "node", AttrName: "hostname", AttrType: "string"},
	{ID: "open_ports", For: "node", AttrName: "open_ports", AttrType: "int"},
}

func graphNode(n recon.TopologyNode) graphMLNode {
	node := graphMLNode{ID: n.ID}
	add := func(key, value string) {
		node.Data = append(node.Data, graphMLData{Key: key, Value: value})
	}
	add("label", n.Label)
	add("kind", string(n.Kind))
	add("icon", n.Kind.Icon())
	if n.Host != nil {
		if n.Host.Vendor != "" {
			add("vendor", n.Host.Vendor)
		}
		if n.Host.Hostname != "" {
			add("hostname", n.Host.Hostname)
		}
		add("open_ports", strconv.Itoa(len(n.Host.OpenPorts)))
	}
	return node
}

// GraphML exports the hub topology: the gateway or a placeholder node, one
// node per remaining host, and one edge from the hub to each host. Notes
// are prepended to the graph description.
func GraphML(inv *models.HostInventory, notes ...string) ([]byte, error) {
	desc := append([]string(nil), notes...)
	doc := graphMLDoc{
		XMLNS: graphMLNamespace,
		Keys:  graphMLKeys,
		Graph: graphMLGraph{ID: "network", EdgeDefault: "directed"},
	}

	if !inv.HasData() {
		var b strings.Builder
		noData(&b, inv)
		desc = append(desc, strings.TrimSpace(b.String()))
	} else {
		desc = append(desc, "Topology: "+TopologyNote+".")
		topo := recon.InferTopology(inv)
		doc.Graph.Nodes = append(doc.Graph.Nodes, graphNode(topo.Hub))
		for i, n := range topo.Hosts {
			doc.Graph.Nodes = append(doc.Graph.Nodes, graphNode(n))
			doc.Graph.Edges = append(doc.Graph.Edges, graphMLEdge{
				ID:     fmt.Sprintf("e%d", i+1),
				Source: topo.Hub.ID,
				Target: n.ID,
			})
		}
	}
	doc.Graph.Desc = strings.Join(desc, "\n")

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode graphml: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}
