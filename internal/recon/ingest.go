// Package recon turns scanner output into a host inventory: it parses
// result files, merges hosts seen by several scan phases, fills in vendors,
// and classifies the gateway.
package recon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/HerbHall/netscope/pkg/models"
)

// Ingester builds host inventories from result files.
type Ingester struct {
	classifier GatewayClassifier
	oui        *OUITable
	logger     *zap.Logger
}

// IngestOption customizes an Ingester.
type IngestOption func(*Ingester)

// WithClassifier replaces the default octet-based gateway classifier.
func WithClassifier(c GatewayClassifier) IngestOption {
	return func(i *Ingester) { i.classifier = c }
}

// WithOUITable sets the vendor lookup used when results carry a MAC
// address without a vendor.
func WithOUITable(t *OUITable) IngestOption {
	return func(i *Ingester) { i.oui = t }
}

// NewIngester creates an Ingester.
func NewIngester(logger *zap.Logger, opts ...IngestOption) *Ingester {
	i := &Ingester{
		classifier: OctetClassifier{},
		oui:        NewOUITable(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest reads every path (nmap XML, or CSV written by WriteCSV), merges
// hosts by address in first-seen order, and classifies the gateway. It
// never panics on bad input: when no path yields data the inventory's Err
// explains why. Files that fail while others succeed are logged and listed
// in the inventory's Skipped.
func (i *Ingester) Ingest(paths ...string) *models.HostInventory {
	inv := &models.HostInventory{}
	if len(paths) == 0 {
		inv.Err = fmt.Errorf("%w: no result files given", models.ErrMissingScanResults)
		return inv
	}

	var errs []error
	var sets [][]models.HostRecord
	for _, path := range paths {
		hosts, err := i.readFile(path)
		if err != nil {
			i.logger.Warn("scan results skipped", zap.String("path", path), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		inv.Sources = append(inv.Sources, path)
		sets = append(sets, hosts)
	}
	if len(inv.Sources) == 0 {
		inv.Err = errors.Join(errs...)
		return inv
	}

	inv.Skipped = errs
	inv.Hosts = MergeHosts(sets...)
	for idx := range inv.Hosts {
		h := &inv.Hosts[idx]
		if h.Vendor == "" && h.MACAddress != "" && i.oui != nil {
			h.Vendor = i.oui.Lookup(h.MACAddress)
		}
	}
	ClassifyGateway(inv, i.classifier)

	fields := []zap.Field{
		zap.Int("files", len(inv.Sources)),
		zap.Int("hosts", len(inv.Hosts)),
		zap.Int("skipped", len(inv.Skipped)),
	}
	if inv.Gateway != nil {
		fields = append(fields, zap.String("gateway", inv.Gateway.Address))
	}
	i.logger.Info("scan results ingested", fields...)
	return inv
}

func (i *Ingester) readFile(path string) ([]models.HostRecord, error) {
	f, err := os.Open(path) //nolint:gosec // operator-supplied result file
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMissingScanResults, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".csv") {
		hosts, err := ReadCSV(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", models.ErrMalformedScanResults, path, err)
		}
		return hosts, nil
	}
	hosts, err := ParseNmapXML(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return hosts, nil
}

// MergeHosts combines host lists from several scan phases. Hosts are keyed
// by address and kept in first-seen order; later records fill in missing
// identity fields, add ports, and replace the OS guess only with a more
// accurate one.
func MergeHosts(sets ...[]models.HostRecord) []models.HostRecord {
	var out []models.HostRecord
	index := make(map[string]int)
	for _, set := range sets {
		for _, h := range set {
			pos, seen := index[h.Address]
			if !seen {
				index[h.Address] = len(out)
				h.OpenPorts = append([]models.OpenPort(nil), h.OpenPorts...)
				out = append(out, h)
				continue
			}
			mergeHost(&out[pos], h)
		}
	}
	return out
}

func mergeHost(dst *models.HostRecord, src models.HostRecord) {
	if dst.IPv6Address == "" {
		dst.IPv6Address = src.IPv6Address
	}
	if dst.MACAddress == "" {
		dst.MACAddress = src.MACAddress
	}
	if dst.Vendor == "" {
		dst.Vendor = src.Vendor
	}
	if dst.Hostname == "" {
		dst.Hostname = src.Hostname
	}
	if src.OS != nil && (dst.OS == nil || src.OS.Accuracy > dst.OS.Accuracy) {
		guess := *src.OS
		dst.OS = &guess
	}
	for _, p := range src.OpenPorts {
		found := false
		for j := range dst.OpenPorts {
			q := &dst.OpenPorts[j]
			if q.Port != p.Port || q.Protocol != p.Protocol {
				continue
			}
			found = true
			// Version detection names services more precisely than the
			// port-number guess of earlier phases.
			if p.Service != "" && (q.Service == "" || p.Product != "") {
				q.Service = p.Service
			}
			q.Product = firstNonEmpty(q.Product, p.Product)
			q.Version = firstNonEmpty(q.Version, p.Version)
			q.ExtraInfo = firstNonEmpty(q.ExtraInfo, p.ExtraInfo)
			break
		}
		if !found {
			dst.OpenPorts = append(dst.OpenPorts, p)
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// SortedPorts returns a copy of ports ordered by port number, then protocol.
func SortedPorts(ports []models.OpenPort) []models.OpenPort {
	out := append([]models.OpenPort(nil), ports...)
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Port != out[b].Port {
			return out[a].Port < out[b].Port
		}
		return out[a].Protocol < out[b].Protocol
	})
	return out
}
