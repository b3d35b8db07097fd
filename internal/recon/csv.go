package recon

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/HerbHall/netscope/pkg/models"
)

// csvHeaders returns the CSV column headers.
func csvHeaders() []string {
	return []string{
		"address", "ipv6_address", "mac_address", "vendor", "hostname",
		"os", "os_accuracy", "open_ports", "is_gateway",
	}
}

// csvColumnCount is the number of columns in the CSV format.
const csvColumnCount = 9

// Port entries are "port/protocol|service|product|version|extrainfo",
// joined with ';'. Separator characters inside values become ','.
var portFieldCleaner = strings.NewReplacer(";", ",", "|", ",")

func encodePorts(ports []models.OpenPort) string {
	parts := make([]string, 0, len(ports))
	for _, p := range ports {
		parts = append(parts, strings.Join([]string{
			fmt.Sprintf("%d/%s", p.Port, portFieldCleaner.Replace(p.Protocol)),
			portFieldCleaner.Replace(p.Service),
			portFieldCleaner.Replace(p.Product),
			portFieldCleaner.Replace(p.Version),
			portFieldCleaner.Replace(p.ExtraInfo),
		}, "|"))
	}
	return strings.Join(parts, ";")
}

func decodePorts(s string) ([]models.OpenPort, error) {
	if s == "" {
		return nil, nil
	}
	var ports []models.OpenPort
	for _, entry := range strings.Split(s, ";") {
		fields := strings.Split(entry, "|")
		for len(fields) < 5 {
			fields = append(fields, "")
		}
		num, proto, ok := strings.Cut(fields[0], "/")
		if !ok {
			return nil, fmt.Errorf("invalid port entry %q", entry)
		}
		n, err := strconv.Atoi(num)
		if err != nil || n < 0 || n > 65535 {
			return nil, fmt.Errorf("invalid port number %q", num)
		}
		ports = append(ports, models.OpenPort{
			Port:      n,
			Protocol:  proto,
			Service:   fields[1],
			Product:   fields[2],
			Version:   fields[3],
			ExtraInfo: fields[4],
		})
	}
	return ports, nil
}

// hostToCSVRow converts a host to a CSV row (matching csvHeaders order).
func hostToCSVRow(h models.HostRecord) []string {
	var osName, osAcc string
	if h.OS != nil {
		osName = h.OS.Name
		osAcc = strconv.Itoa(h.OS.Accuracy)
	}
	return []string{
		h.Address,
		h.IPv6Address,
		h.MACAddress,
		h.Vendor,
		h.Hostname,
		osName,
		osAcc,
		encodePorts(h.OpenPorts),
		strconv.FormatBool(h.IsGateway),
	}
}

// csvRowToHost parses a CSV row into a HostRecord. Returns error for invalid data.
func csvRowToHost(row []string) (models.HostRecord, error) {
	if len(row) < csvColumnCount {
		return models.HostRecord{}, fmt.Errorf("expected %d columns, got %d", csvColumnCount, len(row))
	}

	// Re-slice to exactly csvColumnCount so gosec can verify bounds statically.
	r := row[:csvColumnCount]

	var h models.HostRecord
	h.Address = r[0]
	if h.Address == "" {
		return models.HostRecord{}, fmt.Errorf("address is required")
	}
	h.IPv6Address = r[1]
	h.MACAddress = r[2]
	h.Vendor = r[3]
	h.Hostname = r[4]

	if r[5] != "" {
		acc := 0
		if r[6] != "" {
			n, err := strconv.Atoi(r[6])
			if err != nil {
				return models.HostRecord{}, fmt.Errorf("invalid os_accuracy: %w", err)
			}
			acc = n
		}
		h.OS = &models.OSGuess{Name: r[5], Accuracy: acc}
	}

	ports, err := decodePorts(r[7])
	if err != nil {
		return models.HostRecord{}, err
	}
	h.OpenPorts = ports

	if r[8] != "" {
		gw, err := strconv.ParseBool(r[8])
		if err != nil {
			return models.HostRecord{}, fmt.Errorf("invalid is_gateway: %w", err)
		}
		h.IsGateway = gw
	}
	return h, nil
}

// WriteCSV writes the inventory's hosts in discovery order.
func WriteCSV(w io.Writer, inv *models.HostInventory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeaders()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if inv != nil {
		for _, h := range inv.Hosts {
			if err := cw.Write(hostToCSVRow(h)); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses hosts written by WriteCSV. Lines starting with '#' are
// skipped. The gateway flag is read but Ingest reclassifies the gateway
// afterwards.
func ReadCSV(r io.Reader) ([]models.HostRecord, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv has no header")
	}
	if !strings.EqualFold(strings.TrimSpace(rows[0][0]), "address") {
		return nil, fmt.Errorf("unexpected csv header %q", rows[0][0])
	}
	hosts := make([]models.HostRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		h, err := csvRowToHost(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		hosts = append(hosts, h)
	}
	return hosts, nil
}
