package discovery

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"net/netip"
	"os"
	"strconv"
	"strings"
)

const (
	rtfUp      = 0x1
	rtfGateway = 0x2
)

// Route is one IPv4 routing table entry.
type Route struct {
	Iface       string
	Destination netip.Prefix
	Gateway     netip.Addr
	Metric      int
}

// Default reports whether r is a usable default route.
func (r Route) Default() bool {
	return r.Destination.Bits() == 0 && r.Gateway.IsValid()
}

// RouteSource lists the routing table.
type RouteSource interface {
	Routes() ([]Route, error)
}

// ProcRoutes reads the Linux routing table from /proc/net/route.
type ProcRoutes struct {
	Path string
}

// Routes parses the routing table file.
func (p ProcRoutes) Routes() ([]Route, error) {
	path := p.Path
	if path == "" {
		path = "/proc/net/route"
	}
	f, err := os.Open(path) //nolint:gosec // fixed system path or test fixture
	if err != nil {
		return nil, fmt.Errorf("open route table: %w", err)
	}
	defer f.Close()
	return ParseRouteTable(f)
}

// ParseRouteTable parses the /proc/net/route format. Addresses are
// little-endian hex. Routes that are not up are skipped.
func ParseRouteTable(r io.Reader) ([]Route, error) {
	var routes []Route
	sc := bufio.NewScanner(r)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 8 {
			continue
		}
		dest, err := hexAddr(fields[1])
		if err != nil {
			return nil, fmt.Errorf("route destination %q: %w", fields[1], err)
		}
		gw, err := hexAddr(fields[2])
		if err != nil {
			return nil, fmt.Errorf("route gateway %q: %w", fields[2], err)
		}
		flags, err := strconv.ParseUint(fields[3], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("route flags %q: %w", fields[3], err)
		}
		if flags&rtfUp == 0 {
			continue
		}
		mask, err := strconv.ParseUint(fields[7], 16, 32)
		if err != nil {
			return nil, fmt.Errorf("route mask %q: %w", fields[7], err)
		}
		metric, _ := strconv.Atoi(fields[6])

		route := Route{
			Iface:       fields[0],
			Destination: netip.PrefixFrom(dest, bits.OnesCount32(uint32(mask))),
			Metric:      metric,
		}
		if flags&rtfGateway != 0 && !gw.IsUnspecified() {
			route.Gateway = gw
		}
		routes = append(routes, route)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read route table: %w", err)
	}
	return routes, nil
}

// DefaultRoute returns the default route with the lowest metric.
func DefaultRoute(routes []Route) (Route, bool) {
	var best Route
	found := false
	for _, r := range routes {
		if !r.Default() {
			continue
		}
		if !found || r.Metric < best.Metric {
			best = r
			found = true
		}
	}
	return best, found
}

func hexAddr(s string) (netip.Addr, error) {
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return netip.Addr{}, err
	}
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return netip.AddrFrom4(b), nil
}
