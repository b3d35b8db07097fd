// Package netutil validates IPv4 networks, addresses, and VLAN tags and
// derives sizing estimates from prefix lengths.
package netutil

import (
	"fmt"
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/HerbHall/netscope/pkg/models"
)

// VLAN tag bounds. 0 and 4095 are reserved by 802.1Q.
const (
	MinVLANID = 1
	MaxVLANID = 4094
)

var (
	cidrPattern = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})/(\d{1,2})$`)
	ipPattern   = regexp.MustCompile(`^(\d{1,3})\.(\d{1,3})\.(\d{1,3})\.(\d{1,3})$`)
)

// ValidateCIDR parses a dotted-quad CIDR such as "192.168.1.0/24".
// The address is returned as written; host bits are not masked.
func ValidateCIDR(s string) (netip.Prefix, error) {
	s = strings.TrimSpace(s)
	m := cidrPattern.FindStringSubmatch(s)
	if m == nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q is not a.b.c.d/len", models.ErrInvalidNetworkFormat, s)
	}
	addr, err := octets(m[1:5])
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %q: %v", models.ErrInvalidNetworkFormat, s, err)
	}
	bits, _ := strconv.Atoi(m[5])
	if bits < 0 || bits > 32 {
		return netip.Prefix{}, fmt.Errorf("%w: %q: prefix length %d outside 0-32", models.ErrInvalidNetworkFormat, s, bits)
	}
	return netip.PrefixFrom(addr, bits), nil
}

// ValidateIPv4 parses a single dotted-quad address.
func ValidateIPv4(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	m := ipPattern.FindStringSubmatch(s)
	if m == nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", models.ErrInvalidAddress, s)
	}
	addr, err := octets(m[1:5])
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q: %v", models.ErrInvalidAddress, s, err)
	}
	return addr, nil
}

// ValidateTarget accepts either a single address or a CIDR, as used by
// exclusion entries.
func ValidateTarget(s string) error {
	if strings.Contains(s, "/") {
		_, err := ValidateCIDR(s)
		return err
	}
	_, err := ValidateIPv4(s)
	return err
}

// ValidateVLANID checks that n is a usable 802.1Q tag.
func ValidateVLANID(n int) (int, error) {
	if n < MinVLANID || n > MaxVLANID {
		return 0, fmt.Errorf("%w: %d not in %d-%d", models.ErrVLANOutOfRange, n, MinVLANID, MaxVLANID)
	}
	return n, nil
}

// ParseVLANID parses and validates a textual VLAN tag.
func ParseVLANID(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", models.ErrVLANOutOfRange, s)
	}
	return ValidateVLANID(n)
}

// NetworkAddress masks the host bits of ip with a prefix of prefixLen bits.
func NetworkAddress(ip netip.Addr, prefixLen int) (netip.Prefix, error) {
	if !ip.Is4() {
		return netip.Prefix{}, fmt.Errorf("%w: %s is not IPv4", models.ErrInvalidAddress, ip)
	}
	p, err := ip.Prefix(prefixLen)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %v", models.ErrInvalidNetworkFormat, err)
	}
	return p, nil
}

// EstimateHostCount returns the usable host count of a prefix, excluding the
// network and broadcast addresses. /31, /32 and out-of-range lengths yield 0.
func EstimateHostCount(prefixLen int) int {
	if prefixLen < 0 || prefixLen >= 31 {
		return 0
	}
	return (1 << (32 - prefixLen)) - 2
}

// DurationBucket is an advisory label for how long a segment will take to scan.
type DurationBucket string

const (
	DurationShort  DurationBucket = "short"
	DurationMedium DurationBucket = "medium"
	DurationLong   DurationBucket = "long"
)

// EstimateDurationBucket maps a host count to a duration label.
func EstimateDurationBucket(hostCount int) DurationBucket {
	switch {
	case hostCount > 1000:
		return DurationLong
	case hostCount > 100:
		return DurationMedium
	default:
		return DurationShort
	}
}

// GatewayAddress returns the first usable address of the prefix, the
// conventional router address when nothing better is known.
func GatewayAddress(p netip.Prefix) netip.Addr {
	return p.Masked().Addr().Next()
}

func octets(parts []string) (netip.Addr, error) {
	var b [4]byte
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n > 255 {
			return netip.Addr{}, fmt.Errorf("octet %q out of range", part)
		}
		b[i] = byte(n)
	}
	return netip.AddrFrom4(b), nil
}
