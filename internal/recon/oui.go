package recon

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"
	"sync"
)

//go:embed oui_data.txt
var builtinOUI []byte

// OUITable maps the first three octets of a MAC address to the vendor
// that owns them. The built-in registry is parsed on first use; files in
// nmap's nmap-mac-prefixes format can be merged on top.
type OUITable struct {
	once    sync.Once
	mu      sync.RWMutex
	vendors map[string]string
}

func NewOUITable() *OUITable {
	return &OUITable{}
}

// Lookup returns the vendor for mac, or "" when the prefix is unknown.
// Colon, dash, dot, and bare hex forms are accepted.
func (o *OUITable) Lookup(mac string) string {
	o.once.Do(o.loadBuiltin)
	prefix, ok := ouiPrefix(mac)
	if !ok {
		return ""
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.vendors[prefix]
}

// Len is the number of known prefixes.
func (o *OUITable) Len() int {
	o.once.Do(o.loadBuiltin)
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.vendors)
}

// Merge adds the prefixes read from r, overriding built-in entries.
// Each line holds a prefix then the vendor, separated by a tab or spaces;
// blank lines and # comments are skipped. It returns how many entries
// were added.
func (o *OUITable) Merge(r io.Reader) (int, error) {
	o.once.Do(o.loadBuiltin)
	entries, err := parseOUI(r)
	if err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range entries {
		o.vendors[k] = v
	}
	return len(entries), nil
}

func (o *OUITable) loadBuiltin() {
	entries, err := parseOUI(bytes.NewReader(builtinOUI))
	if err != nil {
		entries = map[string]string{}
	}
	o.mu.Lock()
	o.vendors = entries
	o.mu.Unlock()
}

func parseOUI(r io.Reader) (map[string]string, error) {
	out := make(map[string]string)
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(strings.ReplaceAll(line, "\t", " "), " ", 2)
		if len(fields) != 2 {
			continue
		}
		prefix, ok := ouiPrefix(fields[0])
		vendor := strings.TrimSpace(fields[1])
		if !ok || vendor == "" {
			continue
		}
		out[prefix] = vendor
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read mac prefixes: %w", err)
	}
	return out, nil
}

// ouiPrefix reduces mac to "AA:BB:CC". It fails unless mac starts with
// six hex digits once separators are removed.
func ouiPrefix(mac string) (string, bool) {
	hex := strings.NewReplacer(":", "", "-", "", ".", "").Replace(strings.ToUpper(mac))
	if len(hex) < 6 {
		return "", false
	}
	for _, c := range hex[:6] {
		if (c < '0' || c > '9') && (c < 'A' || c > 'F') {
			return "", false
		}
	}
	return hex[0:2] + ":" + hex[2:4] + ":" + hex[4:6], true
}
