// Package catalog classifies scanner service names into report categories
// using the embedded service catalog.
package catalog

import (
	"strings"
	"sync"

	pkgcatalog "github.com/HerbHall/netscope/pkg/catalog"
)

// Engine maps service names and ports to categories.
type Engine struct {
	cat *pkgcatalog.Catalog

	once     sync.Once
	byName   map[string]pkgcatalog.Category
	byPort   map[int]pkgcatalog.Category
	buildErr error
}

// NewEngine creates a new engine backed by the given catalog.
func NewEngine(cat *pkgcatalog.Catalog) *Engine {
	return &Engine{cat: cat}
}

func (e *Engine) build() {
	entries, err := e.cat.Entries()
	if err != nil {
		e.buildErr = err
		return
	}
	e.byName = make(map[string]pkgcatalog.Category)
	e.byPort = make(map[int]pkgcatalog.Category)
	for i := range entries {
		for _, s := range entries[i].Services {
			e.byName[strings.ToLower(s)] = entries[i].Category
		}
		for _, p := range entries[i].Ports {
			e.byPort[p] = entries[i].Category
		}
	}
}

// Err reports whether the catalog failed to load. A failed engine
// classifies everything as other.
func (e *Engine) Err() error {
	e.once.Do(e.build)
	return e.buildErr
}

// Categorize returns the category of a service. The service name decides;
// the port is consulted only when the scanner could not name the service.
func (e *Engine) Categorize(service string, port int) pkgcatalog.Category {
	e.once.Do(e.build)

	name := normalizeService(service)
	if name != "" && name != "unknown" {
		if c, ok := e.byName[name]; ok {
			return c
		}
		return pkgcatalog.CategoryOther
	}
	if c, ok := e.byPort[port]; ok {
		return c
	}
	return pkgcatalog.CategoryOther
}

// normalizeService strips nmap's tunnel prefix ("ssl/http") and its
// uncertainty marker ("http?").
func normalizeService(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(s, "?")
}
