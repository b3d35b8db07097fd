package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed services.yaml
var catalogRawData []byte

// catalogFile is the top-level structure of the embedded YAML.
type catalogFile struct {
	Categories []CategoryEntry `yaml:"categories"`
}

// Catalog provides lazy-loaded access to the embedded service catalog.
type Catalog struct {
	once    sync.Once
	entries []CategoryEntry
	err     error
}

// NewCatalog creates a new Catalog that will parse the embedded YAML on first access.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Entries returns a copy of all catalog entries in file order.
func (c *Catalog) Entries() ([]CategoryEntry, error) {
	c.once.Do(c.load)
	if c.err != nil {
		return nil, c.err
	}
	cp := make([]CategoryEntry, len(c.entries))
	copy(cp, c.entries)
	return cp, nil
}

// load parses the embedded YAML catalog data.
func (c *Catalog) load() {
	var f catalogFile
	if err := yaml.Unmarshal(catalogRawData, &f); err != nil {
		c.err = fmt.Errorf("catalog: parse yaml: %w", err)
		return
	}
	for _, e := range f.Categories {
		if !e.Category.Valid() {
			c.err = fmt.Errorf("catalog: unknown category %q", e.Category)
			return
		}
	}
	c.entries = f.Categories
}
