// Package catalog holds the embedded lookup table that maps scanner service
// names to report categories.
package catalog

// Category groups services in the service summary.
type Category string

const (
	CategoryWeb             Category = "web"
	CategoryDNS             Category = "dns"
	CategoryDatabase        Category = "database"
	CategoryWindowsServices Category = "windows-services"
	CategoryMail            Category = "mail"
	CategoryOther           Category = "other"
)

// Order is the fixed order categories are reported in.
var Order = []Category{
	CategoryWeb,
	CategoryDNS,
	CategoryDatabase,
	CategoryWindowsServices,
	CategoryMail,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, o := range Order {
		if o == c {
			return true
		}
	}
	return false
}

// CategoryEntry lists the service names and fallback ports of one category.
type CategoryEntry struct {
	Category    Category `yaml:"category"`
	Description string   `yaml:"description"`
	Services    []string `yaml:"services"`
	Ports       []int    `yaml:"ports"`
}
