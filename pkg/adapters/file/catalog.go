package file

import (
	"fmt"
	"os"

	"github.com/aretw0/orderbot/pkg/adapters/memory"
	"github.com/aretw0/orderbot/pkg/domain"
	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk menu layout:
//
//	items:
//	  - id: 1
//	    title: Phở
//	    price: 50000
//	    discount: 0
//	    active: true
//	    categories: [main_dish]
//	    flavours: [salty]
type catalogFile struct {
	Items []catalogEntry `yaml:"items"`
}

type catalogEntry struct {
	domain.MenuItem `yaml:",inline"`
	Active          *bool `yaml:"active"`
}

// LoadCatalog reads a YAML menu. Entries with active: false are skipped.
func LoadCatalog(path string) (*memory.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML menu document.
func ParseCatalog(data []byte) (*memory.Catalog, error) {
	var doc catalogFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	items := make([]domain.MenuItem, 0, len(doc.Items))
	for _, e := range doc.Items {
		if e.Active != nil && !*e.Active {
			continue
		}
		items = append(items, e.MenuItem)
	}

	cat, err := memory.NewCatalog(items)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return cat, nil
}
