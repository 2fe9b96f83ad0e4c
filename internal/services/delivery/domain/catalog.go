package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

var (
	// ErrCatalogEmpty indicates a catalog was built with no products.
	ErrCatalogEmpty = errors.New("product catalog is empty")
	// ErrProductInvalid indicates a product entry failed validation.
	ErrProductInvalid = errors.New("product entry is invalid")
)

// Product maps one shop listing to its in-game reward policy.
type Product struct {
	ID                string `json:"id"`
	DisplayName       string `json:"display_name"`
	RewardPerUnit     int64  `json:"reward_per_unit"`
	OnPurchaseCommand string `json:"on_purchase_command,omitempty"`
}

// Catalog is the immutable product configuration loaded at startup.
type Catalog struct {
	products []Product
}

// NewCatalog validates products and builds a catalog preserving entry order.
func NewCatalog(products []Product) (*Catalog, error) {
	if len(products) == 0 {
		return nil, ErrCatalogEmpty
	}
	seen := make(map[string]bool, len(products))
	for _, product := range products {
		if strings.TrimSpace(product.ID) == "" {
			return nil, fmt.Errorf("%w: id is required", ErrProductInvalid)
		}
		if product.RewardPerUnit <= 0 {
			return nil, fmt.Errorf("%w: reward per unit must be positive for %q", ErrProductInvalid, product.ID)
		}
		if seen[product.ID] {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrProductInvalid, product.ID)
		}
		seen[product.ID] = true
	}
	return &Catalog{products: append([]Product(nil), products...)}, nil
}

// DefaultCatalog returns the single-entry fallback used when no catalog file
// is configured.
func DefaultCatalog() *Catalog {
	return &Catalog{products: []Product{{
		ID:            "donut",
		DisplayName:   "Donut",
		RewardPerUnit: 1_000_000,
	}}}
}

// LoadCatalogFile reads a JSON product list from path. An empty path yields
// the default catalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCatalog(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	return NewCatalog(products)
}

// Resolve finds the product for a purchase. The identifier is matched
// exactly against catalog ids first; when absent or unmatched, the name is
// compared case-insensitively against display names in catalog order.
func (c *Catalog) Resolve(identifier, name string) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	identifier = strings.TrimSpace(identifier)
	if identifier != "" {
		for _, product := range c.products {
			if product.ID == identifier {
				return product, true
			}
		}
	}
	name = strings.TrimSpace(name)
	if name != "" {
		for _, product := range c.products {
			if strings.EqualFold(product.DisplayName, name) {
				return product, true
			}
		}
	}
	return Product{}, false
}

// Products returns a copy of the catalog entries in configuration order.
func (c *Catalog) Products() []Product {
	if c == nil {
		return nil
	}
	return append([]Product(nil), c.products...)
}
