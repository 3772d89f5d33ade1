// Package catalog provides the read-only product metadata store backing the
// search engine. Records are loaded once from a JSON array file whose row
// order is positionally aligned with the vector index: neighbor id i maps to
// record i. The two files are built together by the offline indexing job and
// must never be mixed across versions.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Product is a single immutable catalog record. All fields are optional in
// the metadata file — missing keys decode to empty strings rather than
// failing the load, since upstream catalog exports are frequently sparse.
type Product struct {
	// Name is the display name of the product.
	Name string `json:"name"`
	// Brand is the product brand, when known.
	Brand string `json:"brand"`
	// Category is the top-level catalog category (e.g. "Footwear").
	Category string `json:"category"`
	// SubCategory is the second-level category (e.g. "Shoes").
	SubCategory string `json:"subcategory"`
	// ProductType is the fine-grained article type (e.g. "Running Shoes").
	ProductType string `json:"product_type"`
	// Colour is the dominant colour of the article.
	Colour string `json:"colour"`
	// Usage is the intended usage context (e.g. "Sports", "Casual").
	Usage string `json:"usage"`
	// Gender is the target demographic (e.g. "Men", "Women", "Unisex").
	Gender string `json:"gender"`
	// Image is an optional image reference: a remote URL or an inline asset path.
	Image string `json:"image"`
}

// SearchText returns the descriptive string scored against the user query by
// the cross-encoder reranker. Field order is fixed and must match the order
// the reranking model was evaluated with: gender, category, subcategory,
// product type, colour, usage, name. Empty fields are skipped.
func (p Product) SearchText() string {
	fields := []string{
		p.Gender, p.Category, p.SubCategory, p.ProductType, p.Colour, p.Usage, p.Name,
	}
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// Store is an ordered, immutable collection of products. It is loaded once
// at startup and safe for concurrent reads without locking.
type Store struct {
	// products holds the records in index-row order.
	products []Product
}

// Load reads the JSON metadata file at path and returns a ready Store.
// The file must contain a single JSON array of product objects. Unknown
// keys are ignored; missing keys default to empty strings.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("catalog: parse %s: %w", path, err)
	}

	return &Store{products: products}, nil
}

// Len returns the number of records in the store.
func (s *Store) Len() int {
	return len(s.products)
}

// Get returns the record at row position i. The second return value is false
// when i is out of range — callers use this to skip sentinel or stale
// neighbor ids rather than failing the whole search.
func (s *Store) Get(i int) (Product, bool) {
	if i < 0 || i >= len(s.products) {
		return Product{}, false
	}
	return s.products[i], true
}
