// Package search filters catalog listings on the client.
package search

import (
	"sort"
	"strings"

	"github.com/go-ports/storefront/internal/models"
)

// Score weights for where the term was found.
const (
	nameWeight        = 2
	descriptionWeight = 1
)

// Options narrows a product listing.
type Options struct {
	Term        string // case-insensitive substring of name or description
	InStockOnly bool
	Limit       int // <= 0 means no limit
}

// FilterProducts keeps the products whose name or description contains term,
// ignoring case. Name matches rank before description-only matches; the
// input order is otherwise kept. An empty term returns products unchanged.
func FilterProducts(products []models.Product, term string) []models.Product {
	return Filter(products, Options{Term: term})
}

// Filter applies opts to products and returns a new slice.
func Filter(products []models.Product, opts Options) []models.Product {
	term := strings.ToLower(strings.TrimSpace(opts.Term))

	type hit struct {
		p     models.Product
		score int
	}
	hits := make([]hit, 0, len(products))
	for _, p := range products {
		if opts.InStockOnly && !p.InStock() {
			continue
		}
		s := score(p, term)
		if s == 0 {
			continue
		}
		hits = append(hits, hit{p: p, score: s})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	out := make([]models.Product, len(hits))
	for i, h := range hits {
		out[i] = h.p
	}
	return out
}

// score returns 0 for no match. An empty term matches everything equally.
func score(p models.Product, term string) int {
	if term == "" {
		return 1
	}
	s := 0
	if strings.Contains(strings.ToLower(p.Name), term) {
		s += nameWeight
	}
	if strings.Contains(strings.ToLower(p.Description), term) {
		s += descriptionWeight
	}
	return s
}
