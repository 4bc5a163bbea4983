package marketplace

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sudo-init-do/quickquid/internal/apperr"
	"github.com/sudo-init-do/quickquid/internal/monitoring"
)

// SortKey orders catalog results
type SortKey string

const (
	SortRelevance SortKey = "relevance"
	SortRating    SortKey = "rating-desc"
	SortPriceAsc  SortKey = "price-asc"
	SortPriceDesc SortKey = "price-desc"
)

// CategoryAll disables the category filter
const CategoryAll = "all"

// QueryParams is a catalog query. Zero values mean "no filter" and defaults.
type QueryParams struct {
	SearchText string  `json:"q,omitempty"`
	Category   string  `json:"category,omitempty"`
	Sort       SortKey `json:"sort,omitempty"`
	Page       int     `json:"page,omitempty"`
	PageSize   int     `json:"page_size,omitempty"`
}

// QueryResult is one page of catalog entries plus the unpaged match count
type QueryResult = Page[ServiceSummary]

// Catalog answers search, filter and sort queries over listed services.
type Catalog struct {
	*base
}

// Categories returns the configured category set in display order
func (c *Catalog) Categories() []string {
	return slices.Clone(c.categoryList)
}

// Query runs params against the current set of listed services.
func (c *Catalog) Query(ctx context.Context, params QueryParams) (*QueryResult, error) {
	params, err := c.normalize(params)
	if err != nil {
		return nil, err
	}

	key := cacheKey(params)
	var generation int64
	if c.cache != nil {
		res, gen, ok := c.cache.Get(ctx, key)
		if ok {
			monitoring.RecordCatalogQuery(string(params.Sort), "hit")
			return res, nil
		}
		generation = gen
	}

	res, err := c.run(ctx, params)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(ctx, key, generation, res)
		monitoring.RecordCatalogQuery(string(params.Sort), "miss")
	} else {
		monitoring.RecordCatalogQuery(string(params.Sort), "off")
	}
	return res, nil
}

func (c *Catalog) normalize(p QueryParams) (QueryParams, error) {
	p.SearchText = strings.TrimSpace(p.SearchText)
	p.Category = strings.TrimSpace(p.Category)
	if p.Category == "" {
		p.Category = CategoryAll
	}

	switch p.Sort {
	case "":
		p.Sort = SortRelevance
	case SortRelevance, SortRating, SortPriceAsc, SortPriceDesc:
	default:
		return p, apperr.InvalidField("sort", fmt.Sprintf("unknown sort %q", p.Sort))
	}

	page, size, err := c.normalizePage(p.Page, p.PageSize)
	if err != nil {
		return p, err
	}
	p.Page, p.PageSize = page, size
	return p, nil
}

func (c *Catalog) run(ctx context.Context, p QueryParams) (*QueryResult, error) {
	if p.Category != CategoryAll && !c.categories[p.Category] {
		res := Paginate([]ServiceSummary{}, p.Page, p.PageSize)
		return &res, nil
	}

	services, err := c.store.ListListedServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}

	owners := make([]string, 0, len(services))
	seen := make(map[string]bool)
	for _, s := range services {
		if !seen[s.OwnerID] {
			seen[s.OwnerID] = true
			owners = append(owners, s.OwnerID)
		}
	}
	names, err := c.store.DisplayNames(ctx, owners)
	if err != nil {
		return nil, fmt.Errorf("resolve seller names: %w", err)
	}

	needle := strings.ToLower(p.SearchText)
	matches := make([]ServiceSummary, 0, len(services))
	for _, s := range services {
		if !s.Listed() {
			continue
		}
		if p.Category != CategoryAll && s.Category != p.Category {
			continue
		}
		name := names[s.OwnerID]
		if needle != "" &&
			!strings.Contains(strings.ToLower(s.Title), needle) &&
			!strings.Contains(strings.ToLower(name), needle) {
			continue
		}
		matches = append(matches, ServiceSummary{Service: s, SellerName: name})
	}

	sortSummaries(matches, p.Sort)

	res := Paginate(matches, p.Page, p.PageSize)
	return &res, nil
}

// sortSummaries orders items in place. Every key ends in a unique tie-break so
// identical inputs always produce identical output.
func sortSummaries(items []ServiceSummary, key SortKey) {
	switch key {
	case SortRating:
		slices.SortStableFunc(items, func(a, b ServiceSummary) int {
			if c := cmp.Compare(b.RatingAverage, a.RatingAverage); c != 0 {
				return c
			}
			if c := cmp.Compare(b.RatingCount, a.RatingCount); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	case SortPriceAsc:
		slices.SortStableFunc(items, func(a, b ServiceSummary) int {
			if c := cmp.Compare(a.BasePrice, b.BasePrice); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	case SortPriceDesc:
		slices.SortStableFunc(items, func(a, b ServiceSummary) int {
			if c := cmp.Compare(b.BasePrice, a.BasePrice); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	default:
		slices.SortStableFunc(items, func(a, b ServiceSummary) int {
			if c := cmp.Compare(a.Seq, b.Seq); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
	}
}

func cacheKey(p QueryParams) string {
	return fmt.Sprintf("q=%s|c=%s|s=%s|p=%d|n=%d",
		strings.ToLower(p.SearchText), p.Category, p.Sort, p.Page, p.PageSize)
}
