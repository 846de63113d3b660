// Package catalog exposes the storefront and dashboard resources of the
// Christland API as typed queries and mutations.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/christlandtech/storefront-client/apiclient"
	"github.com/christlandtech/storefront-client/query"
)

// Endpoint paths, relative to the API base.
const (
	PathCategories     = "/api/catalog/categories/"
	PathFilters        = "/api/catalog/filters/"
	PathProducts       = "/api/catalog/products/"
	PathLatestProducts = "/api/catalog/products/latest/"
	PathMostDemanded   = "/api/catalog/products/most-demanded/"
	PathBrands         = "/api/catalog/marques/"
	PathColors         = "/api/catalog/couleurs/"
	PathBlogHero       = "/api/blog/hero/"
	PathBlogPosts      = "/api/blog/posts/"
	PathBlogLatest     = "/api/blog/latest/"
	PathContact        = "/api/contact/messages/"
	PathDashProducts   = "/api/dashboard/produits/"
	PathDashArticles   = "/api/dashboard/articles/"
	PathDashSearch     = "/api/dashboard/search/"
	PathDashStats      = "/api/dashboard/stats/"
	PathAddProduct     = "/api/produits/ajouter/"
	PathUploadImage    = "/api/uploads/images/"
)

const DefaultLatestRefresh = 30 * time.Second

// Service builds catalog queries on a query.Client and sends mutations
// through the authenticated API client.
type Service struct {
	queries       *query.Client
	api           *apiclient.Client
	latestRefresh time.Duration
}

type Option func(*Service)

// WithLatestRefresh sets how often LatestProducts refreshes itself.
func WithLatestRefresh(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.latestRefresh = d
		}
	}
}

func NewService(queries *query.Client, api *apiclient.Client, opts ...Option) *Service {
	s := &Service{
		queries:       queries,
		api:           api,
		latestRefresh: DefaultLatestRefresh,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// selectList decodes either a bare JSON array or a paginated envelope into
// its items. null yields an empty list.
func selectList[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []T{}, nil
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var page struct {
		Results []T `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("catalog: expected a list or a page: %w", err)
	}
	if page.Results == nil {
		return []T{}, nil
	}
	return page.Results, nil
}

func itemPath(base string, id int64, suffix string) string {
	return fmt.Sprintf("%s%d/%s", base, id, suffix)
}
