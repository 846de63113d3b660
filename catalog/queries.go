package catalog

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/christlandtech/storefront-client/query"
)

// SearchMinLength is the number of runes a product search needs before it
// queries the server.
const SearchMinLength = 2

func positiveOrNil(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}

func orDefault(n, def int) int {
	if n <= 0 {
		return def
	}
	return n
}

// TopCategories lists categories, optionally restricted to one tree level.
func (s *Service) TopCategories(level int, opts ...query.Option) *query.Query[[]Category] {
	return query.New[[]Category](s.queries, PathCategories, append([]query.Option{
		query.WithParams(query.Params{"level": positiveOrNil(level)}),
		query.WithSelect(selectList[Category]),
	}, opts...)...)
}

func (s *Service) Categories(opts ...query.Option) *query.Query[[]Category] {
	return query.New[[]Category](s.queries, PathCategories, append([]query.Option{
		query.WithSelect(selectList[Category]),
	}, opts...)...)
}

func (s *Service) Brands(opts ...query.Option) *query.Query[[]Brand] {
	return query.New[[]Brand](s.queries, PathBrands, append([]query.Option{
		query.WithSelect(selectList[Brand]),
	}, opts...)...)
}

func (s *Service) Colors(opts ...query.Option) *query.Query[[]Color] {
	return query.New[[]Color](s.queries, PathColors, append([]query.Option{
		query.WithSelect(selectList[Color]),
	}, opts...)...)
}

// Filters lists the facets of a category, debounced for filter panels.
func (s *Service) Filters(category, subcategory string, opts ...query.Option) *query.Query[Filters] {
	return query.New[Filters](s.queries, PathFilters, append([]query.Option{
		query.WithParams(query.Params{"category": category, "subcategory": subcategory}),
		query.WithDebounce(120 * time.Millisecond),
	}, opts...)...)
}

// Products lists products matching params (page, category, brand, sort...).
func (s *Service) Products(params query.Params, opts ...query.Option) *query.Query[Page[Product]] {
	return query.New[Page[Product]](s.queries, PathProducts, append([]query.Option{
		query.WithParams(params),
		query.WithDebounce(120 * time.Millisecond),
	}, opts...)...)
}

// SearchOptions refine a product search.
type SearchOptions struct {
	Page     int
	PageSize int
	Extra    query.Params // category, subcategory, sort...
}

// ProductSearch searches products by name. It stays idle until q has at least
// SearchMinLength runes and is debounced for search-as-you-type.
func (s *Service) ProductSearch(q string, so SearchOptions, opts ...query.Option) *query.Query[Page[Product]] {
	return query.New[Page[Product]](s.queries, PathProducts, append([]query.Option{
		query.WithParams(SearchParams(q, so)),
		query.Enabled(SearchEnabled(q)),
		query.WithDebounce(200 * time.Millisecond),
	}, opts...)...)
}

// SearchParams builds the parameters of a product search.
func SearchParams(q string, so SearchOptions) query.Params {
	params := query.Params{
		"q":         q,
		"page":      orDefault(so.Page, 1),
		"page_size": orDefault(so.PageSize, 24),
	}
	for k, v := range so.Extra {
		params[k] = v
	}
	return params
}

// SearchEnabled reports whether q is long enough to be searched.
func SearchEnabled(q string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(q)) >= SearchMinLength
}

// LatestProducts lists the newest products and refreshes itself periodically.
func (s *Service) LatestProducts(opts ...query.Option) *query.Query[[]LatestProduct] {
	return query.New[[]LatestProduct](s.queries, PathLatestProducts, append([]query.Option{
		query.WithRefreshInterval(s.latestRefresh),
	}, opts...)...)
}

func (s *Service) MostDemanded(limit int, opts ...query.Option) *query.Query[[]MostDemandedProduct] {
	return query.New[[]MostDemandedProduct](s.queries, PathMostDemanded, append([]query.Option{
		query.WithParams(query.Params{"limit": orDefault(limit, 2)}),
	}, opts...)...)
}

func (s *Service) BlogHero(opts ...query.Option) *query.Query[BlogHero] {
	return query.New[BlogHero](s.queries, PathBlogHero, opts...)
}

func (s *Service) BlogPosts(opts ...query.Option) *query.Query[BlogPosts] {
	return query.New[BlogPosts](s.queries, PathBlogPosts, opts...)
}

func (s *Service) BlogLatest(limit int, opts ...query.Option) *query.Query[[]LatestArticle] {
	return query.New[[]LatestArticle](s.queries, PathBlogLatest, append([]query.Option{
		query.WithParams(query.Params{"limit": orDefault(limit, 2)}),
		query.WithDebounce(100 * time.Millisecond),
	}, opts...)...)
}

// LatestArticles returns the first page of dashboard articles as a list.
func (s *Service) LatestArticles(limit int, opts ...query.Option) *query.Query[[]Article] {
	return query.New[[]Article](s.queries, PathDashArticles, append([]query.Option{
		query.WithParams(query.Params{"page": 1, "page_size": orDefault(limit, 2)}),
		query.WithSelect(selectList[Article]),
	}, opts...)...)
}

func (s *Service) ContactMessages(limit int, opts ...query.Option) *query.Query[[]ContactMessage] {
	return query.New[[]ContactMessage](s.queries, PathContact, append([]query.Option{
		query.WithParams(query.Params{"limit": orDefault(limit, 50)}),
	}, opts...)...)
}

func (s *Service) DashboardProducts(params query.Params, opts ...query.Option) *query.Query[Page[Product]] {
	return query.New[Page[Product]](s.queries, PathDashProducts, append([]query.Option{
		query.WithParams(params),
		query.WithDebounce(100 * time.Millisecond),
	}, opts...)...)
}

// DashboardProduct loads one product. It stays idle while id is zero.
func (s *Service) DashboardProduct(id int64, opts ...query.Option) *query.Query[Product] {
	return query.New[Product](s.queries, itemPath(PathDashProducts, id, ""), append([]query.Option{
		query.Enabled(id != 0),
	}, opts...)...)
}

// AdminSearch searches products and articles from the dashboard. It stays
// idle while q is blank.
func (s *Service) AdminSearch(q string, page, pageSize int, opts ...query.Option) *query.Query[Page[AdminSearchItem]] {
	return query.New[Page[AdminSearchItem]](s.queries, PathDashSearch, append([]query.Option{
		query.WithParams(query.Params{"q": q, "page": orDefault(page, 1), "page_size": orDefault(pageSize, 10)}),
		query.Enabled(strings.TrimSpace(q) != ""),
		query.WithDebounce(200 * time.Millisecond),
	}, opts...)...)
}

// DashboardStats loads the dashboard counters. Focus changes do not refetch.
func (s *Service) DashboardStats(opts ...query.Option) *query.Query[DashboardStats] {
	return query.New[DashboardStats](s.queries, PathDashStats, append([]query.Option{
		query.RefetchOnWindowFocus(false),
	}, opts...)...)
}
