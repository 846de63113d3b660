package catalog

import (
	"context"
	"fmt"
	"io"

	"github.com/christlandtech/storefront-client/apiclient"
	"github.com/christlandtech/storefront-client/internal/errors"
	"github.com/christlandtech/storefront-client/query"
)

func (s *Service) getWithParams(ctx context.Context, path string, params query.Params, out any) error {
	return s.api.GetJSON(ctx, query.BuildURL(path, params, s.queries.Lang()), out)
}

// GetProducts fetches one page of products without caching.
func (s *Service) GetProducts(ctx context.Context, params query.Params) (*Page[Product], error) {
	var page Page[Product]
	if err := s.getWithParams(ctx, PathProducts, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (s *Service) GetDashboardStats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	if err := s.getWithParams(ctx, PathDashStats, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Service) AdminGlobalSearch(ctx context.Context, q string, page, pageSize int) (*Page[AdminSearchItem], error) {
	var out Page[AdminSearchItem]
	params := query.Params{"q": q, "page": orDefault(page, 1), "page_size": orDefault(pageSize, 10)}
	if err := s.getWithParams(ctx, PathDashSearch, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordProductClick counts a visit of product id and returns the new total.
func (s *Service) RecordProductClick(ctx context.Context, id int64) (*ClickResult, error) {
	if id == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "product id is required")
	}
	var res ClickResult
	if err := s.api.PostJSON(ctx, itemPath(PathProducts, id, "click/"), struct{}{}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (s *Service) SendContactMessage(ctx context.Context, payload ContactPayload) (*ContactMessage, error) {
	if payload.Email == "" || payload.Message == "" {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "contact message needs an email and a message")
	}
	var msg ContactMessage
	if err := s.api.PostJSON(ctx, PathContact, payload, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// CreateProductWithVariant creates a product and its first variant in one call.
func (s *Service) CreateProductWithVariant(ctx context.Context, payload ProductPayload) (map[string]any, error) {
	if payload.Nom == "" {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "product name is required")
	}
	out := map[string]any{}
	if err := s.api.PostJSON(ctx, PathAddProduct, payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProductEdit loads the full editable form of a product.
func (s *Service) GetProductEdit(ctx context.Context, id int64) (map[string]any, error) {
	out := map[string]any{}
	if err := s.api.GetJSON(ctx, itemPath(PathDashProducts, id, "edit/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateProduct replaces the editable form of a product.
func (s *Service) UpdateProduct(ctx context.Context, id int64, payload any) (map[string]any, error) {
	out := map[string]any{}
	if err := s.api.PutJSON(ctx, itemPath(PathDashProducts, id, "edit/"), payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	return s.api.Delete(ctx, itemPath(PathDashProducts, id, ""))
}

// GetArticles lists dashboard articles, newest first.
func (s *Service) GetArticles(ctx context.Context, page, pageSize int, q string) (*Page[Article], error) {
	var out Page[Article]
	params := query.Params{"page": orDefault(page, 1), "page_size": orDefault(pageSize, 10), "q": q}
	if err := s.getWithParams(ctx, PathDashArticles, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) GetArticle(ctx context.Context, id int64) (*Article, error) {
	var a Article
	if err := s.api.GetJSON(ctx, itemPath(PathDashArticles, id, "edit/"), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) CreateArticle(ctx context.Context, a NewArticle) (*Article, error) {
	var out Article
	if err := s.api.PostJSON(ctx, PathDashArticles, a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateArticle patches only the fields set in a.
func (s *Service) UpdateArticle(ctx context.Context, id int64, a NewArticle) (*Article, error) {
	var out Article
	if err := s.api.PatchJSON(ctx, itemPath(PathDashArticles, id, ""), a, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) DeleteArticle(ctx context.Context, id int64) error {
	return s.api.Delete(ctx, itemPath(PathDashArticles, id, ""))
}

// UploadImage uploads an image file and returns where the server stored it.
func (s *Service) UploadImage(ctx context.Context, fileName string, content io.Reader, altText string) (*UploadedImage, error) {
	if content == nil {
		return nil, errors.Wrapf(errors.ErrInvalidArgument, "image content is required")
	}
	var out UploadedImage
	err := s.api.UploadFile(ctx, PathUploadImage,
		apiclient.Upload{FieldName: "file", FileName: fileName, Content: content},
		map[string]string{"alt_text": altText}, &out)
	if err != nil {
		return nil, fmt.Errorf("[catalog UploadImage] %w", err)
	}
	return &out, nil
}
