package service

import (
	"context"
	"strings"

	"github.com/ajperformance/storefront/backend/models"
)

// CategoryStore is the document-store surface the category catalog needs.
type CategoryStore interface {
	ListCategories(ctx context.Context, search string, limit, offset int) ([]models.Category, int64, error)
	AllCategories(ctx context.Context) ([]models.Category, error)
	CategoryByID(ctx context.Context, id string) (*models.Category, error)
	InsertCategory(ctx context.Context, c *models.Category) error
	RenameCategory(ctx context.Context, id, name string) (*models.Category, error)
	DeleteCategory(ctx context.Context, id string) error
}

// Categories owns category CRUD and listing.
type Categories struct {
	Store CategoryStore
}

// List searches by name, newest first. An empty search returns the unfiltered page.
func (c *Categories) List(ctx context.Context, q models.ListQuery) (models.Page[models.Category], error) {
	q = q.Normalize()
	items, total, err := c.Store.ListCategories(ctx, q.Search, q.Limit, q.Offset)
	if err != nil {
		return models.Page[models.Category]{}, classify(err, "fetch categories")
	}
	return models.Page[models.Category]{Items: items, Total: int(total), Limit: q.Limit, Offset: q.Offset}, nil
}

// All returns every category by name for selection controls. It is not meant for large collections.
func (c *Categories) All(ctx context.Context) ([]models.Category, error) {
	items, err := c.Store.AllCategories(ctx)
	if err != nil {
		return nil, classify(err, "fetch categories")
	}
	return items, nil
}

func (c *Categories) Get(ctx context.Context, id string) (*models.Category, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "Category ID is required.")
	}
	cat, err := c.Store.CategoryByID(ctx, id)
	if err != nil {
		return nil, classify(err, "fetch category")
	}
	return cat, nil
}

func (c *Categories) Create(ctx context.Context, name string) (*models.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "Category name is required.")
	}
	cat := &models.Category{Name: name}
	if err := c.Store.InsertCategory(ctx, cat); err != nil {
		return nil, classify(err, "create category")
	}
	return cat, nil
}

func (c *Categories) Update(ctx context.Context, id, name string) (*models.Category, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "Category ID is required.")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("name", "Category name is required.")
	}
	cat, err := c.Store.RenameCategory(ctx, id, name)
	if err != nil {
		return nil, classify(err, "update category")
	}
	return cat, nil
}

// Delete removes the category without checking for e-books that still reference it.
// Those keep the dangling id and are shown as Uncategorized.
func (c *Categories) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id", "Category ID is required.")
	}
	if err := c.Store.DeleteCategory(ctx, id); err != nil {
		return classify(err, "delete category")
	}
	return nil
}
