package browse

import (
	"context"
	"sync"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/ajperformance/storefront/backend/service"
	"github.com/rs/zerolog/log"
)

// EBookViews adapts the e-book catalog to a Fetcher of display rows.
func EBookViews(ebooks *service.EBooks) Fetcher[models.EBookView] {
	return func(ctx context.Context, q models.ListQuery) (models.Page[models.EBookView], error) {
		page, err := ebooks.List(ctx, q)
		if err != nil {
			return models.Page[models.EBookView]{}, err
		}
		return models.Page[models.EBookView]{
			Items:  ebooks.Project(ctx, page.Items),
			Total:  page.Total,
			Limit:  page.Limit,
			Offset: page.Offset,
		}, nil
	}
}

// Storefront is the public catalog: the e-book listing plus the category choices for its filter.
type Storefront struct {
	Books *Listing[models.EBookView]

	categories *service.Categories
	mu         sync.Mutex
	options    []models.Category
}

func NewStorefront(ctx context.Context, ebooks *service.EBooks, categories *service.Categories, opts ...Option) *Storefront {
	return &Storefront{
		Books:      NewListing(ctx, EBookViews(ebooks), opts...),
		categories: categories,
		options:    []models.Category{},
	}
}

// Open loads the category choices and the first page of e-books.
func (s *Storefront) Open(ctx context.Context) Snapshot[models.EBookView] {
	s.ReloadCategories(ctx)
	return s.Books.Load(ctx)
}

// ReloadCategories refreshes the filter choices. A failure leaves the list empty.
func (s *Storefront) ReloadCategories(ctx context.Context) []models.Category {
	cats, err := s.categories.All(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("load category options")
		cats = []models.Category{}
	}
	s.mu.Lock()
	s.options = cats
	s.mu.Unlock()
	return cats
}

func (s *Storefront) CategoryOptions() []models.Category {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Category(nil), s.options...)
}

func (s *Storefront) Close() { s.Books.Close() }
