package browse

import (
	"context"
	"errors"
	"sync"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/ajperformance/storefront/backend/service"
)

var (
	// ErrSubmitInFlight is returned when a form is submitted again before the first submit finished.
	ErrSubmitInFlight = errors.New("a save is already in progress")
	// ErrNoPendingDelete is returned by a confirm without a preceding request.
	ErrNoPendingDelete = errors.New("no delete awaiting confirmation")
)

type form int

const (
	categoryForm form = iota
	ebookForm
)

// Console is the admin management view over categories, e-books and users.
// Deletes are two-phase: request, then confirm or cancel. A failed confirm keeps the request open.
type Console struct {
	Categories *Listing[models.Category]
	EBooks     *Listing[models.EBookView]
	Users      *Listing[models.User]
	Storefront *Storefront // category options for the e-book form

	categories *service.Categories
	ebooks     *service.EBooks

	mu              sync.Mutex
	submitting      map[form]bool
	pendingCategory string
	pendingEBook    string
}

func NewConsole(ctx context.Context, categories *service.Categories, ebooks *service.EBooks, users *service.Users, opts ...Option) *Console {
	sf := NewStorefront(ctx, ebooks, categories, opts...)
	return &Console{
		Categories: NewListing(ctx, categories.List, opts...),
		EBooks:     sf.Books,
		Users:      NewListing(ctx, users.List, opts...),
		Storefront: sf,
		categories: categories,
		ebooks:     ebooks,
		submitting: map[form]bool{},
	}
}

// Open loads every listing and the category options.
func (c *Console) Open(ctx context.Context) {
	c.Categories.Load(ctx)
	c.Storefront.Open(ctx)
	c.Users.Load(ctx)
}

func (c *Console) Close() {
	c.Categories.Close()
	c.EBooks.Close()
	c.Users.Close()
}

func (c *Console) begin(f form) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.submitting[f] {
		return ErrSubmitInFlight
	}
	c.submitting[f] = true
	return nil
}

func (c *Console) end(f form) {
	c.mu.Lock()
	c.submitting[f] = false
	c.mu.Unlock()
}

// SaveCategory creates a category when id is empty and renames it otherwise.
func (c *Console) SaveCategory(ctx context.Context, id, name string) (*models.Category, error) {
	if err := c.begin(categoryForm); err != nil {
		return nil, err
	}
	defer c.end(categoryForm)

	var (
		cat *models.Category
		err error
	)
	if id == "" {
		cat, err = c.categories.Create(ctx, name)
	} else {
		cat, err = c.categories.Update(ctx, id, name)
	}
	if err != nil {
		return nil, err
	}
	c.categoriesChanged(ctx)
	return cat, nil
}

// CreateEBook uploads img and creates the e-book.
func (c *Console) CreateEBook(ctx context.Context, in service.EBookInput, img *service.ImageFile) (*models.EBook, error) {
	if err := c.begin(ebookForm); err != nil {
		return nil, err
	}
	defer c.end(ebookForm)

	book, err := c.ebooks.CreateWithImage(ctx, in, img)
	if err != nil {
		return nil, err
	}
	c.EBooks.Refresh(ctx)
	return book, nil
}

// UpdateEBook applies patch and, when img is set, replaces the cover.
func (c *Console) UpdateEBook(ctx context.Context, id string, patch models.EBookPatch, img *service.ImageFile) (*models.EBook, error) {
	if err := c.begin(ebookForm); err != nil {
		return nil, err
	}
	defer c.end(ebookForm)

	book, err := c.ebooks.UpdateWithImage(ctx, id, patch, img)
	if err != nil {
		return nil, err
	}
	c.EBooks.Refresh(ctx)
	return book, nil
}

func (c *Console) RequestDeleteCategory(id string) {
	c.mu.Lock()
	c.pendingCategory = id
	c.mu.Unlock()
}

func (c *Console) CancelDeleteCategory() {
	c.mu.Lock()
	c.pendingCategory = ""
	c.mu.Unlock()
}

func (c *Console) PendingCategoryDelete() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingCategory
}

// ConfirmDeleteCategory deletes the requested category. E-books that reference it are left as they are.
func (c *Console) ConfirmDeleteCategory(ctx context.Context) error {
	c.mu.Lock()
	id := c.pendingCategory
	c.mu.Unlock()
	if id == "" {
		return ErrNoPendingDelete
	}
	if err := c.categories.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	if c.pendingCategory == id {
		c.pendingCategory = ""
	}
	c.mu.Unlock()
	c.categoriesChanged(ctx)
	return nil
}

func (c *Console) RequestDeleteEBook(id string) {
	c.mu.Lock()
	c.pendingEBook = id
	c.mu.Unlock()
}

func (c *Console) CancelDeleteEBook() {
	c.mu.Lock()
	c.pendingEBook = ""
	c.mu.Unlock()
}

func (c *Console) PendingEBookDelete() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingEBook
}

func (c *Console) ConfirmDeleteEBook(ctx context.Context) error {
	c.mu.Lock()
	id := c.pendingEBook
	c.mu.Unlock()
	if id == "" {
		return ErrNoPendingDelete
	}
	if err := c.ebooks.Delete(ctx, id); err != nil {
		return err
	}
	c.mu.Lock()
	if c.pendingEBook == id {
		c.pendingEBook = ""
	}
	c.mu.Unlock()
	c.EBooks.Refresh(ctx)
	return nil
}

// categoriesChanged refreshes everything that shows category names.
func (c *Console) categoriesChanged(ctx context.Context) {
	c.Categories.Refresh(ctx)
	c.Storefront.ReloadCategories(ctx)
	c.EBooks.Refresh(ctx)
}
