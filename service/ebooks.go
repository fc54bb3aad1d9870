package service

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/rs/zerolog/log"
)

// SearchCap is how many newest e-books a search scans. Title/description matching happens in memory,
// so matches older than the newest SearchCap documents are not found. Move to a server-side text index
// over both fields if the catalog outgrows it.
const SearchCap = 1000

// EBookStore is the document-store surface the e-book catalog needs.
type EBookStore interface {
	ListEBooks(ctx context.Context, categoryID string, limit, offset int) ([]models.EBook, int64, error)
	EBookByID(ctx context.Context, id string) (*models.EBook, error)
	InsertEBook(ctx context.Context, book *models.EBook) error
	UpdateEBook(ctx context.Context, id string, patch models.EBookPatch) (*models.EBook, error)
	DeleteEBook(ctx context.Context, id string) (*models.EBook, error)
}

// EBookInput holds the fields of a new e-book. Price is a pointer so a missing price is distinguishable from 0.
type EBookInput struct {
	Title       string
	Description string
	Price       *float64
	Image       string
	Categorie   string
}

// EBooks owns e-book CRUD, listing, and the cover image lifecycle.
type EBooks struct {
	Store      EBookStore
	Images     *Images
	Categories *Categories
}

// List returns one newest-first page. With a search term it scans up to SearchCap documents and
// matches title or description case-insensitively; otherwise paging is delegated to the store.
func (e *EBooks) List(ctx context.Context, q models.ListQuery) (models.Page[models.EBook], error) {
	q = q.Normalize()
	search := strings.ToLower(strings.TrimSpace(q.Search))
	if search == "" {
		items, total, err := e.Store.ListEBooks(ctx, q.CategoryID, q.Limit, q.Offset)
		if err != nil {
			return models.Page[models.EBook]{}, classify(err, "fetch e-books")
		}
		return models.Page[models.EBook]{Items: items, Total: int(total), Limit: q.Limit, Offset: q.Offset}, nil
	}

	candidates, _, err := e.Store.ListEBooks(ctx, q.CategoryID, SearchCap, 0)
	if err != nil {
		return models.Page[models.EBook]{}, classify(err, "fetch e-books")
	}
	if len(candidates) >= SearchCap {
		log.Warn().Int("cap", SearchCap).Str("category", q.CategoryID).Msg("e-book search scanned a truncated set")
	}
	matched := make([]models.EBook, 0, len(candidates))
	for _, b := range candidates {
		if strings.Contains(strings.ToLower(b.Title), search) || strings.Contains(strings.ToLower(b.Description), search) {
			matched = append(matched, b)
		}
	}
	page := models.Page[models.EBook]{Items: []models.EBook{}, Total: len(matched), Limit: q.Limit, Offset: q.Offset}
	if q.Offset < len(matched) {
		end := min(q.Offset+q.Limit, len(matched))
		page.Items = matched[q.Offset:end]
	}
	return page, nil
}

func (e *EBooks) Get(ctx context.Context, id string) (*models.EBook, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "E-book ID is required.")
	}
	book, err := e.Store.EBookByID(ctx, id)
	if err != nil {
		return nil, classify(err, "fetch e-book")
	}
	return book, nil
}

// Create validates in and stores it. in.Image must be the id of an already uploaded image.
func (e *EBooks) Create(ctx context.Context, in EBookInput) (*models.EBook, error) {
	book, err := validateInput(in, true)
	if err != nil {
		return nil, err
	}
	if err := e.Store.InsertEBook(ctx, book); err != nil {
		return nil, classify(err, "create e-books")
	}
	return book, nil
}

// Update revalidates every field set on patch and leaves the rest unchanged.
func (e *EBooks) Update(ctx context.Context, id string, patch models.EBookPatch) (*models.EBook, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "E-book ID is required.")
	}
	patch, err := validatePatch(patch)
	if err != nil {
		return nil, err
	}
	book, err := e.Store.UpdateEBook(ctx, id, patch)
	if err != nil {
		return nil, classify(err, "update e-books")
	}
	return book, nil
}

// Delete removes the document, then the cover image. The image delete is best effort:
// its failure is logged and the document delete is not rolled back.
func (e *EBooks) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("id", "E-book ID is required.")
	}
	book, err := e.Store.DeleteEBook(ctx, id)
	if err != nil {
		return classify(err, "delete e-books")
	}
	if book.Image != "" {
		e.discardImage(ctx, book.Image, "delete e-book")
	}
	return nil
}

// CreateWithImage uploads img first and creates the e-book pointing at it. If the document cannot be
// created the upload is deleted again. A nil img falls back to Create with in.Image.
func (e *EBooks) CreateWithImage(ctx context.Context, in EBookInput, img *ImageFile) (*models.EBook, error) {
	if img == nil {
		return e.Create(ctx, in)
	}
	if _, err := validateInput(in, false); err != nil {
		return nil, err
	}
	imageID, err := e.Images.Upload(ctx, img)
	if err != nil {
		return nil, err
	}
	in.Image = imageID
	book, err := e.Create(ctx, in)
	if err != nil {
		e.discardImage(ctx, imageID, "rollback create")
		return nil, err
	}
	return book, nil
}

// UpdateWithImage replaces the cover: upload the new image, move the document onto it, and only then
// delete the old one. If the update fails the new upload is deleted and the old image stays referenced.
func (e *EBooks) UpdateWithImage(ctx context.Context, id string, patch models.EBookPatch, img *ImageFile) (*models.EBook, error) {
	if img == nil {
		return e.Update(ctx, id, patch)
	}
	patch.Image = nil
	if _, err := validatePatch(patch); err != nil {
		return nil, err
	}
	current, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	imageID, err := e.Images.Upload(ctx, img)
	if err != nil {
		return nil, err
	}
	patch.Image = &imageID
	book, err := e.Update(ctx, id, patch)
	if err != nil {
		e.discardImage(ctx, imageID, "rollback update")
		return nil, err
	}
	if current.Image != "" && current.Image != imageID {
		e.discardImage(ctx, current.Image, "replace image")
	}
	return book, nil
}

// discardImage is the compensating step after a primary operation. Failures are logged only.
func (e *EBooks) discardImage(ctx context.Context, imageID, reason string) {
	if err := e.Images.Delete(ctx, imageID); err != nil {
		log.Warn().Err(err).Str("image", imageID).Str("reason", reason).Msg("image cleanup failed")
		return
	}
	log.Debug().Str("image", imageID).Str("reason", reason).Msg("image deleted")
}

// Project resolves category names and image URLs for display.
func (e *EBooks) Project(ctx context.Context, books []models.EBook) []models.EBookView {
	names := map[string]string{}
	if e.Categories != nil && len(books) > 0 {
		cats, err := e.Categories.All(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("resolve category names")
		}
		for _, c := range cats {
			names[c.ID.Hex()] = c.Name
		}
	}
	views := make([]models.EBookView, 0, len(books))
	for _, b := range books {
		name, ok := names[b.Categorie]
		if !ok {
			name = models.UncategorizedName
		}
		v := models.EBookView{
			ID:           b.ID.Hex(),
			Title:        b.Title,
			Description:  b.Description,
			Price:        b.Price,
			PriceLabel:   FormatPrice(b.Price),
			ImageID:      b.Image,
			CategoryID:   b.Categorie,
			CategoryName: name,
		}
		if e.Images != nil {
			v.ImageURL = e.Images.URLFor(ctx, b.Image)
		}
		views = append(views, v)
	}
	return views
}

// FormatPrice renders a price with two decimals.
func FormatPrice(p float64) string {
	return fmt.Sprintf("%.2f", p)
}

func validPrice(p *float64) bool {
	return p != nil && !math.IsNaN(*p) && !math.IsInf(*p, 0) && *p >= 0
}

// validateInput trims in and checks every required field. requireImage is false while the
// image is still staged for upload.
func validateInput(in EBookInput, requireImage bool) (*models.EBook, error) {
	book := &models.EBook{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Image:       strings.TrimSpace(in.Image),
		Categorie:   strings.TrimSpace(in.Categorie),
	}
	switch {
	case book.Title == "":
		return nil, invalid("title", "Title is required.")
	case book.Description == "":
		return nil, invalid("description", "Description is required.")
	case !validPrice(in.Price):
		return nil, invalid("price", "Valid price is required.")
	case requireImage && book.Image == "":
		return nil, invalid("image", "Image is required.")
	case book.Categorie == "":
		return nil, invalid("categorie", "Category is required.")
	}
	book.Price = *in.Price
	return book, nil
}

func validatePatch(p models.EBookPatch) (models.EBookPatch, error) {
	trim := func(s *string, field, message string) (*string, error) {
		if s == nil {
			return nil, nil
		}
		v := strings.TrimSpace(*s)
		if v == "" {
			return nil, invalid(field, message)
		}
		return &v, nil
	}
	var err error
	out := models.EBookPatch{Price: p.Price}
	if out.Title, err = trim(p.Title, "title", "Title cannot be empty."); err != nil {
		return out, err
	}
	if out.Description, err = trim(p.Description, "description", "Description cannot be empty."); err != nil {
		return out, err
	}
	if p.Price != nil && !validPrice(p.Price) {
		return out, invalid("price", "Valid price is required.")
	}
	if out.Image, err = trim(p.Image, "image", "Image cannot be empty."); err != nil {
		return out, err
	}
	if out.Categorie, err = trim(p.Categorie, "categorie", "Category cannot be empty."); err != nil {
		return out, err
	}
	return out, nil
}
