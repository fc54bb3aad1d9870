package handlers

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ajperformance/storefront/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// backend is an in-memory document and object store behind the handler tests.
type backend struct {
	mu         sync.Mutex
	categories []models.Category
	ebooks     []models.EBook
	users      []models.User
	accounts   []models.Account
	objects    map[string]bool
	listErr    error // returned by ListEBooks when set
}

func newBackend() *backend { return &backend{objects: map[string]bool{}} }

func slice[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	return append([]T(nil), items[offset:min(offset+limit, len(items))]...)
}

func (b *backend) ListCategories(_ context.Context, search string, limit, offset int) ([]models.Category, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.Category
	for _, c := range b.categories {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			out = append(out, c)
		}
	}
	return slice(out, limit, offset), int64(len(out)), nil
}

func (b *backend) AllCategories(context.Context) ([]models.Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Category(nil), b.categories...), nil
}

func (b *backend) CategoryByID(_ context.Context, id string) (*models.Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.categories {
		if c.ID.Hex() == id {
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (b *backend) InsertCategory(_ context.Context, c *models.Category) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.ID = primitive.NewObjectID()
	b.categories = append([]models.Category{*c}, b.categories...)
	return nil
}

func (b *backend) RenameCategory(_ context.Context, id, name string) (*models.Category, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.categories {
		if b.categories[i].ID.Hex() == id {
			b.categories[i].Name = name
			c := b.categories[i]
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (b *backend) DeleteCategory(_ context.Context, id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, c := range b.categories {
		if c.ID.Hex() == id {
			b.categories = append(b.categories[:i], b.categories[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (b *backend) ListEBooks(_ context.Context, categoryID string, limit, offset int) ([]models.EBook, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listErr != nil {
		return nil, 0, b.listErr
	}
	var out []models.EBook
	for _, e := range b.ebooks {
		if categoryID == "" || e.Categorie == categoryID {
			out = append(out, e)
		}
	}
	return slice(out, limit, offset), int64(len(out)), nil
}

func (b *backend) EBookByID(_ context.Context, id string) (*models.EBook, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.ebooks {
		if e.ID.Hex() == id {
			return &e, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (b *backend) InsertEBook(_ context.Context, e *models.EBook) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e.ID = primitive.NewObjectID()
	b.ebooks = append([]models.EBook{*e}, b.ebooks...)
	return nil
}

func (b *backend) UpdateEBook(_ context.Context, id string, p models.EBookPatch) (*models.EBook, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.ebooks {
		e := &b.ebooks[i]
		if e.ID.Hex() != id {
			continue
		}
		if p.Title != nil {
			e.Title = *p.Title
		}
		if p.Description != nil {
			e.Description = *p.Description
		}
		if p.Price != nil {
			e.Price = *p.Price
		}
		if p.Image != nil {
			e.Image = *p.Image
		}
		if p.Categorie != nil {
			e.Categorie = *p.Categorie
		}
		out := *e
		return &out, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (b *backend) DeleteEBook(_ context.Context, id string) (*models.EBook, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.ebooks {
		if e.ID.Hex() == id {
			b.ebooks = append(b.ebooks[:i], b.ebooks[i+1:]...)
			return &e, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (b *backend) ListUsers(_ context.Context, search string, isAdmin *bool, limit, offset int) ([]models.User, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.User
	for _, u := range b.users {
		if isAdmin != nil && u.IsAdmin != *isAdmin {
			continue
		}
		if strings.Contains(strings.ToLower(u.FullName+" "+u.Email), strings.ToLower(search)) {
			out = append(out, u)
		}
	}
	return slice(out, limit, offset), int64(len(out)), nil
}

func (b *backend) UserByID(_ context.Context, id string) (*models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.ID.Hex() == id {
			return &u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (b *backend) InsertUser(_ context.Context, u *models.User) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users = append([]models.User{*u}, b.users...)
	return nil
}

func (b *backend) UpdateUser(_ context.Context, id string, p models.UserPatch) (*models.User, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.users {
		u := &b.users[i]
		if u.ID.Hex() != id {
			continue
		}
		if p.FullName != nil {
			u.FullName = *p.FullName
		}
		if p.PhoneNumber != nil {
			u.PhoneNumber = *p.PhoneNumber
		}
		if p.AuthMethod != nil {
			u.AuthMethod = *p.AuthMethod
		}
		if p.IsAdmin != nil {
			u.IsAdmin = *p.IsAdmin
		}
		out := *u
		return &out, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (b *backend) AccountByEmail(_ context.Context, email string) (*models.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.accounts {
		if a.Email == strings.ToLower(strings.TrimSpace(email)) {
			return &a, nil
		}
	}
	return nil, nil
}

func (b *backend) AccountByID(_ context.Context, id string) (*models.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, a := range b.accounts {
		if a.ID.Hex() == id {
			return &a, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (b *backend) InsertAccount(_ context.Context, a *models.Account) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	a.ID = primitive.NewObjectID()
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	b.accounts = append(b.accounts, *a)
	return nil
}

func (b *backend) SetVerification(_ context.Context, id, hash string, expires time.Time) error {
	return b.withAccount(id, func(a *models.Account) {
		a.VerificationHash = hash
		a.VerificationExpiresAt = expires
	})
}

func (b *backend) MarkEmailVerified(_ context.Context, id string) error {
	return b.withAccount(id, func(a *models.Account) { a.EmailVerified = true })
}

func (b *backend) ClaimAccount(_ context.Context, id, name, provider string) error {
	return b.withAccount(id, func(a *models.Account) {
		a.EmailVerified, a.Provider, a.Name = true, provider, name
		a.PasswordHash, a.Phone, a.VerificationHash = "", "", ""
	})
}

func (b *backend) withAccount(id string, fn func(*models.Account)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.accounts {
		if b.accounts[i].ID.Hex() == id {
			fn(&b.accounts[i])
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (b *backend) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	_, _ = io.Copy(io.Discard, body)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = true
	return nil
}

func (b *backend) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://img.test/" + key, nil
}

func (b *backend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}
