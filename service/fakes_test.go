package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ajperformance/storefront/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// memStore is an in-memory stand-in for store.DB. Slices are kept newest first.
type memStore struct {
	mu         sync.Mutex
	categories []models.Category
	ebooks     []models.EBook
	users      []models.User
	accounts   []models.Account
	fail       map[string]error
	calls      map[string]int
}

func newMemStore() *memStore {
	return &memStore{fail: map[string]error{}, calls: map[string]int{}}
}

func (m *memStore) hit(op string) error {
	m.calls[op]++
	return m.fail[op]
}

func (m *memStore) count(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return append([]T(nil), items[offset:end]...)
}

func (m *memStore) ListCategories(_ context.Context, search string, limit, offset int) ([]models.Category, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("ListCategories"); err != nil {
		return nil, 0, err
	}
	var out []models.Category
	for _, c := range m.categories {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(search)) {
			out = append(out, c)
		}
	}
	return window(out, limit, offset), int64(len(out)), nil
}

func (m *memStore) AllCategories(context.Context) ([]models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("AllCategories"); err != nil {
		return nil, err
	}
	return append([]models.Category(nil), m.categories...), nil
}

func (m *memStore) CategoryByID(_ context.Context, id string) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("CategoryByID"); err != nil {
		return nil, err
	}
	for _, c := range m.categories {
		if c.ID.Hex() == id {
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memStore) InsertCategory(_ context.Context, c *models.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("InsertCategory"); err != nil {
		return err
	}
	c.ID = primitive.NewObjectID()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.categories = append([]models.Category{*c}, m.categories...)
	return nil
}

func (m *memStore) RenameCategory(_ context.Context, id, name string) (*models.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("RenameCategory"); err != nil {
		return nil, err
	}
	for i := range m.categories {
		if m.categories[i].ID.Hex() == id {
			m.categories[i].Name = name
			c := m.categories[i]
			return &c, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memStore) DeleteCategory(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("DeleteCategory"); err != nil {
		return err
	}
	for i, c := range m.categories {
		if c.ID.Hex() == id {
			m.categories = append(m.categories[:i], m.categories[i+1:]...)
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

func (m *memStore) ListEBooks(_ context.Context, categoryID string, limit, offset int) ([]models.EBook, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("ListEBooks"); err != nil {
		return nil, 0, err
	}
	var out []models.EBook
	for _, b := range m.ebooks {
		if categoryID == "" || b.Categorie == categoryID {
			out = append(out, b)
		}
	}
	return window(out, limit, offset), int64(len(out)), nil
}

func (m *memStore) EBookByID(_ context.Context, id string) (*models.EBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("EBookByID"); err != nil {
		return nil, err
	}
	for _, b := range m.ebooks {
		if b.ID.Hex() == id {
			return &b, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memStore) InsertEBook(_ context.Context, b *models.EBook) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("InsertEBook"); err != nil {
		return err
	}
	b.ID = primitive.NewObjectID()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	m.ebooks = append([]models.EBook{*b}, m.ebooks...)
	return nil
}

func (m *memStore) UpdateEBook(_ context.Context, id string, p models.EBookPatch) (*models.EBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("UpdateEBook"); err != nil {
		return nil, err
	}
	for i := range m.ebooks {
		b := &m.ebooks[i]
		if b.ID.Hex() != id {
			continue
		}
		if p.Title != nil {
			b.Title = *p.Title
		}
		if p.Description != nil {
			b.Description = *p.Description
		}
		if p.Price != nil {
			b.Price = *p.Price
		}
		if p.Image != nil {
			b.Image = *p.Image
		}
		if p.Categorie != nil {
			b.Categorie = *p.Categorie
		}
		out := *b
		return &out, nil
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memStore) DeleteEBook(_ context.Context, id string) (*models.EBook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("DeleteEBook"); err != nil {
		return nil, err
	}
	for i, b := range m.ebooks {
		if b.ID.Hex() == id {
			m.ebooks = append(m.ebooks[:i], m.ebooks[i+1:]...)
			return &b, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memStore) ListUsers(_ context.Context, search string, isAdmin *bool, limit, offset int) ([]models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("ListUsers"); err != nil {
		return nil, 0, err
	}
	term := strings.ToLower(search)
	var out []models.User
	for _, u := range m.users {
		if isAdmin != nil && u.IsAdmin != *isAdmin {
			continue
		}
		if strings.Contains(strings.ToLower(u.FullName), term) || strings.Contains(strings.ToLower(u.Email), term) {
			out = append(out, u)
		}
	}
	return window(out, limit, offset), int64(len(out)), nil
}

func (m *memStore) UserByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("UserByID"); err != nil {
		return nil, err
	}
	for _, u := range m.users {
		if u.ID.Hex() == id {
			return &u, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memStore) InsertUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("InsertUser"); err != nil {
		return err
	}
	for _, existing := range m.users {
		if existing.ID == u.ID {
			return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key"}}}
		}
	}
	u.CreatedAt = time.Now()
	m.users = append([]models.User{*u}, m.users...)
	return nil
}

func (m *memStore) UpdateUser(_ context.Context, id string, p models.UserPatch) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("UpdateUser"); err != nil {
		return nil, err
	}
	for i := range m.users {
		u := &m.users[i]
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

func (m *memStore) AccountByEmail(_ context.Context, email string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("AccountByEmail"); err != nil {
		return nil, err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range m.accounts {
		if a.Email == email {
			return &a, nil
		}
	}
	return nil, nil
}

func (m *memStore) AccountByID(_ context.Context, id string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("AccountByID"); err != nil {
		return nil, err
	}
	for _, a := range m.accounts {
		if a.ID.Hex() == id {
			return &a, nil
		}
	}
	return nil, mongo.ErrNoDocuments
}

func (m *memStore) InsertAccount(_ context.Context, a *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("InsertAccount"); err != nil {
		return err
	}
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	for _, existing := range m.accounts {
		if existing.Email == a.Email {
			return mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "duplicate key"}}}
		}
	}
	a.ID = primitive.NewObjectID()
	a.CreatedAt = time.Now()
	m.accounts = append(m.accounts, *a)
	return nil
}

func (m *memStore) SetVerification(_ context.Context, id, secretHash string, expiresAt time.Time) error {
	return m.updateAccount("SetVerification", id, func(a *models.Account) {
		a.VerificationHash = secretHash
		a.VerificationExpiresAt = expiresAt
	})
}

func (m *memStore) MarkEmailVerified(_ context.Context, id string) error {
	return m.updateAccount("MarkEmailVerified", id, func(a *models.Account) {
		a.EmailVerified = true
		a.VerificationHash = ""
		a.VerificationExpiresAt = time.Time{}
	})
}

func (m *memStore) ClaimAccount(_ context.Context, id, name, provider string) error {
	return m.updateAccount("ClaimAccount", id, func(a *models.Account) {
		a.EmailVerified = true
		a.Provider = provider
		a.Name = name
		a.PasswordHash = ""
		a.Phone = ""
		a.VerificationHash = ""
		a.VerificationExpiresAt = time.Time{}
	})
}

func (m *memStore) updateAccount(op, id string, apply func(*models.Account)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit(op); err != nil {
		return err
	}
	for i := range m.accounts {
		if m.accounts[i].ID.Hex() == id {
			apply(&m.accounts[i])
			return nil
		}
	}
	return mongo.ErrNoDocuments
}

// memObjects is an in-memory ObjectStore.
type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut error
	failDel error
	deleted []string
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (o *memObjects) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failPut != nil {
		return o.failPut
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return err
	}
	o.objects[key] = buf.Bytes()
	return nil
}

func (o *memObjects) URL(_ context.Context, key string, _ time.Duration) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.objects[key]; !ok {
		return "", errors.New("no such key")
	}
	return "https://cdn.test/" + key, nil
}

func (o *memObjects) Delete(_ context.Context, key string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failDel != nil {
		return o.failDel
	}
	delete(o.objects, key)
	o.deleted = append(o.deleted, key)
	return nil
}

func (o *memObjects) has(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.objects[key]
	return ok
}

func (o *memObjects) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.objects)
}

func pngFile(size int) *ImageFile {
	return &ImageFile{Name: "cover.png", ContentType: "image/png", Size: int64(size), Body: bytes.NewReader(make([]byte, size))}
}

func price(p float64) *float64 { return &p }

func str(s string) *string { return &s }
