package service

import (
	"context"
	"errors"
	"strings"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
)

// UserStore is the document-store surface of the user directory.
type UserStore interface {
	ListUsers(ctx context.Context, search string, isAdmin *bool, limit, offset int) ([]models.User, int64, error)
	UserByID(ctx context.Context, id string) (*models.User, error)
	InsertUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error)
}

// Users is the admin-facing user directory plus the profile document lifecycle.
type Users struct {
	Store UserStore
}

// List searches fullName or email, optionally filtered on isAdmin, newest first.
func (u *Users) List(ctx context.Context, q models.ListQuery) (models.Page[models.User], error) {
	q = q.Normalize()
	items, total, err := u.Store.ListUsers(ctx, q.Search, q.IsAdmin, q.Limit, q.Offset)
	if err != nil {
		return models.Page[models.User]{}, classify(err, "fetch users")
	}
	return models.Page[models.User]{Items: items, Total: int(total), Limit: q.Limit, Offset: q.Offset}, nil
}

func (u *Users) Get(ctx context.Context, id string) (*models.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "User ID is required.")
	}
	user, err := u.Store.UserByID(ctx, id)
	if err != nil {
		return nil, classify(err, "fetch user")
	}
	return user, nil
}

// Ensure returns the profile document for account, creating it on first sign-in. An existing document
// without an auth method gets authMethod backfilled; a set auth method is never overwritten.
func (u *Users) Ensure(ctx context.Context, account *models.Account, authMethod string) (*models.User, error) {
	id := account.ID.Hex()
	existing, err := u.Store.UserByID(ctx, id)
	if err == nil {
		if existing.AuthMethod != "" {
			return existing, nil
		}
		updated, err := u.Store.UpdateUser(ctx, id, models.UserPatch{AuthMethod: &authMethod})
		if err != nil {
			log.Warn().Err(err).Str("user", id).Msg("backfill auth method")
			return existing, nil
		}
		return updated, nil
	}
	if err := classify(err, "fetch user"); !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	user := &models.User{
		ID:          account.ID,
		FullName:    displayName(account),
		Email:       account.Email,
		PhoneNumber: account.Phone,
		AuthMethod:  authMethod,
	}
	if err := u.Store.InsertUser(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// A concurrent first sign-in created it.
			existing, err := u.Store.UserByID(ctx, id)
			if err != nil {
				return nil, classify(err, "fetch user")
			}
			return existing, nil
		}
		return nil, classify(err, "create user profile")
	}
	return user, nil
}

// Reset rewrites the profile of a claimed account from account, dropping the phone number the
// previous sign-up entered. A missing profile is created.
func (u *Users) Reset(ctx context.Context, account *models.Account, authMethod string) (*models.User, error) {
	name, phone := displayName(account), ""
	user, err := u.Store.UpdateUser(ctx, account.ID.Hex(), models.UserPatch{
		FullName:    &name,
		PhoneNumber: &phone,
		AuthMethod:  &authMethod,
	})
	if err == nil {
		return user, nil
	}
	if err := classify(err, "update user"); !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return u.Ensure(ctx, account, authMethod)
}

// UpdatePhone completes the profile with a phone number.
func (u *Users) UpdatePhone(ctx context.Context, id, phone string) (*models.User, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, invalid("phoneNumber", "Phone number is required.")
	}
	user, err := u.Store.UpdateUser(ctx, id, models.UserPatch{PhoneNumber: &phone})
	if err != nil {
		return nil, classify(err, "update user")
	}
	return user, nil
}

// SetAdmin grants or revokes the admin flag.
func (u *Users) SetAdmin(ctx context.Context, id string, isAdmin bool) (*models.User, error) {
	user, err := u.Store.UpdateUser(ctx, id, models.UserPatch{IsAdmin: &isAdmin})
	if err != nil {
		return nil, classify(err, "update user")
	}
	return user, nil
}

func displayName(a *models.Account) string {
	if n := strings.TrimSpace(a.Name); n != "" {
		return n
	}
	if local := strings.Split(a.Email, "@")[0]; local != "" {
		return local
	}
	return "User"
}
