package service

import (
	"context"
	"testing"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func TestEnsureCreatesProfileOnce(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	u := &Users{Store: st}
	account := &models.Account{ID: primitive.NewObjectID(), Email: "sam.lee@example.com", Phone: "+15550100"}

	created, err := u.Ensure(ctx, account, models.AuthMethodGoogle)
	require.NoError(t, err)
	assert.Equal(t, "sam.lee", created.FullName)
	assert.Equal(t, models.AuthMethodGoogle, created.AuthMethod)
	assert.Equal(t, "+15550100", created.PhoneNumber)

	again, err := u.Ensure(ctx, account, models.AuthMethodSimple)
	require.NoError(t, err)
	assert.Equal(t, models.AuthMethodGoogle, again.AuthMethod)
	assert.Equal(t, 1, st.count("InsertUser"))
}

func TestEnsureBackfillsMissingAuthMethod(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	id := primitive.NewObjectID()
	st.users = []models.User{{ID: id, FullName: "Legacy", Email: "legacy@example.com"}}
	u := &Users{Store: st}

	user, err := u.Ensure(ctx, &models.Account{ID: id, Email: "legacy@example.com"}, models.AuthMethodSimple)
	require.NoError(t, err)
	assert.Equal(t, models.AuthMethodSimple, user.AuthMethod)
	assert.Equal(t, "Legacy", user.FullName)
}

func TestDisplayNameFallbacks(t *testing.T) {
	assert.Equal(t, "Ada", displayName(&models.Account{Name: " Ada ", Email: "a@b.c"}))
	assert.Equal(t, "coach", displayName(&models.Account{Email: "coach@example.com"}))
	assert.Equal(t, "User", displayName(&models.Account{}))
}

func TestUsersListFiltersAdmins(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	st.users = []models.User{
		{ID: primitive.NewObjectID(), FullName: "Ana Admin", Email: "ana@example.com", IsAdmin: true},
		{ID: primitive.NewObjectID(), FullName: "Bo Client", Email: "bo@example.com"},
		{ID: primitive.NewObjectID(), FullName: "Cy Client", Email: "cy@coach.io"},
	}
	u := &Users{Store: st}

	yes, no := true, false
	page, err := u.List(ctx, models.ListQuery{IsAdmin: &yes})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	page, err = u.List(ctx, models.ListQuery{IsAdmin: &no, Search: "EXAMPLE"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "Bo Client", page.Items[0].FullName)
}

func TestUpdatePhoneAndSetAdmin(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	id := primitive.NewObjectID()
	st.users = []models.User{{ID: id, FullName: "Dee"}}
	u := &Users{Store: st}

	_, err := u.UpdatePhone(ctx, id.Hex(), " ")
	assert.EqualError(t, err, "Phone number is required.")

	user, err := u.UpdatePhone(ctx, id.Hex(), " 555-0101 ")
	require.NoError(t, err)
	assert.Equal(t, "555-0101", user.PhoneNumber)

	user, err = u.SetAdmin(ctx, id.Hex(), true)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	_, err = u.SetAdmin(ctx, primitive.NewObjectID().Hex(), true)
	require.ErrorIs(t, err, ErrNotFound)
}

// lateUserStore misses the profile on the first lookup, as when a parallel sign-in inserts it
// between our read and our insert.
type lateUserStore struct {
	*memStore
	misses int
}

func (s *lateUserStore) UserByID(ctx context.Context, id string) (*models.User, error) {
	if s.misses > 0 {
		s.misses--
		return nil, mongo.ErrNoDocuments
	}
	return s.memStore.UserByID(ctx, id)
}

func TestEnsureConcurrentFirstSignIn(t *testing.T) {
	ctx := context.Background()
	id := primitive.NewObjectID()
	st := &lateUserStore{memStore: newMemStore(), misses: 1}
	st.users = []models.User{{ID: id, FullName: "Raced In", Email: "race@example.com", AuthMethod: models.AuthMethodGoogle}}
	u := &Users{Store: st}

	user, err := u.Ensure(ctx, &models.Account{ID: id, Email: "race@example.com"}, models.AuthMethodSimple)
	require.NoError(t, err)
	assert.Equal(t, "Raced In", user.FullName)
	assert.Equal(t, models.AuthMethodGoogle, user.AuthMethod)
	assert.Equal(t, 1, st.count("InsertUser"))
	assert.Len(t, st.users, 1)
}

func TestResetRewritesClaimedProfile(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	id := primitive.NewObjectID()
	st.users = []models.User{{ID: id, FullName: "Squatter", PhoneNumber: "555-0666", AuthMethod: models.AuthMethodSimple}}
	u := &Users{Store: st}

	user, err := u.Reset(ctx, &models.Account{ID: id, Name: "Owner", Email: "owner@example.com"}, models.AuthMethodGoogle)
	require.NoError(t, err)
	assert.Equal(t, "Owner", user.FullName)
	assert.Empty(t, user.PhoneNumber)
	assert.Equal(t, models.AuthMethodGoogle, user.AuthMethod)

	fresh := primitive.NewObjectID()
	created, err := u.Reset(ctx, &models.Account{ID: fresh, Email: "new@example.com"}, models.AuthMethodGoogle)
	require.NoError(t, err)
	assert.Equal(t, "new", created.FullName)
	assert.Len(t, st.users, 2)
}
