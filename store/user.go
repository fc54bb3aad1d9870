package store

import (
	"context"
	"strings"
	"time"

	"github.com/ajperformance/storefront/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// ListUsers returns one newest-first page of users. search matches fullName or email; isAdmin filters exactly.
func (db *DB) ListUsers(ctx context.Context, search string, isAdmin *bool, limit, offset int) ([]models.User, int64, error) {
	filter := bson.M{}
	if s := strings.TrimSpace(search); s != "" {
		filter["$or"] = bson.A{
			bson.M{"fullName": containsFold(s)},
			bson.M{"email": containsFold(s)},
		}
	}
	if isAdmin != nil {
		filter["isAdmin"] = *isAdmin
	}
	total, err := db.Users().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := db.Users().Find(ctx, filter, pageOptions(limit, offset))
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// AdminsCount returns the number of users flagged as admin.
func (db *DB) AdminsCount(ctx context.Context) (int64, error) {
	return db.Users().CountDocuments(ctx, bson.M{"isAdmin": true})
}

func (db *DB) UserByID(ctx context.Context, id string) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var u models.User
	if err := db.Users().FindOne(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

// InsertUser stores a user document under the id already set on u (the account id).
func (db *DB) InsertUser(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := db.Users().InsertOne(ctx, u)
	return err
}

func (db *DB) UpdateUser(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	updates := bson.M{"updatedAt": time.Now().UTC()}
	if patch.FullName != nil {
		updates["fullName"] = *patch.FullName
	}
	if patch.PhoneNumber != nil {
		updates["phoneNumber"] = *patch.PhoneNumber
	}
	if patch.AuthMethod != nil {
		updates["authMethod"] = *patch.AuthMethod
	}
	if patch.IsAdmin != nil {
		updates["isAdmin"] = *patch.IsAdmin
	}
	res, err := db.Users().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": updates})
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, mongo.ErrNoDocuments
	}
	return db.UserByID(ctx, id)
}
