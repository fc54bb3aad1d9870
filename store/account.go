package store

import (
	"context"
	"strings"
	"time"

	"github.com/ajperformance/storefront/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccountByEmail returns the account for email, or nil if none exists.
func (db *DB) AccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var a models.Account
	err := db.Accounts().FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *DB) AccountByID(ctx context.Context, id string) (*models.Account, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var a models.Account
	if err := db.Accounts().FindOne(ctx, bson.M{"_id": oid}).Decode(&a); err != nil {
		return nil, err
	}
	return &a, nil
}

// InsertAccount stores a and sets its ID. A duplicate email surfaces as a mongo duplicate key error.
func (db *DB) InsertAccount(ctx context.Context, a *models.Account) error {
	a.Email = strings.ToLower(strings.TrimSpace(a.Email))
	a.CreatedAt = time.Now().UTC()
	res, err := db.Accounts().InsertOne(ctx, a, options.InsertOne())
	if err != nil {
		return err
	}
	a.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// SetVerification stores the hash of a pending verification secret.
func (db *DB) SetVerification(ctx context.Context, id, secretHash string, expiresAt time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	_, err = db.Accounts().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"verificationHash":      secretHash,
		"verificationExpiresAt": expiresAt,
	}})
	return err
}

// MarkEmailVerified flags the account verified and clears the pending secret.
func (db *DB) MarkEmailVerified(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	_, err = db.Accounts().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set":   bson.M{"emailVerified": true},
		"$unset": bson.M{"verificationHash": "", "verificationExpiresAt": ""},
	})
	return err
}

// ClaimAccount marks the account verified for provider and drops the credentials and contact
// details of the unverified sign-up.
func (db *DB) ClaimAccount(ctx context.Context, id, name, provider string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := db.Accounts().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set":   bson.M{"emailVerified": true, "provider": provider, "name": name},
		"$unset": bson.M{"passwordHash": "", "phone": "", "verificationHash": "", "verificationExpiresAt": ""},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
