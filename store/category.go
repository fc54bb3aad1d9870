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

// ListCategories returns one newest-first page of categories whose name contains search.
func (db *DB) ListCategories(ctx context.Context, search string, limit, offset int) ([]models.Category, int64, error) {
	filter := bson.M{}
	if s := strings.TrimSpace(search); s != "" {
		filter["name"] = containsFold(s)
	}
	total, err := db.Categories().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := db.Categories().Find(ctx, filter, pageOptions(limit, offset))
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	categories := []models.Category{}
	if err := cur.All(ctx, &categories); err != nil {
		return nil, 0, err
	}
	return categories, total, nil
}

// AllCategories returns every category ordered by name.
func (db *DB) AllCategories(ctx context.Context) ([]models.Category, error) {
	cur, err := db.Categories().Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	categories := []models.Category{}
	if err := cur.All(ctx, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

func (db *DB) CategoryByID(ctx context.Context, id string) (*models.Category, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var c models.Category
	if err := db.Categories().FindOne(ctx, bson.M{"_id": oid}).Decode(&c); err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertCategory stores c and sets its ID.
func (db *DB) InsertCategory(ctx context.Context, c *models.Category) error {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	res, err := db.Categories().InsertOne(ctx, c)
	if err != nil {
		return err
	}
	c.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// RenameCategory sets the name and returns the updated document.
func (db *DB) RenameCategory(ctx context.Context, id, name string) (*models.Category, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var c models.Category
	err = db.Categories().FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"name": name, "updatedAt": time.Now().UTC()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteCategory removes the category. E-books referencing it are left untouched.
func (db *DB) DeleteCategory(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := db.Categories().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
