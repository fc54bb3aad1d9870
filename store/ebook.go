package store

import (
	"context"
	"time"

	"github.com/ajperformance/storefront/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ListEBooks returns one newest-first page of e-books, restricted to categoryID when it is set.
func (db *DB) ListEBooks(ctx context.Context, categoryID string, limit, offset int) ([]models.EBook, int64, error) {
	filter := bson.M{}
	if categoryID != "" {
		filter["categorie"] = categoryID
	}
	total, err := db.EBooks().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := db.EBooks().Find(ctx, filter, pageOptions(limit, offset))
	if err != nil {
		return nil, 0, err
	}
	defer cur.Close(ctx)
	books := []models.EBook{}
	if err := cur.All(ctx, &books); err != nil {
		return nil, 0, err
	}
	return books, total, nil
}

func (db *DB) EBookByID(ctx context.Context, id string) (*models.EBook, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var book models.EBook
	if err := db.EBooks().FindOne(ctx, bson.M{"_id": oid}).Decode(&book); err != nil {
		return nil, err
	}
	return &book, nil
}

// InsertEBook stores book and sets its ID.
func (db *DB) InsertEBook(ctx context.Context, book *models.EBook) error {
	now := time.Now().UTC()
	book.CreatedAt, book.UpdatedAt = now, now
	res, err := db.EBooks().InsertOne(ctx, book, options.InsertOne())
	if err != nil {
		return err
	}
	book.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// UpdateEBook applies the set fields of patch and returns the updated document.
func (db *DB) UpdateEBook(ctx context.Context, id string, patch models.EBookPatch) (*models.EBook, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	set := bson.M{"updatedAt": time.Now().UTC()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Price != nil {
		set["price"] = *patch.Price
	}
	if patch.Image != nil {
		set["image"] = *patch.Image
	}
	if patch.Categorie != nil {
		set["categorie"] = *patch.Categorie
	}
	var book models.EBook
	err = db.EBooks().FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&book)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// DeleteEBook removes an e-book and returns the deleted document so its image can be cleaned up.
func (db *DB) DeleteEBook(ctx context.Context, id string) (*models.EBook, error) {
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var book models.EBook
	if err := db.EBooks().FindOneAndDelete(ctx, bson.M{"_id": oid}).Decode(&book); err != nil {
		return nil, err
	}
	return &book, nil
}
