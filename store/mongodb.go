package store

import (
	"context"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	log.Info().Str("db", dbName).Msg("connected to mongodb")
	return &DB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

func (db *DB) Users() *mongo.Collection {
	return db.Database.Collection("users")
}

func (db *DB) Categories() *mongo.Collection {
	return db.Database.Collection("categories")
}

func (db *DB) EBooks() *mongo.Collection {
	return db.Database.Collection("ebooks")
}

func (db *DB) Accounts() *mongo.Collection {
	return db.Database.Collection("accounts")
}

// EnsureIndexes creates the indexes the listings and account lookups rely on.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	if _, err := db.Accounts().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := db.EBooks().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}},
		{Keys: bson.D{{Key: "categorie", Value: 1}, {Key: "createdAt", Value: -1}}},
	}); err != nil {
		return err
	}
	if _, err := db.Categories().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "name", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := db.Users().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "isAdmin", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}

// objectID parses a hex id. Ids that cannot exist are reported as missing documents.
func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, mongo.ErrNoDocuments
	}
	return oid, nil
}

// newestFirst orders by creation time with _id as a tiebreak so pages never overlap.
func newestFirst() bson.D {
	return bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
}

func pageOptions(limit, offset int) *options.FindOptions {
	return options.Find().
		SetSort(newestFirst()).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
}

// containsFold matches a case-insensitive substring.
func containsFold(term string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
}
