package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UncategorizedName is shown for e-books whose category id no longer resolves.
const UncategorizedName = "Uncategorized"

type EBook struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title       string             `bson:"title" json:"title"`
	Description string             `bson:"description" json:"description"`
	Price       float64            `bson:"price" json:"price"`
	Image       string             `bson:"image" json:"image"`         // object store file id
	Categorie   string             `bson:"categorie" json:"categorie"` // category id, may dangle
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EBookView is the read-only shape served to the storefront.
type EBookView struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	Price        float64 `json:"price"`
	PriceLabel   string  `json:"priceLabel"`
	ImageID      string  `json:"imageId"`
	ImageURL     string  `json:"imageUrl,omitempty"`
	CategoryID   string  `json:"categoryId"`
	CategoryName string  `json:"categoryName"`
}
