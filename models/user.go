package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Auth methods recorded on the user document.
const (
	AuthMethodSimple = "simple"
	AuthMethodGoogle = "google"
)

// User is the profile document keyed by the account id.
type User struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	FullName    string             `bson:"fullName" json:"fullName"`
	Email       string             `bson:"email" json:"email"`
	PhoneNumber string             `bson:"phoneNumber" json:"phoneNumber"`
	AuthMethod  string             `bson:"authMethod,omitempty" json:"authMethod,omitempty"` // simple or google, set once
	IsAdmin     bool               `bson:"isAdmin" json:"isAdmin"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
