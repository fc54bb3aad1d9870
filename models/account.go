package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is the identity record behind a session. Credentials never leave the server.
type Account struct {
	ID                    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email                 string             `bson:"email" json:"email"`
	Name                  string             `bson:"name" json:"name"`
	Phone                 string             `bson:"phone,omitempty" json:"phone,omitempty"`
	PasswordHash          string             `bson:"passwordHash,omitempty" json:"-"` // bcrypt, empty for OAuth-only accounts
	Provider              string             `bson:"provider" json:"provider"`
	EmailVerified         bool               `bson:"emailVerified" json:"emailVerified"`
	VerificationHash      string             `bson:"verificationHash,omitempty" json:"-"`
	VerificationExpiresAt time.Time          `bson:"verificationExpiresAt,omitempty" json:"-"`
	CreatedAt             time.Time          `bson:"createdAt" json:"createdAt"`
}
