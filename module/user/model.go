package user

import "time"

const CollUsers = "users"

// User is the account master record. Hash never leaves the repo layer's
// package on the wire (json:"-").
type User struct {
	ID           string    `bson:"_id" json:"id"`
	Username     string    `bson:"username" json:"username"`
	PasswordHash string    `bson:"password_hash" json:"-"`
	Role         string    `bson:"role" json:"role"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}
