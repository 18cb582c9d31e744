package model

import "time"

// Lease is a stored mutual-exclusion grant on a calendar bucket. Key is the
// document id so that only one lease per key can exist.
type Lease struct {
	Key       string    `bson:"_id" json:"key"`
	Token     string    `bson:"token" json:"token"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
