package lock

import (
	"context"
	"time"

	"stazy/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LeaseCollectionName = "Booking_locks"

// MongoLocker stores one document per lease with the key as _id, so the
// unique _id index makes InsertOne an atomic set-if-absent. A TTL index on
// expires_at removes abandoned leases in the background; TryAcquire also
// clears an expired lease itself so reclamation does not wait for the monitor.
type MongoLocker struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoLocker(db *mongo.Database) *MongoLocker {
	return &MongoLocker{
		collection: db.Collection(LeaseCollectionName),
		now:        time.Now,
	}
}

func (l *MongoLocker) Name() string { return "mongo" }

func (l *MongoLocker) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := l.insert(ctx, key, token, ttl)
	if ok || err != nil {
		return ok, err
	}

	res, err := l.collection.DeleteOne(ctx, bson.M{
		"_id":        key,
		"expires_at": bson.M{"$lte": l.now().UTC()},
	})
	if err != nil {
		return false, err
	}
	if res.DeletedCount == 0 {
		return false, nil
	}
	return l.insert(ctx, key, token, ttl)
}

func (l *MongoLocker) insert(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	now := l.now().UTC().Truncate(time.Millisecond)
	lease := &model.Lease{
		Key:       key,
		Token:     token,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if _, err := l.collection.InsertOne(ctx, lease); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (l *MongoLocker) Release(ctx context.Context, key, token string) (bool, error) {
	res, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "token": token})
	if err != nil {
		return false, err
	}
	return res.DeletedCount == 1, nil
}
