package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	mongoMigration "stazy/internal/migrations/mongo"
	"stazy/pkg/client"
	"stazy/pkg/config"
	"stazy/pkg/logger"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ConnectionTimeout = 10 * time.Second

// MongoHelper owns a throwaway database with the production collections,
// validators and indexes. It is dropped when the test ends.
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
	DBName   string
}

func NewMongoHelper(t *testing.T) *MongoHelper {
	t.Helper()

	uri := MongoURI(t)
	ctx, cancel := context.WithTimeout(context.Background(), ConnectionTimeout)
	defer cancel()

	mc, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := mc.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	dbName := fmt.Sprintf("stazy_it_%s", uuid.NewString()[:8])
	if err := mongoMigration.RunMigration(ctx, mc, dbName, logger.Discard()); err != nil {
		t.Fatalf("failed to migrate %s: %v", dbName, err)
	}

	h := &MongoHelper{Client: mc, Database: mc.Database(dbName), DBName: dbName}
	t.Cleanup(func() { h.close(t) })
	return h
}

// Config returns a service config wired to the helper's database.
func (m *MongoHelper) Config() *config.Config {
	cfg := config.FromEnv()
	cfg.MongoDatabaseName = m.DBName
	cfg.Log = logger.Discard()
	cfg.Client = &client.Client{Mongo: m.Client}
	return cfg
}

func (m *MongoHelper) Collection(name string) *mongo.Collection {
	return m.Database.Collection(name)
}

func (m *MongoHelper) close(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := m.Database.Drop(ctx); err != nil {
		t.Logf("warning: failed to drop %s: %v", m.DBName, err)
	}
	if err := m.Client.Disconnect(ctx); err != nil {
		t.Logf("warning: failed to disconnect from MongoDB: %v", err)
	}
}
