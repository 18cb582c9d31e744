package testutil

import (
	"os"
	"testing"
)

// MongoURI returns the Mongo server the integration suites run against and
// skips the test when none is configured.
func MongoURI(t *testing.T) string {
	t.Helper()

	for _, key := range []string{"TEST_MONGO_URI", "MONGO_URI"} {
		if uri := os.Getenv(key); uri != "" {
			return uri
		}
	}
	t.Skip("integration test: set TEST_MONGO_URI or MONGO_URI to run against a real Mongo")
	return ""
}
