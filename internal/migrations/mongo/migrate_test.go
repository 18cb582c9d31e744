package mongo

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"

	"stazy/internal/bookings/repository"
	"stazy/internal/lock"
)

func TestCollections(t *testing.T) {
	cols := Collections()
	for _, name := range []string{repository.CollectionName, lock.LeaseCollectionName} {
		def, ok := cols[name]
		if !ok {
			t.Fatalf("collection %s missing", name)
		}
		if def.Validator == nil || len(def.Indexes) == 0 {
			t.Errorf("collection %s has no validator or indexes", name)
		}
	}
}

func TestLeaseTTLIndex(t *testing.T) {
	idx := LeasesIndexes[0]
	if idx.Options == nil || idx.Options.ExpireAfterSeconds == nil || *idx.Options.ExpireAfterSeconds != 0 {
		t.Fatalf("lease index must expire at expires_at")
	}
	keys := idx.Keys.(bson.D)
	if keys[0].Key != "expires_at" {
		t.Errorf("lease index key = %s, want expires_at", keys[0].Key)
	}
}

func TestBookingOverlapIndexLeadsWithHotel(t *testing.T) {
	keys := BookingsIndexes[0].Keys.(bson.D)
	want := []string{"hotel_id", "check_in", "check_out", "status"}
	for i, k := range want {
		if keys[i].Key != k {
			t.Errorf("key %d = %s, want %s", i, keys[i].Key, k)
		}
	}
}
