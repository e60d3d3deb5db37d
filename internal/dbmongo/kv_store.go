package dbmongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ecoshare/internal/kvstore"
)

type kvDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// KVStore implements kvstore.Store on a single collection keyed by _id.
type KVStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewKVStore(coll *mongo.Collection) *KVStore {
	return &KVStore{coll: coll, now: time.Now}
}

// NewKVStoreFromClient uses the configured preferences collection.
func NewKVStoreFromClient(mc *MongoClient, collection string) *KVStore {
	return NewKVStore(mc.Database.Collection(collection))
}

func (s *KVStore) Get(ctx context.Context, key string) (string, error) {
	var doc kvDocument
	err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", kvstore.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return doc.Value, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": key},
		bson.M{"$set": bson.M{"value": value, "updated_at": s.now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
