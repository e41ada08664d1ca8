package document

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SetStore is a MongoDB-collection-backed backend.SetStore, used by the
// restriction registry. Each document is {value: <string>}.
type SetStore struct {
	coll *mongo.Collection
}

// OpenSetStore ensures the value field's uniqueness index exists and
// returns a SetStore bound to database.<collection>.
func OpenSetStore(ctx context.Context, client *mongo.Client, database, collection string) (*SetStore, error) {
	coll := client.Database(database).Collection(collection)
	idx := mongo.IndexModel{Keys: bson.D{{Key: "value", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := coll.Indexes().CreateOne(ctx, idx); err != nil {
		return nil, fmt.Errorf("document set store: create index: %w", err)
	}
	return &SetStore{coll: coll}, nil
}

func (s *SetStore) Add(ctx context.Context, value string) error {
	opts := options.Update().SetUpsert(true)
	_, err := s.coll.UpdateOne(ctx, bson.M{"value": value}, bson.M{"$set": bson.M{"value": value}}, opts)
	if err != nil {
		return fmt.Errorf("document set store: add: %w", err)
	}
	return nil
}

func (s *SetStore) Remove(ctx context.Context, value string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"value": value})
	if err != nil {
		return false, fmt.Errorf("document set store: remove: %w", err)
	}
	return res.DeletedCount > 0, nil
}

func (s *SetStore) Contains(ctx context.Context, value string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"value": value})
	if err != nil {
		return false, fmt.Errorf("document set store: contains: %w", err)
	}
	return n > 0, nil
}

func (s *SetStore) List(ctx context.Context) ([]string, error) {
	cursor, err := s.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("document set store: list: %w", err)
	}
	defer cursor.Close(ctx)

	var out []string
	for cursor.Next(ctx) {
		var doc struct {
			Value string `bson:"value"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("document set store: decode: %w", err)
		}
		out = append(out, doc.Value)
	}
	return out, cursor.Err()
}

func (s *SetStore) Clear(ctx context.Context) (int, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("document set store: clear: %w", err)
	}
	return int(res.DeletedCount), nil
}

// ReservedValues returns nil: the document set store's collection is
// independent of the messages collection's keyspace.
func (s *SetStore) ReservedValues() []string { return nil }

func (s *SetStore) Ping(ctx context.Context) error {
	if err := s.coll.Database().Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("document set store: ping: %w", err)
	}
	return nil
}
