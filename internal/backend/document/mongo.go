// Package document implements the document-store backend.Backend over
// MongoDB via go.mongodb.org/mongo-driver — the ecosystem's canonical Go
// driver for this backend class (named, not grounded in-pack, for the
// same reason as the cache backend's Redis client; see DESIGN.md). One
// collection with per-document fields for uuid, subQueue, assignedTo, id,
// and payload. Ordinality is core-assigned.
package document

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/queuehub/queuehub/internal/backend"
	"github.com/queuehub/queuehub/internal/model"
)

// Backend is the MongoDB-backed Backend implementation.
type Backend struct {
	coll *mongo.Collection
}

// Open ensures the indices backing uniqueness and ordering exist and
// returns a Backend bound to database.messages.
func Open(ctx context.Context, client *mongo.Client, database string) (*Backend, error) {
	coll := client.Database(database).Collection("messages")
	indices := []mongo.IndexModel{
		{Keys: bson.D{{Key: "uuid", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "subQueue", Value: 1}, {Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}}},
	}
	if _, err := coll.Indexes().CreateMany(ctx, indices); err != nil {
		return nil, fmt.Errorf("document backend: create indices: %w", err)
	}
	return &Backend{coll: coll}, nil
}

func (b *Backend) OrdinalityPolicy() backend.OrdinalityPolicy { return backend.CoreAssigned }

func (b *Backend) Append(ctx context.Context, record model.Message) (model.Message, error) {
	if _, err := b.coll.InsertOne(ctx, record); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.Message{}, fmt.Errorf("document backend: %w", backend.ErrOrdinalityConflict)
		}
		return model.Message{}, fmt.Errorf("document backend: insert: %w", err)
	}
	return record, nil
}

func (b *Backend) RemoveByUUID(ctx context.Context, uuid string) (int, error) {
	res, err := b.coll.DeleteOne(ctx, bson.M{"uuid": uuid})
	if err != nil {
		return 0, fmt.Errorf("document backend: delete: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (b *Backend) UpdateByUUID(ctx context.Context, uuid string, record model.Message) (bool, error) {
	update := bson.M{"$set": bson.M{
		"payload":             record.Payload,
		"assignedTo":          record.AssignedTo,
		"assignmentTimestamp": record.AssignmentTimestamp,
	}}
	res, err := b.coll.UpdateOne(ctx, bson.M{"uuid": uuid}, update)
	if err != nil {
		return false, fmt.Errorf("document backend: update: %w", err)
	}
	return res.MatchedCount > 0, nil
}

func (b *Backend) FindByUUID(ctx context.Context, uuid string) (model.Message, bool, error) {
	var m model.Message
	err := b.coll.FindOne(ctx, bson.M{"uuid": uuid}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return model.Message{}, false, nil
	}
	if err != nil {
		return model.Message{}, false, fmt.Errorf("document backend: find: %w", err)
	}
	return m, true, nil
}

func (b *Backend) FindSubQueueOf(ctx context.Context, uuid string) (string, bool, error) {
	opts := options.FindOne().SetProjection(bson.M{"subQueue": 1})
	var out struct {
		SubQueue string `bson:"subQueue"`
	}
	err := b.coll.FindOne(ctx, bson.M{"uuid": uuid}, opts).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("document backend: find sub-queue: %w", err)
	}
	return out.SubQueue, true, nil
}

func (b *Backend) IterateSubQueue(ctx context.Context, subQueue string, filter model.Filter) ([]model.Message, error) {
	query := bson.M{"subQueue": subQueue}
	switch filter.Mode {
	case model.FilterAssigned:
		query["assignedTo"] = bson.M{"$nin": bson.A{"", nil}}
	case model.FilterUnassigned:
		query["assignedTo"] = bson.M{"$in": bson.A{"", nil}}
	case model.FilterAssignedTo:
		query["assignedTo"] = filter.AssignedTo
	}

	cursor, err := b.coll.Find(ctx, query, options.Find().SetSort(bson.D{{Key: "id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("document backend: find: %w", err)
	}
	defer cursor.Close(ctx)

	var out []model.Message
	for cursor.Next(ctx) {
		var m model.Message
		if err := cursor.Decode(&m); err != nil {
			return nil, fmt.Errorf("document backend: decode: %w", err)
		}
		out = append(out, m)
	}
	return out, cursor.Err()
}

func (b *Backend) MaxIDOf(ctx context.Context, subQueue string) (int64, bool, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "id", Value: -1}})
	var out struct {
		ID int64 `bson:"id"`
	}
	err := b.coll.FindOne(ctx, bson.M{"subQueue": subQueue}, opts).Decode(&out)
	if err == mongo.ErrNoDocuments {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("document backend: max id: %w", err)
	}
	return out.ID, true, nil
}

func (b *Backend) SizeOf(ctx context.Context, subQueue string) (int, error) {
	n, err := b.coll.CountDocuments(ctx, bson.M{"subQueue": subQueue})
	if err != nil {
		return 0, fmt.Errorf("document backend: count: %w", err)
	}
	return int(n), nil
}

func (b *Backend) DistinctSubQueues(ctx context.Context) (map[string]struct{}, error) {
	vals, err := b.coll.Distinct(ctx, "subQueue", bson.M{})
	if err != nil {
		return nil, fmt.Errorf("document backend: distinct: %w", err)
	}
	out := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		if s, ok := v.(string); ok {
			out[s] = struct{}{}
		}
	}
	return out, nil
}

func (b *Backend) DeleteSubQueue(ctx context.Context, subQueue string) (int, error) {
	res, err := b.coll.DeleteMany(ctx, bson.M{"subQueue": subQueue})
	if err != nil {
		return 0, fmt.Errorf("document backend: delete sub-queue: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (b *Backend) DeleteAll(ctx context.Context) (int, error) {
	res, err := b.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("document backend: delete all: %w", err)
	}
	return int(res.DeletedCount), nil
}

func (b *Backend) Ping(ctx context.Context) error {
	if err := b.coll.Database().Client().Ping(ctx, nil); err != nil {
		return fmt.Errorf("document backend: ping: %w", err)
	}
	return nil
}
