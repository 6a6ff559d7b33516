// Package archive is an append-only audit log of raw task_result payloads
// in MongoDB, grounded on orders/store.go's collection wrapper and its
// decode-via-bson.M-first pattern (here the payload is genuinely
// loosely-typed, not a protobuf mismatch workaround — task_result's shape
// varies by task_name).
package archive

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store records every task/state/ response this system has ever decoded, for
// after-the-fact debugging of edge-server behavior — it is never read back
// by the orchestrator itself.
type Store struct {
	collection *mongo.Collection
}

// Connect dials uri and returns a Store over the edgedispatch.task_results
// collection.
func Connect(ctx context.Context, uri string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	collection := client.Database("edgedispatch").Collection("task_results")
	return &Store{collection: collection}, nil
}

// NewStoreFromClient wraps an already-constructed client, used by tests
// against a fixture collection.
func NewStoreFromClient(client *mongo.Client, database string) *Store {
	return &Store{collection: client.Database(database).Collection("task_results")}
}

// Record appends one raw task/state/ response to the archive. Failures here
// are logged by the caller, never fatal — this is an audit sink, not the
// primary persistence layer (Postgres, via the persistence gateway).
func (s *Store) Record(ctx context.Context, taskID, taskName, taskStatus string, rawResult []byte) error {
	var decoded bson.M
	if len(rawResult) > 0 {
		if err := bson.UnmarshalExtJSON(rawResult, false, &decoded); err != nil {
			decoded = bson.M{"undecoded_raw": string(rawResult)}
		}
	}

	doc := bson.M{
		"task_id":     taskID,
		"task_name":   taskName,
		"task_status": taskStatus,
		"task_result": decoded,
		"recorded_at": time.Now().UTC(),
	}

	_, err := s.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("archive task %s: %w", taskID, err)
	}

	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.collection.Database().Client().Disconnect(ctx)
}
