package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConfig locates the collections used by [MongoStore].
type MongoConfig struct {
	URI      string `toml:"uri"`
	Database string `toml:"database"`
	Trees    string `toml:"trees"`
	Notes    string `toml:"notes"`
}

func (c MongoConfig) withDefaults() MongoConfig {
	if c.URI == "" {
		c.URI = "mongodb://localhost:27017"
	}
	if c.Database == "" {
		c.Database = "sensortree"
	}
	if c.Trees == "" {
		c.Trees = "trees"
	}
	if c.Notes == "" {
		c.Notes = "notes"
	}
	return c
}

// MongoStore keeps trees and notes in two MongoDB collections, keyed by
// tree name and node id.
type MongoStore struct {
	client *mongo.Client
	trees  *mongo.Collection
	notes  *mongo.Collection
	now    func() time.Time
}

// NewMongoStore connects and pings the server.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	cfg = cfg.withDefaults()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	db := client.Database(cfg.Database)
	return &MongoStore{
		client: client,
		trees:  db.Collection(cfg.Trees),
		notes:  db.Collection(cfg.Notes),
		now:    time.Now,
	}, nil
}

func (s *MongoStore) SaveTree(ctx context.Context, t Tree) error {
	if err := ValidateName(t.Name); err != nil {
		return err
	}
	t.Size = len(t.Payload)
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = s.now()
	}
	_, err := s.trees.ReplaceOne(ctx, bson.M{"_id": t.Name}, t, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save tree %s: %w", t.Name, err)
	}
	return nil
}

func (s *MongoStore) LoadTree(ctx context.Context, name string) (Tree, error) {
	if err := ValidateName(name); err != nil {
		return Tree{}, err
	}
	var t Tree
	if err := s.trees.FindOne(ctx, bson.M{"_id": name}).Decode(&t); err != nil {
		return Tree{}, notFound(err)
	}
	return t, nil
}

func (s *MongoStore) ListTrees(ctx context.Context) ([]Tree, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.M{"payload": 0})
	cur, err := s.trees.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	var out []Tree
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	return out, nil
}

func (s *MongoStore) DeleteTree(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	res, err := s.trees.DeleteOne(ctx, bson.M{"_id": name})
	if err != nil {
		return fmt.Errorf("delete tree %s: %w", name, err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) LoadNote(ctx context.Context, nodeID string) (Note, error) {
	var n Note
	if err := s.notes.FindOne(ctx, bson.M{"_id": nodeID}).Decode(&n); err != nil {
		return Note{}, notFound(err)
	}
	return n, nil
}

func (s *MongoStore) SaveNote(ctx context.Context, nodeID, content string, by Author) (Note, error) {
	now := s.now()
	n := Note{
		NodeID:     nodeID,
		Content:    StampNote(content, by, now),
		ModifiedBy: by.Name,
		UpdatedAt:  now,
	}
	_, err := s.notes.ReplaceOne(ctx, bson.M{"_id": nodeID}, n, options.Replace().SetUpsert(true))
	if err != nil {
		return Note{}, fmt.Errorf("save note: %w", err)
	}
	return n, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func notFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

var _ Store = (*MongoStore)(nil)
