package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hookfeed/pkg/event"
	"hookfeed/pkg/storage"
)

// Config selects the MongoDB collection holding events.
type Config struct {
	URI        string
	Database   string
	Collection string
}

// countersCollection holds one insertion counter per event collection.
const countersCollection = "counters"

// listSort orders newest first; seq breaks created_at ties by insertion order.
var listSort = bson.D{{Key: "created_at", Value: -1}, {Key: "seq", Value: -1}}

// Store implements storage.EventStore on a MongoDB collection.
type Store struct {
	client     *mongo.Client
	collection *mongo.Collection
	counters   *mongo.Collection
}

type document struct {
	ID         interface{} `bson:"_id"`
	Action     string      `bson:"action"`
	Author     string      `bson:"author"`
	Repo       string      `bson:"repo"`
	FromBranch *string     `bson:"from_branch"`
	ToBranch   string      `bson:"to_branch"`
	Timestamp  *time.Time  `bson:"timestamp,omitempty"`
	CreatedAt  time.Time   `bson:"created_at"`
	Seq        int64       `bson:"seq,omitempty"`
}

// Open connects to MongoDB and pings the primary.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("mongodb uri is required")
	}
	database := cfg.Database
	if database == "" {
		database = "github_webhooks"
	}
	collection := cfg.Collection
	if collection == "" {
		collection = "events"
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}
	db := client.Database(database)
	return &Store{
		client:     client,
		collection: db.Collection(collection),
		counters:   db.Collection(countersCollection),
	}, nil
}

// Insert writes one document.
func (s *Store) Insert(ctx context.Context, record event.Record) error {
	if s == nil || s.collection == nil {
		return storage.ErrNotInitialized
	}
	if err := storage.Validate(record); err != nil {
		return err
	}
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}
	doc := toDocument(record)
	doc.Seq = seq
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListRecent returns the newest documents by created_at, then insertion order.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]event.Record, error) {
	if s == nil || s.collection == nil {
		return nil, storage.ErrNotInitialized
	}
	opts := options.Find().
		SetSort(listSort).
		SetLimit(int64(storage.Limit(limit)))
	cursor, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	var docs []document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	records := make([]event.Record, 0, len(docs))
	for _, doc := range docs {
		records = append(records, fromDocument(doc))
	}
	return records, nil
}

func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": s.collection.Name()},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("next event sequence: %w", err)
	}
	return counter.Seq, nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func toDocument(record event.Record) document {
	timestamp := record.Timestamp.UTC()
	doc := document{
		ID:         record.ID,
		Action:     string(record.Action),
		Author:     record.Author,
		Repo:       record.Repo,
		FromBranch: record.FromBranch,
		ToBranch:   record.ToBranch,
		CreatedAt:  record.CreatedAt.UTC(),
	}
	if !record.Timestamp.IsZero() {
		doc.Timestamp = &timestamp
	}
	return doc
}

// fromDocument also accepts documents written by earlier deployments,
// which used ObjectID identities and may lack a timestamp.
func fromDocument(doc document) event.Record {
	record := event.Record{
		ID:         documentID(doc.ID),
		Action:     event.Action(doc.Action),
		Author:     doc.Author,
		Repo:       doc.Repo,
		FromBranch: doc.FromBranch,
		ToBranch:   doc.ToBranch,
		CreatedAt:  doc.CreatedAt.UTC(),
	}
	if doc.Timestamp != nil {
		record.Timestamp = doc.Timestamp.UTC()
	}
	return record
}

func documentID(value interface{}) string {
	switch id := value.(type) {
	case nil:
		return ""
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprint(id)
	}
}
