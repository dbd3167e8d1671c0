package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/scrapeflow/webscrape/internal/types"
)

// MongoSink writes records to a MongoDB collection.
type MongoSink struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

func NewMongoSink(uri, database, collection string, logger *slog.Logger) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &MongoSink{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_sink"),
	}, nil
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) Write(batch []*types.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]any, len(batch))
	for i, rec := range batch {
		doc := make(map[string]any, len(rec.Fields)+2)
		doc["_source_url"] = rec.SourceURL
		doc["_timestamp"] = rec.Timestamp
		for k, v := range rec.Fields {
			doc[k] = v
		}
		docs[i] = doc
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("mongodb insert: %w", err)
	}
	s.count += len(batch)
	s.logger.Debug("batch flushed", "count", len(batch), "total", s.count)
	return nil
}

func (s *MongoSink) Close() error {
	s.logger.Info("mongodb sink closing", "total_records", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
