package mongo

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"hireme/internal/storage"
)

const messagesCollection = "messages"

// Store persists messages in MongoDB.
type Store struct {
	db     *mongo.Database
	logger *slog.Logger
}

// Connect dials MongoDB and returns a store bound to the given database.
func Connect(ctx context.Context, uri, database string, logger *slog.Logger) (*Store, error) {
	if uri == "" {
		return nil, errors.New("mongo: uri required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	client, err := mongo.Connect(dialCtx, opts)
	if err != nil {
		return nil, err
	}
	return &Store{
		db:     client.Database(database),
		logger: logger.With("component", "mongo"),
	}, nil
}

// Ping verifies the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close releases the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// EnsureIndexes creates the conversation history index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(messagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "conversation_id", Value: 1},
			{Key: "created_at", Value: 1},
		},
	})
	return err
}

// SaveMessage appends a message to its conversation.
func (s *Store) SaveMessage(ctx context.Context, msg storage.Message) error {
	_, err := s.db.Collection(messagesCollection).InsertOne(ctx, msg)
	return err
}

// History returns the most recent limit messages between two users in
// ascending CreatedAt order.
func (s *Store) History(ctx context.Context, userA, userB string, limit int) ([]storage.Message, error) {
	filter := bson.M{"conversation_id": storage.ConversationKey(userA, userB)}

	// Fetch newest-first so the limit keeps the most recent page, then flip.
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts = opts.SetLimit(int64(limit))
	}
	cursor, err := s.db.Collection(messagesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var newestFirst []storage.Message
	if err := cursor.All(ctx, &newestFirst); err != nil {
		return nil, err
	}
	out := make([]storage.Message, len(newestFirst))
	for i, msg := range newestFirst {
		out[len(out)-1-i] = msg
	}
	return out, nil
}

var _ storage.Store = (*Store)(nil)
