package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fathima-sithara/relay-service/internal/domain"
	"github.com/fathima-sithara/relay-service/internal/errs"
)

// NewMongoClient connects with a bounded timeout and verifies the
// server is reachable before the process starts serving.
func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

// MongoMessageStore implements MessageStore on a messages collection.
type MongoMessageStore struct {
	coll *mongo.Collection
}

func NewMongoMessageStore(coll *mongo.Collection) *MongoMessageStore {
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "chatId", Value: 1}, {Key: "timestamp", Value: 1}},
		Options: options.Index().SetName("chat_timestamp_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), ix)
	return &MongoMessageStore{coll: coll}
}

func (s *MongoMessageStore) Create(ctx context.Context, m *domain.Message) error {
	m.ID = uuid.NewString()
	m.Timestamp = time.Now().UTC()
	if m.Status.DeliveredTo == nil {
		m.Status.DeliveredTo = []string{}
	}
	if m.Status.SeenBy == nil {
		m.Status.SeenBy = []string{}
	}
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MongoMessageStore) AddDelivered(ctx context.Context, messageID, userID string) error {
	res, err := s.coll.UpdateByID(ctx, messageID, bson.M{
		"$addToSet": bson.M{"status.deliveredTo": userID},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	if res.MatchedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (s *MongoMessageStore) AddSeen(ctx context.Context, messageID, userID string) (*domain.Message, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m domain.Message
	err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": messageID}, bson.M{
		"$addToSet": bson.M{"status.seenBy": userID},
	}, opts).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return &m, nil
}

func (s *MongoMessageStore) FindByID(ctx context.Context, messageID string) (*domain.Message, error) {
	var m domain.Message
	err := s.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return &m, nil
}

func (s *MongoMessageStore) ListByChat(ctx context.Context, chatID string) ([]*domain.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.M{"chatId": chatID}, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
		}
		out = append(out, &m)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrStoreUnavailable, err)
	}
	return out, nil
}
