// Package inbox stores in-app notifications in MongoDB.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("notification not found")

const (
	defaultLimit = 50
	maxLimit     = 100
)

type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	EventID     string             `bson:"event_id" json:"eventId"`
	UserID      string             `bson:"user_id" json:"userId"`
	Type        string             `bson:"type" json:"type"`
	Title       string             `bson:"title" json:"title"`
	Message     string             `bson:"message" json:"message"`
	OrderID     string             `bson:"order_id,omitempty" json:"orderId,omitempty"`
	OrderNumber string             `bson:"order_number,omitempty" json:"orderNumber,omitempty"`
	Read        bool               `bson:"read" json:"read"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

type Store struct {
	coll *mongo.Collection
}

func NewStore(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

// Connect dials MongoDB and returns the notifications collection of database name.
func Connect(ctx context.Context, uri, name string, logger *zap.Logger) (*mongo.Client, *mongo.Collection, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	logger.Info("Connected to MongoDB", zap.String("database", name))
	return client, client.Database(name).Collection("notifications"), nil
}

// EnsureIndexes makes event_id unique so a redelivered event is stored once.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "event_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

// Save inserts n unless a notification with the same EventID exists. It
// reports whether n was new; on insert n.ID is set.
func (s *Store) Save(ctx context.Context, n *Notification) (bool, error) {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"event_id": n.EventID},
		bson.M{"$setOnInsert": bson.M{
			"user_id":      n.UserID,
			"type":         n.Type,
			"title":        n.Title,
			"message":      n.Message,
			"order_id":     n.OrderID,
			"order_number": n.OrderNumber,
			"read":         false,
			"created_at":   n.CreatedAt,
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("save notification: %w", err)
	}
	if res.UpsertedCount == 0 {
		return false, nil
	}
	if id, ok := res.UpsertedID.(primitive.ObjectID); ok {
		n.ID = id
	}
	return true, nil
}

// List returns a user's notifications, newest first.
func (s *Store) List(ctx context.Context, userID string, unreadOnly bool, limit int64) ([]Notification, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	filter := bson.M{"user_id": userID}
	if unreadOnly {
		filter["read"] = false
	}

	cur, err := s.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("find notifications: %w", err)
	}
	defer cur.Close(ctx)

	out := []Notification{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode notifications: %w", err)
	}
	return out, nil
}

// MarkRead flags one of userID's notifications as read. Other users'
// notifications are reported as not found.
func (s *Store) MarkRead(ctx context.Context, userID, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
