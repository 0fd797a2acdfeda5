package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"
	"user-network/models"
	"user-network/services"
	"user-network/utils/errors"
)

// MongoStore keeps one document per user with the friend ids mirrored in a
// "friends" array on both sides. Writes run in multi-document transactions,
// so the server must be a replica set.
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

func NewMongoStore(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connection failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	logger.Info("Connected to MongoDB", zap.String("database", database))

	collection := client.Database(database).Collection("users")

	// Usernames are unique; the index also catches concurrent creates
	indexModel := mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	if _, err := collection.Indexes().CreateOne(ctx, indexModel); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create unique index on users: %w", err)
	}

	return &MongoStore{client: client, collection: collection, logger: logger}, nil
}

// WithTx runs fn in a snapshot transaction. The driver retries fn when the
// commit hits a transient write conflict, so a retried guard sees the state
// left by whichever transaction won.
func (s *MongoStore) WithTx(ctx context.Context, fn func(tx services.Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(&mongoTx{collection: s.collection, sc: sc})
	}, txnOpts)
	return err
}

func (s *MongoStore) View(ctx context.Context, fn func(tx services.Tx) error) error {
	return fn(&mongoTx{collection: s.collection})
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoTx struct {
	collection *mongo.Collection
	// sc is the session context of the enclosing transaction, nil for views
	sc context.Context
}

func (t *mongoTx) context(ctx context.Context) context.Context {
	if t.sc != nil {
		return t.sc
	}
	return ctx
}

func (t *mongoTx) FindByID(ctx context.Context, id string) (*models.User, error) {
	return t.findOne(ctx, bson.M{"_id": id})
}

func (t *mongoTx) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return t.findOne(ctx, bson.M{"username": bson.M{"$eq": username}})
}

func (t *mongoTx) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	err := t.collection.FindOne(t.context(ctx), filter).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return normalize(&user), nil
}

func (t *mongoTx) Insert(ctx context.Context, user *models.User) error {
	doc := cloneUser(user)
	_, err := t.collection.InsertOne(t.context(ctx), doc)
	if mongo.IsDuplicateKeyError(err) {
		return errors.NewUsernameTaken(user.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (t *mongoTx) Update(ctx context.Context, user *models.User) error {
	update := bson.M{
		"$set": bson.M{
			"username": user.Username,
			"age":      user.Age,
			"hobbies":  user.Hobbies,
		},
	}
	result, err := t.collection.UpdateOne(t.context(ctx), bson.M{"_id": user.ID}, update)
	if mongo.IsDuplicateKeyError(err) {
		return errors.NewUsernameTaken(user.Username)
	}
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if result.MatchedCount == 0 {
		return errors.NewUserNotFound(user.ID)
	}
	return nil
}

func (t *mongoTx) Delete(ctx context.Context, id string) error {
	if _, err := t.collection.DeleteOne(t.context(ctx), bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (t *mongoTx) All(ctx context.Context) ([]models.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := t.collection.Find(t.context(ctx), bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	var users []models.User
	if err := cursor.All(t.context(ctx), &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	for i := range users {
		normalize(&users[i])
	}
	return users, nil
}

func (t *mongoTx) AddFriendship(ctx context.Context, a, b string) error {
	if err := t.updateFriends(ctx, a, "$addToSet", b); err != nil {
		return err
	}
	return t.updateFriends(ctx, b, "$addToSet", a)
}

func (t *mongoTx) RemoveFriendship(ctx context.Context, a, b string) error {
	if err := t.updateFriends(ctx, a, "$pull", b); err != nil {
		return err
	}
	return t.updateFriends(ctx, b, "$pull", a)
}

func (t *mongoTx) updateFriends(ctx context.Context, userID, operator, friendID string) error {
	update := bson.M{operator: bson.M{"friends": friendID}}
	result, err := t.collection.UpdateOne(t.context(ctx), bson.M{"_id": userID}, update)
	if err != nil {
		return fmt.Errorf("failed to update friends of %s: %w", userID, err)
	}
	if result.MatchedCount == 0 {
		return errors.NewUserNotFound(userID)
	}
	return nil
}

func normalize(user *models.User) *models.User {
	if user.Friends == nil {
		user.Friends = []string{}
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user
}
