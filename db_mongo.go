package main

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoUser struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	Address     string    `bson:"address"`
	DateOfBirth string    `bson:"dateOfBirth"`
	Email       string    `bson:"email"`
	Password    string    `bson:"password"`
	CreatedAt   time.Time `bson:"createdAt"`
}

type mongoToken struct {
	Token     string    `bson:"token"`
	UserID    string    `bson:"userId"`
	ExpiresAt time.Time `bson:"expiresAt"`
	CreatedAt time.Time `bson:"createdAt"`
}

type mongoProperty struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	Images    []string  `bson:"images"`
	Address   *string   `bson:"address"`
	City      *string   `bson:"city"`
	CreatedAt time.Time `bson:"createdAt"`
}

// MongoDB stores users, tokens and properties in three collections.
type MongoDB struct {
	client     *mongo.Client
	users      *mongo.Collection
	tokens     *mongo.Collection
	properties *mongo.Collection
}

func NewMongoDB(ctx context.Context, uri, database string) (*MongoDB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	db := client.Database(database)
	m := &MongoDB{
		client:     client,
		users:      db.Collection("users"),
		tokens:     db.Collection("tokens"),
		properties: db.Collection("properties"),
	}
	if err := m.Init(); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return m, nil
}

// Init creates the indexes the adapter relies on: the unique email index
// enforces uniqueness at write time.
func (m *MongoDB) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := m.client.Ping(ctx, nil); err != nil {
		return err
	}
	if _, err := m.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := m.tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "token", Value: 1}},
	}); err != nil {
		return err
	}
	_, err := m.properties.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	return err
}

func (m *MongoDB) CreateUser(ctx context.Context, u *User) error {
	_, err := m.users.InsertOne(ctx, mongoUser{
		ID:          u.ID,
		Name:        u.Name,
		Address:     u.Address,
		DateOfBirth: u.DateOfBirth,
		Email:       u.Email,
		Password:    u.Password,
		CreatedAt:   u.CreatedAt,
	})
	if mongo.IsDuplicateKeyError(err) {
		return ErrConflict
	}
	return err
}

func (m *MongoDB) findUser(ctx context.Context, filter bson.M) (*User, error) {
	var doc mongoUser
	if err := m.users.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &User{
		ID:          doc.ID,
		Name:        doc.Name,
		Address:     doc.Address,
		DateOfBirth: doc.DateOfBirth,
		Email:       doc.Email,
		Password:    doc.Password,
		CreatedAt:   doc.CreatedAt.UTC(),
	}, nil
}

func (m *MongoDB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return m.findUser(ctx, bson.M{"email": email})
}

func (m *MongoDB) GetUserByID(ctx context.Context, id string) (*User, error) {
	return m.findUser(ctx, bson.M{"_id": id})
}

func (m *MongoDB) CreateRefreshToken(ctx context.Context, t *RefreshToken) error {
	_, err := m.tokens.InsertOne(ctx, mongoToken{
		Token:     t.Token,
		UserID:    t.UserID,
		ExpiresAt: t.ExpiresAt,
		CreatedAt: t.CreatedAt,
	})
	return err
}

func (m *MongoDB) FindRefreshToken(ctx context.Context, userID, token string) (*RefreshToken, error) {
	var doc mongoToken
	if err := m.tokens.FindOne(ctx, bson.M{"userId": userID, "token": token}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &RefreshToken{
		UserID:    doc.UserID,
		Token:     doc.Token,
		ExpiresAt: doc.ExpiresAt.UTC(),
		CreatedAt: doc.CreatedAt.UTC(),
	}, nil
}

func (m *MongoDB) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := m.tokens.DeleteMany(ctx, bson.M{"token": token})
	return err
}

func toMongoProperty(p *Property) mongoProperty {
	return mongoProperty{
		ID:        p.ID,
		Owner:     p.Owner,
		Images:    p.Images,
		Address:   p.Address,
		City:      p.City,
		CreatedAt: p.CreatedAt,
	}
}

func (d mongoProperty) toProperty() *Property {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return &Property{
		ID:        d.ID,
		Owner:     d.Owner,
		Images:    images,
		Address:   d.Address,
		City:      d.City,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func (m *MongoDB) CreateProperty(ctx context.Context, p *Property) error {
	_, err := m.properties.InsertOne(ctx, toMongoProperty(p))
	return err
}

func (m *MongoDB) ListPropertiesByOwner(ctx context.Context, ownerID string) ([]*Property, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := m.properties.Find(ctx, bson.M{"owner": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []*Property
	for cur.Next(ctx) {
		var doc mongoProperty
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toProperty())
	}
	return out, cur.Err()
}

func (m *MongoDB) GetProperty(ctx context.Context, id, ownerID string) (*Property, error) {
	var doc mongoProperty
	if err := m.properties.FindOne(ctx, bson.M{"_id": id, "owner": ownerID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return doc.toProperty(), nil
}

func (m *MongoDB) UpdateProperty(ctx context.Context, p *Property) error {
	res, err := m.properties.UpdateOne(ctx,
		bson.M{"_id": p.ID, "owner": p.Owner},
		bson.M{"$set": bson.M{"images": p.Images, "address": p.Address, "city": p.City}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) DeleteProperty(ctx context.Context, id, ownerID string) error {
	res, err := m.properties.DeleteOne(ctx, bson.M{"_id": id, "owner": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoDB) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func (m *MongoDB) ping() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return m.client.Ping(ctx, nil) == nil
}
