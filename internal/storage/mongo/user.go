package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/tokyo-express/internal/domain/user"
)

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id"`
	Login        string             `bson:"login"`
	PasswordHash string             `bson:"passwordHash"`
	Role         string             `bson:"role"`
	Name         string             `bson:"name"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by MongoDB.
type UserRepository struct {
	coll *mongo.Collection
}

// NewUserRepository returns a UserRepository over db.
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return decodeAll(ctx, cur, userFromDoc)
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, user.ErrNotFound
	}
	return r.getOne(ctx, bson.M{"_id": oid}, id)
}

func (r *UserRepository) GetByLogin(ctx context.Context, login string) (*user.User, error) {
	return r.getOne(ctx, bson.M{"login": login}, login)
}

func (r *UserRepository) getOne(ctx context.Context, filter bson.M, key string) (*user.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", key, err)
	}
	u, _ := userFromDoc(doc)
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		Login:        u.Login,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Name:         u.Name,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.ErrDuplicateLogin
		}
		return fmt.Errorf("creating user %q: %w", u.Login, err)
	}
	u.ID = doc.ID.Hex()
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	oid, ok := objectID(u.ID)
	if !ok {
		return user.ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"login":        u.Login,
		"passwordHash": u.PasswordHash,
		"role":         string(u.Role),
		"name":         u.Name,
		"updatedAt":    u.UpdatedAt,
	}})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.ErrDuplicateLogin
		}
		return fmt.Errorf("updating user %q: %w", u.ID, err)
	}
	if res.MatchedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return user.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting user %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return user.ErrNotFound
	}
	return nil
}

func userFromDoc(doc userDoc) (user.User, error) {
	return user.User{
		ID:           doc.ID.Hex(),
		Login:        doc.Login,
		PasswordHash: doc.PasswordHash,
		Role:         user.Role(doc.Role),
		Name:         doc.Name,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}, nil
}
