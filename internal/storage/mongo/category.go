package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/catalog"
)

type categoryDoc struct {
	ID        primitive.ObjectID  `bson:"_id"`
	Name      string              `bson:"name"`
	Slug      string              `bson:"slug"`
	ParentID  *primitive.ObjectID `bson:"parentId,omitempty"`
	Position  int                 `bson:"position"`
	Active    bool                `bson:"active"`
	CreatedAt time.Time           `bson:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt"`
}

var _ catalog.CategoryRepository = (*CategoryRepository)(nil)

// CategoryRepository implements catalog.CategoryRepository backed by MongoDB.
type CategoryRepository struct {
	coll     *mongo.Collection
	products *mongo.Collection
}

// NewCategoryRepository returns a CategoryRepository over db.
func NewCategoryRepository(db *mongo.Database) *CategoryRepository {
	return &CategoryRepository{
		coll:     db.Collection(categoriesCollection),
		products: db.Collection(productsCollection),
	}
}

func (r *CategoryRepository) List(ctx context.Context, f catalog.CategoryFilter) ([]catalog.Category, error) {
	filter := bson.M{}
	if f.OnlyActive {
		filter["active"] = true
	}
	opts := options.Find().SetSort(bson.D{{Key: "position", Value: 1}, {Key: "name", Value: 1}})
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return decodeAll(ctx, cur, categoryFromDoc)
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*catalog.Category, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, catalog.ErrCategoryNotFound
	}
	var doc categoryDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, catalog.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("getting category %q: %w", id, err)
	}
	c, err := categoryFromDoc(doc)
	return &c, err
}

func (r *CategoryRepository) Create(ctx context.Context, c *catalog.Category) error {
	doc, err := r.toDoc(ctx, c)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return categoryWriteErr("creating", c, err)
	}
	c.ID = doc.ID.Hex()
	return nil
}

func (r *CategoryRepository) Upsert(ctx context.Context, c *catalog.Category) error {
	doc, err := r.toDoc(ctx, c)
	if err != nil {
		return err
	}
	update := bson.M{
		"$set": bson.M{
			"name":      doc.Name,
			"parentId":  doc.ParentID,
			"position":  doc.Position,
			"active":    doc.Active,
			"updatedAt": doc.UpdatedAt,
		},
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "createdAt": doc.CreatedAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored categoryDoc
	err = r.coll.FindOneAndUpdate(ctx, bson.M{"slug": doc.Slug}, update, opts).Decode(&stored)
	if err != nil {
		return categoryWriteErr("upserting", c, err)
	}
	c.ID = stored.ID.Hex()
	c.CreatedAt = stored.CreatedAt
	return nil
}

func (r *CategoryRepository) Update(ctx context.Context, c *catalog.Category) error {
	oid, ok := objectID(c.ID)
	if !ok {
		return catalog.ErrCategoryNotFound
	}
	doc, err := r.toDoc(ctx, c)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"name":      doc.Name,
		"slug":      doc.Slug,
		"parentId":  doc.ParentID,
		"position":  doc.Position,
		"active":    doc.Active,
		"updatedAt": doc.UpdatedAt,
	}})
	if err != nil {
		return categoryWriteErr("updating", c, err)
	}
	if res.MatchedCount == 0 {
		return catalog.ErrCategoryNotFound
	}
	return nil
}

// Delete removes the category. Categories that still own products are
// kept and reported as in use; child categories become top-level.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return catalog.ErrCategoryNotFound
	}
	n, err := r.products.CountDocuments(ctx, bson.M{"categoryId": oid}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("counting products of category %q: %w", id, err)
	}
	if n > 0 {
		return catalog.ErrCategoryInUse
	}

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting category %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return catalog.ErrCategoryNotFound
	}
	if _, err := r.coll.UpdateMany(ctx, bson.M{"parentId": oid}, bson.M{"$unset": bson.M{"parentId": ""}}); err != nil {
		return fmt.Errorf("detaching children of category %q: %w", id, err)
	}
	return nil
}

// toDoc converts c and checks that its parent exists.
func (r *CategoryRepository) toDoc(ctx context.Context, c *catalog.Category) (categoryDoc, error) {
	doc := categoryDoc{
		Name:      c.Name,
		Slug:      c.Slug,
		Position:  c.Position,
		Active:    c.Active,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if c.ParentID == "" {
		return doc, nil
	}
	errParent := domain.Invalid("parentId", "parent category does not exist")
	parent, ok := objectID(c.ParentID)
	if !ok {
		return doc, errParent
	}
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": parent}, options.Count().SetLimit(1))
	if err != nil {
		return doc, fmt.Errorf("checking parent category %q: %w", c.ParentID, err)
	}
	if n == 0 {
		return doc, errParent
	}
	doc.ParentID = &parent
	return doc, nil
}

func categoryWriteErr(op string, c *catalog.Category, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return catalog.ErrDuplicateSlug
	}
	return fmt.Errorf("%s category %q: %w", op, c.Slug, err)
}

func categoryFromDoc(doc categoryDoc) (catalog.Category, error) {
	c := catalog.Category{
		ID:        doc.ID.Hex(),
		Name:      doc.Name,
		Slug:      doc.Slug,
		Position:  doc.Position,
		Active:    doc.Active,
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	if doc.ParentID != nil {
		c.ParentID = doc.ParentID.Hex()
	}
	return c, nil
}
