package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/tokyo-express/internal/domain/catalog"
)

type productDoc struct {
	ID              primitive.ObjectID   `bson:"_id"`
	Name            string               `bson:"name"`
	Slug            string               `bson:"slug"`
	CategoryID      primitive.ObjectID   `bson:"categoryId"`
	Description     string               `bson:"description"`
	Composition     string               `bson:"composition"`
	Weight          string               `bson:"weight"`
	Price           primitive.Decimal128 `bson:"price"`
	Image           string               `bson:"image"`
	Available       bool                 `bson:"available"`
	Promoted        bool                 `bson:"promoted"`
	DiscountPercent int                  `bson:"discountPercent"`
	Position        int                  `bson:"position"`
	CreatedAt       time.Time            `bson:"createdAt"`
	UpdatedAt       time.Time            `bson:"updatedAt"`
}

var _ catalog.ProductRepository = (*ProductRepository)(nil)

// ProductRepository implements catalog.ProductRepository backed by MongoDB.
type ProductRepository struct {
	coll       *mongo.Collection
	categories *mongo.Collection
}

// NewProductRepository returns a ProductRepository over db.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{
		coll:       db.Collection(productsCollection),
		categories: db.Collection(categoriesCollection),
	}
}

var productSort = bson.D{{Key: "position", Value: 1}, {Key: "name", Value: 1}}

// List returns products matching f ordered by position, then name.
func (r *ProductRepository) List(ctx context.Context, f catalog.ProductFilter) ([]catalog.Product, error) {
	filter := bson.M{}
	if f.OnlyAvailable {
		filter["available"] = true
	}
	if f.CategoryID != "" {
		oid, ok := objectID(f.CategoryID)
		if !ok {
			return nil, nil
		}
		filter["categoryId"] = oid
	}
	if f.Search != "" {
		filter["name"] = substring(f.Search)
	}
	if f.Promoted != nil {
		filter["promoted"] = *f.Promoted
	}

	cur, err := r.coll.Find(ctx, filter, options.Find().SetSort(productSort))
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return decodeAll(ctx, cur, productFromDoc)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	var doc productDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	p, err := productFromDoc(doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetBySlug returns a single product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	var doc productDoc
	if err := r.coll.FindOne(ctx, bson.M{"slug": slug}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, fmt.Errorf("getting product by slug %q: %w", slug, err)
	}
	p, err := productFromDoc(doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return nil, nil
	}
	cur, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return decodeAll(ctx, cur, productFromDoc)
}

func (r *ProductRepository) Create(ctx context.Context, p *catalog.Product) error {
	doc, err := r.toDoc(ctx, p)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return productWriteErr("creating", p, err)
	}
	p.ID = doc.ID.Hex()
	return nil
}

func (r *ProductRepository) Upsert(ctx context.Context, p *catalog.Product) error {
	doc, err := r.toDoc(ctx, p)
	if err != nil {
		return err
	}
	set := productFields(doc)
	delete(set, "slug")
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "createdAt": doc.CreatedAt},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored productDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"slug": doc.Slug}, update, opts).Decode(&stored); err != nil {
		return productWriteErr("upserting", p, err)
	}
	p.ID = stored.ID.Hex()
	p.CreatedAt = stored.CreatedAt
	return nil
}

func (r *ProductRepository) Update(ctx context.Context, p *catalog.Product) error {
	oid, ok := objectID(p.ID)
	if !ok {
		return catalog.ErrProductNotFound
	}
	doc, err := r.toDoc(ctx, p)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": productFields(doc)})
	if err != nil {
		return productWriteErr("updating", p, err)
	}
	if res.MatchedCount == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return catalog.ErrProductNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting product %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// toDoc converts p and checks that its category exists.
func (r *ProductRepository) toDoc(ctx context.Context, p *catalog.Product) (productDoc, error) {
	category, ok := objectID(p.CategoryID)
	if !ok {
		return productDoc{}, catalog.ErrCategoryNotFound
	}
	n, err := r.categories.CountDocuments(ctx, bson.M{"_id": category}, options.Count().SetLimit(1))
	if err != nil {
		return productDoc{}, fmt.Errorf("checking category %q: %w", p.CategoryID, err)
	}
	if n == 0 {
		return productDoc{}, catalog.ErrCategoryNotFound
	}
	price, err := toDecimal128(p.Price)
	if err != nil {
		return productDoc{}, err
	}
	return productDoc{
		Name:            p.Name,
		Slug:            p.Slug,
		CategoryID:      category,
		Description:     p.Description,
		Composition:     p.Composition,
		Weight:          p.Weight,
		Price:           price,
		Image:           p.Image,
		Available:       p.Available,
		Promoted:        p.Promoted,
		DiscountPercent: p.DiscountPercent,
		Position:        p.Position,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}, nil
}

// productFields lists the fields rewritten by Update and Upsert.
func productFields(doc productDoc) bson.M {
	return bson.M{
		"name":            doc.Name,
		"slug":            doc.Slug,
		"categoryId":      doc.CategoryID,
		"description":     doc.Description,
		"composition":     doc.Composition,
		"weight":          doc.Weight,
		"price":           doc.Price,
		"image":           doc.Image,
		"available":       doc.Available,
		"promoted":        doc.Promoted,
		"discountPercent": doc.DiscountPercent,
		"position":        doc.Position,
		"updatedAt":       doc.UpdatedAt,
	}
}

func productWriteErr(op string, p *catalog.Product, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return catalog.ErrDuplicateSlug
	}
	return fmt.Errorf("%s product %q: %w", op, p.Slug, err)
}

func productFromDoc(doc productDoc) (catalog.Product, error) {
	price, err := fromDecimal128(doc.Price)
	if err != nil {
		return catalog.Product{}, err
	}
	return catalog.Product{
		ID:              doc.ID.Hex(),
		Name:            doc.Name,
		Slug:            doc.Slug,
		CategoryID:      doc.CategoryID.Hex(),
		Description:     doc.Description,
		Composition:     doc.Composition,
		Weight:          doc.Weight,
		Price:           price,
		Image:           doc.Image,
		Available:       doc.Available,
		Promoted:        doc.Promoted,
		DiscountPercent: doc.DiscountPercent,
		Position:        doc.Position,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}
