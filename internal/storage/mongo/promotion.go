package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/tokyo-express/internal/domain/promotion"
)

type promotionDoc struct {
	ID               primitive.ObjectID   `bson:"_id"`
	Title            string               `bson:"title"`
	Description      string               `bson:"description"`
	DiscountPercent  int                  `bson:"discountPercent"`
	MinOrderSubtotal primitive.Decimal128 `bson:"minOrderSubtotal"`
	ActiveFrom       *time.Time           `bson:"activeFrom"`
	ActiveTo         *time.Time           `bson:"activeTo"`
	Enabled          bool                 `bson:"enabled"`
	CreatedAt        time.Time            `bson:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt"`
}

var _ promotion.Repository = (*PromotionRepository)(nil)

// PromotionRepository implements promotion.Repository backed by MongoDB.
type PromotionRepository struct {
	coll *mongo.Collection
}

// NewPromotionRepository returns a PromotionRepository over db.
func NewPromotionRepository(db *mongo.Database) *PromotionRepository {
	return &PromotionRepository{coll: db.Collection(promotionsCollection)}
}

// ListAll returns every promotion, newest first.
func (r *PromotionRepository) ListAll(ctx context.Context) ([]promotion.Promotion, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing promotions: %w", err)
	}
	return decodeAll(ctx, cur, promotionFromDoc)
}

func (r *PromotionRepository) GetByID(ctx context.Context, id string) (*promotion.Promotion, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, promotion.ErrNotFound
	}
	var doc promotionDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, promotion.ErrNotFound
		}
		return nil, fmt.Errorf("getting promotion %q: %w", id, err)
	}
	p, err := promotionFromDoc(doc)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PromotionRepository) Create(ctx context.Context, p *promotion.Promotion) error {
	doc, err := promotionToDoc(p)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("creating promotion %q: %w", p.Title, err)
	}
	p.ID = doc.ID.Hex()
	return nil
}

func (r *PromotionRepository) Update(ctx context.Context, p *promotion.Promotion) error {
	oid, ok := objectID(p.ID)
	if !ok {
		return promotion.ErrNotFound
	}
	doc, err := promotionToDoc(p)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"title":            doc.Title,
		"description":      doc.Description,
		"discountPercent":  doc.DiscountPercent,
		"minOrderSubtotal": doc.MinOrderSubtotal,
		"activeFrom":       doc.ActiveFrom,
		"activeTo":         doc.ActiveTo,
		"enabled":          doc.Enabled,
		"updatedAt":        doc.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("updating promotion %q: %w", p.ID, err)
	}
	if res.MatchedCount == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func (r *PromotionRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return promotion.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting promotion %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return promotion.ErrNotFound
	}
	return nil
}

func promotionToDoc(p *promotion.Promotion) (promotionDoc, error) {
	minimum, err := toDecimal128(p.MinOrderSubtotal)
	if err != nil {
		return promotionDoc{}, err
	}
	return promotionDoc{
		Title:            p.Title,
		Description:      p.Description,
		DiscountPercent:  p.DiscountPercent,
		MinOrderSubtotal: minimum,
		ActiveFrom:       p.ActiveFrom,
		ActiveTo:         p.ActiveTo,
		Enabled:          p.Enabled,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}, nil
}

func promotionFromDoc(doc promotionDoc) (promotion.Promotion, error) {
	minimum, err := fromDecimal128(doc.MinOrderSubtotal)
	if err != nil {
		return promotion.Promotion{}, err
	}
	return promotion.Promotion{
		ID:               doc.ID.Hex(),
		Title:            doc.Title,
		Description:      doc.Description,
		DiscountPercent:  doc.DiscountPercent,
		MinOrderSubtotal: minimum,
		ActiveFrom:       doc.ActiveFrom,
		ActiveTo:         doc.ActiveTo,
		Enabled:          doc.Enabled,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}, nil
}
