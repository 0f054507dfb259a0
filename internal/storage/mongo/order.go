package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/xenking/tokyo-express/internal/domain/order"
	"github.com/xenking/tokyo-express/internal/domain/pricing"
)

type orderItemDoc struct {
	ProductID string               `bson:"productId,omitempty"`
	Name      string               `bson:"name"`
	Price     primitive.Decimal128 `bson:"price"`
	Quantity  int                  `bson:"qty"`
}

type addressDoc struct {
	Street       string `bson:"street"`
	House        string `bson:"house"`
	Entrance     string `bson:"entrance"`
	Floor        string `bson:"floor"`
	Apartment    string `bson:"apartment"`
	PrivateHouse bool   `bson:"isPrivateHouse"`
}

type pricingDoc struct {
	Subtotal        primitive.Decimal128 `bson:"subtotal"`
	DeliveryFee     primitive.Decimal128 `bson:"deliveryFee"`
	DiscountPercent int                  `bson:"discountPercent"`
	DiscountAmount  primitive.Decimal128 `bson:"discountAmount"`
	Total           primitive.Decimal128 `bson:"total"`
	PromotionID     string               `bson:"promotionId,omitempty"`
}

type orderDoc struct {
	ID        primitive.ObjectID `bson:"_id"`
	Items     []orderItemDoc     `bson:"items"`
	Pricing   pricingDoc         `bson:"pricing"`
	Mode      string             `bson:"mode"`
	Address   *addressDoc        `bson:"address,omitempty"`
	Phone     string             `bson:"phone"`
	Comment   string             `bson:"comment"`
	Status    string             `bson:"status"`
	CreatedAt time.Time          `bson:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt"`
}

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by MongoDB. Items,
// pricing and address are embedded in the order document.
type OrderRepository struct {
	coll *mongo.Collection
}

// NewOrderRepository returns an OrderRepository over db.
func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(ordersCollection)}
}

func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	doc, err := orderToDoc(o)
	if err != nil {
		return err
	}
	doc.ID = primitive.NewObjectID()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("creating order: %w", err)
	}
	o.ID = doc.ID.Hex()
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, order.ErrNotFound
	}
	var doc orderDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if isNoDocuments(err) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := orderFromDoc(doc)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns orders matching f, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) ([]order.Order, error) {
	filter := bson.M{}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	if f.Mode != "" {
		filter["mode"] = string(f.Mode)
	}
	created := bson.M{}
	if !f.CreatedAfter.IsZero() {
		created["$gte"] = f.CreatedAfter
	}
	if !f.CreatedBefore.IsZero() {
		created["$lt"] = f.CreatedBefore
	}
	if len(created) > 0 {
		filter["createdAt"] = created
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return decodeAll(ctx, cur, orderFromDoc)
}

func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	oid, ok := objectID(o.ID)
	if !ok {
		return order.ErrNotFound
	}
	doc, err := orderToDoc(o)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"items":     doc.Items,
		"pricing":   doc.Pricing,
		"mode":      doc.Mode,
		"address":   doc.Address,
		"phone":     doc.Phone,
		"comment":   doc.Comment,
		"updatedAt": doc.UpdatedAt,
	}})
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if res.MatchedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status, at time.Time) error {
	oid, ok := objectID(id)
	if !ok {
		return order.ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"status":    string(status),
		"updatedAt": at,
	}})
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return order.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return order.ErrNotFound
	}
	return nil
}

func orderToDoc(o *order.Order) (orderDoc, error) {
	doc := orderDoc{
		Items:     make([]orderItemDoc, len(o.Items)),
		Mode:      string(o.Mode),
		Phone:     o.Phone,
		Comment:   o.Comment,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
	for i, it := range o.Items {
		price, err := toDecimal128(it.Price)
		if err != nil {
			return doc, err
		}
		doc.Items[i] = orderItemDoc{ProductID: it.ProductID, Name: it.Name, Price: price, Quantity: it.Quantity}
	}

	p := o.Pricing
	doc.Pricing.DiscountPercent = p.DiscountPercent
	doc.Pricing.PromotionID = p.PromotionID
	var err error
	if doc.Pricing.Subtotal, err = toDecimal128(p.Subtotal); err != nil {
		return doc, err
	}
	if doc.Pricing.DeliveryFee, err = toDecimal128(p.DeliveryFee); err != nil {
		return doc, err
	}
	if doc.Pricing.DiscountAmount, err = toDecimal128(p.DiscountAmount); err != nil {
		return doc, err
	}
	if doc.Pricing.Total, err = toDecimal128(p.Total); err != nil {
		return doc, err
	}

	if a := o.Address; a != nil {
		doc.Address = &addressDoc{
			Street:       a.Street,
			House:        a.House,
			Entrance:     a.Entrance,
			Floor:        a.Floor,
			Apartment:    a.Apartment,
			PrivateHouse: a.PrivateHouse,
		}
	}
	return doc, nil
}

func orderFromDoc(doc orderDoc) (order.Order, error) {
	o := order.Order{
		ID:        doc.ID.Hex(),
		Items:     make([]order.Item, len(doc.Items)),
		Mode:      pricing.Mode(doc.Mode),
		Phone:     doc.Phone,
		Comment:   doc.Comment,
		Status:    order.Status(doc.Status),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
	for i, it := range doc.Items {
		price, err := fromDecimal128(it.Price)
		if err != nil {
			return o, err
		}
		o.Items[i] = order.Item{ProductID: it.ProductID, Name: it.Name, Price: price, Quantity: it.Quantity}
	}

	o.Pricing.DiscountPercent = doc.Pricing.DiscountPercent
	o.Pricing.PromotionID = doc.Pricing.PromotionID
	var err error
	if o.Pricing.Subtotal, err = fromDecimal128(doc.Pricing.Subtotal); err != nil {
		return o, err
	}
	if o.Pricing.DeliveryFee, err = fromDecimal128(doc.Pricing.DeliveryFee); err != nil {
		return o, err
	}
	if o.Pricing.DiscountAmount, err = fromDecimal128(doc.Pricing.DiscountAmount); err != nil {
		return o, err
	}
	if o.Pricing.Total, err = fromDecimal128(doc.Pricing.Total); err != nil {
		return o, err
	}

	if a := doc.Address; a != nil {
		o.Address = &pricing.Address{
			Street:       a.Street,
			House:        a.House,
			Entrance:     a.Entrance,
			Floor:        a.Floor,
			Apartment:    a.Apartment,
			PrivateHouse: a.PrivateHouse,
		}
	}
	return o, nil
}
