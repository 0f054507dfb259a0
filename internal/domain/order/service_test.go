package order

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/pricing"
	"github.com/xenking/tokyo-express/internal/domain/promotion"
	"github.com/xenking/tokyo-express/internal/events"
)

// --- Mock implementations ---

type mockCatalog struct {
	prices map[string]pricing.CatalogPrice
}

func (m *mockCatalog) PricesByIDs(_ context.Context, ids []string) (map[string]pricing.CatalogPrice, error) {
	out := make(map[string]pricing.CatalogPrice)
	for _, id := range ids {
		if p, ok := m.prices[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type mockPromotions struct {
	promos []promotion.Promotion
}

func (m *mockPromotions) ListAll(context.Context) ([]promotion.Promotion, error) {
	return m.promos, nil
}

type mockOrderRepo struct {
	byID      map[string]*Order
	seq       int
	createErr error
	filters   []Filter
}

func newOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{byID: make(map[string]*Order)}
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	o.ID = fmt.Sprintf("o%d", m.seq)
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrderRepo) List(_ context.Context, f Filter) ([]Order, error) {
	m.filters = append(m.filters, f)
	var out []Order
	for _, o := range m.byID {
		if len(f.Statuses) > 0 && !containsStatus(f.Statuses, o.Status) {
			continue
		}
		if f.Mode != "" && o.Mode != f.Mode {
			continue
		}
		if !f.CreatedAfter.IsZero() && o.CreatedAt.Before(f.CreatedAfter) {
			continue
		}
		if !f.CreatedBefore.IsZero() && !o.CreatedAt.Before(f.CreatedBefore) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *mockOrderRepo) Update(_ context.Context, o *Order) error {
	if _, ok := m.byID[o.ID]; !ok {
		return ErrNotFound
	}
	cp := *o
	m.byID[o.ID] = &cp
	return nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status, at time.Time) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	return nil
}

func (m *mockOrderRepo) Delete(_ context.Context, id string) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func containsStatus(list []Status, s Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type mockPublisher struct {
	mu       sync.Mutex
	messages []events.Message
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, msg events.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

// blockingPublisher holds every Publish until release is closed or the
// publish context ends.
type blockingPublisher struct {
	release chan struct{}
	started chan struct{}
	ctxErr  chan error
}

func newBlockingPublisher() *blockingPublisher {
	return &blockingPublisher{
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
		ctxErr:  make(chan error, 1),
	}
}

func (b *blockingPublisher) Publish(ctx context.Context, _ events.Message) error {
	b.started <- struct{}{}
	select {
	case <-b.release:
		b.ctxErr <- ctx.Err()
		return nil
	case <-ctx.Done():
		b.ctxErr <- ctx.Err()
		return ctx.Err()
	}
}

func (b *blockingPublisher) Close() error { return nil }

// --- Helpers ---

var testNow = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

type fixture struct {
	svc       *Service
	repo      *mockOrderRepo
	publisher *mockPublisher
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	cat := &mockCatalog{prices: map[string]pricing.CatalogPrice{
		"philadelphia": {Name: "Philadelphia", Price: decimal.NewFromInt(695)},
		"big-set":      {Name: "Big set", Price: decimal.NewFromInt(2500)},
	}}
	promos := &mockPromotions{promos: []promotion.Promotion{
		{ID: "spring", DiscountPercent: 20, MinOrderSubtotal: decimal.NewFromInt(2000), Enabled: true},
	}}
	engine := pricing.NewEngine(cat, promos, pricing.DefaultDeliveryFee)

	f := &fixture{repo: newOrderRepo(), publisher: &mockPublisher{}}
	opts = append([]Option{WithPublisher(f.publisher), WithLocation(time.UTC)}, opts...)
	svc, err := NewService(engine, f.repo, opts...)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	f.svc = svc
	return f
}

// published waits for background deliveries and returns what was sent.
func (f *fixture) published(t *testing.T) []events.Message {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Flush(ctx))

	f.publisher.mu.Lock()
	defer f.publisher.mu.Unlock()
	return append([]events.Message(nil), f.publisher.messages...)
}

func deliveryCart(lines ...pricing.Line) pricing.Cart {
	return pricing.Cart{
		Lines:   lines,
		Mode:    pricing.ModeDelivery,
		Address: &pricing.Address{Street: "Lenina", House: "1"},
		Phone:   "+7 900 123-45-67",
	}
}

func (f *fixture) seed(t *testing.T, status Status, createdAt time.Time) *Order {
	t.Helper()
	o := &Order{
		Status:    status,
		Mode:      pricing.ModePickup,
		Pricing:   pricing.Pricing{Total: decimal.NewFromInt(1000)},
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, f.repo.Create(context.Background(), o))
	return o
}

// --- Tests ---

func TestService_Place(t *testing.T) {
	f := newFixture(t)

	o, err := f.svc.Place(context.Background(), deliveryCart(
		pricing.CatalogLine{ProductID: "big-set", Quantity: 1, Name: "Big set", UnitPrice: decimal.NewFromInt(1)},
	))
	require.NoError(t, err)

	assert.NotEmpty(t, o.ID)
	assert.Equal(t, StatusNew, o.Status)
	assert.Equal(t, testNow, o.CreatedAt)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "big-set", o.Items[0].ProductID)
	assert.True(t, decimal.NewFromInt(2500).Equal(o.Items[0].Price))
	assert.True(t, decimal.NewFromInt(500).Equal(o.Pricing.DiscountAmount))
	assert.True(t, decimal.NewFromInt(2150).Equal(o.Pricing.Total))
	assert.Equal(t, "spring", o.Pricing.PromotionID)
	require.NotNil(t, o.Address)
	assert.Equal(t, "Lenina", o.Address.Street)

	stored, err := f.repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusNew, stored.Status)

	msgs := f.published(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, events.OrderCreated, msgs[0].Type)
	assert.Equal(t, o.ID, msgs[0].Key)
	assert.Equal(t, o.ID, msgs[0].Payload.(Order).ID)
}

func TestService_Place_EmptyCartCreatesNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Place(context.Background(), deliveryCart())
	require.Error(t, err)
	assert.ErrorIs(t, err, pricing.ErrEmptyCart)
	assert.Empty(t, f.repo.byID)
	assert.Empty(t, f.published(t))
}

func TestService_Place_RepoError(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = errors.New("disk full")

	_, err := f.svc.Place(context.Background(), deliveryCart(pricing.CatalogLine{ProductID: "philadelphia", Quantity: 1}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, f.published(t))
}

func TestService_Place_PublishFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")

	o, err := f.svc.Place(context.Background(), deliveryCart(pricing.CatalogLine{ProductID: "philadelphia", Quantity: 2}))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1390+150).Equal(o.Pricing.Total))
	assert.Len(t, f.published(t), 1)
}

func TestService_Place_DoesNotWaitForPublisher(t *testing.T) {
	f := newFixture(t)
	pub := newBlockingPublisher()
	f.svc.publisher = pub

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Place(ctx, deliveryCart(pricing.CatalogLine{ProductID: "philadelphia", Quantity: 1}))
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Place blocked on the event publisher")
	}
	<-pub.started

	// The request is over; its cancellation must not abort delivery.
	cancel()
	flushCtx, stop := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer stop()
	require.ErrorIs(t, f.svc.Flush(flushCtx), context.DeadlineExceeded)

	close(pub.release)
	require.NoError(t, f.svc.Flush(context.Background()))
	assert.NoError(t, <-pub.ctxErr)
}

func TestService_PublishTimeout(t *testing.T) {
	f := newFixture(t, WithPublishTimeout(20*time.Millisecond))
	pub := newBlockingPublisher()
	f.svc.publisher = pub

	_, err := f.svc.UpdateStatus(context.Background(), f.seed(t, StatusNew, testNow).ID, StatusAccepted)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.svc.Flush(ctx))
	assert.ErrorIs(t, <-pub.ctxErr, context.DeadlineExceeded)
}

func TestService_Quote_DoesNotPersist(t *testing.T) {
	f := newFixture(t)

	q, err := f.svc.Quote(context.Background(), deliveryCart(pricing.CatalogLine{ProductID: "philadelphia", Quantity: 1}))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(845).Equal(q.Pricing.Total))
	assert.Empty(t, f.repo.byID)
}

func TestService_UpdateStatus(t *testing.T) {
	tests := []struct {
		name    string
		strict  bool
		from    Status
		to      Status
		wantErr error
	}{
		{name: "forward step", from: StatusNew, to: StatusAccepted},
		{name: "permissive backwards", from: StatusDone, to: StatusNew},
		{name: "strict forward step", strict: true, from: StatusCooking, to: StatusToCourier},
		{name: "strict cancel", strict: true, from: StatusOnWay, to: StatusCanceled},
		{name: "strict rejects done to new", strict: true, from: StatusDone, to: StatusNew, wantErr: domain.ErrConflict},
		{name: "strict rejects skipping", strict: true, from: StatusNew, to: StatusDone, wantErr: domain.ErrConflict},
		{name: "unknown status", from: StatusNew, to: "lost", wantErr: domain.ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, WithStrictStatusFlow(tt.strict))
			o := f.seed(t, tt.from, testNow.Add(-time.Hour))

			got, err := f.svc.UpdateStatus(context.Background(), o.ID, tt.to)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				stored, _ := f.repo.GetByID(context.Background(), o.ID)
				assert.Equal(t, tt.from, stored.Status)
				assert.Empty(t, f.published(t))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, got.Status)
			assert.Equal(t, testNow, got.UpdatedAt)

			msgs := f.published(t)
			require.Len(t, msgs, 1)
			assert.Equal(t, events.OrderStatusChanged, msgs[0].Type)
			assert.Equal(t, StatusChange{ID: o.ID, From: tt.from, To: tt.to}, msgs[0].Payload)
		})
	}
}

func TestService_UpdateStatus_TransitionError(t *testing.T) {
	f := newFixture(t, WithStrictStatusFlow(true))
	o := f.seed(t, StatusDone, testNow)

	_, err := f.svc.UpdateStatus(context.Background(), o.ID, StatusNew)
	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusDone, te.From)
	assert.Equal(t, StatusNew, te.To)
}

func TestService_UpdateStatus_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateStatus(context.Background(), "missing", StatusAccepted)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_Update_Reprices(t *testing.T) {
	f := newFixture(t)
	o, err := f.svc.Place(context.Background(), deliveryCart(pricing.CatalogLine{ProductID: "philadelphia", Quantity: 1}))
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(context.Background(), o.ID, StatusCooking)
	require.NoError(t, err)

	updated, err := f.svc.Update(context.Background(), o.ID, pricing.Cart{
		Lines:   []pricing.Line{pricing.CatalogLine{ProductID: "big-set", Quantity: 1}},
		Mode:    pricing.ModePickup,
		Phone:   "555",
		Comment: "call first",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusCooking, updated.Status)
	assert.Equal(t, pricing.ModePickup, updated.Mode)
	assert.Nil(t, updated.Address)
	assert.Equal(t, "call first", updated.Comment)
	assert.True(t, decimal.NewFromInt(2000).Equal(updated.Pricing.Total))

	stored, err := f.repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(2000).Equal(stored.Pricing.Total))
}

func TestService_Update_Invalid(t *testing.T) {
	f := newFixture(t)
	o := f.seed(t, StatusNew, testNow)

	_, err := f.svc.Update(context.Background(), o.ID, pricing.Cart{Mode: pricing.ModePickup, Phone: "1"})
	assert.ErrorIs(t, err, pricing.ErrEmptyCart)
}

func TestService_List_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.List(context.Background(), Filter{Statuses: []Status{"bogus"}})
	assert.ErrorIs(t, err, domain.ErrInvalid)

	_, err = f.svc.List(context.Background(), Filter{Mode: "drone"})
	assert.ErrorIs(t, err, domain.ErrInvalid)
}

func TestService_Delete(t *testing.T) {
	f := newFixture(t)
	o := f.seed(t, StatusNew, testNow)

	require.NoError(t, f.svc.Delete(context.Background(), o.ID))
	_, err := f.svc.Get(context.Background(), o.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_Today(t *testing.T) {
	f := newFixture(t)
	dayStart := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)

	f.seed(t, StatusDone, dayStart.Add(time.Hour))
	f.seed(t, StatusNew, dayStart.Add(2*time.Hour))
	f.seed(t, StatusCanceled, dayStart.Add(3*time.Hour))
	f.seed(t, StatusCooking, dayStart.Add(-time.Minute))
	third := f.seed(t, StatusOnWay, dayStart.Add(4*time.Hour))
	third.Pricing.Total = decimal.NewFromInt(1001)
	require.NoError(t, f.repo.Update(context.Background(), third))

	st, err := f.svc.Today(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, st.OrdersCount)
	assert.True(t, decimal.NewFromInt(3001).Equal(st.Revenue), "revenue %s", st.Revenue)
	// 3001 / 3 = 1000.33
	assert.True(t, decimal.NewFromInt(1000).Equal(st.AverageCheck), "avg %s", st.AverageCheck)

	require.Len(t, st.ActiveOrders, 3)
	assert.Equal(t, StatusOnWay, st.ActiveOrders[0].Status)
	assert.Equal(t, StatusCooking, st.ActiveOrders[2].Status)

	require.Len(t, f.repo.filters, 2)
	assert.Equal(t, ActiveOrdersLimit, f.repo.filters[1].Limit)
}

func TestService_Today_Empty(t *testing.T) {
	f := newFixture(t)

	st, err := f.svc.Today(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.OrdersCount)
	assert.True(t, st.Revenue.IsZero())
	assert.True(t, st.AverageCheck.IsZero())
	assert.Empty(t, st.ActiveOrders)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusNew, StatusAccepted))
	assert.True(t, CanTransition(StatusOnWay, StatusDone))
	assert.True(t, CanTransition(StatusNew, StatusCanceled))
	assert.True(t, CanTransition(StatusDone, StatusDone))
	assert.False(t, CanTransition(StatusDone, StatusNew))
	assert.False(t, CanTransition(StatusCanceled, StatusNew))
	assert.False(t, CanTransition(StatusDone, StatusCanceled))
	assert.False(t, CanTransition(StatusAccepted, StatusNew))
	assert.False(t, CanTransition(StatusNew, StatusCooking))
}
