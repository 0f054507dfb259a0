package order

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/tokyo-express/internal/domain"
	"github.com/xenking/tokyo-express/internal/domain/pricing"
	"github.com/xenking/tokyo-express/internal/events"
)

const instrumentationName = "github.com/xenking/tokyo-express/internal/domain/order"

// ActiveOrdersLimit caps the active order list in daily stats.
const ActiveOrdersLimit = 10

// DefaultPublishTimeout bounds a single event delivery.
const DefaultPublishTimeout = 5 * time.Second

// Quoter prices carts.
type Quoter interface {
	Quote(ctx context.Context, cart pricing.Cart) (*pricing.Quote, error)
}

// StatusChange is the payload of a status change event.
type StatusChange struct {
	ID   string `json:"id"`
	From Status `json:"from"`
	To   Status `json:"to"`
}

// DailyStats summarizes the orders of one local day.
type DailyStats struct {
	// Revenue, OrdersCount and AverageCheck exclude canceled orders.
	Revenue      decimal.Decimal
	OrdersCount  int
	AverageCheck decimal.Decimal
	// ActiveOrders are the newest orders still in progress, of any day.
	ActiveOrders []Order
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets the event publisher. Events are dropped by default.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithPublishTimeout bounds each event delivery. Events are published in
// the background, so the timeout never delays a request. Non-positive
// values keep DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// WithStrictStatusFlow makes UpdateStatus reject transitions that break the
// forward flow.
func WithStrictStatusFlow(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) { s.tracer = tp.Tracer(instrumentationName) }
}

// WithMeterProvider sets the meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meter = mp.Meter(instrumentationName) }
}

// WithLocation sets the time zone that defines "today" for stats.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

// Service implements checkout and order management.
type Service struct {
	quoter    Quoter
	orders    Repository
	publisher events.Publisher
	strict    bool
	loc       *time.Location
	now       func() time.Time

	publishTimeout time.Duration
	inflight       sync.WaitGroup

	tracer  trace.Tracer
	meter   metric.Meter
	placed  metric.Int64Counter
	revenue metric.Float64Counter
}

// NewService creates an order Service.
func NewService(quoter Quoter, orders Repository, opts ...Option) (*Service, error) {
	s := &Service{
		quoter:    quoter,
		orders:    orders,
		publisher: events.Nop{},
		loc:       time.Local,
		now:       time.Now,
		tracer:    tracenoop.NewTracerProvider().Tracer(instrumentationName),
		meter:     metricnoop.NewMeterProvider().Meter(instrumentationName),

		publishTimeout: DefaultPublishTimeout,
	}
	for _, o := range opts {
		o(s)
	}

	var err error
	if s.placed, err = s.meter.Int64Counter("orders.placed",
		metric.WithDescription("Number of placed orders"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.placed counter")
	}
	if s.revenue, err = s.meter.Float64Counter("orders.revenue",
		metric.WithDescription("Sum of placed order totals"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.revenue counter")
	}
	return s, nil
}

// Quote prices a cart without placing an order.
func (s *Service) Quote(ctx context.Context, cart pricing.Cart) (*pricing.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "order.Quote")
	defer span.End()

	q, err := s.quoter.Quote(ctx, cart)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return q, nil
}

// Place prices the cart and stores it as a new order.
func (s *Service) Place(ctx context.Context, cart pricing.Cart) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Place")
	defer span.End()

	q, err := s.quoter.Quote(ctx, cart)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	now := s.now()
	o := &Order{
		Items:     itemsFromQuote(q.Lines),
		Pricing:   q.Pricing,
		Mode:      q.Mode,
		Address:   q.Address,
		Phone:     q.Phone,
		Comment:   q.Comment,
		Status:    StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orders.Create(ctx, o); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("create order: %w", err)
	}
	span.SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.String("order.mode", string(o.Mode)),
	)

	attrs := metric.WithAttributes(attribute.String("mode", string(o.Mode)))
	s.placed.Add(ctx, 1, attrs)
	s.revenue.Add(ctx, o.Pricing.Total.InexactFloat64(), attrs)

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("mode", string(o.Mode)),
		zap.String("total", o.Pricing.Total.String()),
		zap.Int("discount_percent", o.Pricing.DiscountPercent),
	)
	s.publish(ctx, events.Message{Key: o.ID, Type: events.OrderCreated, Payload: *o})
	return o, nil
}

// List returns orders matching f, newest first.
func (s *Service) List(ctx context.Context, f Filter) ([]Order, error) {
	for _, st := range f.Statuses {
		if !st.Valid() {
			return nil, domain.Invalid("status", fmt.Sprintf("unknown status %q", st))
		}
	}
	if f.Mode != "" && !f.Mode.Valid() {
		return nil, &pricing.InvalidModeError{Mode: string(f.Mode)}
	}
	return s.orders.List(ctx, f)
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// UpdateStatus moves an order to status. Unknown statuses are rejected;
// the forward flow is enforced only in strict mode.
func (s *Service) UpdateStatus(ctx context.Context, id string, status Status) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus",
		trace.WithAttributes(attribute.String("order.id", id), attribute.String("order.status", string(status))),
	)
	defer span.End()

	if !status.Valid() {
		return nil, domain.Invalid("status", fmt.Sprintf("unknown status %q", status))
	}

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	from := o.Status
	if s.strict && !CanTransition(from, status) {
		return nil, &TransitionError{From: from, To: status}
	}
	if from == status {
		return o, nil
	}

	now := s.now()
	if err := s.orders.UpdateStatus(ctx, id, status, now); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("update order %s status: %w", id, err)
	}
	o.Status = status
	o.UpdatedAt = now

	zctx.From(ctx).Info("Order status changed",
		zap.String("order_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(status)),
	)
	s.publish(ctx, events.Message{
		Key:     id,
		Type:    events.OrderStatusChanged,
		Payload: StatusChange{ID: id, From: from, To: status},
	})
	return o, nil
}

// Update replaces the cart, mode, address, phone and comment of an order and
// prices it again at the current promotions. Status and creation time are
// kept.
func (s *Service) Update(ctx context.Context, id string, cart pricing.Cart) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Update", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	q, err := s.quoter.Quote(ctx, cart)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	o.Items = itemsFromQuote(q.Lines)
	o.Pricing = q.Pricing
	o.Mode = q.Mode
	o.Address = q.Address
	o.Phone = q.Phone
	o.Comment = q.Comment
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}
	return o, nil
}

// Delete removes an order.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.orders.Delete(ctx, id)
}

// Today returns the stats of the current local day.
func (s *Service) Today(ctx context.Context) (*DailyStats, error) {
	ctx, span := s.tracer.Start(ctx, "order.Today")
	defer span.End()

	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1)

	counted := make([]Status, 0, len(Statuses))
	for _, st := range Statuses {
		if st != StatusCanceled {
			counted = append(counted, st)
		}
	}
	today, err := s.orders.List(ctx, Filter{
		Statuses:      counted,
		CreatedAfter:  start,
		CreatedBefore: end,
	})
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("list today orders: %w", err)
	}

	active, err := s.orders.List(ctx, Filter{
		Statuses: ActiveStatuses,
		Limit:    ActiveOrdersLimit,
	})
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("list active orders: %w", err)
	}

	st := &DailyStats{
		Revenue:      decimal.Zero,
		OrdersCount:  len(today),
		AverageCheck: decimal.Zero,
		ActiveOrders: active,
	}
	for _, o := range today {
		st.Revenue = st.Revenue.Add(o.Pricing.Total)
	}
	if st.OrdersCount > 0 {
		st.AverageCheck = st.Revenue.Div(decimal.NewFromInt(int64(st.OrdersCount))).Round(0)
	}
	return st, nil
}

// publish delivers msg in the background. The delivery outlives the request
// context but not publishTimeout; failures are only logged.
func (s *Service) publish(ctx context.Context, msg events.Message) {
	ctx = context.WithoutCancel(ctx)
	s.inflight.Go(func() {
		ctx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()
		if err := s.publisher.Publish(ctx, msg); err != nil {
			zctx.From(ctx).Warn("Publish event failed",
				zap.String("type", msg.Type),
				zap.String("key", msg.Key),
				zap.Error(err),
			)
		}
	})
}

// Flush waits for in-flight events to be published, or for ctx to end.
func (s *Service) Flush(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "flush events")
	}
}

func recordError(span trace.Span, err error) {
	if errors.Is(err, domain.ErrInvalid) || errors.Is(err, domain.ErrNotFound) {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
