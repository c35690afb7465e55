package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/customer"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	orderService      = "order-service"
	useCasePlaceOrder = "order.place"
	spanPrefix        = "UC."
	publishPeer       = "outbox"

	defaultPublishTimeout = 300 * time.Millisecond

	reasonInsufficientStock = "insufficient_stock"
	reasonReservationFailed = "stock_reservation_failed"
)

var _ application.UseCase[PlaceOrderInput, *PlaceOrderResult] = (*PlaceOrderUseCase)(nil)

// PlaceOrderUseCase validates a customer's request against the catalog, stores the
// order with snapshot prices and reserves the stock it consumes.
type PlaceOrderUseCase struct {
	customers   customer.Repository
	products    product.Repository
	orders      domain.Repository
	idGenerator IDGenerator
	publisher   domoutbox.Publisher
	idempotency IdempotencyStore
	tracer      observability.Tracer

	publishTimeout time.Duration

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	extCounter   observability.Counter   // external_requests_total{peer,endpoint,outcome}
	extHistogram observability.Histogram // external_request_duration_seconds{peer,endpoint}
	compCounter  observability.Counter   // order_compensations_total{outcome}
}

// Option configures a PlaceOrderUseCase.
type Option func(*PlaceOrderUseCase)

// WithIdempotencyStore enables replay of requests carrying an idempotency key.
func WithIdempotencyStore(s IdempotencyStore) Option {
	return func(uc *PlaceOrderUseCase) { uc.idempotency = s }
}

// WithPublishTimeout bounds each outbox publish. Non-positive values keep the default.
func WithPublishTimeout(d time.Duration) Option {
	return func(uc *PlaceOrderUseCase) {
		if d > 0 {
			uc.publishTimeout = d
		}
	}
}

// NewPlaceOrderUseCase wires the use case. A nil publisher disables events and a
// nil tel falls back to no-op telemetry.
func NewPlaceOrderUseCase(
	customers customer.Repository,
	products product.Repository,
	orders domain.Repository,
	idGen IDGenerator,
	publisher domoutbox.Publisher,
	tel observability.Observability,
	opts ...Option,
) *PlaceOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()

	uc := &PlaceOrderUseCase{
		customers:      customers,
		products:       products,
		orders:         orders,
		idGenerator:    idGen,
		publisher:      publisher,
		tracer:         tel.Tracer(),
		publishTimeout: defaultPublishTimeout,
		log:            tel.Logger().With(observability.F("service", orderService)),
		reqCounter:     metrics.Counter(observability.MUsecaseRequests),
		durHistogram:   metrics.Histogram(observability.MUsecaseDuration),
		extCounter:     metrics.Counter(observability.MExternalRequests),
		extHistogram:   metrics.Histogram(observability.MExternalRequestDuration),
		compCounter:    metrics.Counter(observability.MOrderCompensations),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type RequestedItem struct {
	ProductID string
	Quantity  int
}

type PlaceOrderInput struct {
	IdempotencyKey string
	CustomerID     string
	Items          []RequestedItem
}

type PlaceOrderResult struct {
	Order *domain.Order
	// Replayed is true when the order was produced by an earlier request with the same idempotency key.
	Replayed bool
}

// Execute runs the placement workflow. Checks happen in a fixed order: customer,
// product existence, stock. The first failing check decides the error.
func (uc *PlaceOrderUseCase) Execute(ctx context.Context, cmd PlaceOrderInput) (_ *PlaceOrderResult, err error) {
	ctx, logger := logctx.Enrich(ctx, uc.log,
		observability.F("use_case", useCasePlaceOrder),
		observability.F("customer_id", cmd.CustomerID),
	)

	var orderID string
	var publishErr error

	ctx, span := uc.tracer.Start(ctx, spanPrefix+"PlaceOrder",
		attribute.String("use_case", useCasePlaceOrder),
		attribute.String("order.customer_id", cmd.CustomerID),
		attribute.Int("order.item_count", len(cmd.Items)),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()

		if span != nil {
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, statusText)
			} else {
				span.SetStatus(codes.Ok, statusText)
			}
			span.End()
		}

		uc.reqCounter.Add(1,
			observability.L("use_case", useCasePlaceOrder),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat,
			observability.L("use_case", useCasePlaceOrder),
		)

		fields := []observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}
		fields = append(fields, observability.TraceFields(ctx)...)
		if orderID != "" {
			fields = append(fields, observability.F("order_id", orderID))
		}
		if publishErr != nil {
			fields = append(fields, observability.F("event_publish_error", publishErr.Error()))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}

		logger.Info("use_case_done", fields...)
	}()

	fail := func(status string, cause error) (*PlaceOrderResult, error) {
		outcome, statusText = "error", status
		return nil, cause
	}

	if status, verr := validatePlaceOrder(cmd); verr != nil {
		return fail(status, verr)
	}
	if err := ctx.Err(); err != nil {
		return fail("CONTEXT_CANCELED", err)
	}

	if cmd.IdempotencyKey != "" && uc.idempotency != nil {
		existingID, acquired, ierr := uc.idempotency.Acquire(ctx, cmd.CustomerID, cmd.IdempotencyKey)
		switch {
		case ierr != nil:
			return fail("IDEMPOTENCY_LOOKUP_FAILED", fmt.Errorf("order: idempotency lookup: %w", ierr))
		case !acquired && existingID == "":
			return fail("DUPLICATE_IN_FLIGHT", ErrDuplicateRequest)
		case !acquired:
			existing, ferr := uc.orders.FindByID(ctx, existingID)
			if ferr != nil {
				return fail("IDEMPOTENT_REPLAY_FAILED", fmt.Errorf("order: load replayed order: %w", ferr))
			}
			orderID = existing.ID
			statusText = "IDEMPOTENT_REPLAY"
			span.SetAttributes(attribute.String("order.status", string(existing.Status)))
			span.AddEvent("order.idempotent_replay",
				trace.WithAttributes(attribute.String("order.id", orderID)),
			)
			return &PlaceOrderResult{Order: existing, Replayed: true}, nil
		}
		defer func() {
			if err == nil {
				return
			}
			if rerr := uc.idempotency.Release(context.WithoutCancel(ctx), cmd.CustomerID, cmd.IdempotencyKey); rerr != nil {
				logger.Warn("idempotency_release_failed", observability.F("error", rerr.Error()))
			}
		}()
	}

	buyer, cerr := uc.customers.FindByID(ctx, cmd.CustomerID)
	if cerr != nil {
		if errors.Is(cerr, customer.ErrNotFound) {
			return fail("CUSTOMER_NOT_FOUND", ErrCustomerNotFound)
		}
		return fail("CUSTOMER_LOOKUP_FAILED", fmt.Errorf("order: find customer: %w", cerr))
	}

	catalog, perr := uc.products.FindAllByID(ctx, requestedIDs(cmd.Items))
	if perr != nil {
		return fail("PRODUCT_LOOKUP_FAILED", fmt.Errorf("order: find products: %w", perr))
	}
	if len(catalog) == 0 {
		return fail("NO_PRODUCTS_FOUND", ErrNoProductsFound)
	}
	byID := make(map[string]*product.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}
	for _, it := range cmd.Items {
		if _, ok := byID[it.ProductID]; !ok {
			return fail("PRODUCT_NOT_FOUND", &ProductNotFoundError{ProductID: it.ProductID})
		}
	}
	if serr := checkStock(cmd.Items, byID); serr != nil {
		return fail("INSUFFICIENT_STOCK", serr)
	}

	items := make([]domain.LineItem, 0, len(cmd.Items))
	for _, it := range cmd.Items {
		items = append(items, domain.LineItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: byID[it.ProductID].Price,
		})
	}

	orderID = uc.idGenerator.NewID()
	entity, derr := domain.New(orderID, buyer.ID, items)
	if derr != nil {
		return fail("DOMAIN_CONSTRUCTION_FAILED", fmt.Errorf("order: construct: %w", derr))
	}
	stored, serr := uc.orders.Create(ctx, entity)
	if serr != nil {
		return fail("ORDER_CREATE_FAILED", fmt.Errorf("order: create: %w", serr))
	}

	if rerr := uc.products.ReserveStock(ctx, stockChanges(stored)); rerr != nil {
		var stockErr *InsufficientStockError
		if !errors.As(rerr, &stockErr) {
			rerr = fmt.Errorf("order: reserve stock: %w", rerr)
		}
		compensation := uc.compensate(ctx, logger, stored, rerr)
		span.AddEvent("order.compensated",
			trace.WithAttributes(
				attribute.String("order.id", orderID),
				attribute.String("compensation.outcome", compensation),
			),
		)
		return fail("STOCK_RESERVATION_FAILED", rerr)
	}

	if uc.publisher != nil {
		publishErr = uc.publish(ctx, domain.NewOrderPlacedEvent(stored))
		if publishErr != nil {
			statusText = "EVENT_PUBLISH_FAILED"
		}
	}

	if cmd.IdempotencyKey != "" && uc.idempotency != nil {
		// The order exists and its stock is taken; bind even if the caller has gone away.
		if berr := uc.idempotency.Bind(context.WithoutCancel(ctx), cmd.CustomerID, cmd.IdempotencyKey, stored.ID); berr != nil {
			logger.Warn("idempotency_bind_failed",
				observability.F("order_id", stored.ID),
				observability.F("error", berr.Error()),
			)
		}
	}

	span.SetAttributes(
		attribute.String("order.status", string(stored.Status)),
		attribute.String("order.total", stored.Total().String()),
	)
	span.AddEvent("order.placed",
		trace.WithAttributes(attribute.String("order.id", orderID)),
	)

	return &PlaceOrderResult{Order: stored}, nil
}

// compensate cancels an order whose stock could not be reserved. When the
// cancellation cannot be stored it is handed to the worker through the outbox.
func (uc *PlaceOrderUseCase) compensate(ctx context.Context, logger observability.Logger, stored *domain.Order, cause error) string {
	ctx = context.WithoutCancel(ctx)

	reason := reasonReservationFailed
	if errors.Is(cause, ErrInsufficientStock) {
		reason = reasonInsufficientStock
	}

	cancelled := stored.Clone()
	err := cancelled.Cancel(reason)
	if err == nil {
		err = uc.orders.Update(ctx, cancelled)
	}
	if err == nil {
		uc.compCounter.Add(1, observability.L("outcome", "cancelled"))
		return "cancelled"
	}

	logger.Error("order_compensation_failed",
		observability.F("order_id", stored.ID),
		observability.F("reason", reason),
		observability.F("error", err),
	)

	if uc.publisher != nil {
		if perr := uc.publish(ctx, domain.NewOrderCancellationRequestedEvent(stored.ID, reason)); perr == nil {
			uc.compCounter.Add(1, observability.L("outcome", "deferred"))
			return "deferred"
		}
	}
	uc.compCounter.Add(1, observability.L("outcome", "failed"))
	return "failed"
}

func (uc *PlaceOrderUseCase) publish(ctx context.Context, e domoutbox.Event) error {
	endpoint := e.EventName()
	pubCtx, cancel := context.WithTimeout(ctx, uc.publishTimeout)
	defer cancel()

	pubStart := time.Now()
	pubOutcome := "success"
	err := uc.publisher.Publish(pubCtx, e)
	if err != nil {
		pubOutcome = "error"
	} else if pubCtx.Err() != nil {
		pubOutcome = "canceled"
		err = pubCtx.Err()
	}

	uc.extCounter.Add(1,
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
		observability.L("outcome", pubOutcome),
	)
	uc.extHistogram.Observe(time.Since(pubStart).Seconds(),
		observability.L("peer", publishPeer),
		observability.L("endpoint", endpoint),
	)
	return err
}

func validatePlaceOrder(cmd PlaceOrderInput) (string, error) {
	if cmd.CustomerID == "" {
		return "CUSTOMER_ID_REQUIRED", newValidation("customer id is required")
	}
	if len(cmd.Items) == 0 {
		return "ITEMS_REQUIRED", newValidation("at least one product is required")
	}
	for i, it := range cmd.Items {
		if it.ProductID == "" {
			return "PRODUCT_ID_REQUIRED", newValidation(fmt.Sprintf("product id is required (item %d)", i))
		}
		if it.Quantity <= 0 {
			return "QUANTITY_INVALID", newValidation(fmt.Sprintf("quantity must be greater than zero (product %s)", it.ProductID))
		}
	}
	return "", nil
}

// requestedIDs returns each product id once, in request order.
func requestedIDs(items []RequestedItem) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}

// checkStock compares the total requested per product with the snapshot and
// reports the first offending product in request order.
func checkStock(items []RequestedItem, byID map[string]*product.Product) error {
	requested := make(map[string]int, len(items))
	for _, it := range items {
		requested[it.ProductID] += it.Quantity
	}
	for _, it := range items {
		p := byID[it.ProductID]
		if want := requested[it.ProductID]; want > p.Quantity {
			return &InsufficientStockError{ProductID: p.ID, Requested: want, Available: p.Quantity}
		}
	}
	return nil
}

func stockChanges(o *domain.Order) []product.StockChange {
	changes := make([]product.StockChange, 0, len(o.Items))
	for _, li := range o.Items {
		changes = append(changes, product.StockChange{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	return changes
}
