package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const useCaseFindOrder = "order.find"

var _ application.UseCase[string, *domain.Order] = (*FindOrderUseCase)(nil)

type FindOrderUseCase struct {
	orders domain.Repository
	tracer observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewFindOrderUseCase(orders domain.Repository, tel observability.Observability) *FindOrderUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &FindOrderUseCase{
		orders:       orders,
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", orderService)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

// Execute loads an order with its line items.
func (uc *FindOrderUseCase) Execute(ctx context.Context, id string) (_ *domain.Order, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(
		observability.F("use_case", useCaseFindOrder),
		observability.F("order_id", id),
	)
	ctx, span := uc.tracer.Start(ctx, spanPrefix+"FindOrder",
		attribute.String("use_case", useCaseFindOrder),
		attribute.String("order.id", id),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"

	defer func() {
		lat := time.Since(start).Seconds()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, statusText)
		} else {
			span.SetStatus(codes.Ok, statusText)
		}
		span.End()

		uc.reqCounter.Add(1,
			observability.L("use_case", useCaseFindOrder),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseFindOrder))

		fields := append([]observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}, observability.TraceFields(ctx)...)
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	if id == "" {
		outcome, statusText = "error", "ORDER_ID_REQUIRED"
		return nil, newValidation("order id is required")
	}

	o, ferr := uc.orders.FindByID(ctx, id)
	switch {
	case errors.Is(ferr, domain.ErrNotFound):
		// a miss is an answer, not a failure
		outcome, statusText = "not_found", "ORDER_NOT_FOUND"
		return nil, ErrNotFound
	case ferr != nil:
		outcome, statusText = "error", "REPO_LOOKUP_FAILED"
		return nil, fmt.Errorf("order: find: %w", ferr)
	}

	span.SetAttributes(attribute.String("order.status", string(o.Status)))
	return o, nil
}
