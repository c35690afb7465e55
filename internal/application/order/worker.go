package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/order"
	domoutbox "github.com/Zhima-Mochi/minishop-orders/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	workerService            = "order-worker"
	useCaseCancelCompensated = "order.worker.cancellation_requested"

	defaultRetryAttempts = 5
	defaultRetryBackoff  = 50 * time.Millisecond
)

// Worker finishes compensations that PlaceOrderUseCase could not store inline.
type Worker struct {
	repo       domain.Repository
	subscriber domoutbox.Subscriber
	tracer     observability.Tracer

	attempts int
	backoff  time.Duration

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
	compCounter  observability.Counter   // order_compensations_total{outcome}
}

type WorkerOption func(*Worker)

// WithRetry sets how many times a cancellation is attempted and the initial backoff,
// which doubles after each failed attempt.
func WithRetry(attempts int, backoff time.Duration) WorkerOption {
	return func(w *Worker) {
		if attempts > 0 {
			w.attempts = attempts
		}
		if backoff > 0 {
			w.backoff = backoff
		}
	}
}

func NewWorker(repo domain.Repository, subscriber domoutbox.Subscriber, tel observability.Observability, opts ...WorkerOption) *Worker {
	if tel == nil {
		tel = observability.Nop()
	}
	metrics := tel.Metrics()
	w := &Worker{
		repo:         repo,
		subscriber:   subscriber,
		tracer:       tel.Tracer(),
		attempts:     defaultRetryAttempts,
		backoff:      defaultRetryBackoff,
		log:          tel.Logger().With(observability.F("service", workerService)),
		reqCounter:   metrics.Counter(observability.MUsecaseRequests),
		durHistogram: metrics.Histogram(observability.MUsecaseDuration),
		compCounter:  metrics.Counter(observability.MOrderCompensations),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Start() {
	if w.subscriber == nil || w.repo == nil {
		return
	}
	w.subscriber.Subscribe(domain.OrderCancellationRequestedEvent{}.EventName(), w.HandleCancellationRequested)
}

// HandleCancellationRequested cancels the order named by the event, retrying
// transient store failures. Orders that are already cancelled are left alone.
func (w *Worker) HandleCancellationRequested(ctx context.Context, e domoutbox.Event) (err error) {
	evt, ok := e.(domain.OrderCancellationRequestedEvent)
	if !ok {
		w.count("ignored")
		return nil
	}

	ctx, span := w.tracer.Start(ctx, spanPrefix+"CancellationRequested",
		attribute.String("use_case", useCaseCancelCompensated),
		attribute.String("event", e.EventName()),
		attribute.String("order.id", evt.OrderID),
	)
	ctx, logger := logctx.Enrich(ctx, w.log,
		observability.F("use_case", useCaseCancelCompensated),
		observability.F("event", e.EventName()),
		observability.F("order_id", evt.OrderID),
	)
	start := time.Now()
	outcome, status := "success", "OK"
	attempts := 0

	defer func() {
		lat := time.Since(start).Seconds()
		w.count(outcome)
		w.durHistogram.Observe(lat, observability.L("use_case", useCaseCancelCompensated))

		fields := append([]observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", status),
			observability.F("latency_seconds", lat),
			observability.F("attempts", attempts),
			observability.F("reason", evt.Reason),
		}, observability.TraceFields(ctx)...)
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, status)
		} else {
			span.SetStatus(codes.Ok, status)
		}
		span.End()
	}()

	backoff := w.backoff
	for {
		attempts++
		var done bool
		done, err = w.cancel(ctx, evt)
		if err == nil {
			if done {
				status = "ALREADY_CANCELLED"
			} else {
				w.compCounter.Add(1, observability.L("outcome", "retried"))
			}
			return nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			outcome, status = "error", "ORDER_NOT_FOUND"
			return err
		}
		if errors.Is(err, domain.ErrInvalidStateTransition) {
			outcome, status = "error", "STATE_TRANSITION_FAILED"
			return err
		}
		if attempts >= w.attempts {
			break
		}
		logger.Warn("order_cancel_retry",
			observability.F("attempt", attempts),
			observability.F("error", err.Error()),
		)

		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			outcome, status = "error", "CONTEXT_CANCELED"
			return fmt.Errorf("worker: cancel order: %w", ctx.Err())
		case <-t.C:
		}
		backoff *= 2
	}

	w.compCounter.Add(1, observability.L("outcome", "failed"))
	outcome, status = "error", "RETRIES_EXHAUSTED"
	return err
}

// cancel reports done=true when the order was already cancelled.
func (w *Worker) cancel(ctx context.Context, evt domain.OrderCancellationRequestedEvent) (bool, error) {
	o, err := w.repo.FindByID(ctx, evt.OrderID)
	if err != nil {
		return false, fmt.Errorf("worker: load order: %w", err)
	}
	if o.Status == domain.StatusCancelled {
		return true, nil
	}
	if err := o.Cancel(evt.Reason); err != nil {
		return false, fmt.Errorf("worker: cancel transition: %w", err)
	}
	if err := w.repo.Update(ctx, o); err != nil {
		return false, fmt.Errorf("worker: update order: %w", err)
	}
	return false, nil
}

func (w *Worker) count(outcome string) {
	w.reqCounter.Add(1,
		observability.L("use_case", useCaseCancelCompensated),
		observability.L("outcome", outcome),
	)
}
