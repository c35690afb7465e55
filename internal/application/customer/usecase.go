package customer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/customer"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	customerService       = "customer-service"
	useCaseCustomerCreate = "customer.create"
)

var (
	ErrInvalidInput = errors.New("customer: invalid input")
	ErrEmailTaken   = domain.ErrEmailTaken
)

type IDGenerator interface {
	NewID() string
}

var _ application.UseCase[CreateCustomerInput, *domain.Customer] = (*CreateCustomerUseCase)(nil)

type CreateCustomerUseCase struct {
	repo        domain.Repository
	idGenerator IDGenerator
	tracer      observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter   // usecase_requests_total{use_case,outcome}
	durHistogram observability.Histogram // usecase_duration_seconds{use_case}
}

func NewCreateCustomerUseCase(repo domain.Repository, idGen IDGenerator, tel observability.Observability) *CreateCustomerUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &CreateCustomerUseCase{
		repo:         repo,
		idGenerator:  idGen,
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", customerService)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

type CreateCustomerInput struct {
	Name  string
	Email string
}

// Execute registers a customer. Emails are unique across customers.
func (uc *CreateCustomerUseCase) Execute(ctx context.Context, cmd CreateCustomerInput) (_ *domain.Customer, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseCustomerCreate))
	ctx, span := uc.tracer.Start(ctx, "UC.CreateCustomer",
		attribute.String("use_case", useCaseCustomerCreate),
	)
	start := time.Now()
	outcome, statusText := "success", "OK"
	var customerID string

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
			observability.L("use_case", useCaseCustomerCreate),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseCustomerCreate))

		fields := append([]observability.Field{
			observability.F("outcome", outcome),
			observability.F("status", statusText),
			observability.F("latency_seconds", lat),
		}, observability.TraceFields(ctx)...)
		if customerID != "" {
			fields = append(fields, observability.F("customer_id", customerID))
		}
		if err != nil {
			fields = append(fields, observability.F("error", err.Error()))
		}
		logger.Info("use_case_done", fields...)
	}()

	entity, derr := domain.New(uc.idGenerator.NewID(), cmd.Name, cmd.Email)
	if derr != nil {
		outcome, statusText = "error", "VALIDATION_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, derr)
	}
	if ierr := uc.repo.Insert(ctx, entity); ierr != nil {
		if errors.Is(ierr, domain.ErrEmailTaken) {
			outcome, statusText = "error", "EMAIL_TAKEN"
			return nil, ErrEmailTaken
		}
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, fmt.Errorf("customer: insert: %w", ierr)
	}

	customerID = entity.ID
	span.SetAttributes(attribute.String("customer.id", customerID))
	return entity, nil
}
