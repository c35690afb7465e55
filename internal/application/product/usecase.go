package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Zhima-Mochi/minishop-orders/internal/application"
	domain "github.com/Zhima-Mochi/minishop-orders/internal/domain/product"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability"
	"github.com/Zhima-Mochi/minishop-orders/internal/observability/logctx"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	catalogService       = "catalog-service"
	useCaseProductCreate = "product.create"
)

var (
	ErrInvalidInput = errors.New("product: invalid input")
	ErrNameTaken    = domain.ErrNameTaken
)

type IDGenerator interface {
	NewID() string
}

var _ application.UseCase[CreateProductInput, *domain.Product] = (*CreateProductUseCase)(nil)

// CreateProductUseCase adds an entry to the catalog with its opening stock.
type CreateProductUseCase struct {
	repo        domain.Repository
	idGenerator IDGenerator
	tracer      observability.Tracer

	log          observability.Logger
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

func NewCreateProductUseCase(repo domain.Repository, idGen IDGenerator, tel observability.Observability) *CreateProductUseCase {
	if tel == nil {
		tel = observability.Nop()
	}
	return &CreateProductUseCase{
		repo:         repo,
		idGenerator:  idGen,
		tracer:       tel.Tracer(),
		log:          tel.Logger().With(observability.F("service", catalogService)),
		reqCounter:   tel.Metrics().Counter(observability.MUsecaseRequests),
		durHistogram: tel.Metrics().Histogram(observability.MUsecaseDuration),
	}
}

type CreateProductInput struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

func (uc *CreateProductUseCase) Execute(ctx context.Context, cmd CreateProductInput) (_ *domain.Product, err error) {
	logger := logctx.FromOr(ctx, uc.log).With(observability.F("use_case", useCaseProductCreate))
	ctx, span := uc.tracer.Start(ctx, "UC.CreateProduct",
		attribute.String("use_case", useCaseProductCreate),
		attribute.String("product.name", cmd.Name),
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
			observability.L("use_case", useCaseProductCreate),
			observability.L("outcome", outcome),
		)
		uc.durHistogram.Observe(lat, observability.L("use_case", useCaseProductCreate))

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

	entity, derr := domain.New(uc.idGenerator.NewID(), cmd.Name, cmd.Price, cmd.Quantity)
	if derr != nil {
		outcome, statusText = "error", "VALIDATION_FAILED"
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, derr)
	}
	if ierr := uc.repo.Insert(ctx, entity); ierr != nil {
		if errors.Is(ierr, domain.ErrNameTaken) {
			outcome, statusText = "error", "NAME_TAKEN"
			return nil, ErrNameTaken
		}
		outcome, statusText = "error", "REPO_INSERT_FAILED"
		return nil, fmt.Errorf("product: insert: %w", ierr)
	}

	span.SetAttributes(
		attribute.String("product.id", entity.ID),
		attribute.Int("product.quantity", entity.Quantity),
	)
	return entity, nil
}
