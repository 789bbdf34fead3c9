package usecases

import (
	"context"
	"fmt"

	appservices "virtual-tryon/internal/application/services"
	"virtual-tryon/internal/domain/entities"
	"virtual-tryon/internal/domain/repositories"
	"virtual-tryon/internal/domain/services"
	"virtual-tryon/internal/domain/valueobjects"
)

// Generator performs one try-on generation. WorkflowUseCase depends on
// this rather than on TryOnUseCase so tests can substitute it.
type Generator interface {
	Execute(ctx context.Context, input TryOnInput) (*TryOnOutput, error)
}

type TryOnUseCase struct {
	tryOnRepo        repositories.TryOnRepository
	domainService    *services.TryOnDomainService
	parameterService *appservices.ParameterService
}

func NewTryOnUseCase(
	tryOnRepo repositories.TryOnRepository,
	domainService *services.TryOnDomainService,
	parameterService *appservices.ParameterService,
) *TryOnUseCase {
	return &TryOnUseCase{
		tryOnRepo:        tryOnRepo,
		domainService:    domainService,
		parameterService: parameterService,
	}
}

type TryOnInput struct {
	WorkflowID string
	Person     *valueobjects.EncodedImage
	Clothing   *valueobjects.EncodedImage
}

type TryOnOutput struct {
	RequestID entities.TryOnRequestID
	Image     *valueobjects.EncodedImage
}

func (uc *TryOnUseCase) Execute(ctx context.Context, input TryOnInput) (*TryOnOutput, error) {
	parameters := valueobjects.DefaultTryOnParameters()
	if uc.parameterService != nil {
		p, err := uc.parameterService.Build()
		if err != nil {
			return nil, err
		}
		parameters = p
	}

	request, err := entities.NewTryOnRequest(input.WorkflowID, input.Person, input.Clothing, parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if err := uc.tryOnRepo.Save(ctx, request); err != nil {
		return nil, fmt.Errorf("failed to save request: %w", err)
	}

	result, err := uc.domainService.ProcessTryOn(ctx, request)
	if err != nil {
		return nil, err
	}

	if err := uc.tryOnRepo.SaveResult(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to save result: %w", err)
	}

	return &TryOnOutput{
		RequestID: request.ID(),
		Image:     result.FirstImage(),
	}, nil
}
