package repositories

import (
	"context"

	"virtual-tryon/internal/domain/entities"
)

// TryOnRepository journals generation attempts for the lifetime of the process.
type TryOnRepository interface {
	Save(ctx context.Context, request *entities.TryOnRequest) error
	FindByID(ctx context.Context, id entities.TryOnRequestID) (*entities.TryOnRequest, error)
	SaveResult(ctx context.Context, result *entities.TryOnResult) error
	FindResultByRequestID(ctx context.Context, requestID entities.TryOnRequestID) (*entities.TryOnResult, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*entities.TryOnRequest, error)
}
