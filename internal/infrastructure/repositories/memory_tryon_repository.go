package repositories

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"virtual-tryon/internal/domain/entities"
	domainrepos "virtual-tryon/internal/domain/repositories"
)

// MemoryTryOnRepository is the attempt journal. It lives only as long as
// the process.
type MemoryTryOnRepository struct {
	requests map[entities.TryOnRequestID]*entities.TryOnRequest
	results  map[entities.TryOnRequestID]*entities.TryOnResult
	order    []entities.TryOnRequestID
	mu       sync.RWMutex
}

func NewMemoryTryOnRepository() domainrepos.TryOnRepository {
	return &MemoryTryOnRepository{
		requests: make(map[entities.TryOnRequestID]*entities.TryOnRequest),
		results:  make(map[entities.TryOnRequestID]*entities.TryOnResult),
	}
}

func (r *MemoryTryOnRepository) Save(ctx context.Context, request *entities.TryOnRequest) error {
	if request == nil {
		return fmt.Errorf("request is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[request.ID()]; !exists {
		r.order = append(r.order, request.ID())
	}
	r.requests[request.ID()] = request
	return nil
}

func (r *MemoryTryOnRepository) FindByID(ctx context.Context, id entities.TryOnRequestID) (*entities.TryOnRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	request, exists := r.requests[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", entities.ErrRequestNotFound, id)
	}

	return request, nil
}

func (r *MemoryTryOnRepository) SaveResult(ctx context.Context, result *entities.TryOnResult) error {
	if result == nil {
		return fmt.Errorf("result is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.requests[result.RequestID()]; !exists {
		return fmt.Errorf("%w: %s", entities.ErrRequestNotFound, result.RequestID())
	}
	r.results[result.RequestID()] = result
	return nil
}

func (r *MemoryTryOnRepository) FindResultByRequestID(ctx context.Context, requestID entities.TryOnRequestID) (*entities.TryOnResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result, exists := r.results[requestID]
	if !exists {
		return nil, fmt.Errorf("%w for request: %s", entities.ErrResultNotFound, requestID)
	}

	return result, nil
}

// ListByWorkflow returns the workflow's requests in submission order.
func (r *MemoryTryOnRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*entities.TryOnRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.TryOnRequest
	for _, id := range r.order {
		if req := r.requests[id]; req.WorkflowID() == workflowID {
			out = append(out, req)
		}
	}

	return slices.Clip(out), nil
}
