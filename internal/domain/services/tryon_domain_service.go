package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	genai_std "google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"virtual-tryon/internal/domain/entities"
	"virtual-tryon/internal/domain/repositories"
)

type TryOnDomainService struct {
	aiService repositories.TryOnAIService
}

func NewTryOnDomainService(aiService repositories.TryOnAIService) *TryOnDomainService {
	return &TryOnDomainService{
		aiService: aiService,
	}
}

func (s *TryOnDomainService) ProcessTryOn(ctx context.Context, request *entities.TryOnRequest) (*entities.TryOnResult, error) {
	if err := s.validateRequest(request); err != nil {
		return nil, fmt.Errorf("request validation failed: %w", err)
	}

	result, err := s.aiService.GenerateTryOn(ctx, request)
	if err != nil {
		if IsQuotaError(err) {
			return nil, fmt.Errorf("%w: %w", entities.ErrServiceBusy, err)
		}
		return nil, fmt.Errorf("try-on generation failed: %w", err)
	}

	if result == nil || !result.HasImages() {
		return nil, entities.ErrNoImagesGenerated
	}

	return result, nil
}

func (s *TryOnDomainService) validateRequest(request *entities.TryOnRequest) error {
	if request == nil {
		return fmt.Errorf("request is required")
	}

	if request.PersonImage() == nil {
		return fmt.Errorf("person image is required")
	}

	if request.ClothingImage() == nil {
		return fmt.Errorf("clothing image is required")
	}

	if request.Parameters() == nil {
		return fmt.Errorf("parameters are required")
	}

	return nil
}

// IsQuotaError recognises rate limiting from the Vertex SDK (gRPC), the
// GenAI client (HTTP API errors) and the REST predict endpoint (text).
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	if status.Code(err) == codes.ResourceExhausted {
		return true
	}

	var apiErr genai_std.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return true
		}
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "resourceexhausted") ||
		strings.Contains(errStr, "resource_exhausted")
}
