package repositories

import (
	"context"

	"virtual-tryon/internal/domain/entities"
)

// 試着画像生成サービス
// Implemented by the Gemini image model and the Vertex virtual try-on model.
type TryOnAIService interface {
	GenerateTryOn(ctx context.Context, request *entities.TryOnRequest) (*entities.TryOnResult, error)

	Close() error
}
