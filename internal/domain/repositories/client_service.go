package repositories

import (
	"context"

	"cloud.google.com/go/vertexai/genai" // VertexAI用
	genai_std "google.golang.org/genai"  // 標準GenAI用
)

// AIクライアント共通設定
type AIClientConfig struct {
	ProjectID    string
	Location     string
	GeminiAPIKey string
}

// VertexAI Client Pool
// Vertex virtual try-on (SDK mode) で使用するクライアント
type VertexAIClientPool interface {
	GetVertexAIClient(ctx context.Context) (*genai.Client, error)

	Close() error
}

// GenAI Client Pool
// Gemini image model で使用するクライアント
type GenAIClientPool interface {
	GetGenAIClient(ctx context.Context) (*genai_std.Client, error)

	Close() error
}

// Client Pool Service
type ClientPoolService interface {
	VertexAIPool() VertexAIClientPool

	GenAIPool() GenAIClientPool

	Config() *AIClientConfig

	Close() error
}
