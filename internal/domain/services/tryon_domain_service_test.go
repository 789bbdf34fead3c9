package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
	"testing"

	genai_std "google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"virtual-tryon/internal/domain/entities"
	"virtual-tryon/internal/domain/valueobjects"
)

type mockAIService struct {
	result *entities.TryOnResult
	err    error
	calls  int
}

func (m *mockAIService) GenerateTryOn(ctx context.Context, request *entities.TryOnRequest) (*entities.TryOnResult, error) {
	m.calls++
	return m.result, m.err
}

func (m *mockAIService) Close() error {
	return nil
}

func TestTryOnDomainService_ProcessTryOn(t *testing.T) {
	personImage := createTestImage(t)
	clothingImage := createTestImage(t)

	validRequest, err := entities.NewTryOnRequest("wf", personImage, clothingImage, nil)
	if err != nil {
		t.Fatalf("Failed to create valid request: %v", err)
	}

	t.Run("successful processing", func(t *testing.T) {
		mockAI := &mockAIService{
			result: entities.NewTryOnResult(validRequest.ID(), []*valueobjects.EncodedImage{personImage}),
		}

		service := NewTryOnDomainService(mockAI)
		result, err := service.ProcessTryOn(context.Background(), validRequest)

		if err != nil {
			t.Fatalf("ProcessTryOn() error = %v", err)
		}
		if !result.HasImages() {
			t.Errorf("Result should have images")
		}
		if mockAI.calls != 1 {
			t.Errorf("AI service called %d times, want 1", mockAI.calls)
		}
	})

	t.Run("AI service error", func(t *testing.T) {
		mockAI := &mockAIService{err: errors.New("AI service failed")}

		service := NewTryOnDomainService(mockAI)
		result, err := service.ProcessTryOn(context.Background(), validRequest)

		if err == nil {
			t.Fatal("Expected error, got nil")
		}
		if result != nil {
			t.Errorf("Expected nil result on error")
		}
		if !strings.Contains(err.Error(), "AI service failed") {
			t.Errorf("error should keep the service message, got %v", err)
		}
	})

	t.Run("quota error handling", func(t *testing.T) {
		mockAI := &mockAIService{err: errors.New("quota exceeded")}

		service := NewTryOnDomainService(mockAI)
		_, err := service.ProcessTryOn(context.Background(), validRequest)

		if !errors.Is(err, entities.ErrServiceBusy) {
			t.Fatalf("Expected ErrServiceBusy, got %v", err)
		}
		if !strings.Contains(err.Error(), "service temporarily unavailable due to high demand") {
			t.Errorf("Expected quota error message, got %v", err.Error())
		}
		if !strings.Contains(err.Error(), "quota exceeded") {
			t.Errorf("Expected original message to be kept, got %v", err.Error())
		}
	})

	t.Run("no images generated", func(t *testing.T) {
		mockAI := &mockAIService{
			result: entities.NewTryOnResult(validRequest.ID(), []*valueobjects.EncodedImage{}),
		}

		service := NewTryOnDomainService(mockAI)
		result, err := service.ProcessTryOn(context.Background(), validRequest)

		if !errors.Is(err, entities.ErrNoImagesGenerated) {
			t.Errorf("Expected ErrNoImagesGenerated, got %v", err)
		}
		if result != nil {
			t.Errorf("Expected nil result when no images generated")
		}
	})

	t.Run("nil request is rejected before the call", func(t *testing.T) {
		mockAI := &mockAIService{}

		service := NewTryOnDomainService(mockAI)
		if _, err := service.ProcessTryOn(context.Background(), nil); err == nil {
			t.Error("Expected validation error")
		}
		if mockAI.calls != 0 {
			t.Errorf("AI service called %d times, want 0", mockAI.calls)
		}
	})
}

func TestIsQuotaError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "plain error", err: errors.New("bad request"), want: false},
		{name: "quota text", err: errors.New("Quota exceeded for aiplatform"), want: true},
		{name: "grpc resource exhausted", err: status.Error(codes.ResourceExhausted, "slow down"), want: true},
		{name: "grpc invalid argument", err: status.Error(codes.InvalidArgument, "bad image"), want: false},
		{name: "genai 429", err: fmt.Errorf("generate: %w", genai_std.APIError{Code: 429, Message: "limit"}), want: true},
		{name: "genai 400", err: genai_std.APIError{Code: 400, Message: "bad", Status: "INVALID_ARGUMENT"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsQuotaError(tt.err); got != tt.want {
				t.Errorf("IsQuotaError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func createTestImage(t *testing.T) *valueobjects.EncodedImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	encoded, err := valueobjects.NewEncodedImage(buf.Bytes())
	if err != nil {
		t.Fatalf("Failed to create test image data: %v", err)
	}
	return encoded
}
