package external

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"virtual-tryon/internal/domain/entities"
	"virtual-tryon/internal/domain/repositories"
	"virtual-tryon/internal/domain/valueobjects"
)

const tryOnInstruction = "Create a photorealistic image of the person in the first image wearing the clothing item " +
	"from the second image. Keep the person's face, body shape, pose and the background unchanged. " +
	"Fit the garment naturally, preserving its color, pattern and fabric texture. Return only the image."

// GeminiTryOnService composes the try-on image with a Gemini image model.
type GeminiTryOnService struct {
	pool  repositories.GenAIClientPool
	model string
}

func NewGeminiTryOnService(pool repositories.GenAIClientPool, model string) *GeminiTryOnService {
	return &GeminiTryOnService{
		pool:  pool,
		model: model,
	}
}

func (s *GeminiTryOnService) GenerateTryOn(ctx context.Context, request *entities.TryOnRequest) (*entities.TryOnResult, error) {
	slog.Info("GenerateTryOn", "model", s.model, "requestId", request.ID(),
		"personSize", request.PersonImage().Size(), "clothingSize", request.ClothingImage().Size())

	client, err := s.pool.GetGenAIClient(ctx)
	if err != nil {
		return nil, err
	}

	parts := []*genai.Part{
		genai.NewPartFromText(tryOnInstruction),
		inlineImage(request.PersonImage()),
		inlineImage(request.ClothingImage()),
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	// gemini-2.5-flash-image-preview は複数候補と MediaResolution の指定に未対応
	resp, err := client.Models.GenerateContent(ctx, s.model, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	images, text, err := extractImages(resp)
	if err != nil {
		return nil, err
	}

	if len(images) == 0 {
		slog.Warn("No image data in response", "responseText", text)
		if text != "" {
			return nil, fmt.Errorf("model returned no image: %s", text)
		}
		return nil, fmt.Errorf("no image data received from Gemini API")
	}

	return entities.NewTryOnResult(request.ID(), images), nil
}

// Close is a no-op: the client belongs to the client pool.
func (s *GeminiTryOnService) Close() error {
	return nil
}

func inlineImage(img *valueobjects.EncodedImage) *genai.Part {
	return &genai.Part{
		InlineData: &genai.Blob{
			MIMEType: img.MimeType(),
			Data:     img.Bytes(),
		},
	}
}

// extractImages collects the inline images of the first candidate and
// joins any text parts.
func extractImages(resp *genai.GenerateContentResponse) ([]*valueobjects.EncodedImage, string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, "", fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil {
		if candidate.FinishReason != "" {
			return nil, "", fmt.Errorf("no content in response: finish reason %s", candidate.FinishReason)
		}
		return nil, "", fmt.Errorf("no content in response")
	}

	var (
		images []*valueobjects.EncodedImage
		texts  []string
	)
	for i, part := range candidate.Content.Parts {
		switch {
		case part == nil:
			continue
		case part.InlineData != nil:
			img, err := valueobjects.NewEncodedImage(part.InlineData.Data)
			if err != nil {
				return nil, "", fmt.Errorf("failed to decode image part %d: %w", i, err)
			}
			images = append(images, img)
		case part.Text != "":
			texts = append(texts, part.Text)
		}
	}

	return images, strings.Join(texts, " "), nil
}
