package external

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/vertexai/genai"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"virtual-tryon/internal/domain/entities"
	"virtual-tryon/internal/domain/repositories"
	"virtual-tryon/internal/domain/valueobjects"
	"virtual-tryon/model"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

type VertexOption func(*VertexTryOnService)

// WithBaseURL replaces https://{location}-aiplatform.googleapis.com.
func WithBaseURL(baseURL string) VertexOption {
	return func(s *VertexTryOnService) {
		if baseURL != "" {
			s.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

func WithHTTPClient(client *http.Client) VertexOption {
	return func(s *VertexTryOnService) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithTokenSource skips the application default credentials lookup.
func WithTokenSource(ts oauth2.TokenSource) VertexOption {
	return func(s *VertexTryOnService) {
		s.tokenSource = ts
	}
}

// WithSDK switches from the REST predict endpoint to the Vertex AI SDK.
func WithSDK(pool repositories.VertexAIClientPool) VertexOption {
	return func(s *VertexTryOnService) {
		s.pool = pool
		s.useSDK = pool != nil
	}
}

// VertexTryOnService calls the Vertex AI virtual try-on model.
type VertexTryOnService struct {
	projectID  string
	location   string
	vtoModel   string
	baseURL    string
	httpClient *http.Client
	pool       repositories.VertexAIClientPool
	useSDK     bool

	tokenMu     sync.Mutex
	tokenSource oauth2.TokenSource
}

func NewVertexTryOnService(projectID, location, vtoModel string, opts ...VertexOption) *VertexTryOnService {
	s := &VertexTryOnService{
		projectID:  projectID,
		location:   location,
		vtoModel:   vtoModel,
		baseURL:    fmt.Sprintf("https://%s-aiplatform.googleapis.com", location),
		httpClient: &http.Client{Timeout: 300 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *VertexTryOnService) GenerateTryOn(ctx context.Context, request *entities.TryOnRequest) (*entities.TryOnResult, error) {
	slog.Info("GenerateTryOn", "model", s.vtoModel, "sdk", s.useSDK, "requestId", request.ID())

	if s.useSDK {
		return s.generateWithSDK(ctx, request)
	}
	return s.generateWithREST(ctx, request)
}

func (s *VertexTryOnService) generateWithSDK(ctx context.Context, request *entities.TryOnRequest) (*entities.TryOnResult, error) {
	client, err := s.pool.GetVertexAIClient(ctx)
	if err != nil {
		return nil, err
	}

	gm := client.GenerativeModel(s.vtoModel)
	gm.SetTemperature(0.4)
	gm.SetTopK(32)
	gm.SetTopP(1)
	gm.ResponseMIMEType = string(request.Parameters().OutputMimeType())

	resp, err := gm.GenerateContent(ctx,
		genai.Text("person:"),
		genai.Blob{MIMEType: request.PersonImage().MimeType(), Data: request.PersonImage().Bytes()},
		genai.Text("garment:"),
		genai.Blob{MIMEType: request.ClothingImage().MimeType(), Data: request.ClothingImage().Bytes()},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("no content in response")
	}

	var images []*valueobjects.EncodedImage
	for _, part := range candidate.Content.Parts {
		blob, ok := part.(genai.Blob)
		if !ok {
			continue
		}
		img, err := valueobjects.NewEncodedImage(blob.Data)
		if err != nil {
			slog.Warn("Skipping undecodable part", "mimeType", blob.MIMEType, "error", err)
			continue
		}
		images = append(images, img)
	}

	if len(images) == 0 {
		return nil, fmt.Errorf("no image found in response")
	}

	return entities.NewTryOnResult(request.ID(), images), nil
}

func (s *VertexTryOnService) generateWithREST(ctx context.Context, request *entities.TryOnRequest) (*entities.TryOnResult, error) {
	accessToken, err := s.getAccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get access token: %w", err)
	}

	reqBody, err := json.Marshal(buildPredictRequest(request))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		s.baseURL, s.projectID, s.location, s.vtoModel)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp.StatusCode, respBody)
	}

	var predResp model.VirtualTryOnResponse
	if err := json.Unmarshal(respBody, &predResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if len(predResp.Predictions) == 0 {
		return nil, fmt.Errorf("no predictions in response")
	}

	var (
		images   []*valueobjects.EncodedImage
		filtered string
	)
	for i, prediction := range predResp.Predictions {
		if prediction.RaiFilteredReason != "" {
			filtered = prediction.RaiFilteredReason
			slog.Warn("Prediction filtered", "index", i, "reason", prediction.RaiFilteredReason)
			continue
		}
		if prediction.BytesBase64Encoded == "" {
			continue
		}

		imageBytes, err := base64.StdEncoding.DecodeString(prediction.BytesBase64Encoded)
		if err != nil {
			slog.Warn("Skipping prediction", "index", i, "error", err)
			continue
		}

		img, err := valueobjects.NewEncodedImage(imageBytes)
		if err != nil {
			slog.Warn("Skipping prediction", "index", i, "error", err)
			continue
		}

		images = append(images, img)
	}

	if len(images) == 0 {
		if filtered != "" {
			return nil, fmt.Errorf("image was filtered by the safety setting: %s", filtered)
		}
		return nil, fmt.Errorf("no valid image data found in response")
	}

	return entities.NewTryOnResult(request.ID(), images), nil
}

func buildPredictRequest(request *entities.TryOnRequest) model.PredictRequest {
	params := request.Parameters()

	return model.PredictRequest{
		Instances: []model.Instance{{
			PersonImage: model.ImageInput{
				Image: model.Image{BytesBase64Encoded: request.PersonImage().Base64()},
			},
			ProductImages: []model.ImageInput{{
				Image: model.Image{BytesBase64Encoded: request.ClothingImage().Base64()},
			}},
		}},
		Parameters: model.PredictParameters{
			AddWatermark:     params.AddWatermark(),
			BaseSteps:        params.BaseSteps(),
			PersonGeneration: string(params.PersonGeneration()),
			SafetySetting:    string(params.SafetySetting()),
			SampleCount:      1,
			Seed:             params.Seed(),
			OutputOptions: model.OutputOptions{
				MimeType:           string(params.OutputMimeType()),
				CompressionQuality: params.CompressionQuality(),
			},
		},
	}
}

// apiError keeps the API status in the message so quota errors can be
// recognised from the text.
func apiError(statusCode int, body []byte) error {
	var errResp model.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		if errResp.Error.Status != "" {
			return fmt.Errorf("API request failed with status %d (%s): %s", statusCode, errResp.Error.Status, errResp.Error.Message)
		}
		return fmt.Errorf("API request failed with status %d: %s", statusCode, errResp.Error.Message)
	}
	return fmt.Errorf("API request failed with status %d: %s", statusCode, strings.TrimSpace(string(body)))
}

func (s *VertexTryOnService) getAccessToken(ctx context.Context) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	if s.tokenSource == nil {
		// The cached source refreshes with this context, so it must outlive
		// the generation that happened to create it.
		creds, err := google.FindDefaultCredentials(context.WithoutCancel(ctx), cloudPlatformScope)
		if err != nil {
			return "", fmt.Errorf("failed to find default credentials: %w", err)
		}
		s.tokenSource = creds.TokenSource
	}

	token, err := s.tokenSource.Token()
	if err != nil {
		return "", err
	}

	return token.AccessToken, nil
}

// Close is a no-op: the SDK client belongs to the client pool.
func (s *VertexTryOnService) Close() error {
	return nil
}
