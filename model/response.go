package model

// VirtualTryOnResponse represents the response structure from Google's Virtual Try-On API
type VirtualTryOnResponse struct {
	Predictions []Prediction `json:"predictions"`
}

// Prediction represents a single prediction result
type Prediction struct {
	MimeType           string         `json:"mimeType"`
	BytesBase64Encoded string         `json:"bytesBase64Encoded"`
	RaiFilteredReason  string         `json:"raiFilteredReason,omitempty"` // RAI フィルタで除外された場合
	SafetyAttributes   map[string]any `json:"safetyAttributes,omitempty"`
}

// ErrorResponse is the body the API returns with a non-200 status.
type ErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
