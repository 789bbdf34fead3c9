package model

// PredictRequest is the body of a virtual try-on :predict call.
type PredictRequest struct {
	Instances  []Instance        `json:"instances"`
	Parameters PredictParameters `json:"parameters"`
}

type Instance struct {
	PersonImage   ImageInput   `json:"personImage"`
	ProductImages []ImageInput `json:"productImages"`
}

type ImageInput struct {
	Image Image `json:"image"`
}

type Image struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
}

type PredictParameters struct {
	AddWatermark     bool          `json:"addWatermark"`
	BaseSteps        int           `json:"baseSteps"`
	PersonGeneration string        `json:"personGeneration"`
	SafetySetting    string        `json:"safetySetting"`
	SampleCount      int           `json:"sampleCount"`
	Seed             int           `json:"seed,omitempty"` // watermark 無効時のみ
	OutputOptions    OutputOptions `json:"outputOptions"`
}

type OutputOptions struct {
	MimeType           string `json:"mimeType"`
	CompressionQuality int    `json:"compressionQuality,omitempty"` // JPEG のみ
}
