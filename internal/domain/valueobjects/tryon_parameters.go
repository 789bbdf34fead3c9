package valueobjects

import (
	"fmt"
)

type PersonGeneration string
type SafetySetting string
type MimeType string

const (
	AllowAdult PersonGeneration = "allow_adult"
	AllowAll   PersonGeneration = "allow_all"
	DontAllow  PersonGeneration = "dont_allow"
)

const (
	BlockMediumAndAbove SafetySetting = "block_medium_and_above"
	BlockLowAndAbove    SafetySetting = "block_low_and_above"
	BlockOnlyHigh       SafetySetting = "block_only_high"
	BlockNone           SafetySetting = "block_none"
)

const (
	MimeTypePNG  MimeType = "image/png"
	MimeTypeJPEG MimeType = "image/jpeg"
)

// TryOnParameters are the generation knobs understood by the Vertex
// virtual try-on model. A workflow produces exactly one result image, so the
// sample count is not configurable.
type TryOnParameters struct {
	addWatermark       bool
	baseSteps          int
	personGeneration   PersonGeneration
	safetySetting      SafetySetting
	seed               int
	outputMimeType     MimeType
	compressionQuality int
}

func NewTryOnParameters(
	addWatermark bool,
	baseSteps int,
	personGeneration PersonGeneration,
	safetySetting SafetySetting,
	seed int,
	outputMimeType MimeType,
	compressionQuality int,
) (*TryOnParameters, error) {
	if baseSteps < 1 || baseSteps > 100 {
		return nil, fmt.Errorf("baseSteps must be between 1 and 100, got %d", baseSteps)
	}

	switch personGeneration {
	case AllowAdult, AllowAll, DontAllow:
	default:
		return nil, fmt.Errorf("unknown personGeneration %q", personGeneration)
	}

	switch safetySetting {
	case BlockMediumAndAbove, BlockLowAndAbove, BlockOnlyHigh, BlockNone:
	default:
		return nil, fmt.Errorf("unknown safetySetting %q", safetySetting)
	}

	if outputMimeType != MimeTypePNG && outputMimeType != MimeTypeJPEG {
		return nil, fmt.Errorf("outputMimeType must be image/png or image/jpeg, got %q", outputMimeType)
	}

	if compressionQuality < 0 || compressionQuality > 100 {
		return nil, fmt.Errorf("compressionQuality must be between 0 and 100, got %d", compressionQuality)
	}

	if seed < 0 {
		return nil, fmt.Errorf("seed must not be negative, got %d", seed)
	}

	// API restrictions: compression only applies to JPEG, and a fixed seed
	// is rejected while the watermark is on.
	if outputMimeType != MimeTypeJPEG {
		compressionQuality = 0
	}
	if addWatermark {
		seed = 0
	}

	return &TryOnParameters{
		addWatermark:       addWatermark,
		baseSteps:          baseSteps,
		personGeneration:   personGeneration,
		safetySetting:      safetySetting,
		seed:               seed,
		outputMimeType:     outputMimeType,
		compressionQuality: compressionQuality,
	}, nil
}

func DefaultTryOnParameters() *TryOnParameters {
	params, _ := NewTryOnParameters(
		true,
		32,
		AllowAdult,
		BlockMediumAndAbove,
		0,
		MimeTypePNG,
		0,
	)
	return params
}

func (p *TryOnParameters) AddWatermark() bool {
	return p.addWatermark
}

func (p *TryOnParameters) BaseSteps() int {
	return p.baseSteps
}

func (p *TryOnParameters) PersonGeneration() PersonGeneration {
	return p.personGeneration
}

func (p *TryOnParameters) SafetySetting() SafetySetting {
	return p.safetySetting
}

func (p *TryOnParameters) Seed() int {
	return p.seed
}

func (p *TryOnParameters) OutputMimeType() MimeType {
	return p.outputMimeType
}

func (p *TryOnParameters) CompressionQuality() int {
	return p.compressionQuality
}
