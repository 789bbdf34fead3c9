package services

import (
	"fmt"

	"virtual-tryon/internal/config"
	"virtual-tryon/internal/domain/valueobjects"
)

type ParameterService struct {
	params config.Parameters
}

func NewParameterService(params config.Parameters) *ParameterService {
	return &ParameterService{params: params}
}

// Build turns configured values into validated try-on parameters. Blank
// values fall back to the model defaults.
func (s *ParameterService) Build() (*valueobjects.TryOnParameters, error) {
	defaults := valueobjects.DefaultTryOnParameters()

	addWatermark := defaults.AddWatermark()
	if s.params.AddWatermark != nil {
		addWatermark = *s.params.AddWatermark
	}

	params, err := valueobjects.NewTryOnParameters(
		addWatermark,
		s.getInt(s.params.BaseSteps, defaults.BaseSteps()),
		valueobjects.PersonGeneration(s.getString(s.params.PersonGeneration, string(defaults.PersonGeneration()))),
		valueobjects.SafetySetting(s.getString(s.params.SafetySetting, string(defaults.SafetySetting()))),
		s.params.Seed,
		valueobjects.MimeType(s.getString(s.params.OutputMimeType, string(defaults.OutputMimeType()))),
		s.params.CompressionQuality,
	)
	if err != nil {
		return nil, fmt.Errorf("invalid parameters: %w", err)
	}

	return params, nil
}

func (s *ParameterService) getInt(value, defaultValue int) int {
	if value == 0 {
		return defaultValue
	}
	return value
}

func (s *ParameterService) getString(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
