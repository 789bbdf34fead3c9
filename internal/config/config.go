package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	BackendGemini = "gemini"
	BackendVertex = "vertex"
)

// Parameters holds the Vertex virtual try-on generation knobs.
type Parameters struct {
	AddWatermark       *bool  `yaml:"add_watermark"`
	BaseSteps          int    `yaml:"base_steps"`
	PersonGeneration   string `yaml:"person_generation"`
	SafetySetting      string `yaml:"safety_setting"`
	Seed               int    `yaml:"seed"`
	OutputMimeType     string `yaml:"output_mime_type"`
	CompressionQuality int    `yaml:"compression_quality"`
}

// Config holds all configuration for the application
type Config struct {
	Backend        string        `yaml:"backend"`
	ProjectID      string        `yaml:"project_id"`
	Location       string        `yaml:"location"`
	VTOModel       string        `yaml:"vto_model"`
	GeminiModel    string        `yaml:"gemini_model"`
	GeminiAPIKey   string        `yaml:"gemini_api_key"`
	UseSDK         bool          `yaml:"use_sdk"`
	VertexEndpoint string        `yaml:"vertex_endpoint"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	OutputDir      string        `yaml:"output_dir"`
	Parameters     Parameters    `yaml:"parameters"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	watermark := true
	return Config{
		Backend:        BackendGemini,
		Location:       "us-central1",
		VTOModel:       "virtual-try-on-preview-08-04",
		GeminiModel:    "gemini-2.5-flash-image-preview",
		RequestTimeout: 300 * time.Second,
		MaxUploadBytes: 10 * 1024 * 1024,
		OutputDir:      ".",
		Parameters: Parameters{
			AddWatermark:     &watermark,
			BaseSteps:        32,
			PersonGeneration: "allow_adult",
			SafetySetting:    "block_medium_and_above",
			OutputMimeType:   "image/png",
		},
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.ProjectID != "" {
		c.ProjectID = source.ProjectID
	}
	if source.Location != "" {
		c.Location = source.Location
	}
	if source.VTOModel != "" {
		c.VTOModel = source.VTOModel
	}
	if source.GeminiModel != "" {
		c.GeminiModel = source.GeminiModel
	}
	if source.GeminiAPIKey != "" {
		c.GeminiAPIKey = source.GeminiAPIKey
	}
	if source.UseSDK {
		c.UseSDK = true
	}
	if source.VertexEndpoint != "" {
		c.VertexEndpoint = source.VertexEndpoint
	}
	if source.RequestTimeout > 0 {
		c.RequestTimeout = source.RequestTimeout
	}
	if source.MaxUploadBytes > 0 {
		c.MaxUploadBytes = source.MaxUploadBytes
	}
	if source.OutputDir != "" {
		c.OutputDir = source.OutputDir
	}
	c.Parameters.Merge(&source.Parameters)
}

func (p *Parameters) Merge(source *Parameters) {
	if source.AddWatermark != nil {
		v := *source.AddWatermark
		p.AddWatermark = &v
	}
	if source.BaseSteps > 0 {
		p.BaseSteps = source.BaseSteps
	}
	if source.PersonGeneration != "" {
		p.PersonGeneration = source.PersonGeneration
	}
	if source.SafetySetting != "" {
		p.SafetySetting = source.SafetySetting
	}
	if source.Seed > 0 {
		p.Seed = source.Seed
	}
	if source.OutputMimeType != "" {
		p.OutputMimeType = source.OutputMimeType
	}
	if source.CompressionQuality > 0 {
		p.CompressionQuality = source.CompressionQuality
	}
}

// Load builds the configuration from defaults, then the optional YAML file
// at path, then a .env file in the working directory, then the environment.
// Overrides (command line flags) run last, before validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		var loaded Config
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		cfg.Merge(&loaded)
	}

	// .env is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error loading .env file: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	env := Config{
		Backend:        os.Getenv("BACKEND"),
		ProjectID:      os.Getenv("PROJECT_ID"),
		Location:       os.Getenv("LOCATION"),
		VTOModel:       os.Getenv("VTO_MODEL"),
		GeminiModel:    os.Getenv("GEMINI_MODEL"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		UseSDK:         os.Getenv("USE_SDK") == "true",
		VertexEndpoint: os.Getenv("VERTEX_ENDPOINT"),
		OutputDir:      os.Getenv("OUTPUT_DIR"),
	}
	if env.ProjectID == "" {
		env.ProjectID = os.Getenv("GOOGLE_CLOUD_PROJECT")
	}

	if v := os.Getenv("REQUEST_TIMEOUT"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds <= 0 {
			return fmt.Errorf("REQUEST_TIMEOUT must be a positive number of seconds, got %q", v)
		}
		env.RequestTimeout = time.Duration(seconds) * time.Second
	}

	c.Merge(&env)
	return nil
}

// Validate checks that the selected backend has what it needs.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendVertex:
		if c.ProjectID == "" {
			return fmt.Errorf("PROJECT_ID is required for the vertex backend")
		}
	case BackendGemini:
		if c.GeminiAPIKey == "" && c.ProjectID == "" {
			return fmt.Errorf("GEMINI_API_KEY or PROJECT_ID is required for the gemini backend")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendGemini, BackendVertex)
	}

	if c.Location == "" {
		return fmt.Errorf("LOCATION is required")
	}

	return nil
}
