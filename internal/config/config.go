package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingCredential is returned when a selected backend has no credentials.
var ErrMissingCredential = errors.New("config: missing credential")

// Config holds runtime configuration values.
type Config struct {
	Port                  string `yaml:"port"`
	DatabaseURL           string `yaml:"database_url"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds"`
	MaxSessions           int    `yaml:"max_sessions"`
	MaxImageDimension     int    `yaml:"max_image_dimension"`

	Google    GoogleConfig    `yaml:"google"`
	Editor    EditorConfig    `yaml:"editor"`
	Text      TextConfig      `yaml:"text"`
	Report    ReportConfig    `yaml:"report"`
	Media     MediaConfig     `yaml:"media"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GoogleConfig carries the credentials shared by the Google backends.
type GoogleConfig struct {
	APIKey             string `yaml:"api_key"`
	ServiceAccountJSON string `yaml:"service_account_json"`
}

// EditorConfig selects and tunes the image editor.
type EditorConfig struct {
	Backend     string       `yaml:"backend"`
	Model       string       `yaml:"model"`
	Temperature float64      `yaml:"temperature"`
	Imagen      ImagenConfig `yaml:"imagen"`
	Render      RenderConfig `yaml:"render"`
}

// ImagenConfig describes the Vertex AI Imagen backend.
type ImagenConfig struct {
	ProjectID string `yaml:"project_id"`
	Location  string `yaml:"location"`
	Model     string `yaml:"model"`
	EditMode  string `yaml:"edit_mode"`
	// ServiceAccountFile is a credentials file path; GOOGLE_SERVICE_ACCOUNT_JSON wins when both are set.
	ServiceAccountFile string `yaml:"service_account_file"`
}

// RenderConfig describes the two-stage rendering backend.
type RenderConfig struct {
	Endpoint string  `yaml:"endpoint"`
	APIKey   string  `yaml:"api_key"`
	Strength float64 `yaml:"strength"`
	Steps    int     `yaml:"steps"`
	Format   string  `yaml:"format"`
}

// TextConfig selects the text model used for annotations and render prompts.
type TextConfig struct {
	Provider     string `yaml:"provider"`
	Model        string `yaml:"model"`
	OpenAIAPIKey string `yaml:"openai_api_key"`
}

// ReportConfig toggles the optional annotation calls and report sections.
type ReportConfig struct {
	ExtractMaterials  bool   `yaml:"extract_materials"`
	IncludeRationale  bool   `yaml:"include_rationale"`
	IncludeNextSteps  bool   `yaml:"include_next_steps"`
	SearchURLTemplate string `yaml:"search_url_template"`
}

// MediaConfig describes S3/media related configuration.
type MediaConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	PublicURL       string `yaml:"public_url"`
	KeyPrefix       string `yaml:"key_prefix"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	LocalDir        string `yaml:"local_dir"`
}

// TelemetryConfig describes log and trace output.
type TelemetryConfig struct {
	LogFile   string `yaml:"log_file"`
	LogLevel  string `yaml:"log_level"`
	TraceFile string `yaml:"trace_file"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Port:                  "8080",
		RequestTimeoutSeconds: 120,
		MaxSessions:           200,
		MaxImageDimension:     1024,
		Editor: EditorConfig{
			Backend:     "gemini",
			Model:       "gemini-3-pro-image-preview",
			Temperature: 0.7,
			Imagen:      ImagenConfig{Location: "us-central1", Model: "imagen-3.0-capability-001"},
			Render:      RenderConfig{Strength: 0.35, Steps: 30, Format: "png"},
		},
		Text: TextConfig{Provider: "gemini"},
		Report: ReportConfig{
			ExtractMaterials:  true,
			IncludeRationale:  true,
			IncludeNextSteps:  true,
			SearchURLTemplate: "https://www.google.com/search?tbm=shop&q=%s",
		},
		Telemetry: TelemetryConfig{LogLevel: "info"},
	}
}

// Load reads .env (if present), then the optional YAML file at path, then the
// environment, and validates the result.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case !errors.Is(err, os.ErrNotExist):
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getenv("APP_PORT", cfg.Port)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RequestTimeoutSeconds = getenvInt("REQUEST_TIMEOUT_SECONDS", cfg.RequestTimeoutSeconds)
	cfg.MaxSessions = getenvInt("MAX_SESSIONS", cfg.MaxSessions)
	cfg.MaxImageDimension = getenvInt("MAX_IMAGE_DIMENSION", cfg.MaxImageDimension)

	cfg.Google.APIKey = getenv("GOOGLE_API_KEY", cfg.Google.APIKey)
	cfg.Google.ServiceAccountJSON = getenv("GOOGLE_SERVICE_ACCOUNT_JSON", cfg.Google.ServiceAccountJSON)

	cfg.Editor.Backend = strings.ToLower(getenv("EDITOR_BACKEND", cfg.Editor.Backend))
	cfg.Editor.Model = getenv("IMAGE_MODEL", cfg.Editor.Model)
	cfg.Editor.Temperature = getenvFloat("EDIT_TEMPERATURE", cfg.Editor.Temperature)
	cfg.Editor.Imagen.ProjectID = getenv("IMAGEN_PROJECT_ID", cfg.Editor.Imagen.ProjectID)
	cfg.Editor.Imagen.Location = getenv("IMAGEN_LOCATION", cfg.Editor.Imagen.Location)
	cfg.Editor.Imagen.Model = getenv("IMAGEN_MODEL", cfg.Editor.Imagen.Model)
	cfg.Editor.Imagen.EditMode = getenv("IMAGEN_EDIT_MODE", cfg.Editor.Imagen.EditMode)
	cfg.Editor.Imagen.ServiceAccountFile = getenv("IMAGEN_SERVICE_ACCOUNT_FILE", cfg.Editor.Imagen.ServiceAccountFile)
	cfg.Editor.Render.Endpoint = getenv("RENDER_ENDPOINT", cfg.Editor.Render.Endpoint)
	cfg.Editor.Render.APIKey = getenv("RENDER_API_KEY", cfg.Editor.Render.APIKey)
	cfg.Editor.Render.Strength = getenvFloat("RENDER_STRENGTH", cfg.Editor.Render.Strength)
	cfg.Editor.Render.Steps = getenvInt("RENDER_STEPS", cfg.Editor.Render.Steps)
	cfg.Editor.Render.Format = getenv("RENDER_FORMAT", cfg.Editor.Render.Format)

	cfg.Text.Provider = strings.ToLower(getenv("TEXT_PROVIDER", cfg.Text.Provider))
	cfg.Text.Model = getenv("TEXT_MODEL", cfg.Text.Model)
	cfg.Text.OpenAIAPIKey = getenv("OPENAI_API_KEY", cfg.Text.OpenAIAPIKey)

	cfg.Report.ExtractMaterials = getenvBool("EXTRACT_MATERIALS", cfg.Report.ExtractMaterials)
	cfg.Report.IncludeRationale = getenvBool("INCLUDE_RATIONALE", cfg.Report.IncludeRationale)
	cfg.Report.IncludeNextSteps = getenvBool("INCLUDE_NEXT_STEPS", cfg.Report.IncludeNextSteps)
	cfg.Report.SearchURLTemplate = getenv("SEARCH_URL_TEMPLATE", cfg.Report.SearchURLTemplate)

	cfg.Media.Bucket = getenv("S3_BUCKET", cfg.Media.Bucket)
	cfg.Media.Region = getenv("S3_REGION", cfg.Media.Region)
	cfg.Media.Endpoint = getenv("S3_ENDPOINT", cfg.Media.Endpoint)
	cfg.Media.PublicURL = getenv("S3_PUBLIC_URL", cfg.Media.PublicURL)
	cfg.Media.KeyPrefix = strings.Trim(getenv("S3_KEY_PREFIX", cfg.Media.KeyPrefix), "/")
	cfg.Media.ForcePathStyle = getenvBool("S3_FORCE_PATH_STYLE", cfg.Media.ForcePathStyle)
	cfg.Media.AccessKeyID = getenv("S3_ACCESS_KEY_ID", cfg.Media.AccessKeyID)
	cfg.Media.SecretAccessKey = getenv("S3_SECRET_ACCESS_KEY", cfg.Media.SecretAccessKey)
	cfg.Media.LocalDir = getenv("MEDIA_LOCAL_DIR", cfg.Media.LocalDir)

	cfg.Telemetry.LogFile = getenv("LOG_FILE", cfg.Telemetry.LogFile)
	cfg.Telemetry.LogLevel = getenv("LOG_LEVEL", cfg.Telemetry.LogLevel)
	cfg.Telemetry.TraceFile = getenv("TRACE_FILE", cfg.Telemetry.TraceFile)
}

// Validate checks the settings and that every selected backend has credentials.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return fmt.Errorf("config: APP_PORT cannot be empty")
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("config: MAX_SESSIONS must be positive")
	}

	hasGoogle := strings.TrimSpace(c.Google.APIKey) != ""
	switch c.Editor.Backend {
	case "gemini":
		if !hasGoogle {
			return fmt.Errorf("%w: GOOGLE_API_KEY is required for the gemini editor", ErrMissingCredential)
		}
	case "imagen":
		if !hasGoogle && strings.TrimSpace(c.Google.ServiceAccountJSON) == "" && strings.TrimSpace(c.Editor.Imagen.ServiceAccountFile) == "" {
			return fmt.Errorf("%w: GOOGLE_API_KEY, GOOGLE_SERVICE_ACCOUNT_JSON or IMAGEN_SERVICE_ACCOUNT_FILE is required for the imagen editor", ErrMissingCredential)
		}
		if c.Editor.Imagen.ProjectID == "" {
			return fmt.Errorf("config: IMAGEN_PROJECT_ID is required for the imagen editor")
		}
	case "render":
		if strings.TrimSpace(c.Editor.Render.Endpoint) == "" {
			return fmt.Errorf("%w: RENDER_ENDPOINT is required for the render editor", ErrMissingCredential)
		}
	default:
		return fmt.Errorf("config: unknown EDITOR_BACKEND %q", c.Editor.Backend)
	}

	switch c.Text.Provider {
	case "gemini":
		if !hasGoogle && strings.TrimSpace(c.Google.ServiceAccountJSON) == "" {
			return fmt.Errorf("%w: GOOGLE_API_KEY is required for the gemini text provider", ErrMissingCredential)
		}
	case "openai":
		if strings.TrimSpace(c.Text.OpenAIAPIKey) == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is required for the openai text provider", ErrMissingCredential)
		}
	case "none":
	default:
		return fmt.Errorf("config: unknown TEXT_PROVIDER %q", c.Text.Provider)
	}
	return nil
}

// RequestTimeout bounds each external call.
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func getenv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return fallback
}

func getenvBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return fallback
	}

	return parsed
}

func getenvFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}

	parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		return fallback
	}

	return parsed
}
