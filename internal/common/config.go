package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Pipeline   PipelineConfig
	Recognizer RecognizerConfig
	LLM        LLMConfig
}

// PipelineConfig holds routing and orchestration knobs.
type PipelineConfig struct {
	// ConfidenceThreshold is the routing boundary; confidence >= threshold
	// routes to text-structuring.
	ConfidenceThreshold float64
	// ExpectedMinLines and ExpectedMinChars calibrate the density and length
	// components of the composite confidence for this document domain.
	ExpectedMinLines int
	ExpectedMinChars int
	ForceVision      bool
	RetryCount       int
	Workers          int
	StageTimeout     time.Duration
}

// RecognizerConfig holds text-recognition configuration.
type RecognizerConfig struct {
	Tesseract   string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	PSM         int // e.g., 6 is good for uniform block of text
	OEM         int // 1 = LSTM; leave 0 to use default
}

// LLMConfig holds language-model backend configuration.
type LLMConfig struct {
	BaseURL     string
	Model       string
	VisionModel string
	APIKey      string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Pipeline: PipelineConfig{
			ConfidenceThreshold: getEnvAsFloat64("RX_CONFIDENCE_THRESHOLD", 0.6),
			ExpectedMinLines:    getEnvAsInt("RX_EXPECTED_MIN_LINES", 8),
			ExpectedMinChars:    getEnvAsInt("RX_EXPECTED_MIN_CHARS", 150),
			ForceVision:         getEnvAsBool("RX_FORCE_VISION", false),
			RetryCount:          getEnvAsInt("RX_RETRY_COUNT", 1),
			Workers:             getEnvAsInt("RX_WORKERS", 4),
			StageTimeout:        getEnvAsDuration("RX_STAGE_TIMEOUT", 2*time.Minute),
		},
		Recognizer: RecognizerConfig{
			Tesseract:   getEnv("TESSERACT_BIN", "tesseract"),
			Lang:        getEnv("TESSERACT_LANG", "eng"),
			TessdataDir: getEnv("TESSDATA_PREFIX", ""),
			PSM:         getEnvAsInt("TESSERACT_PSM", 0),
			OEM:         getEnvAsInt("TESSERACT_OEM", 0),
		},
		LLM: LLMConfig{
			BaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			VisionModel: getEnv("OPENAI_VISION_MODEL", "gpt-4o"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			MaxTokens:   getEnvAsInt("OPENAI_MAX_TOKENS", 4096),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate checks the loaded configuration. Missing LLM credentials are not
// fatal on their own (the pipeline degrades to the pattern fallback), but a
// partially configured or out-of-range setup is refused at startup.
func (c *Config) Validate() error {
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "RX_CONFIDENCE_THRESHOLD must be in [0,1]", ErrConfig)
	}
	if c.Pipeline.ExpectedMinLines <= 0 || c.Pipeline.ExpectedMinChars <= 0 {
		return NewAppError("CONFIG_ERROR", "RX_EXPECTED_MIN_LINES and RX_EXPECTED_MIN_CHARS must be positive", ErrConfig)
	}
	if c.Pipeline.RetryCount < 0 {
		return NewAppError("CONFIG_ERROR", "RX_RETRY_COUNT must be >= 0", ErrConfig)
	}
	if c.LLM.APIKey != "" && c.LLM.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_BASE_URL is required when OPENAI_API_KEY is set", ErrConfig)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return NewAppError("CONFIG_ERROR", "OPENAI_TEMPERATURE must be in [0,2]", ErrConfig)
	}
	return nil
}
