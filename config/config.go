package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultServerPort        = "8080"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultMaxFileSize       = 10 * 1024 * 1024 // 10 MB
	DefaultDetector          = "auto"
	DefaultTesseractDataPath = "/usr/share/tesseract-ocr/5/tessdata/"
	DefaultVisionProvider    = "openai"
	DefaultVisionModel       = "gpt-4o"
	DefaultVisionMaxTokens   = 1500
	DefaultVisionTemperature = 0.2
	DefaultDetectionTimeout  = 60 * time.Second

	envPrefix = "INVOICE"
)

// Detectors lists the values accepted for Detector.
var Detectors = []string{"auto", "vision", "tesseract", "azure", "textlayer", "qr"}

type Config struct {
	ServerPort        string
	LogLevel          string
	LogFormat         string
	MaxFileSize       int64
	Detector          string
	TesseractDataPath string

	VisionProvider    string
	VisionModel       string
	VisionBaseURL     string
	VisionAPIKey      string
	VisionMaxTokens   int
	VisionTemperature float64

	AzureEndpoint string
	AzureAPIKey   string

	DetectionTimeout time.Duration
}

// LoadConfig reads .env, INVOICE_* environment variables and command line flags.
func LoadConfig() (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()
	return Load(os.Args[1:])
}

// Load builds a configuration from defaults, the environment and args.
// Flags win over environment variables.
func Load(args []string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	tessdata := os.Getenv("TESSDATA_PREFIX")
	if tessdata == "" {
		tessdata = DefaultTesseractDataPath
	}

	fs := pflag.NewFlagSet("invoice-annotation", pflag.ContinueOnError)
	fs.String("port", DefaultServerPort, "HTTP server port")
	fs.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-format", DefaultLogFormat, "Log format (text, json)")
	fs.Int64("max-file-size", DefaultMaxFileSize, "Maximum upload size in bytes")
	fs.String("detector", DefaultDetector, "Default field detector ("+strings.Join(Detectors, ", ")+")")
	fs.String("tessdata", tessdata, "Tesseract tessdata directory")
	fs.String("vision-provider", DefaultVisionProvider, "Vision model provider (openai, ollama, anthropic)")
	fs.String("vision-model", DefaultVisionModel, "Vision model name")
	fs.String("vision-base-url", "", "Vision model endpoint override")
	fs.String("vision-api-key", "", "Vision model API key")
	fs.Int("vision-max-tokens", DefaultVisionMaxTokens, "Maximum tokens in the vision model answer")
	fs.Float64("vision-temperature", DefaultVisionTemperature, "Vision model temperature")
	fs.String("azure-endpoint", "", "Azure Computer Vision endpoint")
	fs.String("azure-api-key", "", "Azure Computer Vision key")
	fs.Duration("detection-timeout", DefaultDetectionTimeout, "Upper bound for one detection call")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}
	// provider keys are commonly exported under their own names
	_ = v.BindEnv("vision-api-key", envPrefix+"_VISION_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("port", envPrefix+"_PORT", "SERVER_PORT")

	cfg := &Config{
		ServerPort:        v.GetString("port"),
		LogLevel:          strings.ToLower(v.GetString("log-level")),
		LogFormat:         strings.ToLower(v.GetString("log-format")),
		MaxFileSize:       v.GetInt64("max-file-size"),
		Detector:          strings.ToLower(v.GetString("detector")),
		TesseractDataPath: v.GetString("tessdata"),
		VisionProvider:    strings.ToLower(v.GetString("vision-provider")),
		VisionModel:       v.GetString("vision-model"),
		VisionBaseURL:     v.GetString("vision-base-url"),
		VisionAPIKey:      v.GetString("vision-api-key"),
		VisionMaxTokens:   v.GetInt("vision-max-tokens"),
		VisionTemperature: v.GetFloat64("vision-temperature"),
		AzureEndpoint:     v.GetString("azure-endpoint"),
		AzureAPIKey:       v.GetString("azure-api-key"),
		DetectionTimeout:  v.GetDuration("detection-timeout"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ServerPort == "" {
		return errors.New("server port cannot be empty")
	}
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.LogFormat)
	}

	validDetector := false
	for _, d := range Detectors {
		if c.Detector == d {
			validDetector = true
			break
		}
	}
	if !validDetector {
		return fmt.Errorf("invalid detector: %s (must be one of: %s)", c.Detector, strings.Join(Detectors, ", "))
	}

	switch c.VisionProvider {
	case "openai", "ollama", "anthropic":
	default:
		return fmt.Errorf("invalid vision provider: %s", c.VisionProvider)
	}
	if c.VisionMaxTokens < 0 {
		return errors.New("vision max tokens cannot be negative")
	}
	if c.DetectionTimeout < 0 {
		return errors.New("detection timeout cannot be negative")
	}
	if c.Detector == "vision" && !c.VisionEnabled() {
		return errors.New("vision detector requires an API key")
	}
	if c.Detector == "azure" && !c.AzureEnabled() {
		return errors.New("azure detector requires an endpoint and an API key")
	}
	return nil
}

// AzureEnabled reports whether Azure OCR credentials are configured.
func (c *Config) AzureEnabled() bool {
	return c.AzureEndpoint != "" && c.AzureAPIKey != ""
}

// VisionEnabled reports whether the vision model can be reached. Ollama needs no key.
func (c *Config) VisionEnabled() bool {
	return c.VisionProvider == "ollama" || c.VisionAPIKey != ""
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	return ":" + c.ServerPort
}
