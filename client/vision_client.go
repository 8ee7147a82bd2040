package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/Aashish23092/invoice-annotation/dto"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const visionSystemPrompt = "You are an invoice analysis assistant. Extract invoice details including " +
	"vendor, date, due date, amount, tax, total, currency and any notes."

const visionUserPrompt = `Analyze this invoice and extract all relevant fields. Provide the field type, exact text value, and the position of each field as coordinates (x, y, width, height) as percentage of document dimensions.

Answer with a JSON object only, in this shape:
{"fields": [{"type": "vendor|date|dueDate|amount|tax|total|currency|notes", "text": "exact text", "boundingBox": {"x": 0, "y": 0, "width": 0, "height": 0}, "confidence": 0.0}]}`

// VisionConfig selects the vision model behind a VisionClient.
type VisionConfig struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// VisionClient asks a multimodal LLM to locate invoice fields on a page image.
type VisionClient struct {
	llm         llms.Model
	provider    string
	model       string
	maxTokens   int
	temperature float64
}

func NewVisionClient(cfg VisionConfig) (*VisionClient, error) {
	llm, err := newVisionModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s vision model: %w", cfg.Provider, err)
	}
	return NewVisionClientWithModel(llm, cfg), nil
}

// NewVisionClientWithModel wraps an already constructed model.
func NewVisionClientWithModel(llm llms.Model, cfg VisionConfig) *VisionClient {
	return &VisionClient{
		llm:         llm,
		provider:    strings.ToLower(cfg.Provider),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}
}

func newVisionModel(cfg VisionConfig) (llms.Model, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		opts := []openai.Option{
			openai.WithModel(cfg.Model),
			openai.WithToken(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)
	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)
	case "anthropic":
		return anthropic.New(
			anthropic.WithModel(cfg.Model),
			anthropic.WithToken(cfg.APIKey),
		)
	default:
		return nil, fmt.Errorf("unsupported vision provider %q", cfg.Provider)
	}
}

// Detect sends the page image and returns the model's raw answer.
func (v *VisionClient) Detect(ctx context.Context, page *dto.DetectionPage) (string, error) {
	if len(page.Image) == 0 {
		return "", ErrNoPageImage
	}

	logger := logrus.WithFields(logrus.Fields{
		"document": page.DocumentID,
		"provider": v.provider,
		"model":    v.model,
	})

	var imagePart llms.ContentPart
	if v.provider == "openai" {
		imagePart = llms.ImageURLPart("data:image/png;base64," + base64.StdEncoding.EncodeToString(page.Image))
	} else {
		imagePart = llms.BinaryPart("image/png", page.Image)
	}

	var callOpts []llms.CallOption
	if v.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(v.maxTokens))
	}
	callOpts = append(callOpts, llms.WithTemperature(v.temperature))

	logger.Debug("Sending page to vision model")
	completion, err := v.llm.GenerateContent(ctx, []llms.MessageContent{
		{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(visionSystemPrompt)},
		},
		{
			Role:  llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{llms.TextPart(visionUserPrompt), imagePart},
		},
	}, callOpts...)
	if err != nil {
		return "", fmt.Errorf("error getting response from vision model: %w", err)
	}
	if completion == nil || len(completion.Choices) == 0 {
		return "", nil
	}

	content := completion.Choices[0].Content
	logger.WithField("length", len(content)).Debug("Vision model answered")
	return content, nil
}
