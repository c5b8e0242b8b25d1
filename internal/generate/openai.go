package generate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultDialogueModel is the vision chat model used for dialogue.
const DefaultDialogueModel = "gpt-4o-mini"

// OpenAISettings configures the OpenAI clients.
type OpenAISettings struct {
	APIKey  string
	BaseURL string
	Model   string
}

func (s OpenAISettings) options() ([]option.RequestOption, error) {
	if s.APIKey == "" {
		return nil, errors.New("openai api key missing; set OPENAI_API_KEY")
	}
	opts := []option.RequestOption{option.WithAPIKey(s.APIKey), option.WithMaxRetries(1)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	return opts, nil
}

// OpenAIImages generates images with the OpenAI images endpoint.
type OpenAIImages struct {
	Model string
	Opts  []option.RequestOption
}

// NewOpenAIImages returns an image generator. The model defaults to dall-e-3.
func NewOpenAIImages(cfg OpenAISettings) (*OpenAIImages, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.ImageModelDallE3)
	}
	return &OpenAIImages{Model: cfg.Model, Opts: opts}, nil
}

// Generate requests one base64 image. Portrait aspect ratios map to the
// tall size, everything else to the square one.
func (o *OpenAIImages) Generate(ctx context.Context, req Request) ([]byte, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}
	req = req.withDefaults()
	size := openai.ImageGenerateParamsSize1024x1024
	if req.AspectRatio == "9:16" || req.AspectRatio == "2:3" {
		size = openai.ImageGenerateParamsSize1024x1792
	}

	client := openai.NewClient(o.Opts...)
	resp, err := client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         req.Prompt,
		Model:          openai.ImageModel(o.Model),
		N:              openai.Int(1),
		Size:           size,
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
	})
	if err != nil {
		return nil, wrapOpenAI(err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: openai returned no image", ErrGenerationFailed)
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decode openai image: %w", err)
	}
	return data, nil
}

// OpenAIDialogue writes dialogue lines with a vision chat model.
type OpenAIDialogue struct {
	Model string
	Opts  []option.RequestOption
}

// NewOpenAIDialogue returns a dialogue generator.
func NewOpenAIDialogue(cfg OpenAISettings) (*OpenAIDialogue, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultDialogueModel
	}
	return &OpenAIDialogue{Model: cfg.Model, Opts: opts}, nil
}

// Dialogue sends the PNG still and the previous line, returning the reply.
func (o *OpenAIDialogue) Dialogue(ctx context.Context, still []byte, previous string) (string, error) {
	if len(still) == 0 {
		return "", errors.New("no image data received")
	}
	client := openai.NewClient(o.Opts...)
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(still)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(dialoguePrompt(previous)),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: uri}),
			}),
		},
		MaxTokens: openai.Int(50),
	})
	if err != nil {
		return "", wrapOpenAI(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: openai returned no choices", ErrGenerationFailed)
	}
	return strings.Trim(strings.TrimSpace(resp.Choices[0].Message.Content), `"`), nil
}

func wrapOpenAI(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &StatusError{Provider: "openai", Status: apiErr.StatusCode, Body: apiErr.Message}
	}
	return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
}
