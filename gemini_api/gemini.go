package gemini_api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"miniature_creator/blob_codec"
	"miniature_creator/entities"
	"miniature_creator/prompts"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type contentFunc func(ctx context.Context, apiKey, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error)

type apiImpl struct {
	defaultModel  entities.GeminiModel
	timeout       time.Duration
	clientOptions []option.ClientOption
	log           *slog.Logger
	generate      contentFunc
}

type Config struct {
	DefaultModel entities.GeminiModel
	// Timeout bounds a single generation call; zero means no limit.
	Timeout time.Duration
	// ClientOptions are appended after the per-request API key.
	ClientOptions []option.ClientOption
	Logger        *slog.Logger
}

func New(cfg Config) (Generator, error) {
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = entities.DefaultGeminiModel
	}

	if !cfg.DefaultModel.Known() {
		return nil, fmt.Errorf("unknown gemini model %q", cfg.DefaultModel)
	}

	if cfg.Timeout < 0 {
		return nil, errors.New("timeout must not be negative")
	}

	api := &apiImpl{
		defaultModel:  cfg.DefaultModel,
		timeout:       cfg.Timeout,
		clientOptions: cfg.ClientOptions,
		log:           cfg.Logger,
	}

	if api.log == nil {
		api.log = slog.Default()
	}

	api.generate = api.generateWithClient

	return api, nil
}

// generateWithClient builds a client per call because the credential can
// change between requests.
func (api *apiImpl) generateWithClient(ctx context.Context, apiKey, model string, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(apiKey)}, api.clientOptions...)

	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	return client.GenerativeModel(model).GenerateContent(ctx, parts...)
}

func failure(msg string) Result {
	return Result{Error: msg}
}

func (api *apiImpl) GenerateImage(ctx context.Context, req *Request) (result Result) {
	const op = "gemini_api.GenerateImage"

	log := api.log.With(slog.String("op", op))

	defer func() {
		if r := recover(); r != nil {
			log.Error("generation panicked", slog.Any("panic", r))

			result = failure(fmt.Sprintf("unexpected error: %v", r))
		}
	}()

	if req == nil {
		return failure("missing request")
	}

	if req.APIKey == "" {
		return failure("missing API key")
	}

	view, err := entities.ParseView(string(req.View))
	if err != nil {
		return failure(err.Error())
	}

	model := req.Model
	if model == "" {
		model = api.defaultModel
	}

	parts, err := buildParts(view, req)
	if err != nil {
		return failure(err.Error())
	}

	if api.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, api.timeout)
		defer cancel()
	}

	started := time.Now()

	resp, err := api.generate(ctx, req.APIKey, string(model), parts...)
	if err != nil {
		log.Warn("generation failed",
			slog.String("view", string(view)),
			slog.String("model", string(model)),
			slog.Any("err", err))

		return failure(err.Error())
	}

	result = extractImage(resp)

	log.Info("generation finished",
		slog.String("view", string(view)),
		slog.String("model", string(model)),
		slog.Bool("success", result.Success),
		slog.Duration("took", time.Since(started)))

	return result
}

func buildParts(view entities.View, req *Request) ([]genai.Part, error) {
	var parts []genai.Part

	if view == entities.ViewBack && req.ReferenceImageDataURI != "" {
		blob, err := blob_codec.ToBinary(req.ReferenceImageDataURI)
		if err != nil {
			return nil, fmt.Errorf("reference image: %w", err)
		}

		parts = append(parts, genai.Blob{MIMEType: blob.MimeType, Data: blob.Data})
	}

	for i, attachment := range req.Attachments {
		blob, err := blob_codec.ToBinary(attachment)
		if err != nil {
			return nil, fmt.Errorf("attachment %d: %w", i+1, err)
		}

		parts = append(parts, genai.Blob{MIMEType: blob.MimeType, Data: blob.Data})
	}

	parts = append(parts, genai.Text(prompts.Build(view, req.UserPrompt, req.CollectionDescription)))

	return parts, nil
}

func extractImage(resp *genai.GenerateContentResponse) Result {
	if resp == nil || len(resp.Candidates) == 0 {
		return failure("No response generated")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return failure("No content in response")
	}

	for _, part := range candidate.Content.Parts {
		blob, ok := part.(genai.Blob)
		if !ok || len(blob.Data) == 0 {
			continue
		}

		uri, err := blob_codec.ToDataURI(&blob_codec.Blob{MimeType: blob.MIMEType, Data: blob.Data})
		if err != nil {
			return failure(err.Error())
		}

		return Result{Success: true, DataURI: uri}
	}

	return failure("No image in response")
}
