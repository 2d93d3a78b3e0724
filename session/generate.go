package session

import (
	"context"
	"log/slog"
	"strings"

	"miniature_creator/entities"
	"miniature_creator/gemini_api"
	"miniature_creator/identifiers"
)

type GenerateRequest struct {
	View   entities.View
	Prompt string
	// Attachments are extra data-URI reference images.
	Attachments []string
}

// GenerateResult carries a generation service failure as a value.
type GenerateResult struct {
	Success bool
	ImageID identifiers.ImageID
	Error   string
}

// Generate asks the generator for one image and adds it to the view it was
// requested for. The view is flagged as generating for the duration of the
// call. Only validation failures are returned as errors.
//
// The image lands on the miniature that was open when Generate started. If
// another miniature has been opened meanwhile it is written to the store
// without touching the new working copy.
func (s *Session) Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error) {
	const op = "session.Session.Generate"

	log := s.log.With(slog.String("op", op))

	if err := checkView(req.View); err != nil {
		return GenerateResult{}, err
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" && req.View != entities.ViewBack {
		return GenerateResult{}, newValidationError("prompt", "must not be empty")
	}

	s.mu.Lock()

	if s.state.APIKey == "" {
		s.mu.Unlock()

		return GenerateResult{}, newValidationError("api_key", "must be set before generating")
	}

	vs := s.state.View(req.View)
	if vs.IsGenerating {
		s.mu.Unlock()

		return GenerateResult{}, newValidationError("view", "is already generating")
	}

	var reference string

	if req.View == entities.ViewBack {
		frontal, ok := s.state.Frontal.SelectedOrFirst()
		if !ok {
			s.mu.Unlock()

			return GenerateResult{}, newValidationError("view", "back view needs a frontal image first")
		}

		reference = frontal.DataURI
	}

	if s.state.CurrentMiniatureID.IsZero() {
		s.state.CurrentMiniatureID = identifiers.NewMiniatureID()
	}

	vs.IsGenerating = true

	t := s.captureLocked(true)
	apiKey := s.state.APIKey
	model := s.state.GeminiModel
	s.publishLocked()
	s.mu.Unlock()

	defer s.finishGenerating(t.id, req.View)

	genReq := &gemini_api.Request{
		APIKey:                apiKey,
		View:                  req.View,
		UserPrompt:            prompt,
		ReferenceImageDataURI: reference,
		Model:                 model,
		Attachments:           req.Attachments,
		CollectionDescription: s.collectionDescription(ctx, t.collectionID),
	}

	result := s.generator.GenerateImage(ctx, genReq)
	if !result.Success {
		log.Info("generation failed", slog.String("view", string(req.View)), slog.String("error", result.Error))

		return GenerateResult{Error: result.Error}, nil
	}

	img := entities.GeneratedImage{
		ID:        identifiers.NewImageID(),
		DataURI:   result.DataURI,
		Prompt:    prompt,
		Timestamp: s.clock.Now(),
	}

	s.mu.Lock()
	if s.state.CurrentMiniatureID == t.id {
		t = s.appendLocked(req.View, &img)
	} else {
		img.Seq = s.nextSeqLocked()
		t.selectView = req.View
		t.selectImage = img.ID
	}
	s.mu.Unlock()

	s.enqueue(s.addImageTask(t, req.View, img))

	return GenerateResult{Success: true, ImageID: img.ID}, nil
}

func (s *Session) finishGenerating(id identifiers.MiniatureID, view entities.View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Opening another miniature already reset the flags.
	if s.state.CurrentMiniatureID != id {
		return
	}

	s.state.View(view).IsGenerating = false
	s.publishLocked()
}

func (s *Session) collectionDescription(ctx context.Context, id identifiers.CollectionID) string {
	if id.IsZero() {
		return ""
	}

	store, err := s.store.Open(ctx)
	if err != nil {
		s.log.Warn("collection description unavailable", slog.Any("err", err))

		return ""
	}

	collection, err := store.Collections.Get(ctx, id)
	if err != nil {
		s.log.Warn("collection description unavailable",
			slog.String("collection_id", id.String()),
			slog.Any("err", err))

		return ""
	}

	return collection.Description
}
