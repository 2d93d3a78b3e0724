package gemini_api

import (
	"context"

	"miniature_creator/entities"
)

type Request struct {
	APIKey     string
	View       entities.View
	UserPrompt string
	// ReferenceImageDataURI is only sent for the back view.
	ReferenceImageDataURI string
	Model                 entities.GeminiModel
	// Attachments are extra data-URI images sent ahead of the prompt.
	Attachments           []string
	CollectionDescription string
}

// Result reports the outcome as a value. Error is human-readable and set
// only when Success is false.
type Result struct {
	Success bool
	DataURI string
	Error   string
}

type Generator interface {
	GenerateImage(ctx context.Context, req *Request) Result
}
