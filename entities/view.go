package entities

import "fmt"

// View is one of the three artifacts produced per miniature.
type View string

const (
	ViewFrontal View = "frontal"
	ViewBack    View = "back"
	ViewBase    View = "base"
)

// Views lists every view in workflow order.
var Views = []View{ViewFrontal, ViewBack, ViewBase}

func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewFrontal, ViewBack, ViewBase:
		return View(s), nil
	}

	return "", fmt.Errorf("unknown view %q", s)
}

func (v View) Label() string {
	switch v {
	case ViewFrontal:
		return "Frontal"
	case ViewBack:
		return "Back"
	case ViewBase:
		return "Base"
	}

	return string(v)
}

type GeminiModel string

const (
	GeminiModelFlashImage GeminiModel = "gemini-2.5-flash-image"
	GeminiModelProImage   GeminiModel = "gemini-3-pro-image-preview"
)

const DefaultGeminiModel = GeminiModelFlashImage

var GeminiModels = []GeminiModel{GeminiModelFlashImage, GeminiModelProImage}

func (m GeminiModel) Known() bool {
	for _, known := range GeminiModels {
		if m == known {
			return true
		}
	}

	return false
}
