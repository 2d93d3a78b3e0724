package png_info_extractor

type Extractor interface {
	// Dimensions reports the width and height from the IHDR chunk.
	Dimensions() (int, int)
	// EmbeddedPrompt returns the generation prompt stored in a text chunk by
	// common image tools, or "" if there is none.
	EmbeddedPrompt() (string, error)
}
