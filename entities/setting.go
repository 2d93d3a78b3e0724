package entities

// Setting is a single persisted key-value entry.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
