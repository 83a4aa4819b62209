package format

import (
	"encoding/json"
	"io"
)

// Envelope is the JSON shape every sessions/serve command prints.
type Envelope struct {
	Data  any            `json:"data"`
	Meta  map[string]any `json:"meta,omitempty"`
	Hints []string       `json:"_hints,omitempty"`
}

// WriteJSON prints e as a single JSON document followed by a newline.
func WriteJSON(w io.Writer, e Envelope, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(e)
}
