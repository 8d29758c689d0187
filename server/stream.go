package server

import (
	"encoding/json"
	"net/http"
)

// ndjsonWriter writes one JSON document per line and flushes after each.
type ndjsonWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	enc     *json.Encoder
}

func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	f, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &ndjsonWriter{w: w, flusher: f, enc: enc}
}

// Write encodes v followed by a newline and flushes it to the client.
func (n *ndjsonWriter) Write(v any) error {
	if err := n.enc.Encode(v); err != nil {
		return err
	}
	if n.flusher != nil {
		n.flusher.Flush()
	}
	return nil
}
