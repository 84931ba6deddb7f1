package utils

import (
	"log"
	"net/http"
)

// SetupStreamHeaders prepares a chunked plain-text response. The body is the
// raw reply text; fragments are delivered as they are produced, not framed.
func SetupStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
}

// WriteChunk relays one fragment and flushes it to the client immediately.
// Write errors are logged and swallowed: a disconnected client must not stop
// the exchange from completing.
func WriteChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	if _, err := w.Write([]byte(text)); err != nil {
		log.Printf("failed to write stream chunk: %v", err)
		return
	}
	flusher.Flush()
}
