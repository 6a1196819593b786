package gateway

import (
	"bytes"
	"mime"
	"net/http"
	"path"
)

// download serves a stored attachment. The blob is copied into a buffer
// first so a missing key still produces a JSON error envelope.
func (g *Gateway) download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var buf bytes.Buffer
	if err := g.store.Get(r.Context(), key, &buf); err != nil {
		g.fail(w, r, err)
		return
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
