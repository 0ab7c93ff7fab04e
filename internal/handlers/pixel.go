package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"

	"github.com/jikku/phishsim/internal/models"
)

// PixelGIF is a 1x1 transparent GIF
var PixelGIF = mustDecode("R0lGODlhAQABAIAAAAAAAP///ywAAAAAAQABAAACAUwAOw==")

func mustDecode(s string) []byte {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		panic(err)
	}
	return b
}

// TrackHandler records an email open and serves the tracking pixel.
// The response is identical whether or not the open was logged.
func (h *Handlers) TrackHandler(w http.ResponseWriter, r *http.Request) {
	recipientID := models.UnknownRecipient
	if q := r.URL.Query(); q.Has("id") {
		recipientID = strings.TrimSpace(q.Get("id"))
	}

	ev := models.NewOpenEvent(h.now(), recipientID, sourceIP(r))
	h.record(r.Context(), h.opens, ev)

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", strconv.Itoa(len(PixelGIF)))
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(PixelGIF)
}
