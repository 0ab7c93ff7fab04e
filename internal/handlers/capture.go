package handlers

import (
	"net/http"

	"github.com/jikku/phishsim/internal/models"
)

// CaptureHandler records submitted credentials and redirects to the
// configured destination. The redirect is issued even if logging fails.
func (h *Handlers) CaptureHandler(w http.ResponseWriter, r *http.Request) {
	// PostFormValue covers urlencoded and multipart bodies; a malformed body
	// leaves the fields empty
	ev := models.NewCredentialsEvent(
		h.now(),
		sourceIP(r),
		r.PostFormValue("username"),
		r.PostFormValue("password"),
	)
	h.record(r.Context(), h.credentials, ev)

	http.Redirect(w, r, h.redirectURL, http.StatusFound)
}
