package xhttp

import (
	"net/http"

	"github.com/bellhop-dev/bellhop/internal/apperr"
	go_json "github.com/goccy/go-json"
)

func Error(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

// WriteError maps an application error to its HTTP representation. Errors
// that are not *apperr.Error are reported as opaque internal errors so no
// cause detail leaks to the client.
func WriteError(w http.ResponseWriter, err error) {
	appErr := apperr.AsError(err)
	if appErr == nil {
		WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   apperr.CodeInternal,
			"message": http.StatusText(http.StatusInternalServerError),
		})
		return
	}

	SetHeaderContentTypeApplicationJSON(w)
	w.WriteHeader(appErr.StatusCode)
	_ = go_json.NewEncoder(w).Encode(map[string]string{
		"error":   appErr.Code,
		"message": appErr.Message,
	})
}
