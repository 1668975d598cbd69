package client

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/steemit/bulletin/internal/apierr"
)

// HandleApiError turns an error response into an *apierr.Error. Bodies that
// are not API errors keep their text as the message and take their kind from
// the status code.
func HandleApiError(r *http.Response, errBody []byte) *apierr.Error {
	fallback := &apierr.Error{
		Kind:    apierr.KindForStatus(r.StatusCode),
		Status:  r.StatusCode,
		Message: strings.TrimSpace(string(errBody)),
	}
	if fallback.Message == "" {
		fallback.Message = http.StatusText(r.StatusCode)
	}

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return fallback
	}

	var apiErr apierr.Error
	if err := json.Unmarshal(errBody, &apiErr); err != nil || apiErr.Message == "" {
		return fallback
	}
	apiErr.Status = r.StatusCode
	if apiErr.Kind == "" {
		apiErr.Kind = apierr.KindForStatus(r.StatusCode)
	}
	return &apiErr
}
