package handlers

import (
	"net/http"

	apperrors "github.com/greenstreak/greenstreak/internal/errors"
)

// ErrorResponder writes err, domain error or envelope, as the response.
type ErrorResponder func(http.ResponseWriter, *http.Request, error)

var responder ErrorResponder = apperrors.RespondWithError

// UseErrorResponder routes handler failures through fn. A nil fn restores
// the envelope writer from internal/errors.
func UseErrorResponder(fn ErrorResponder) {
	if fn == nil {
		fn = apperrors.RespondWithError
	}
	responder = fn
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	responder(w, r, err)
}
