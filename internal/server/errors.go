package server

import (
	"net/http"

	apperrors "github.com/greenstreak/greenstreak/internal/errors"
)

// HandleError renders any error, domain or envelope, as the standard JSON body.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	apperrors.RespondWithError(w, r, err)
}
