package auth

import (
	"errors"

	"github.com/desertthunder/spotalyze/internal/shared"
)

// Messages shown to the user when a callback fails.
const (
	MsgFailedToAuthorize = "Failed to authorize."
	MsgBadCode           = "Bad authorization code."
	MsgInternalError     = "Internal error."
)

// UserMessage maps a [Manager.CompleteAuthorization] error to the text shown to the user.
// Provider details stay in the logs.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, shared.ErrProviderDenied), errors.Is(err, shared.ErrStateMismatch):
		return MsgFailedToAuthorize
	case errors.Is(err, shared.ErrMissingCode), errors.Is(err, shared.ErrInvalidCode):
		return MsgBadCode
	default:
		return MsgInternalError
	}
}
