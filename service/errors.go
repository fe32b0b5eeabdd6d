package service

import "errors"

// ErrNotFound reports that the requested integration does not exist.
// It is an expected condition, not a fault: handlers fold it into a
// done:false envelope.
var ErrNotFound = errors.New("Integration not found")

// ErrNoAccessToken reports that the owning workspace has no stored
// access token, so no Slack call can be made on its behalf.
var ErrNoAccessToken = errors.New("アクセストークンが見つかりません")

// ValidationError reports a rejected request parameter. The message is
// user-facing; handlers return it with HTTP 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}
