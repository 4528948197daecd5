package app

import (
	"context"
	"errors"

	"github.com/MrWong99/notemate/internal/capture"
	"github.com/MrWong99/notemate/internal/credential"
	"github.com/MrWong99/notemate/internal/summarize"
)

// UserMessage converts a pipeline error into a message for the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, capture.ErrEmptyRecording):
		return "no audio was recorded"
	case errors.Is(err, capture.ErrAlreadyRecording):
		return "a recording is already in progress"
	case errors.Is(err, ErrBusy):
		return "busy: wait for the current recording or processing to finish"
	case errors.Is(err, summarize.ErrMissingCredential):
		return "the remote provider needs an API key; set one with 'key'"
	case errors.Is(err, credential.ErrEmptyKey):
		return "the API key must not be empty"
	case errors.Is(err, summarize.ErrUnknownProvider):
		return "unknown provider; choose remote or local"
	case errors.Is(err, ErrNoStats):
		return "statistics are not collected in this session"
	case errors.Is(err, context.DeadlineExceeded):
		return "the request timed out: " + err.Error()
	default:
		return err.Error()
	}
}
