package provider

import (
	"errors"
	"fmt"
)

var (
	ErrAuthFailed        = errors.New("authentication failed")
	ErrBuildNotFound     = errors.New("build not found")
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrUpstream          = errors.New("upstream request failed")
	ErrRateLimited       = errors.New("rate limited")
	ErrInvalidIdentifier = errors.New("invalid build identifier")
)

// UserError wraps errors with user-friendly messages
type UserError struct {
	Message string
	Hint    string
	Err     error
}

func (e *UserError) Error() string {
	msg := e.Message
	if e.Hint != "" {
		msg += "\n\nHint: " + e.Hint
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n\nDetails: %v", e.Err)
	}
	return msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// WrapError converts pipeline errors to user-friendly messages
func WrapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrInvalidIdentifier) {
		return &UserError{
			Message: "Invalid build identifier",
			Hint:    "Use a positive pull request number (--pr 1276) or a branch name (--branch master).",
			Err:     err,
		}
	}

	if errors.Is(err, ErrAuthFailed) {
		return &UserError{
			Message: "Authentication failed",
			Hint:    "Check that GITHUB_TOKEN is set and may read Actions artifacts of the repository.",
			Err:     err,
		}
	}

	if errors.Is(err, ErrBuildNotFound) {
		return &UserError{
			Message: "Build not found",
			Hint:    "No completed and successful run exists for this pull request or branch yet.",
			Err:     err,
		}
	}

	if errors.Is(err, ErrArtifactNotFound) {
		return &UserError{
			Message: "Artifact not found",
			Hint:    "The run succeeded but did not upload the expected artifact, or it has expired.",
			Err:     err,
		}
	}

	return err
}
