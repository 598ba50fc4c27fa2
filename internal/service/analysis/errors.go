package analysis

import (
	"errors"

	"github.com/kingst/foodlog/internal/validation"
)

var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrInvalidRequestTarget = errors.New("invalid request target")
)

// UploadError is returned when acquiring an upload slot or writing the bytes fails.
type UploadError struct {
	Reason string
}

func (e *UploadError) Error() string {
	return "upload failed: " + e.Reason
}

// AnalysisError is returned when the analyze step fails.
type AnalysisError struct {
	Reason string
}

func (e *AnalysisError) Error() string {
	return "analysis failed: " + e.Reason
}

// NetworkError wraps a transport failure at any step.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Message renders err as the single user-facing line shown in a failed workflow.
func Message(err error) string {
	var (
		uploadErr   *UploadError
		analysisErr *AnalysisError
		networkErr  *NetworkError
	)

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotAuthenticated):
		return "Not authenticated"
	case errors.Is(err, ErrInvalidRequestTarget):
		return "Invalid URL"
	case errors.Is(err, validation.ErrImageDecode):
		return "Failed to process image"
	case errors.As(err, &uploadErr):
		return "Upload failed: " + uploadErr.Reason
	case errors.As(err, &analysisErr):
		return analysisErr.Reason
	case errors.As(err, &networkErr):
		return "Network error: " + networkErr.Err.Error()
	default:
		return err.Error()
	}
}
