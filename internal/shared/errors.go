package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Client-side file checks, surfaced before any request is made
	ErrValidation        = fmt.Errorf("validation failed")
	ErrFileTooLarge      = fmt.Errorf("file too large")
	ErrUnsupportedFormat = fmt.Errorf("unsupported file format")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrUpload             = fmt.Errorf("upload failed")
	ErrStatus             = fmt.Errorf("status check failed")
	ErrDownload           = fmt.Errorf("download failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrJobNotFound        = fmt.Errorf("job not found")
	ErrJobFailed          = fmt.Errorf("processing failed")

	// Push channel errors; logged, never shown to the user
	ErrChannel          = fmt.Errorf("status channel error")
	ErrChannelExhausted = fmt.Errorf("status channel reconnect attempts exhausted")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
