package stores

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks input the stores refuse to accept.
	ErrValidation = errors.New("validation error")
	// ErrMissingFields is returned when a password entry lacks service, username or password.
	ErrMissingFields = fmt.Errorf("%w: service, username and password are required", ErrValidation)
	// ErrNotPDF is returned for uploads whose declared media type is not application/pdf.
	ErrNotPDF = fmt.Errorf("%w: only PDF files are allowed", ErrValidation)
	// ErrTooLarge is returned for uploads above MaxUploadSize.
	ErrTooLarge = fmt.Errorf("%w: file exceeds the 50MB limit", ErrValidation)
	// ErrBadFilename is returned for upload names that cannot be stored unchanged.
	ErrBadFilename = fmt.Errorf("%w: invalid filename", ErrValidation)
	// ErrNotFound is returned for unknown password ids and stored filenames.
	ErrNotFound = errors.New("not found")
)
