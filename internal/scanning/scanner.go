package scanning

import (
	"errors"
	"fmt"
)

// Upload is a raw file received from the user
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Image is a validated upload ready for the vision model
type Image struct {
	Filename string `json:"filename"`
	MIMEType string `json:"mime_type"`
	Data     []byte `json:"data"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Hash     string `json:"hash"` // SHA-256 of Data
}

var (
	// ErrInvalidImage matches every *InvalidImageError
	ErrInvalidImage = errors.New("invalid image")

	// ErrExtractionService is returned when the vision model could not be reached or rejected the call
	ErrExtractionService = errors.New("ingredient extraction service failed")

	// ErrExtractionParse matches every *ExtractionParseError
	ErrExtractionParse = errors.New("could not parse ingredient list")

	// ErrNoIngredients is returned when the model found no food in the images
	ErrNoIngredients = errors.New("no ingredients recognized in the images")

	// ErrNoImages is returned when Extract is called without images
	ErrNoImages = errors.New("at least one image is required")
)

// InvalidImageError describes why an upload was rejected
type InvalidImageError struct {
	Index    int
	Filename string
	Reason   string
	Err      error
}

func (e *InvalidImageError) Error() string {
	msg := fmt.Sprintf("image %d", e.Index+1)
	if e.Filename != "" {
		msg += fmt.Sprintf(" (%s)", e.Filename)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidImageError) Unwrap() error {
	return e.Err
}

func (e *InvalidImageError) Is(target error) bool {
	return target == ErrInvalidImage
}

// ExtractionParseError is returned when the model reply is not a usable
// ingredient list. Raw holds the reply for diagnostics and must not be shown
// to end users.
type ExtractionParseError struct {
	Raw string
	Err error
}

func (e *ExtractionParseError) Error() string {
	return fmt.Sprintf("%s: %v", ErrExtractionParse, e.Err)
}

func (e *ExtractionParseError) Unwrap() error {
	return e.Err
}

func (e *ExtractionParseError) Is(target error) bool {
	return target == ErrExtractionParse
}
