package entities

import "errors"

var (
	// Workflow errors
	ErrMissingImages      = errors.New("both a person and a clothing image are required")
	ErrGenerationInFlight = errors.New("a generation is already in progress")
	ErrInvalidSlot        = errors.New("invalid image slot")

	// Intake errors
	ErrNoFileChosen = errors.New("no file chosen")
	ErrDecodeFailed = errors.New("image could not be decoded")

	// Generation errors
	ErrNoImagesGenerated = errors.New("no images generated")
	ErrServiceBusy       = errors.New("service temporarily unavailable due to high demand")

	// Journal errors
	ErrRequestNotFound = errors.New("request not found")
	ErrResultNotFound  = errors.New("result not found")
)
