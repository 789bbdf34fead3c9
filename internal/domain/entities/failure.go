package entities

const (
	GuardMessage          = "Please upload both a person and a clothing item."
	failurePrefix         = "Failed to generate image. "
	unknownFailureMessage = "An unknown error occurred."
)

// GenerationFailure is the outcome of a failed generation call: either a
// reason extracted from the error, or unknown.
type GenerationFailure struct {
	Reason  string
	Unknown bool
}

// FailureFromError extracts the failure reason once, at the boundary
// between the generation call and the workflow.
func FailureFromError(err error) GenerationFailure {
	if err == nil {
		return GenerationFailure{Unknown: true}
	}
	msg := err.Error()
	if msg == "" {
		return GenerationFailure{Unknown: true}
	}
	return GenerationFailure{Reason: msg}
}

// Message is always non-empty.
func (f GenerationFailure) Message() string {
	if f.Unknown || f.Reason == "" {
		return failurePrefix + unknownFailureMessage
	}
	return failurePrefix + f.Reason
}

// DecodeFailureMessage is the slot-scoped message shown when a selected
// file cannot be read as an image.
func DecodeFailureMessage(slot Slot, err error) string {
	msg := "Could not read the " + slot.Label() + " image."
	if err == nil {
		return msg
	}
	return msg + " " + err.Error()
}
