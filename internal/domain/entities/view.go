package entities

import "virtual-tryon/internal/domain/valueobjects"

// ViewMode selects which of the mutually exclusive views is rendered.
type ViewMode string

const (
	ViewUpload   ViewMode = "upload"
	ViewProgress ViewMode = "progress"
	ViewResult   ViewMode = "result"
)

const (
	ProgressTitle  = "Generating your virtual try-on..."
	ProgressDetail = "This may take a moment."
	ResultTitle    = "Your Virtual Try-On!"
	StartOverLabel = "Start Over"
)

// View is the read-only projection the presentation layer renders.
type View struct {
	Mode        ViewMode
	CanGenerate bool
	// Banner is the error overlaid on whichever view is current.
	Banner     string
	Person     *valueobjects.EncodedImage
	Clothing   *valueobjects.EncodedImage
	Result     *valueobjects.EncodedImage
	SlotErrors map[Slot]string
}

func (s WorkflowState) View() View {
	v := View{
		Mode:        ViewUpload,
		CanGenerate: s.Submittable(),
		Banner:      s.Error,
		Person:      s.PersonImage,
		Clothing:    s.ClothingImage,
		Result:      s.ResultImage,
		SlotErrors:  s.Clone().SlotErrors,
	}

	switch {
	case s.InFlight:
		v.Mode = ViewProgress
	case s.ResultImage != nil:
		v.Mode = ViewResult
	}

	return v
}
