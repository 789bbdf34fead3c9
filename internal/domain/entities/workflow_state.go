package entities

import (
	"maps"

	"virtual-tryon/internal/domain/valueobjects"
)

// Phase is the coarse workflow state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseReady      Phase = "ready"
	PhaseGenerating Phase = "generating"
	PhaseSucceeded  Phase = "succeeded"
	PhaseFailed     Phase = "failed"
)

// WorkflowState is the full observable state of one try-on workflow.
// Values handed out by the orchestrator are snapshots.
type WorkflowState struct {
	ID            string
	Phase         Phase
	PersonImage   *valueobjects.EncodedImage
	ClothingImage *valueobjects.EncodedImage
	ResultImage   *valueobjects.EncodedImage
	InFlight      bool
	Error         string
	SlotErrors    map[Slot]string
}

// NewWorkflowState returns the initial Idle state.
func NewWorkflowState(id string) WorkflowState {
	return WorkflowState{
		ID:    id,
		Phase: PhaseIdle,
	}
}

// Image returns the image held in slot, or nil.
func (s WorkflowState) Image(slot Slot) *valueobjects.EncodedImage {
	switch slot {
	case SlotPerson:
		return s.PersonImage
	case SlotClothing:
		return s.ClothingImage
	case SlotResult:
		return s.ResultImage
	default:
		return nil
	}
}

// HasInputs reports whether both input slots are filled.
func (s WorkflowState) HasInputs() bool {
	return s.PersonImage != nil && s.ClothingImage != nil
}

func (s WorkflowState) Submittable() bool {
	return s.HasInputs() && !s.InFlight
}

// Clone copies the state so the caller cannot reach the original map.
// Images are immutable and shared safely.
func (s WorkflowState) Clone() WorkflowState {
	out := s
	if s.SlotErrors != nil {
		out.SlotErrors = maps.Clone(s.SlotErrors)
	}
	return out
}
