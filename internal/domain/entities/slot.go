package entities

import "fmt"

// Slot names one of the image-holding fields of a workflow.
type Slot string

const (
	SlotPerson   Slot = "person"
	SlotClothing Slot = "clothing"
	SlotResult   Slot = "result"
)

// InputSlots are the slots a user can fill, in display order.
var InputSlots = []Slot{SlotPerson, SlotClothing}

// ParseSlot accepts the user-selectable slots only.
func ParseSlot(s string) (Slot, error) {
	switch Slot(s) {
	case SlotPerson, SlotClothing:
		return Slot(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidSlot, s)
	}
}

func (s Slot) IsInput() bool {
	return s == SlotPerson || s == SlotClothing
}

// Label is the human-readable name used in messages.
func (s Slot) Label() string {
	switch s {
	case SlotPerson:
		return "person"
	case SlotClothing:
		return "clothing item"
	case SlotResult:
		return "result"
	default:
		return string(s)
	}
}
