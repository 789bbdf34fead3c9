package cli

import (
	"fmt"
	"io"

	"virtual-tryon/internal/domain/entities"
	"virtual-tryon/internal/domain/valueobjects"
)

const title = "Virtual Try-On"

// Presenter renders a View as text. It never touches workflow state.
type Presenter struct {
	out io.Writer
}

func NewPresenter(out io.Writer) *Presenter {
	return &Presenter{out: out}
}

// Render writes the view. savedPath is shown on the result view when the
// result has been written to disk.
func (p *Presenter) Render(view entities.View, savedPath string) {
	fmt.Fprintf(p.out, "\n== %s ==\n", title)

	if view.Banner != "" {
		fmt.Fprintf(p.out, "Error: %s\n", view.Banner)
	}

	switch view.Mode {
	case entities.ViewProgress:
		fmt.Fprintln(p.out, entities.ProgressTitle)
		fmt.Fprintln(p.out, entities.ProgressDetail)
	case entities.ViewResult:
		fmt.Fprintln(p.out, entities.ResultTitle)
		fmt.Fprintf(p.out, "  Result:   %s\n", describe(view.Result))
		if savedPath != "" {
			fmt.Fprintf(p.out, "  Saved to: %s\n", savedPath)
		}
	default:
		p.renderSlot("Person", entities.SlotPerson, view.Person, view.SlotErrors)
		p.renderSlot("Clothing", entities.SlotClothing, view.Clothing, view.SlotErrors)
		if view.CanGenerate {
			fmt.Fprintln(p.out, "  Generate: ready")
		} else {
			fmt.Fprintln(p.out, "  Generate: upload both images to enable")
		}
	}
}

func (p *Presenter) renderSlot(label string, slot entities.Slot, img *valueobjects.EncodedImage, slotErrors map[entities.Slot]string) {
	fmt.Fprintf(p.out, "  %-9s %s\n", label+":", describe(img))
	if msg := slotErrors[slot]; msg != "" {
		fmt.Fprintf(p.out, "            ! %s\n", msg)
	}
}

func describe(img *valueobjects.EncodedImage) string {
	if img == nil {
		return "(none)"
	}
	return fmt.Sprintf("%s, %s", img.MimeType(), humanSize(img.Size()))
}

func humanSize(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}
