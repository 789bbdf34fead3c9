package usecases

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"virtual-tryon/internal/domain/entities"
	"virtual-tryon/internal/domain/valueobjects"
	"virtual-tryon/internal/observability"
)

const workflowSource = "workflow"

type WorkflowOption func(*WorkflowUseCase)

// WithWorkflowID overrides the generated workflow ID.
func WithWorkflowID(id string) WorkflowOption {
	return func(uc *WorkflowUseCase) {
		if id != "" {
			uc.state.ID = id
		}
	}
}

func WithObserver(obs observability.Observer) WorkflowOption {
	return func(uc *WorkflowUseCase) {
		if obs != nil {
			uc.observer = obs
		}
	}
}

// WorkflowUseCase owns the state of one try-on workflow. All methods are
// safe for concurrent use. State only changes through the trigger methods.
type WorkflowUseCase struct {
	generator Generator
	observer  observability.Observer

	mu          sync.Mutex
	state       entities.WorkflowState
	subscribers map[int]chan entities.WorkflowState
	nextSub     int
}

func NewWorkflowUseCase(generator Generator, opts ...WorkflowOption) *WorkflowUseCase {
	uc := &WorkflowUseCase{
		generator:   generator,
		observer:    observability.NoOpObserver{},
		state:       entities.NewWorkflowState(uuid.Must(uuid.NewV7()).String()),
		subscribers: make(map[int]chan entities.WorkflowState),
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func (uc *WorkflowUseCase) ID() string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.state.ID
}

// State returns a snapshot of the current state.
func (uc *WorkflowUseCase) State() entities.WorkflowState {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.state.Clone()
}

func (uc *WorkflowUseCase) View() entities.View {
	return uc.State().View()
}

// Subscribe returns a channel that receives a snapshot after every
// transition. Slow readers only see the latest snapshot. The returned func
// unsubscribes and closes the channel.
func (uc *WorkflowUseCase) Subscribe() (<-chan entities.WorkflowState, func()) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	id := uc.nextSub
	uc.nextSub++
	ch := make(chan entities.WorkflowState, 1)
	uc.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			uc.mu.Lock()
			defer uc.mu.Unlock()
			delete(uc.subscribers, id)
			close(ch)
		})
	}
}

// SelectImage puts img into an input slot, replacing any previous image
// and clearing the slot's decode error. The workflow error is untouched.
func (uc *WorkflowUseCase) SelectImage(slot entities.Slot, img *valueobjects.EncodedImage) error {
	if !slot.IsInput() {
		return fmt.Errorf("%w: %q", entities.ErrInvalidSlot, slot)
	}
	if img == nil {
		return fmt.Errorf("image is required")
	}

	uc.mu.Lock()
	uc.setSlotLocked(slot, img)
	delete(uc.state.SlotErrors, slot)
	uc.recomputePhaseLocked()
	id := uc.state.ID
	uc.publishLocked()
	uc.mu.Unlock()

	uc.emit(observability.EventImageSelected, observability.LevelInfo, map[string]any{
		"workflow_id": id,
		"slot":        string(slot),
		"mime_type":   img.MimeType(),
		"size":        img.Size(),
	})
	return nil
}

// RejectImage records a decode failure for slot. The slot keeps whatever
// image it held before.
func (uc *WorkflowUseCase) RejectImage(slot entities.Slot, err error) error {
	if !slot.IsInput() {
		return fmt.Errorf("%w: %q", entities.ErrInvalidSlot, slot)
	}

	msg := entities.DecodeFailureMessage(slot, err)

	uc.mu.Lock()
	if uc.state.SlotErrors == nil {
		uc.state.SlotErrors = make(map[entities.Slot]string)
	}
	uc.state.SlotErrors[slot] = msg
	id := uc.state.ID
	uc.publishLocked()
	uc.mu.Unlock()

	uc.emit(observability.EventImageRejected, observability.LevelWarning, map[string]any{
		"workflow_id": id,
		"slot":        string(slot),
		"error":       msg,
	})
	return nil
}

func (uc *WorkflowUseCase) RemoveImage(slot entities.Slot) error {
	if !slot.IsInput() {
		return fmt.Errorf("%w: %q", entities.ErrInvalidSlot, slot)
	}

	uc.mu.Lock()
	uc.setSlotLocked(slot, nil)
	delete(uc.state.SlotErrors, slot)
	uc.recomputePhaseLocked()
	id := uc.state.ID
	uc.publishLocked()
	uc.mu.Unlock()

	uc.emit(observability.EventImageRemoved, observability.LevelInfo, map[string]any{
		"workflow_id": id,
		"slot":        string(slot),
	})
	return nil
}

// Submit checks the guards and starts the generation call in the
// background. The returned channel is closed once the call has resolved
// and the outcome is visible in State. On a guard failure no call is made.
func (uc *WorkflowUseCase) Submit(ctx context.Context) (<-chan struct{}, error) {
	uc.mu.Lock()

	if uc.state.InFlight {
		uc.mu.Unlock()
		return nil, entities.ErrGenerationInFlight
	}

	if !uc.state.HasInputs() {
		uc.state.Error = entities.GuardMessage
		if uc.state.ResultImage != nil {
			// error present, result absent
			uc.state.ResultImage = nil
			uc.state.Phase = entities.PhaseFailed
		}
		data := map[string]any{
			"workflow_id":  uc.state.ID,
			"has_person":   uc.state.PersonImage != nil,
			"has_clothing": uc.state.ClothingImage != nil,
		}
		uc.publishLocked()
		uc.mu.Unlock()

		uc.emit(observability.EventGuardRejected, observability.LevelWarning, data)
		return nil, entities.ErrMissingImages
	}

	uc.state.InFlight = true
	uc.state.Phase = entities.PhaseGenerating
	uc.state.Error = ""
	uc.state.ResultImage = nil
	input := TryOnInput{
		WorkflowID: uc.state.ID,
		Person:     uc.state.PersonImage,
		Clothing:   uc.state.ClothingImage,
	}
	uc.publishLocked()
	uc.mu.Unlock()

	uc.emit(observability.EventGenerateStart, observability.LevelInfo, map[string]any{
		"workflow_id": input.WorkflowID,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)

		var (
			output *TryOnOutput
			err    error
		)
		func() {
			defer func() {
				if r := recover(); r != nil {
					output, err = nil, fmt.Errorf("generation panicked: %v", r)
				}
			}()
			output, err = uc.generator.Execute(ctx, input)
		}()
		uc.resolve(ctx, output, err)
	}()

	return done, nil
}

// Generate submits and waits for the outcome. It returns the guard error,
// ctx.Err() if ctx ends first, or nil once the call has resolved. A failed
// generation is reported through State, not as an error.
func (uc *WorkflowUseCase) Generate(ctx context.Context) error {
	done, err := uc.Submit(ctx)
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reset returns the workflow to the initial Idle state, keeping its ID.
// It is refused while a generation is in flight.
func (uc *WorkflowUseCase) Reset() error {
	uc.mu.Lock()
	if uc.state.InFlight {
		uc.mu.Unlock()
		return entities.ErrGenerationInFlight
	}

	uc.state = entities.NewWorkflowState(uc.state.ID)
	id := uc.state.ID
	uc.publishLocked()
	uc.mu.Unlock()

	uc.emit(observability.EventReset, observability.LevelInfo, map[string]any{
		"workflow_id": id,
	})
	return nil
}

func (uc *WorkflowUseCase) resolve(ctx context.Context, output *TryOnOutput, err error) {
	if err == nil && (output == nil || output.Image == nil) {
		err = entities.ErrNoImagesGenerated
	}

	uc.mu.Lock()
	uc.state.InFlight = false
	id := uc.state.ID
	if err != nil {
		uc.state.Phase = entities.PhaseFailed
		uc.state.ResultImage = nil
		uc.state.Error = entities.FailureFromError(err).Message()
	} else {
		uc.state.Phase = entities.PhaseSucceeded
		uc.state.ResultImage = output.Image
		uc.state.Error = ""
	}
	msg := uc.state.Error
	uc.publishLocked()
	uc.mu.Unlock()

	if err != nil {
		observability.Emit(ctx, uc.observer, workflowSource, observability.EventGenerateFailed, observability.LevelError, map[string]any{
			"workflow_id": id,
			"error":       err.Error(),
			"message":     msg,
		})
		return
	}

	observability.Emit(ctx, uc.observer, workflowSource, observability.EventGenerateSucceeded, observability.LevelInfo, map[string]any{
		"workflow_id": id,
		"request_id":  string(output.RequestID),
		"mime_type":   output.Image.MimeType(),
		"size":        output.Image.Size(),
	})
}

func (uc *WorkflowUseCase) setSlotLocked(slot entities.Slot, img *valueobjects.EncodedImage) {
	switch slot {
	case entities.SlotPerson:
		uc.state.PersonImage = img
	case entities.SlotClothing:
		uc.state.ClothingImage = img
	}
}

// Idle and Ready follow the input slots. Other phases only change on
// submission, resolution or reset.
func (uc *WorkflowUseCase) recomputePhaseLocked() {
	switch uc.state.Phase {
	case entities.PhaseIdle, entities.PhaseReady:
		if uc.state.HasInputs() {
			uc.state.Phase = entities.PhaseReady
		} else {
			uc.state.Phase = entities.PhaseIdle
		}
	}
}

func (uc *WorkflowUseCase) publishLocked() {
	if len(uc.subscribers) == 0 {
		return
	}
	snapshot := uc.state.Clone()
	for _, ch := range uc.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (uc *WorkflowUseCase) emit(typ observability.EventType, level observability.Level, data map[string]any) {
	observability.Emit(context.Background(), uc.observer, workflowSource, typ, level, data)
}
