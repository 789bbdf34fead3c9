package usecases

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"virtual-tryon/internal/domain/entities"
	"virtual-tryon/internal/domain/valueobjects"
	"virtual-tryon/internal/observability"
)

var imageComparer = cmp.Comparer(func(a, b *valueobjects.EncodedImage) bool {
	return a.Equal(b)
})

// fakeGenerator returns a fixed outcome. When release is non-nil each call
// blocks until it is closed.
type fakeGenerator struct {
	image   *valueobjects.EncodedImage
	err     error
	release chan struct{}
	calls   atomic.Int32
}

func (g *fakeGenerator) Execute(ctx context.Context, input TryOnInput) (*TryOnOutput, error) {
	g.calls.Add(1)
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return &TryOnOutput{RequestID: "req_test", Image: g.image}, nil
}

type recordingObserver struct {
	mu     sync.Mutex
	events []observability.Event
}

func (o *recordingObserver) OnEvent(ctx context.Context, event observability.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, event)
}

func (o *recordingObserver) types() []observability.EventType {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []observability.EventType
	for _, e := range o.events {
		out = append(out, e.Type)
	}
	return out
}

func solidImage(t *testing.T, c color.Color) *valueobjects.EncodedImage {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for x := 0; x < 2; x++ {
		for y := 0; y < 2; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode PNG: %v", err)
	}
	out, err := valueobjects.NewEncodedImage(buf.Bytes())
	if err != nil {
		t.Fatalf("Failed to create image: %v", err)
	}
	return out
}

type fixtures struct {
	person   *valueobjects.EncodedImage
	clothing *valueobjects.EncodedImage
	result   *valueobjects.EncodedImage
}

func newFixtures(t *testing.T) fixtures {
	return fixtures{
		person:   solidImage(t, color.RGBA{R: 255, A: 255}),
		clothing: solidImage(t, color.RGBA{G: 255, A: 255}),
		result:   solidImage(t, color.RGBA{B: 255, A: 255}),
	}
}

func assertExclusive(t *testing.T, s entities.WorkflowState) {
	t.Helper()
	if s.ResultImage != nil && s.Error != "" {
		t.Fatalf("result and error both present: error=%q", s.Error)
	}
}

func TestWorkflow_ScenarioA_Success(t *testing.T) {
	f := newFixtures(t)
	gen := &fakeGenerator{image: f.result}
	uc := NewWorkflowUseCase(gen, WithWorkflowID("wf-a"))

	if err := uc.SelectImage(entities.SlotPerson, f.person); err != nil {
		t.Fatalf("SelectImage(person) error = %v", err)
	}
	if err := uc.SelectImage(entities.SlotClothing, f.clothing); err != nil {
		t.Fatalf("SelectImage(clothing) error = %v", err)
	}
	if got := uc.State().Phase; got != entities.PhaseReady {
		t.Fatalf("Phase = %s, want ready", got)
	}

	if err := uc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	want := entities.WorkflowState{
		ID:            "wf-a",
		Phase:         entities.PhaseSucceeded,
		PersonImage:   f.person,
		ClothingImage: f.clothing,
		ResultImage:   f.result,
	}
	if diff := cmp.Diff(want, uc.State(), imageComparer); diff != "" {
		t.Errorf("State() mismatch (-want +got):\n%s", diff)
	}
	if gen.calls.Load() != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls.Load())
	}
}

func TestWorkflow_ScenarioB_GuardWithNoImages(t *testing.T) {
	gen := &fakeGenerator{}
	uc := NewWorkflowUseCase(gen)

	err := uc.Generate(context.Background())
	if !errors.Is(err, entities.ErrMissingImages) {
		t.Fatalf("Generate() error = %v, want ErrMissingImages", err)
	}

	state := uc.State()
	if state.Phase != entities.PhaseIdle {
		t.Errorf("Phase = %s, want idle", state.Phase)
	}
	if state.Error != entities.GuardMessage {
		t.Errorf("Error = %q, want %q", state.Error, entities.GuardMessage)
	}
	if state.InFlight {
		t.Error("InFlight should be false")
	}
	if gen.calls.Load() != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls.Load())
	}
}

func TestWorkflow_ScenarioC_Failure(t *testing.T) {
	f := newFixtures(t)
	gen := &fakeGenerator{err: errors.New("quota exceeded")}
	uc := NewWorkflowUseCase(gen)

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)

	if err := uc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	state := uc.State()
	if !strings.Contains(state.Error, "quota exceeded") {
		t.Errorf("Error = %q, want it to contain %q", state.Error, "quota exceeded")
	}
	if !strings.HasPrefix(state.Error, "Failed to generate image. ") {
		t.Errorf("Error = %q, want failure prefix", state.Error)
	}
	if state.ResultImage != nil {
		t.Error("ResultImage should be absent")
	}
	if state.InFlight {
		t.Error("InFlight should be false")
	}
	if state.Phase != entities.PhaseFailed {
		t.Errorf("Phase = %s, want failed", state.Phase)
	}
}

func TestWorkflow_ScenarioD_ResetAfterSuccess(t *testing.T) {
	f := newFixtures(t)
	uc := NewWorkflowUseCase(&fakeGenerator{image: f.result}, WithWorkflowID("wf-d"))

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)
	if err := uc.Generate(context.Background()); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if err := uc.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	if diff := cmp.Diff(entities.NewWorkflowState("wf-d"), uc.State(), imageComparer); diff != "" {
		t.Errorf("State() after reset mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkflow_ScenarioE_RemovedImageFailsGuard(t *testing.T) {
	f := newFixtures(t)
	gen := &fakeGenerator{image: f.result}
	uc := NewWorkflowUseCase(gen)

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.RemoveImage(entities.SlotPerson)

	err := uc.Generate(context.Background())
	if !errors.Is(err, entities.ErrMissingImages) {
		t.Fatalf("Generate() error = %v, want ErrMissingImages", err)
	}
	if uc.State().Error != entities.GuardMessage {
		t.Errorf("Error = %q, want guard message", uc.State().Error)
	}
	if gen.calls.Load() != 0 {
		t.Errorf("generator called %d times, want 0", gen.calls.Load())
	}
}

func TestWorkflow_SelectionNeverTouchesError(t *testing.T) {
	f := newFixtures(t)
	uc := NewWorkflowUseCase(&fakeGenerator{err: errors.New("boom")})

	_ = uc.Generate(context.Background())
	before := uc.State().Error

	steps := []func() error{
		func() error { return uc.SelectImage(entities.SlotPerson, f.person) },
		func() error { return uc.RemoveImage(entities.SlotClothing) },
		func() error { return uc.SelectImage(entities.SlotClothing, f.clothing) },
		func() error { return uc.RejectImage(entities.SlotPerson, errors.New("bad file")) },
		func() error { return uc.RemoveImage(entities.SlotPerson) },
		func() error { return uc.SelectImage(entities.SlotPerson, f.person) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d error = %v", i, err)
		}
		state := uc.State()
		if state.Error != before {
			t.Fatalf("step %d changed Error from %q to %q", i, before, state.Error)
		}
		assertExclusive(t, state)
	}
}

func TestWorkflow_ResultAndErrorAreExclusive(t *testing.T) {
	f := newFixtures(t)
	gen := &fakeGenerator{image: f.result}
	uc := NewWorkflowUseCase(gen)

	states, unsubscribe := uc.Subscribe()
	defer unsubscribe()

	var (
		wg       sync.WaitGroup
		observed []entities.WorkflowState
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for s := range states {
			observed = append(observed, s)
		}
	}()

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)
	_ = uc.Generate(context.Background())

	_ = uc.RemoveImage(entities.SlotClothing)
	_ = uc.Generate(context.Background()) // guard after success clears the result
	assertExclusive(t, uc.State())
	if got := uc.State().Phase; got != entities.PhaseFailed {
		t.Errorf("Phase after guard in succeeded = %s, want failed", got)
	}

	gen.err = errors.New("model overloaded")
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)
	_ = uc.Generate(context.Background())

	gen.err = nil
	_ = uc.Generate(context.Background())

	unsubscribe()
	wg.Wait()

	for _, s := range observed {
		assertExclusive(t, s)
	}
	assertExclusive(t, uc.State())
	if uc.State().ResultImage == nil {
		t.Error("regenerating from failed should succeed")
	}
}

func TestWorkflow_ResetIsIdempotent(t *testing.T) {
	f := newFixtures(t)
	uc := NewWorkflowUseCase(&fakeGenerator{err: errors.New("boom")})

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)
	_ = uc.RejectImage(entities.SlotPerson, errors.New("bad"))
	_ = uc.Generate(context.Background())

	if err := uc.Reset(); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}
	once := uc.State()

	if err := uc.Reset(); err != nil {
		t.Fatalf("second Reset() error = %v", err)
	}
	if diff := cmp.Diff(once, uc.State(), imageComparer); diff != "" {
		t.Errorf("second reset changed state (-once +twice):\n%s", diff)
	}
	if diff := cmp.Diff(entities.NewWorkflowState(once.ID), once, imageComparer); diff != "" {
		t.Errorf("reset state is not initial (-want +got):\n%s", diff)
	}
}

func TestWorkflow_InFlightRejectsSubmitAndReset(t *testing.T) {
	f := newFixtures(t)
	gen := &fakeGenerator{image: f.result, release: make(chan struct{})}
	uc := NewWorkflowUseCase(gen)

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)

	done, err := uc.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	inFlight := uc.State()
	if !inFlight.InFlight || inFlight.Phase != entities.PhaseGenerating {
		t.Fatalf("state after Submit = %+v, want in flight", inFlight)
	}
	if got := uc.View().Mode; got != entities.ViewProgress {
		t.Errorf("View().Mode = %s, want progress", got)
	}
	if uc.View().CanGenerate {
		t.Error("CanGenerate should be false while in flight")
	}

	if _, err := uc.Submit(context.Background()); !errors.Is(err, entities.ErrGenerationInFlight) {
		t.Errorf("second Submit() error = %v, want ErrGenerationInFlight", err)
	}
	if err := uc.Reset(); !errors.Is(err, entities.ErrGenerationInFlight) {
		t.Errorf("Reset() error = %v, want ErrGenerationInFlight", err)
	}
	// 生成中の再実行はバナーを出さない
	if got := uc.State().Error; got != "" {
		t.Errorf("Error after in-flight rejection = %q, want empty", got)
	}
	if diff := cmp.Diff(inFlight, uc.State(), imageComparer); diff != "" {
		t.Errorf("rejected triggers changed state (-want +got):\n%s", diff)
	}

	close(gen.release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not resolve")
	}

	if gen.calls.Load() != 1 {
		t.Errorf("generator called %d times, want 1", gen.calls.Load())
	}
	if got := uc.View().Mode; got != entities.ViewResult {
		t.Errorf("View().Mode = %s, want result", got)
	}
}

func TestWorkflow_SubmitClearsPreviousOutcome(t *testing.T) {
	f := newFixtures(t)
	gen := &fakeGenerator{err: errors.New("first attempt failed")}
	uc := NewWorkflowUseCase(gen)

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)
	_ = uc.Generate(context.Background())
	if uc.State().Error == "" {
		t.Fatal("expected an error after the failed attempt")
	}

	gen.err = nil
	gen.image = f.result
	gen.release = make(chan struct{})
	done, err := uc.Submit(context.Background())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if s := uc.State(); s.Error != "" || s.ResultImage != nil {
		t.Errorf("submission should clear error and result, got error=%q result=%v", s.Error, s.ResultImage != nil)
	}

	close(gen.release)
	<-done
}

type panicGenerator struct{}

func (panicGenerator) Execute(ctx context.Context, input TryOnInput) (*TryOnOutput, error) {
	var m map[string]int
	m["boom"]++
	return nil, nil
}

func TestWorkflow_PanickingGeneratorFails(t *testing.T) {
	f := newFixtures(t)
	obs := &recordingObserver{}
	uc := NewWorkflowUseCase(panicGenerator{}, WithObserver(obs))

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.Generate(ctx); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	state := uc.State()
	if state.InFlight {
		t.Error("InFlight should be false")
	}
	if state.Phase != entities.PhaseFailed {
		t.Errorf("Phase = %s, want failed", state.Phase)
	}
	if !strings.HasPrefix(state.Error, "Failed to generate image. ") {
		t.Errorf("Error = %q, want the failure prefix", state.Error)
	}
	if state.ResultImage != nil {
		t.Error("ResultImage should be nil")
	}

	types := obs.types()
	if len(types) == 0 || types[len(types)-1] != observability.EventGenerateFailed {
		t.Errorf("events = %v, want last %s", types, observability.EventGenerateFailed)
	}

	// パニック後も再実行できる
	if err := uc.Reset(); err != nil {
		t.Errorf("Reset() error = %v", err)
	}
}

func TestWorkflow_EmptyOutputIsUnknownFailure(t *testing.T) {
	f := newFixtures(t)
	uc := NewWorkflowUseCase(&fakeGenerator{})

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)
	_ = uc.Generate(context.Background())

	state := uc.State()
	if state.Phase != entities.PhaseFailed || state.Error == "" {
		t.Errorf("state = phase %s error %q, want failed with message", state.Phase, state.Error)
	}
}

func TestWorkflow_InvalidSlot(t *testing.T) {
	f := newFixtures(t)
	uc := NewWorkflowUseCase(&fakeGenerator{})

	if err := uc.SelectImage(entities.SlotResult, f.result); !errors.Is(err, entities.ErrInvalidSlot) {
		t.Errorf("SelectImage(result) error = %v, want ErrInvalidSlot", err)
	}
	if err := uc.RemoveImage(entities.SlotResult); !errors.Is(err, entities.ErrInvalidSlot) {
		t.Errorf("RemoveImage(result) error = %v, want ErrInvalidSlot", err)
	}
	if err := uc.RejectImage("hat", nil); !errors.Is(err, entities.ErrInvalidSlot) {
		t.Errorf("RejectImage(hat) error = %v, want ErrInvalidSlot", err)
	}
}

func TestWorkflow_RejectImageKeepsSlot(t *testing.T) {
	f := newFixtures(t)
	uc := NewWorkflowUseCase(&fakeGenerator{})

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.RejectImage(entities.SlotPerson, errors.New("unsupported image format"))

	state := uc.State()
	if !state.PersonImage.Equal(f.person) {
		t.Error("decode failure replaced the previous image")
	}
	if !strings.Contains(state.SlotErrors[entities.SlotPerson], "person") {
		t.Errorf("SlotErrors[person] = %q, want a person-scoped message", state.SlotErrors[entities.SlotPerson])
	}

	_ = uc.SelectImage(entities.SlotPerson, f.clothing)
	if _, ok := uc.State().SlotErrors[entities.SlotPerson]; ok {
		t.Error("a successful selection should clear the slot error")
	}
}

func TestWorkflow_StateIsSnapshot(t *testing.T) {
	uc := NewWorkflowUseCase(&fakeGenerator{})
	_ = uc.RejectImage(entities.SlotClothing, errors.New("bad"))

	s := uc.State()
	s.SlotErrors[entities.SlotClothing] = "tampered"
	s.Error = "tampered"

	if got := uc.State(); got.Error != "" || got.SlotErrors[entities.SlotClothing] == "tampered" {
		t.Error("mutating a snapshot leaked into the workflow")
	}
}

func TestWorkflow_EmitsEvents(t *testing.T) {
	f := newFixtures(t)
	obs := &recordingObserver{}
	uc := NewWorkflowUseCase(&fakeGenerator{image: f.result}, WithObserver(obs))

	_ = uc.Generate(context.Background())
	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)
	_ = uc.Generate(context.Background())
	_ = uc.Reset()

	want := []observability.EventType{
		observability.EventGuardRejected,
		observability.EventImageSelected,
		observability.EventImageSelected,
		observability.EventGenerateStart,
		observability.EventGenerateSucceeded,
		observability.EventReset,
	}
	if diff := cmp.Diff(want, obs.types()); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestWorkflow_GenerateHonoursContext(t *testing.T) {
	f := newFixtures(t)
	gen := &fakeGenerator{image: f.result, release: make(chan struct{})}
	uc := NewWorkflowUseCase(gen)

	_ = uc.SelectImage(entities.SlotPerson, f.person)
	_ = uc.SelectImage(entities.SlotClothing, f.clothing)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := uc.Generate(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Generate() error = %v, want DeadlineExceeded", err)
	}

	// The generator observes the same context and resolves as a failure.
	deadline := time.Now().Add(5 * time.Second)
	for uc.State().InFlight {
		if time.Now().After(deadline) {
			t.Fatal("generation did not resolve after cancellation")
		}
		time.Sleep(time.Millisecond)
	}
	if uc.State().Phase != entities.PhaseFailed {
		t.Errorf("Phase = %s, want failed", uc.State().Phase)
	}
}
