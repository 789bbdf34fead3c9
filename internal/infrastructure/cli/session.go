package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	appservices "virtual-tryon/internal/application/services"
	"virtual-tryon/internal/domain/entities"
	"virtual-tryon/internal/domain/valueobjects"
)

// Workflow is the slice of the orchestrator the session drives.
type Workflow interface {
	appservices.ImageSink
	ID() string
	View() entities.View
	State() entities.WorkflowState
	RemoveImage(slot entities.Slot) error
	Submit(ctx context.Context) (<-chan struct{}, error)
	Generate(ctx context.Context) error
	Reset() error
}

type action int

const (
	actionSelectPerson action = iota
	actionRemovePerson
	actionSelectClothing
	actionRemoveClothing
	actionGenerate
	actionSaveCopy
	actionStartOver
	actionQuit
)

type menuItem struct {
	label  string
	action action
}

type SessionOption func(*Session)

// WithOutputDir sets where results are saved. Defaults to the working directory.
func WithOutputDir(dir string) SessionOption {
	return func(s *Session) {
		if dir != "" {
			s.outputDir = dir
		}
	}
}

// WithIntakeOptions is applied to the per-slot intake services.
func WithIntakeOptions(opts ...appservices.IntakeOption) SessionOption {
	return func(s *Session) {
		s.intakeOpts = append(s.intakeOpts, opts...)
	}
}

// Session is the terminal front end of one workflow. It changes state only
// through the workflow's trigger methods.
type Session struct {
	workflow   Workflow
	driver     PromptDriver
	presenter  *Presenter
	outputDir  string
	intakeOpts []appservices.IntakeOption
	intakes    map[entities.Slot]*appservices.IntakeService
	savedPath  string
}

func NewSession(workflow Workflow, driver PromptDriver, presenter *Presenter, opts ...SessionOption) *Session {
	s := &Session{
		workflow:  workflow,
		driver:    driver,
		presenter: presenter,
		outputDir: ".",
	}
	for _, opt := range opts {
		opt(s)
	}

	s.intakes = make(map[entities.Slot]*appservices.IntakeService, len(entities.InputSlots))
	for _, slot := range entities.InputSlots {
		s.intakes[slot] = appservices.NewIntakeService(slot, workflow, s.intakeOpts...)
	}
	return s
}

// Run is the interactive loop. It returns nil when the user quits or
// aborts the prompt.
func (s *Session) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		view := s.workflow.View()
		s.presenter.Render(view, s.savedPath)

		items := menu(view)
		labels := make([]string, len(items))
		for i, item := range items {
			labels[i] = item.label
		}

		idx, err := s.driver.Select(ctx, SelectConfig{Message: "What would you like to do?", Options: labels})
		if errors.Is(err, ErrAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		if idx < 0 || idx >= len(items) {
			continue
		}

		quit, err := s.perform(ctx, items[idx].action)
		if errors.Is(err, ErrAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		if quit {
			return nil
		}
	}
}

// menu lists the actions the view allows.
func menu(view entities.View) []menuItem {
	var items []menuItem

	switch view.Mode {
	case entities.ViewResult:
		items = append(items,
			menuItem{"Save a copy", actionSaveCopy},
			menuItem{entities.StartOverLabel, actionStartOver},
		)
	case entities.ViewUpload:
		items = append(items, slotItems(view.Person, "person", actionSelectPerson, actionRemovePerson)...)
		items = append(items, slotItems(view.Clothing, "clothing", actionSelectClothing, actionRemoveClothing)...)
		if view.CanGenerate {
			items = append(items, menuItem{"Generate", actionGenerate})
		}
	}

	return append(items, menuItem{"Quit", actionQuit})
}

func slotItems(img *valueobjects.EncodedImage, noun string, selectAction, removeAction action) []menuItem {
	if img == nil {
		return []menuItem{{"Select " + noun + " image", selectAction}}
	}
	return []menuItem{
		{"Change " + noun + " image", selectAction},
		{"Remove " + noun + " image", removeAction},
	}
}

func (s *Session) perform(ctx context.Context, a action) (bool, error) {
	switch a {
	case actionSelectPerson:
		return false, s.promptImage(ctx, entities.SlotPerson)
	case actionSelectClothing:
		return false, s.promptImage(ctx, entities.SlotClothing)
	case actionRemovePerson:
		return false, s.workflow.RemoveImage(entities.SlotPerson)
	case actionRemoveClothing:
		return false, s.workflow.RemoveImage(entities.SlotClothing)
	case actionGenerate:
		return false, s.generate(ctx)
	case actionSaveCopy:
		return false, s.saveCopy(ctx)
	case actionStartOver:
		if err := s.workflow.Reset(); err != nil {
			return false, err
		}
		s.savedPath = ""
		return false, nil
	default:
		return true, nil
	}
}

func (s *Session) promptImage(ctx context.Context, slot entities.Slot) error {
	path, err := s.driver.Input(ctx, InputConfig{
		Message: fmt.Sprintf("Path to the %s image (png, jpg or webp; empty to cancel):", slot.Label()),
		Suggest: suggestImages,
	})
	if err != nil {
		return err
	}

	err = s.selectFile(ctx, slot, strings.TrimSpace(path))
	switch {
	case errors.Is(err, entities.ErrNoFileChosen), errors.Is(err, entities.ErrDecodeFailed):
		// nothing chosen, or already shown on the slot
		return nil
	default:
		return err
	}
}

// selectFile routes path through the slot's intake. An empty path is a
// cancelled picker.
func (s *Session) selectFile(ctx context.Context, slot entities.Slot, path string) error {
	intake := s.intakes[slot]

	if path == "" {
		return <-intake.Select(ctx, nil)
	}

	file, closer, err := appservices.OpenFile(path)
	if err != nil {
		if rejectErr := s.workflow.RejectImage(slot, err); rejectErr != nil {
			return rejectErr
		}
		return fmt.Errorf("%w: %w", entities.ErrDecodeFailed, err)
	}
	defer closer.Close()

	return <-intake.Select(ctx, file)
}

func (s *Session) generate(ctx context.Context) error {
	done, err := s.workflow.Submit(ctx)
	if errors.Is(err, entities.ErrMissingImages) || errors.Is(err, entities.ErrGenerationInFlight) {
		return nil
	}
	if err != nil {
		return err
	}

	s.presenter.Render(s.workflow.View(), "")

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	state := s.workflow.State()
	if state.ResultImage == nil {
		return nil
	}

	path, err := s.saveResult(state, "")
	if err != nil {
		slog.Error("Failed to save result", "error", err)
		return nil
	}
	s.savedPath = path
	return nil
}

func (s *Session) saveCopy(ctx context.Context) error {
	state := s.workflow.State()
	if state.ResultImage == nil {
		return nil
	}

	path, err := s.driver.Input(ctx, InputConfig{
		Message: "Save result as:",
		Default: s.defaultResultPath(state),
	})
	if err != nil {
		return err
	}

	path = strings.TrimSpace(path)
	if _, statErr := os.Stat(path); statErr == nil {
		overwrite, err := s.driver.Confirm(ctx, ConfirmConfig{Message: path + " exists. Overwrite?"})
		if err != nil {
			return err
		}
		if !overwrite {
			return nil
		}
	}

	saved, err := s.saveResult(state, path)
	if err != nil {
		slog.Error("Failed to save result", "error", err)
		return nil
	}
	s.savedPath = saved
	return nil
}

// RunOnce selects both images, generates, and writes the result to outPath
// (or a default path in the output directory). It returns the written path.
func (s *Session) RunOnce(ctx context.Context, personPath, clothingPath, outPath string) (string, error) {
	inputs := []struct {
		slot entities.Slot
		path string
	}{
		{entities.SlotPerson, personPath},
		{entities.SlotClothing, clothingPath},
	}
	for _, in := range inputs {
		if err := s.selectFile(ctx, in.slot, in.path); err != nil {
			return "", fmt.Errorf("%s image: %w", in.slot.Label(), err)
		}
	}

	if err := s.workflow.Generate(ctx); err != nil {
		s.presenter.Render(s.workflow.View(), "")
		return "", err
	}

	state := s.workflow.State()
	if state.ResultImage == nil {
		s.presenter.Render(state.View(), "")
		return "", errors.New(state.Error)
	}

	path, err := s.saveResult(state, outPath)
	if err != nil {
		return "", err
	}
	s.savedPath = path
	s.presenter.Render(state.View(), path)
	return path, nil
}

func (s *Session) saveResult(state entities.WorkflowState, path string) (string, error) {
	if path == "" {
		path = s.defaultResultPath(state)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := os.WriteFile(path, state.ResultImage.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("failed to write result: %w", err)
	}

	slog.Info("Saved result", "path", path, "workflowId", state.ID, "size", state.ResultImage.Size())
	return path, nil
}

func (s *Session) defaultResultPath(state entities.WorkflowState) string {
	return filepath.Join(s.outputDir, "tryon-"+state.ID+state.ResultImage.Extension())
}

func acceptedExtension(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".webp":
		return true
	default:
		return false
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
