package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"virtual-tryon/internal/domain/entities"
	"virtual-tryon/internal/domain/valueobjects"
	"virtual-tryon/internal/observability"
)

const defaultMaxBytes = 10 * 1024 * 1024 // 10MB

// ImageSink receives the outcome of an intake. The workflow orchestrator
// implements it.
type ImageSink interface {
	SelectImage(slot entities.Slot, img *valueobjects.EncodedImage) error
	RejectImage(slot entities.Slot, err error) error
}

// File is a user-chosen file. A nil *File means the picker was cancelled.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// OpenFile opens path for intake. The caller closes the returned Closer.
func OpenFile(path string) (*File, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	return &File{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Body:        f,
	}, f, nil
}

type IntakeOption func(*IntakeService)

func WithMaxBytes(n int64) IntakeOption {
	return func(s *IntakeService) {
		if n > 0 {
			s.maxBytes = n
		}
	}
}

func WithObserver(obs observability.Observer) IntakeOption {
	return func(s *IntakeService) {
		s.observer = obs
	}
}

// IntakeService turns a chosen file into an EncodedImage for one slot and
// hands it to the sink. It keeps no reference to the image afterwards.
type IntakeService struct {
	slot     entities.Slot
	sink     ImageSink
	maxBytes int64
	observer observability.Observer
}

func NewIntakeService(slot entities.Slot, sink ImageSink, opts ...IntakeOption) *IntakeService {
	s := &IntakeService{
		slot:     slot,
		sink:     sink,
		maxBytes: defaultMaxBytes,
		observer: observability.NoOpObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *IntakeService) Slot() entities.Slot {
	return s.slot
}

// Read decodes file synchronously. It returns ErrNoFileChosen for a nil
// file and an error wrapping ErrDecodeFailed when the bytes are not a
// supported image.
func (s *IntakeService) Read(ctx context.Context, file *File) (*valueobjects.EncodedImage, error) {
	if file == nil || file.Body == nil {
		return nil, entities.ErrNoFileChosen
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(file.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", entities.ErrDecodeFailed, file.Name, err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, fmt.Errorf("%w: %s is larger than %d bytes", entities.ErrDecodeFailed, file.Name, s.maxBytes)
	}

	img, err := valueobjects.NewEncodedImage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", entities.ErrDecodeFailed, err)
	}

	return img, nil
}

// Select decodes file in the background and delivers the outcome to the
// sink exactly once. The returned channel receives a single value: nil on
// success, the decode error, ErrNoFileChosen, or the context error. A
// cancelled picker or context delivers nothing to the sink.
func (s *IntakeService) Select(ctx context.Context, file *File) <-chan error {
	done := make(chan error, 1)

	if file == nil {
		done <- entities.ErrNoFileChosen
		close(done)
		return done
	}

	go func() {
		defer close(done)

		img, err := s.Read(ctx, file)
		if ctxErr := ctx.Err(); ctxErr != nil {
			done <- ctxErr
			return
		}
		if errors.Is(err, entities.ErrNoFileChosen) {
			done <- err
			return
		}

		if err != nil {
			observability.Emit(ctx, s.observer, "intake", observability.EventIntakeDecodeFailed, observability.LevelWarning,
				map[string]any{"slot": string(s.slot), "file": file.Name, "error": err.Error()})

			if sinkErr := s.sink.RejectImage(s.slot, err); sinkErr != nil {
				done <- fmt.Errorf("failed to report decode failure: %w", sinkErr)
				return
			}
			done <- err
			return
		}

		done <- s.sink.SelectImage(s.slot, img)
	}()

	return done
}
