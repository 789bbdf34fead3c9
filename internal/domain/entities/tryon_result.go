package entities

import (
	"time"

	"github.com/google/uuid"

	"virtual-tryon/internal/domain/valueobjects"
)

type TryOnResultID string

type TryOnResult struct {
	id        TryOnResultID
	requestID TryOnRequestID
	images    []*valueobjects.EncodedImage
	createdAt time.Time
}

func NewTryOnResult(requestID TryOnRequestID, images []*valueobjects.EncodedImage) *TryOnResult {
	return &TryOnResult{
		id:        TryOnResultID("result_" + uuid.Must(uuid.NewV7()).String()),
		requestID: requestID,
		images:    images,
		createdAt: time.Now(),
	}
}

func (r *TryOnResult) ID() TryOnResultID {
	return r.id
}

func (r *TryOnResult) RequestID() TryOnRequestID {
	return r.requestID
}

func (r *TryOnResult) Images() []*valueobjects.EncodedImage {
	return r.images
}

// FirstImage is the composed image shown to the user.
func (r *TryOnResult) FirstImage() *valueobjects.EncodedImage {
	if len(r.images) == 0 {
		return nil
	}
	return r.images[0]
}

func (r *TryOnResult) CreatedAt() time.Time {
	return r.createdAt
}

func (r *TryOnResult) HasImages() bool {
	return len(r.images) > 0
}
