package entities

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"virtual-tryon/internal/domain/valueobjects"
)

type TryOnRequestID string

// TryOnRequest is one submission of a workflow's two input images.
type TryOnRequest struct {
	id            TryOnRequestID
	workflowID    string
	personImage   *valueobjects.EncodedImage
	clothingImage *valueobjects.EncodedImage
	parameters    *valueobjects.TryOnParameters
	createdAt     time.Time
}

func NewTryOnRequest(
	workflowID string,
	personImage *valueobjects.EncodedImage,
	clothingImage *valueobjects.EncodedImage,
	parameters *valueobjects.TryOnParameters,
) (*TryOnRequest, error) {
	if personImage == nil {
		return nil, fmt.Errorf("person image is required")
	}

	if clothingImage == nil {
		return nil, fmt.Errorf("clothing image is required")
	}

	if parameters == nil {
		parameters = valueobjects.DefaultTryOnParameters()
	}

	return &TryOnRequest{
		id:            TryOnRequestID("req_" + uuid.Must(uuid.NewV7()).String()),
		workflowID:    workflowID,
		personImage:   personImage,
		clothingImage: clothingImage,
		parameters:    parameters,
		createdAt:     time.Now(),
	}, nil
}

func (r *TryOnRequest) ID() TryOnRequestID {
	return r.id
}

func (r *TryOnRequest) WorkflowID() string {
	return r.workflowID
}

func (r *TryOnRequest) PersonImage() *valueobjects.EncodedImage {
	return r.personImage
}

func (r *TryOnRequest) ClothingImage() *valueobjects.EncodedImage {
	return r.clothingImage
}

func (r *TryOnRequest) Parameters() *valueobjects.TryOnParameters {
	return r.parameters
}

func (r *TryOnRequest) CreatedAt() time.Time {
	return r.createdAt
}
