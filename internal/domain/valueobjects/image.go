package valueobjects

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

type ImageFormat string

const (
	JPEG ImageFormat = "jpeg"
	PNG  ImageFormat = "png"
	GIF  ImageFormat = "gif"
	WEBP ImageFormat = "webp"
)

const dataURLPrefix = "data:"

// EncodedImage is binary image data together with its media type. It is
// immutable once created: accessors hand out copies.
type EncodedImage struct {
	data   []byte
	format ImageFormat
}

func NewEncodedImage(data []byte) (*EncodedImage, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("image data cannot be empty")
	}

	format, err := detectFormat(data)
	if err != nil {
		return nil, fmt.Errorf("unsupported image format: %w", err)
	}

	return &EncodedImage{
		data:   bytes.Clone(data),
		format: format,
	}, nil
}

// ParseDataURL decodes a "data:<mime>;base64,<payload>" string. The media
// type is re-detected from the payload rather than trusted.
func ParseDataURL(s string) (*EncodedImage, error) {
	if !strings.HasPrefix(s, dataURLPrefix) {
		return nil, fmt.Errorf("not a data URL")
	}

	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, dataURLPrefix), ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("data URL is not base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data URL payload: %w", err)
	}

	return NewEncodedImage(data)
}

func (i *EncodedImage) Bytes() []byte {
	return bytes.Clone(i.data)
}

func (i *EncodedImage) Format() ImageFormat {
	return i.format
}

func (i *EncodedImage) MimeType() string {
	return "image/" + string(i.format)
}

func (i *EncodedImage) Size() int {
	return len(i.data)
}

func (i *EncodedImage) Extension() string {
	if i.format == JPEG {
		return ".jpg"
	}
	return "." + string(i.format)
}

func (i *EncodedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(i.data)
}

// DataURL returns the self-describing form used both for display and for
// transmission to the generation service.
func (i *EncodedImage) DataURL() string {
	return dataURLPrefix + i.MimeType() + ";base64," + i.Base64()
}

// Equal reports whether both images carry the same bytes.
func (i *EncodedImage) Equal(other *EncodedImage) bool {
	if i == nil || other == nil {
		return i == other
	}
	return i.format == other.format && bytes.Equal(i.data, other.data)
}

func detectFormat(data []byte) (ImageFormat, error) {
	reader := bytes.NewReader(data)
	_, format, err := image.DecodeConfig(reader)
	if err != nil {
		return "", err
	}

	switch format {
	case "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "gif":
		return GIF, nil
	case "webp":
		return WEBP, nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}
