package validation

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"net/http"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var (
	ErrImageEmpty  = errors.New("image is empty")
	ErrImageDecode = errors.New("failed to process image")
)

// ImageConstraints defines validation rules for captured meal photos
type ImageConstraints struct {
	AllowedMimeTypes map[string]bool
	MaxSize          int
}

// MealImageConstraints accepts the formats a phone camera or gallery hands over.
// MaxSize is the raw upload limit; larger photos are downscaled by FitImage.
var MealImageConstraints = ImageConstraints{
	AllowedMimeTypes: map[string]bool{
		"image/jpeg": true,
		"image/png":  true,
		"image/webp": true,
	},
	MaxSize: 20 << 20, // 20MB
}

// ValidateImage checks size and sniffs the actual content type from magic numbers.
func ValidateImage(data []byte, constraints ImageConstraints) error {
	if len(data) == 0 {
		return ErrImageEmpty
	}

	if constraints.MaxSize > 0 && len(data) > constraints.MaxSize {
		maxMB := constraints.MaxSize / (1 << 20)
		return fmt.Errorf("image too large: maximum size is %d MB", maxMB)
	}

	// http.DetectContentType reads at most 512 bytes
	detectedType := http.DetectContentType(data)
	if !constraints.AllowedMimeTypes[detectedType] {
		return fmt.Errorf("invalid image type (detected: %s)", detectedType)
	}

	return nil
}

// DecodeImage renders the bytes, honouring EXIF orientation.
func DecodeImage(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return img, nil
}

// Preview decodes the photo and encodes a JPEG thumbnail used as the display reference.
func Preview(data []byte) ([]byte, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	return encodeJPEG(imaging.Fit(img, 512, 512, imaging.Lanczos), 80)
}

// IsJPEG reports whether data carries the JPEG magic number.
func IsJPEG(data []byte) bool {
	return http.DetectContentType(data) == "image/jpeg"
}

// needsJPEG reports whether data is a recognised image in another format.
// Unrecognised bytes are left for the decoder to reject.
func needsJPEG(data []byte) bool {
	detected := http.DetectContentType(data)
	return detected != "image/jpeg" && strings.HasPrefix(detected, "image/")
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageDecode, err)
	}
	return buf.Bytes(), nil
}

// FitImage returns JPEG bytes no larger than maxBytes. A JPEG within the
// limit is returned untouched; PNG and WebP input is re-encoded as JPEG.
// Oversize images are re-encoded progressively smaller until they fit: scale
// starts at 0.9 and shrinks by 0.8 per round; below 200px the quality drops
// (floor 50) and the scale resets.
func FitImage(data []byte, maxBytes int) ([]byte, error) {
	convert := needsJPEG(data)
	if !convert && (maxBytes <= 0 || len(data) <= maxBytes) {
		return data, nil
	}

	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}

	quality := 85
	if convert {
		out, err := encodeJPEG(img, quality)
		if err != nil {
			return nil, err
		}
		if maxBytes <= 0 || len(out) <= maxBytes {
			return out, nil
		}
	}

	scale := 0.9

	for {
		width := int(float64(img.Bounds().Dx()) * scale)
		height := int(float64(img.Bounds().Dy()) * scale)
		if width < 1 || height < 1 {
			return nil, fmt.Errorf("%w: cannot fit image into %d bytes", ErrImageDecode, maxBytes)
		}
		resized := imaging.Resize(img, width, height, imaging.Lanczos)

		out, err := encodeJPEG(resized, quality)
		if err != nil {
			return nil, err
		}

		if len(out) <= maxBytes {
			return out, nil
		}

		scale *= 0.8

		if width < 200 || height < 200 {
			if quality == 50 {
				return nil, fmt.Errorf("%w: cannot fit image into %d bytes", ErrImageDecode, maxBytes)
			}
			quality = max(50, quality-10)
			scale = 1.0
			img = resized
		}
	}
}
