package service

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"
)

const (
	// ThumbnailMaxWidth and ThumbnailMaxHeight bound cover thumbnails.
	// Covers render at roughly 150px in the Mini App grid; 2x for
	// high-density screens.
	ThumbnailMaxWidth  = 300
	ThumbnailMaxHeight = 300

	// ThumbnailJPEGQuality is the encode quality for thumbnails.
	ThumbnailJPEGQuality = 85
)

// ThumbnailProcessor generates cover thumbnails from uploaded images.
type ThumbnailProcessor interface {
	// GenerateThumbnail resizes the image to fit within maxWidth x
	// maxHeight preserving aspect ratio and returns it as JPEG, along
	// with the original dimensions.
	GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, int, int, error)
}

type imagingProcessor struct{}

var _ ThumbnailProcessor = (*imagingProcessor)(nil)

func NewImagingProcessor() ThumbnailProcessor {
	return &imagingProcessor{}
}

func (p *imagingProcessor) GenerateThumbnail(data io.Reader, maxWidth, maxHeight int) ([]byte, int, int, error) {
	img, _, err := image.Decode(data)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	thumbnail := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG, imaging.JPEGQuality(ThumbnailJPEGQuality)); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return buf.Bytes(), bounds.Dx(), bounds.Dy(), nil
}
