package service

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/maktaba-app/maktaba/internal/domain"
)

// =============================================================================
// Catalog Parameter Validation Tests
// =============================================================================

func TestValidateBookParams(t *testing.T) {
	testCases := []struct {
		name   string
		params domain.BookParams
		valid  bool
	}{
		{
			name:   "complete",
			params: domain.BookParams{Title: "Riyad as-Salihin", Author: "Imam an-Nawawi", AccessLevel: domain.AccessFree, PageCount: 720},
			valid:  true,
		},
		{
			name:   "no page count",
			params: domain.BookParams{Title: "Forty Hadith", Author: "Imam an-Nawawi", AccessLevel: domain.AccessPro},
			valid:  true,
		},
		{
			name:   "missing title",
			params: domain.BookParams{Author: "Imam an-Nawawi", AccessLevel: domain.AccessFree},
			valid:  false,
		},
		{
			name:   "whitespace title",
			params: domain.BookParams{Title: "   ", Author: "Imam an-Nawawi", AccessLevel: domain.AccessFree},
			valid:  false,
		},
		{
			name:   "missing author",
			params: domain.BookParams{Title: "Riyad as-Salihin", AccessLevel: domain.AccessFree},
			valid:  false,
		},
		{
			name:   "unknown access level",
			params: domain.BookParams{Title: "Riyad as-Salihin", Author: "Imam an-Nawawi", AccessLevel: "platinum"},
			valid:  false,
		},
		{
			name:   "negative page count",
			params: domain.BookParams{Title: "Riyad as-Salihin", Author: "Imam an-Nawawi", AccessLevel: domain.AccessFree, PageCount: -1},
			valid:  false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateBookParams("test", tc.params)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid {
				if err == nil {
					t.Fatal("expected error")
				}
				if domain.ErrorCode(err) != domain.EINVALID {
					t.Errorf("expected EINVALID, got %s", domain.ErrorCode(err))
				}
			}
		})
	}
}

func TestValidateNashidParams(t *testing.T) {
	testCases := []struct {
		name   string
		params domain.NashidParams
		valid  bool
	}{
		{
			name:   "complete",
			params: domain.NashidParams{Title: "Tala'al Badru Alayna", Performer: "Various", AccessLevel: domain.AccessFree, DurationSeconds: 240},
			valid:  true,
		},
		{
			name:   "missing performer",
			params: domain.NashidParams{Title: "Tala'al Badru Alayna", AccessLevel: domain.AccessFree},
			valid:  false,
		},
		{
			name:   "unknown access level",
			params: domain.NashidParams{Title: "Tala'al Badru Alayna", Performer: "Various", AccessLevel: "gold"},
			valid:  false,
		},
		{
			name:   "negative duration",
			params: domain.NashidParams{Title: "Tala'al Badru Alayna", Performer: "Various", AccessLevel: domain.AccessFree, DurationSeconds: -5},
			valid:  false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateNashidParams("test", tc.params)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got error: %v", err)
			}
			if !tc.valid && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

// =============================================================================
// Pagination Tests
// =============================================================================

func TestClampPage(t *testing.T) {
	testCases := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{"defaults", 0, 0, defaultPageSize, 0},
		{"negative limit", -5, 0, defaultPageSize, 0},
		{"within bounds", 50, 100, 50, 100},
		{"over max", 500, 0, maxPageSize, 0},
		{"negative offset", 20, -3, 20, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			limit, offset := clampPage(tc.limit, tc.offset)
			if limit != tc.wantLimit || offset != tc.wantOffset {
				t.Errorf("clampPage(%d, %d) = (%d, %d), want (%d, %d)",
					tc.limit, tc.offset, limit, offset, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}

// =============================================================================
// Thumbnail Processor Tests
// =============================================================================

func TestGenerateThumbnail(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 900, 600))
	for y := 0; y < 600; y++ {
		for x := 0; x < 900; x++ {
			src.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	proc := NewImagingProcessor()
	thumb, width, height, err := proc.GenerateThumbnail(&buf, ThumbnailMaxWidth, ThumbnailMaxHeight)
	if err != nil {
		t.Fatalf("GenerateThumbnail failed: %v", err)
	}
	if width != 900 || height != 600 {
		t.Errorf("original dimensions = %dx%d, want 900x600", width, height)
	}
	if len(thumb) == 0 {
		t.Fatal("empty thumbnail")
	}

	decoded, format, err := image.Decode(bytes.NewReader(thumb))
	if err != nil {
		t.Fatalf("thumbnail does not decode: %v", err)
	}
	if format != "jpeg" {
		t.Errorf("thumbnail format = %q, want jpeg", format)
	}
	b := decoded.Bounds()
	if b.Dx() > ThumbnailMaxWidth || b.Dy() > ThumbnailMaxHeight {
		t.Errorf("thumbnail %dx%d exceeds %dx%d", b.Dx(), b.Dy(), ThumbnailMaxWidth, ThumbnailMaxHeight)
	}
	// 900x600 fit into 300x300 keeps the 3:2 aspect ratio.
	if b.Dx() != 300 || b.Dy() != 200 {
		t.Errorf("thumbnail = %dx%d, want 300x200", b.Dx(), b.Dy())
	}
}

func TestGenerateThumbnailRejectsGarbage(t *testing.T) {
	proc := NewImagingProcessor()
	_, _, _, err := proc.GenerateThumbnail(bytes.NewReader([]byte("not an image")), 300, 300)
	if err == nil {
		t.Fatal("expected error for non-image data")
	}
}
