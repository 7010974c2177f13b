package scanning

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"math"
	"strings"

	"github.com/gen2brain/heic"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Limits bound what is sent to the vision model
type Limits struct {
	MaxImages    int // per session
	MaxBytes     int // per image, after normalization
	MaxDimension int // longest edge in pixels
	MaxPixels    int // width*height of an upload, checked before decoding
}

// DefaultLimits are used for zero fields
var DefaultLimits = Limits{
	MaxImages:    10,
	MaxBytes:     4 << 20,
	MaxDimension: 2048,
	MaxPixels:    50_000_000,
}

const unsupportedReason = "unsupported or corrupt image. Supported formats: JPEG, PNG, GIF, WebP, HEIC, HEIF"

const (
	jpegQuality    = 85
	shrinkFactor   = 0.75
	maxShrinkTries = 8
)

// Normalizer validates uploads and prepares them for the vision model
type Normalizer struct {
	limits Limits
}

// NewNormalizer creates a Normalizer, filling zero limits with defaults
func NewNormalizer(limits Limits) *Normalizer {
	if limits.MaxImages <= 0 {
		limits.MaxImages = DefaultLimits.MaxImages
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultLimits.MaxBytes
	}
	if limits.MaxDimension <= 0 {
		limits.MaxDimension = DefaultLimits.MaxDimension
	}
	if limits.MaxPixels <= 0 {
		limits.MaxPixels = DefaultLimits.MaxPixels
	}
	return &Normalizer{limits: limits}
}

// Limits returns the effective limits
func (n *Normalizer) Limits() Limits {
	return n.limits
}

// Normalize validates every upload and downsizes the ones above the limits.
// It fails on the first invalid upload.
func (n *Normalizer) Normalize(uploads []Upload) ([]Image, error) {
	if len(uploads) > n.limits.MaxImages {
		return nil, &InvalidImageError{
			Index:  n.limits.MaxImages,
			Reason: fmt.Sprintf("too many images, at most %d are accepted", n.limits.MaxImages),
		}
	}

	images := make([]Image, 0, len(uploads))
	for i, u := range uploads {
		img, err := n.normalizeOne(u)
		if err != nil {
			err.Index = i
			err.Filename = u.Filename
			return nil, err
		}
		images = append(images, img)
	}
	return images, nil
}

// Admit normalizes uploads and drops the ones whose content already appears
// in existing or earlier in the same batch. It returns the new images and the
// number of duplicates dropped.
func (n *Normalizer) Admit(existing []Image, uploads []Upload) ([]Image, int, error) {
	images, err := n.Normalize(uploads)
	if err != nil {
		return nil, 0, err
	}

	seen := make(map[string]bool, len(existing)+len(images))
	for _, img := range existing {
		seen[img.Hash] = true
	}

	added := make([]Image, 0, len(images))
	duplicates := 0
	for _, img := range images {
		if seen[img.Hash] {
			duplicates++
			continue
		}
		seen[img.Hash] = true
		added = append(added, img)
	}

	if total := len(existing) + len(added); total > n.limits.MaxImages {
		return nil, 0, &InvalidImageError{
			Index:  total - 1,
			Reason: fmt.Sprintf("too many images, at most %d are accepted", n.limits.MaxImages),
		}
	}
	return added, duplicates, nil
}

func (n *Normalizer) normalizeOne(u Upload) (Image, *InvalidImageError) {
	if len(u.Data) == 0 {
		return Image{}, &InvalidImageError{Reason: "empty upload"}
	}

	mimeType := strings.ToLower(strings.TrimSpace(u.ContentType))
	cfg, err := decodeConfig(u.Data, mimeType)
	if err != nil {
		return Image{}, &InvalidImageError{Reason: unsupportedReason, Err: err}
	}
	// Refuse oversized images before allocating their pixels
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > int64(n.limits.MaxPixels) {
		return Image{}, &InvalidImageError{Reason: fmt.Sprintf(
			"image is %dx%d, more than the %d pixel limit",
			cfg.Width, cfg.Height, n.limits.MaxPixels)}
	}

	img, format, err := decodeImage(u.Data, mimeType)
	if err != nil {
		return Image{}, &InvalidImageError{Reason: unsupportedReason, Err: err}
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return Image{}, &InvalidImageError{Reason: "image has no pixels"}
	}

	// JPEG and PNG within limits are sent as uploaded
	if (format == "jpeg" || format == "png") &&
		len(u.Data) <= n.limits.MaxBytes &&
		max(bounds.Dx(), bounds.Dy()) <= n.limits.MaxDimension {
		return newImage(u.Filename, "image/"+format, u.Data, bounds.Dx(), bounds.Dy()), nil
	}

	data, w, h, err := n.shrink(img)
	if err != nil {
		return Image{}, &InvalidImageError{Reason: "could not reduce image below size limit", Err: err}
	}
	return newImage(u.Filename, "image/jpeg", data, w, h), nil
}

// shrink scales img to fit MaxDimension and re-encodes it as JPEG, scaling
// further until the encoding fits in MaxBytes
func (n *Normalizer) shrink(img image.Image) ([]byte, int, int, error) {
	b := img.Bounds()
	scale := 1.0
	if longest := max(b.Dx(), b.Dy()); longest > n.limits.MaxDimension {
		scale = float64(n.limits.MaxDimension) / float64(longest)
	}

	for range maxShrinkTries {
		w := max(1, int(math.Round(float64(b.Dx())*scale)))
		h := max(1, int(math.Round(float64(b.Dy())*scale)))

		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		// Transparent areas become white rather than black in JPEG
		xdraw.Draw(dst, dst.Bounds(), image.White, image.Point{}, xdraw.Src)
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, 0, 0, fmt.Errorf("encoding JPEG: %w", err)
		}
		if buf.Len() <= n.limits.MaxBytes {
			return buf.Bytes(), w, h, nil
		}
		scale *= shrinkFactor
	}
	return nil, 0, 0, fmt.Errorf("still above %d bytes after %d attempts", n.limits.MaxBytes, maxShrinkTries)
}

func newImage(filename, mimeType string, data []byte, w, h int) Image {
	sum := sha256.Sum256(data)
	return Image{
		Filename: filename,
		MIMEType: mimeType,
		Data:     data,
		Width:    w,
		Height:   h,
		Hash:     hex.EncodeToString(sum[:]),
	}
}

// decodeConfig reads only the header of a supported image
func decodeConfig(data []byte, mimeType string) (image.Config, error) {
	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		cfg, err := heic.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return image.Config{}, fmt.Errorf("reading HEIC/HEIF header: %w", err)
		}
		return cfg, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return image.Config{}, fmt.Errorf("reading image header: %w", err)
	}
	return cfg, nil
}

// decodeImage decodes any supported raster format and reports its name
func decodeImage(data []byte, mimeType string) (image.Image, string, error) {
	// Check for HEIC/HEIF format (common on iPhones) - Go's standard image package doesn't support it
	if isHEICFormat(data) || isHEICMimeType(mimeType) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, "", fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, "heic", nil
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decoding image: %w", err)
	}
	return img, format, nil
}

// isHEICFormat checks if the image data is in HEIC/HEIF format
// HEIC files typically start with specific magic bytes
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	// ftyp box at offset 4 with brand 'heic', 'heix', 'heif', 'mif1' or 'msf1'
	if string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// isHEICMimeType checks if the MIME type indicates HEIC/HEIF format
func isHEICMimeType(mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	return strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif")
}
