// Package imaging normalizes model output into the canonical delivery
// format: at most 1024px on the longest side, PNG for stickers so
// transparency survives, JPEG otherwise.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"
)

const (
	// MaxDimension is the longest output side after normalization.
	MaxDimension = 1024

	jpegQuality = 90
)

// Normalize decodes the image, downscales it to fit inside a
// MaxDimension square (never upscales) and re-encodes it. With forcePNG
// the output is PNG; otherwise JPEG.
func Normalize(data []byte, forcePNG bool) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	dst := fitInside(src, MaxDimension)

	var buf bytes.Buffer
	if forcePNG {
		if err := png.Encode(&buf, dst); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	} else {
		if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	}

	return buf.Bytes(), nil
}

// fitInside scales src down so both sides fit within max, preserving
// aspect ratio. Images already within bounds pass through untouched.
func fitInside(src image.Image, max int) image.Image {
	bounds := src.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= max && height <= max {
		return src
	}

	scale := float64(max) / float64(width)
	if height > width {
		scale = float64(max) / float64(height)
	}

	dstWidth := int(float64(width) * scale)
	dstHeight := int(float64(height) * scale)
	if dstWidth < 1 {
		dstWidth = 1
	}
	if dstHeight < 1 {
		dstHeight = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstWidth, dstHeight))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	return dst
}
