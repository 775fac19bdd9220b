// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package service

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/jeranaias/llumdocs/internal/llm"
	"github.com/jeranaias/llumdocs/internal/model"
	"github.com/jeranaias/llumdocs/internal/router"
)

// DetailLevel selects a short or detailed image description.
type DetailLevel string

const (
	DetailShort    DetailLevel = "short"
	DetailDetailed DetailLevel = "detailed"
)

// Image size bounds for the longest side, in pixels.
const (
	DefaultImageMaxSize = 512
	MaxImageMaxSize     = 2048

	jpegQuality = 85
	// maxSourcePixels guards the decoder against decompression bombs.
	maxSourcePixels = 80_000_000
)

var detailPrompts = map[DetailLevel]string{
	DetailShort: "Describe this image concisely in English. " +
		"Focus on the main subject, key objects, and overall scene. " +
		"Keep the description brief and to the point.",
	DetailDetailed: "Provide a detailed description of this image in English. " +
		"Include information about: " +
		"- The main subject and its characteristics\n" +
		"- Secondary objects and their relationships\n" +
		"- Background elements and context\n" +
		"- Colors, lighting, and composition\n" +
		"- Any text visible in the image\n" +
		"- The overall mood or atmosphere",
}

// ImageRequest describes Image. MaxSize bounds the longest side sent to
// the model; 0 means DefaultImageMaxSize.
type ImageRequest struct {
	Image   []byte
	Detail  DetailLevel
	MaxSize int
	Model   string
}

// DescribeImage resizes the image, re-encodes it as JPEG and asks a vision
// model to describe it.
func (s *Service) DescribeImage(ctx context.Context, req ImageRequest) (Output, error) {
	if len(req.Image) == 0 {
		return Output{}, invalid("image", "image cannot be empty.")
	}
	if s.maxImageBytes > 0 && int64(len(req.Image)) > s.maxImageBytes {
		return Output{}, invalid("image", "image is %s, limit is %s.",
			humanize.IBytes(uint64(len(req.Image))), humanize.IBytes(uint64(s.maxImageBytes)))
	}
	size := req.MaxSize
	if size == 0 {
		size = DefaultImageMaxSize
	}
	if size < 0 {
		return Output{}, invalid("max_size", "max_size must be greater than 0.")
	}
	if size > MaxImageMaxSize {
		return Output{}, invalid("max_size", "max_size must be <= %d.", MaxImageMaxSize)
	}
	detail := DetailLevel(strings.ToLower(strings.TrimSpace(string(req.Detail))))
	if detail == "" {
		detail = DetailShort
	}
	prompt, ok := detailPrompts[detail]
	if !ok {
		return Output{}, invalid("detail_level", "detail_level must be 'short' or 'detailed' (received %q).", req.Detail)
	}
	if _, err := llm.SniffImage(req.Image); err != nil {
		return Output{}, err
	}

	resized, err := ResizeJPEG(req.Image, size)
	if err != nil {
		return Output{}, err
	}
	return s.run(ctx, "describe_image", router.TaskVision, req.Model, model.Conversation{
		model.UserWithImage(prompt, resized),
	})
}

// ResizeJPEG scales data so its longest side is at most maxSize, keeping
// the aspect ratio, flattens it onto white and encodes it as JPEG.
// Images already within bounds are re-encoded but not scaled.
func ResizeJPEG(data []byte, maxSize int) ([]byte, error) {
	if maxSize <= 0 {
		return nil, invalid("max_size", "max_size must be greater than 0.")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, invalid("image", "image could not be decoded: %v", err)
	}
	if cfg.Width*cfg.Height > maxSourcePixels {
		return nil, invalid("image", "image is too large (%dx%d).", cfg.Width, cfg.Height)
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, invalid("image", "image could not be decoded: %v", err)
	}

	b := src.Bounds()
	w, h := FitWithin(b.Dx(), b.Dy(), maxSize)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FitWithin returns the dimensions of a w x h image scaled down so neither
// side exceeds maxSize. Scaled sides are truncated, never below 1.
func FitWithin(w, h, maxSize int) (int, int) {
	switch {
	case w > h && w > maxSize:
		h = int(float64(h) * (float64(maxSize) / float64(w)))
		w = maxSize
	case w <= h && h > maxSize:
		w = int(float64(w) * (float64(maxSize) / float64(h)))
		h = maxSize
	}
	return max(w, 1), max(h, 1)
}
