// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llm

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/llumdocs/internal/model"
)

var supportedImageTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

// SniffImage returns the MIME type of data, detected from its magic bytes.
func SniffImage(data []byte) (string, error) {
	if len(data) == 0 {
		return "", &InvalidRequestError{Reason: "image is empty"}
	}
	mime := http.DetectContentType(data)
	if !supportedImageTypes[mime] {
		return "", &InvalidRequestError{Reason: fmt.Sprintf("unsupported image format %q (expected PNG, JPEG, GIF or WEBP)", mime)}
	}
	return mime, nil
}

// DataURL encodes img as a data: URL for hosted providers.
func DataURL(img model.Image) string {
	return "data:" + img.MIME + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// validateImages enforces the image rules for kind and fills in each
// image's MIME type.
func validateImages(conv model.Conversation, vision bool, maxBytes int64) (model.Conversation, error) {
	idx := conv.ImageMessages()
	if !vision {
		if len(idx) > 0 {
			return nil, &InvalidRequestError{Reason: "images are only accepted for vision tasks"}
		}
		return conv, nil
	}
	if len(idx) != 1 {
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("vision requests need exactly one image, got %d", len(idx))}
	}

	out := conv.Clone()
	img := out[idx[0]].Image
	if len(img.Data) == 0 {
		return nil, &InvalidRequestError{Reason: "image is empty"}
	}
	if maxBytes > 0 && int64(len(img.Data)) > maxBytes {
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("image is %s, limit is %s",
			humanize.IBytes(uint64(len(img.Data))), humanize.IBytes(uint64(maxBytes)))}
	}
	mime, err := SniffImage(img.Data)
	if err != nil {
		return nil, err
	}
	img.MIME = mime
	return out, nil
}
