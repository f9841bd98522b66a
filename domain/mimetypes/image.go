package mimetypes

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const dataURLPrefix = "data:"

// IsDataURL reports whether ref carries its image inline.
func IsDataURL(ref string) bool {
	return strings.HasPrefix(ref, dataURLPrefix)
}

// SniffDataURL decodes a base64 data URL and returns the MIME type found in
// its bytes, ignoring the declared one. Payloads above maxBytes are refused.
func SniffDataURL(ref string, maxBytes int) (MIME, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, dataURLPrefix), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return Unknown, fmt.Errorf("not a base64 data url")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxBytes+2 {
		return Unknown, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Unknown, fmt.Errorf("decode data url: %w", err)
	}
	if len(raw) > maxBytes {
		return Unknown, fmt.Errorf("image exceeds %d bytes", maxBytes)
	}
	return ToMIME(mimetype.Detect(raw).String()), nil
}

// CheckImageRef accepts opaque references as is and requires inline data URLs
// to hold an actual image no larger than maxBytes.
func CheckImageRef(ref string, maxBytes int) error {
	if !IsDataURL(ref) {
		return nil
	}
	detected, err := SniffDataURL(ref, maxBytes)
	if err != nil {
		return err
	}
	if !IsImage(detected) {
		return fmt.Errorf("expected an image, got %s", detected)
	}
	return nil
}
