package mimetypes

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Smallest valid PNG: signature plus IHDR chunk header is enough for sniffing.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89,
}

func dataURL(declared string, raw []byte) string {
	return "data:" + declared + ";base64," + base64.StdEncoding.EncodeToString(raw)
}

func TestToMIME(t *testing.T) {
	tests := []struct {
		name     string
		detected string
		want     MIME
	}{
		{"PNG", "image/png", ImagePNG},
		{"JPEG", "image/jpeg", ImageJPEG},
		{"Text with charset", "text/plain; charset=utf-8", MIME("text/plain")},
		{"Invalid MIME", "not a mime", Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ToMIME(tt.detected))
		})
	}
}

func TestCheckImageRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		max     int
		wantErr bool
	}{
		{"Opaque reference", "blob:attachments/42", 10, false},
		{"Inline PNG", dataURL("image/png", pngBytes), 1024, false},
		{"Declared image but text inside", dataURL("image/png", []byte("hello there, not an image")), 1024, true},
		{"Too large", dataURL("image/png", pngBytes), 8, true},
		{"Not base64", "data:image/png,rawdata", 1024, true},
		{"Corrupted payload", "data:image/png;base64," + strings.Repeat("!", 12), 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckImageRef(tt.ref, tt.max)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}
