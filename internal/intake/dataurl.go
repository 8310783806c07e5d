package intake

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// MaxUploadBytes caps a decoded data-URL payload.
const MaxUploadBytes = 10 << 20

var (
	ErrNotDataURL = errors.New("not a base64 data URL")
	ErrNotPNG     = errors.New("signature must be a data:image/png URL")
)

type DataURL struct {
	MimeType string
	Data     []byte
}

// ParseDataURL decodes "data:<mime>[;param...];base64,<payload>".
func ParseDataURL(s string) (*DataURL, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return nil, ErrNotDataURL
	}
	comma := strings.IndexByte(s, ',')
	if comma < 0 {
		return nil, ErrNotDataURL
	}
	meta := strings.Split(s[len("data:"):comma], ";")
	if len(meta) < 2 || !strings.EqualFold(meta[len(meta)-1], "base64") {
		return nil, ErrNotDataURL
	}
	mt := strings.ToLower(strings.TrimSpace(meta[0]))
	if mt == "" {
		mt = "application/octet-stream"
	}

	payload := strings.Map(func(r rune) rune {
		if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
			return -1
		}
		return r
	}, s[comma+1:])
	if payload == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrNotDataURL)
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxUploadBytes+3 {
		return nil, fmt.Errorf("data URL larger than %d bytes", MaxUploadBytes)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNotDataURL, err)
		}
	}
	return &DataURL{MimeType: mt, Data: data}, nil
}

// ParseSignature only accepts PNG data URLs.
func ParseSignature(s string) (*DataURL, error) {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "data:image/png") {
		return nil, ErrNotPNG
	}
	return ParseDataURL(s)
}

var extensions = map[string]string{
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"image/heic":      "heic",
	"application/pdf": "pdf",
}

// Ext returns a file extension for the MIME type.
func (d *DataURL) Ext() string {
	if e, ok := extensions[d.MimeType]; ok {
		return e
	}
	return "bin"
}
