package inference

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// StripDataURL removes a "data:<mime>;base64," prefix, as produced by a
// browser canvas toDataURL call, leaving the bare base64 payload.
func StripDataURL(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "data:") {
		return s
	}
	if i := strings.Index(s, ","); i >= 0 {
		return s[i+1:]
	}
	return s
}

// NormalizeImage strips any data URL prefix and checks that the payload is
// valid base64. It returns the bare base64 string and the decoded bytes.
func NormalizeImage(s string) (string, []byte, error) {
	b64 := StripDataURL(s)
	if b64 == "" {
		return "", nil, ErrEmptyImage
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		// Some encoders drop padding.
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(b64, "="))
		if err != nil {
			return "", nil, ErrInvalidImage
		}
		b64 = base64.StdEncoding.EncodeToString(data)
	}
	if len(data) == 0 {
		return "", nil, ErrEmptyImage
	}
	return b64, data, nil
}

// DataURL builds a data URL for the image, sniffing the MIME type from its bytes.
func DataURL(b64 string, data []byte) string {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/jpeg"
	}
	return "data:" + mime + ";base64," + b64
}
