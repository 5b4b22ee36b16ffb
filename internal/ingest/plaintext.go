package ingest

import (
	"bytes"
	"context"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// PlainText decodes text files. A UTF-16 byte order mark switches the
// decoder; otherwise the data must be valid UTF-8.
type PlainText struct{}

func (PlainText) ExtractText(_ context.Context, name string, data []byte) (string, error) {
	if bytes.HasPrefix(data, []byte{0xFF, 0xFE}) || bytes.HasPrefix(data, []byte{0xFE, 0xFF}) {
		decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return "", &IngestionError{Name: name, Reason: ReasonCorrupt, Err: err}
		}
		return string(decoded), nil
	}
	if !utf8.Valid(data) {
		return "", &IngestionError{Name: name, Reason: ReasonCorrupt}
	}
	return string(bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})), nil
}
