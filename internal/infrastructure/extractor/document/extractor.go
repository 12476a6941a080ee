package document

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/kirillkom/context-assistant/internal/core/domain"
)

// Format converts one document type to text.
type Format interface {
	Extract(ctx context.Context, raw []byte) (string, error)
}

const (
	MIMEPDF  = "application/pdf"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeText = "text/plain"
)

var extensionMIME = map[string]string{
	".pdf":  MIMEPDF,
	".xlsx": MIMEXLSX,
	".txt":  mimeText,
	".md":   mimeText,
	".csv":  mimeText,
}

// Extractor picks a Format by declared MIME type, falling back to the file extension.
type Extractor struct {
	maxBytes int64
	pdf      Format
	xlsx     Format
	text     Format
}

func NewExtractor(maxBytes int64, pdf, xlsx, text Format) *Extractor {
	return &Extractor{
		maxBytes: maxBytes,
		pdf:      pdf,
		xlsx:     xlsx,
		text:     text,
	}
}

func (e *Extractor) Extract(ctx context.Context, filename, mimeType string, body io.Reader) (string, error) {
	format, kind := e.resolve(filename, mimeType)
	if format == nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract document", fmt.Errorf("unsupported document type %q (%s)", kind, filename))
	}

	raw, err := e.read(body)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract document", fmt.Errorf("document %s is empty", filename))
	}
	text, err := format.Extract(ctx, raw)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract document", fmt.Errorf("document %s has no text", filename))
	}
	return text, nil
}

func (e *Extractor) read(body io.Reader) ([]byte, error) {
	if e.maxBytes <= 0 {
		return io.ReadAll(body)
	}
	raw, err := io.ReadAll(io.LimitReader(body, e.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	if int64(len(raw)) > e.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "extract document", fmt.Errorf("document exceeds %d bytes", e.maxBytes))
	}
	return raw, nil
}

func (e *Extractor) resolve(filename, mimeType string) (Format, string) {
	kind := normalizeMIME(mimeType)
	if format := e.byMIME(kind); format != nil {
		return format, kind
	}
	if byExt, ok := extensionMIME[strings.ToLower(filepath.Ext(filename))]; ok {
		return e.byMIME(byExt), byExt
	}
	return nil, kind
}

func (e *Extractor) byMIME(kind string) Format {
	switch {
	case kind == MIMEPDF:
		return e.pdf
	case kind == MIMEXLSX:
		return e.xlsx
	case strings.HasPrefix(kind, "text/"):
		return e.text
	default:
		return nil
	}
}

func normalizeMIME(raw string) string {
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(raw))
	}
	return parsed
}
