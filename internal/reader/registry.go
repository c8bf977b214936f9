// Package reader extracts plain text from user files for profile indexing.
package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"recoledger/internal/config"
	"recoledger/internal/tracker"
)

// DefaultMaxBytes caps how much of a file is loaded for extraction.
const DefaultMaxBytes int64 = 10 << 20

// Format extracts text from one family of file types.
type Format interface {
	Name() string
	Supports(ext string, mime *mimetype.MIME) bool
	Extract(ctx context.Context, data []byte) (string, error)
}

// Registry picks a Format per file from its MIME type and extension.
// Files that no Format supports, and files over the size cap, yield empty text
// without error, so they are marked processed and not retried.
type Registry struct {
	maxBytes int64
	formats  []Format
	logger   tracker.Logger
}

// NewRegistry creates a Registry with the given formats, tried in order.
func NewRegistry(maxBytes int64, logger tracker.Logger, formats ...Format) *Registry {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Registry{maxBytes: maxBytes, formats: formats, logger: logger}
}

// NewRegistryFromConfig creates a Registry with every built-in format.
func NewRegistryFromConfig(cfg config.ReadersConfig, logger tracker.Logger) (*Registry, error) {
	pdf, err := NewPDF(cfg.PDFLicenseKey)
	if err != nil {
		return nil, err
	}
	return NewRegistry(cfg.MaxBytes, logger, NewMarkdown(), pdf, NewPlainText()), nil
}

func (r *Registry) Read(ctx context.Context, node *tracker.Node, content io.Reader) (string, error) {
	if node.Size > r.maxBytes {
		r.logger.Info("file too large to index", "file_id", node.ID, "size", node.Size, "max_bytes", r.maxBytes)
		return "", nil
	}

	data, err := io.ReadAll(io.LimitReader(content, r.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		r.logger.Info("file grew past size cap while reading", "file_id", node.ID, "max_bytes", r.maxBytes)
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f := r.formatFor(node, data)
	if f == nil {
		r.logger.Debug("no reader for file type", "file_id", node.ID, "name", node.Name())
		return "", nil
	}

	text, err := f.Extract(ctx, data)
	if err != nil {
		return "", fmt.Errorf("%s reader: %w", f.Name(), err)
	}
	return text, nil
}

func (r *Registry) formatFor(node *tracker.Node, data []byte) Format {
	ext := strings.ToLower(path.Ext(node.Name()))
	mime := mimetype.Detect(data)
	for _, f := range r.formats {
		if f.Supports(ext, mime) {
			return f
		}
	}
	return nil
}

// PlainText passes text files through unchanged.
type PlainText struct{}

func NewPlainText() PlainText { return PlainText{} }

func (PlainText) Name() string { return "text" }

func (PlainText) Supports(_ string, mime *mimetype.MIME) bool {
	return isText(mime)
}

func (PlainText) Extract(_ context.Context, data []byte) (string, error) {
	return string(bytes.ToValidUTF8(data, []byte(" "))), nil
}

// isText reports whether mime is text/plain or one of its descendants, such as
// text/csv or application/json.
func isText(mime *mimetype.MIME) bool {
	for m := mime; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return true
		}
	}
	return false
}

var _ tracker.ContentReader = (*Registry)(nil)
