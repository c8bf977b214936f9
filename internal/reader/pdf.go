package reader

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// PDF extracts the text layer of PDF documents page by page.
type PDF struct{}

// NewPDF creates the PDF format. A non-empty licenseKey is registered with unipdf.
func NewPDF(licenseKey string) (*PDF, error) {
	if licenseKey != "" {
		if err := license.SetMeteredKey(licenseKey); err != nil {
			return nil, fmt.Errorf("setting pdf license key: %w", err)
		}
	}
	return &PDF{}, nil
}

func (p *PDF) Name() string { return "pdf" }

func (p *PDF) Supports(_ string, mime *mimetype.MIME) bool {
	return mime.Is("application/pdf")
}

// Extract stops between pages when ctx is cancelled.
func (p *PDF) Extract(ctx context.Context, data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("counting pages: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page, err := pdfReader.GetPage(i)
		if err != nil {
			return "", fmt.Errorf("loading page %d: %w", i, err)
		}
		ex, err := extractor.New(page)
		if err != nil {
			return "", fmt.Errorf("creating extractor for page %d: %w", i, err)
		}
		text, err := ex.ExtractText()
		if err != nil {
			return "", fmt.Errorf("extracting page %d: %w", i, err)
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String()), nil
}
