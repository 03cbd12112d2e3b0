// Package pdftext extracts plain text from PDF bytes. The PDF library is
// treated as a black box; everything downstream only sees raw text.
package pdftext

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// ExtractText returns the plain text content of a PDF document. A document
// that cannot be parsed at all is an input error for the caller to report;
// a parseable document with no extractable text returns an empty string.
func ExtractText(pdfBytes []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(pdfBytes), int64(len(pdfBytes)))
	if err != nil {
		return "", fmt.Errorf("reading PDF: %w", err)
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", fmt.Errorf("extracting text: %w", err)
	}

	return buf.String(), nil
}
