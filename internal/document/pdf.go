package document

import (
	"bytes"
	"fmt"
	"strings"

	"careerlaunch/internal/errors"
	"careerlaunch/internal/types"

	"github.com/ledongthuc/pdf"
)

// MIMETypePDF is the only document type accepted as a resume upload
const MIMETypePDF = "application/pdf"

var pdfMagic = []byte("%PDF-")

// Info describes an inspected resume document
type Info struct {
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Size     int    `json:"size"`
	Pages    int    `json:"pages"`
	Title    string `json:"title,omitempty"`
}

// IsPDF reports whether data starts with the PDF header
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// Inspect confirms that the document is a readable PDF with at least one page
func Inspect(doc *types.ResumeDocument) (*Info, error) {
	r, err := open(doc)
	if err != nil {
		return nil, err
	}

	pages := r.NumPage()
	if pages == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidDocument,
			fmt.Sprintf("Document %s has no pages", displayName(doc)), nil)
	}

	return &Info{
		Name:     doc.Name,
		MIMEType: doc.MIMEType,
		Size:     len(doc.Data),
		Pages:    pages,
		Title:    strings.TrimSpace(r.Trailer().Key("Info").Key("Title").Text()),
	}, nil
}

// ExtractText returns the plain text of every page, pages separated by a blank line.
// Pages that fail to decode are skipped.
func ExtractText(doc *types.ResumeDocument) (string, error) {
	r, err := open(doc)
	if err != nil {
		return "", err
	}

	var textBuilder strings.Builder
	for pageIndex := 1; pageIndex <= r.NumPage(); pageIndex++ {
		page := r.Page(pageIndex)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		textBuilder.WriteString(strings.TrimSpace(text))
		textBuilder.WriteString("\n\n")
	}

	text := strings.TrimSpace(textBuilder.String())
	if text == "" {
		return "", errors.NewValidationError(errors.ErrCodeInvalidDocument,
			fmt.Sprintf("No text content found in %s", displayName(doc)), nil)
	}
	return text, nil
}

// open parses the PDF from memory. The parser panics on some malformed input,
// so panics are turned into validation errors.
func open(doc *types.ResumeDocument) (r *pdf.Reader, err error) {
	if doc == nil || len(doc.Data) == 0 {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidDocument, "Document is empty", nil)
	}
	if doc.MIMEType != MIMETypePDF {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidDocument,
			fmt.Sprintf("Unsupported document type %q, only %s is accepted", doc.MIMEType, MIMETypePDF), nil)
	}
	if !IsPDF(doc.Data) {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidDocument,
			fmt.Sprintf("Document %s is not a PDF file", displayName(doc)), nil)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r = nil
			err = errors.NewValidationError(errors.ErrCodeInvalidDocument,
				fmt.Sprintf("Document %s could not be parsed", displayName(doc)), fmt.Errorf("%v", rec))
		}
	}()

	r, err = pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidDocument,
			fmt.Sprintf("Document %s could not be parsed", displayName(doc)), err)
	}
	return r, nil
}

func displayName(doc *types.ResumeDocument) string {
	if doc.Name == "" {
		return "document"
	}
	return doc.Name
}
