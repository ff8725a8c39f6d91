package document

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"careerlaunch/internal/errors"
	"careerlaunch/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPDF assembles a single-page PDF with one line of text and a correct xref table
func buildPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
		"<< /Title (Jane Doe Resume) >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info 6 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	doc := &types.ResumeDocument{Data: buildPDF("Jane Doe Senior Engineer"), MIMEType: MIMETypePDF, Name: "cv.pdf"}

	info, err := Inspect(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Pages)
	assert.Equal(t, "cv.pdf", info.Name)
	assert.Equal(t, len(doc.Data), info.Size)
	assert.Equal(t, "Jane Doe Resume", info.Title)
}

func TestInspectRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  *types.ResumeDocument
	}{
		{"nil document", nil},
		{"empty data", &types.ResumeDocument{MIMEType: MIMETypePDF}},
		{"wrong mime type", &types.ResumeDocument{Data: buildPDF("x"), MIMEType: "image/png"}},
		{"not a pdf", &types.ResumeDocument{Data: []byte("plain text resume"), MIMEType: MIMETypePDF}},
		{"truncated pdf", &types.ResumeDocument{Data: []byte("%PDF-1.4\n1 0 obj\n<<"), MIMEType: MIMETypePDF}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(tt.doc)
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
		})
	}
}

func TestExtractText(t *testing.T) {
	doc := &types.ResumeDocument{Data: buildPDF("Kubernetes and Go"), MIMEType: MIMETypePDF}

	text, err := ExtractText(doc)
	require.NoError(t, err)
	assert.Contains(t, text, "Kubernetes")
}

func TestLoadResume(t *testing.T) {
	dir := t.TempDir()

	textPath := filepath.Join(dir, "resume.md")
	require.NoError(t, os.WriteFile(textPath, []byte("# Jane Doe\nEngineer"), 0600))
	text, doc, err := LoadResume(textPath, 0)
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.Equal(t, "# Jane Doe\nEngineer", text)

	pdfPath := filepath.Join(dir, "resume.pdf")
	require.NoError(t, os.WriteFile(pdfPath, buildPDF("Jane"), 0600))
	text, doc, err = LoadResume(pdfPath, 0)
	require.NoError(t, err)
	assert.Empty(t, text)
	require.NotNil(t, doc)
	assert.Equal(t, "resume.pdf", doc.Name)
	assert.Equal(t, MIMETypePDF, doc.MIMEType)

	_, _, err = LoadResume(pdfPath, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "the limit is 10 B")

	_, _, err = LoadResume(filepath.Join(dir, "missing.pdf"), 0)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeIO))

	fakePDF := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(fakePDF, []byte("not really a pdf"), 0600))
	_, _, err = LoadResume(fakePDF, 0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}
