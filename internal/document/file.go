package document

import (
	stderrors "errors"
	"fmt"
	"path/filepath"

	"careerlaunch/internal/errors"
	"careerlaunch/internal/types"
	"careerlaunch/internal/utils"
)

// LoadResume reads a resume from disk. PDF files are returned as a document after
// inspection; any other file is returned as text. Files larger than maxSize are
// rejected when maxSize is positive.
func LoadResume(path string, maxSize int64) (string, *types.ResumeDocument, error) {
	data, err := utils.ReadFileLimited(path, maxSize)
	if err != nil {
		var sizeErr *utils.SizeError
		switch {
		case stderrors.As(err, &sizeErr):
			return "", nil, errors.NewValidationError(errors.ErrCodeInvalidDocument,
				fmt.Sprintf("Resume file %s", sizeErr.Error()), nil)
		case stderrors.Is(err, utils.ErrNotFound):
			return "", nil, errors.NewIOError(errors.ErrCodeFileNotFound, fmt.Sprintf("Invalid resume file %s", path), err)
		default:
			return "", nil, errors.NewIOError(errors.ErrCodeFileNotReadable, fmt.Sprintf("Cannot read file: %s", path), err)
		}
	}

	if !IsPDF(data) && utils.KindOf(path) != utils.KindPDF {
		return string(data), nil, nil
	}

	doc := &types.ResumeDocument{Data: data, MIMEType: MIMETypePDF, Name: filepath.Base(path)}
	if _, err := Inspect(doc); err != nil {
		return "", nil, err
	}
	return "", doc, nil
}
