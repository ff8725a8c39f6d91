package common

import (
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"careerlaunch/internal/document"
	"careerlaunch/internal/errors"
	"careerlaunch/internal/types"
	"careerlaunch/internal/utils"
)

// FileProcessor handles common file operations
type FileProcessor struct {
	maxFileSize int64
	logger      *errors.Logger
}

// NewFileProcessor creates a new file processor instance. Files larger than
// maxFileSize are rejected when it is positive.
func NewFileProcessor(maxFileSize int64, logger *errors.Logger) *FileProcessor {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &FileProcessor{maxFileSize: maxFileSize, logger: logger}
}

// ReadFile reads a text file with proper error handling
func (fp *FileProcessor) ReadFile(filename string) (string, error) {
	if utils.KindOf(filename) != utils.KindText {
		fp.logger.Warn("File may not be a text file", "filename", filename)
	}

	content, err := utils.ReadFileLimited(filename, fp.maxFileSize)
	if err != nil {
		var sizeErr *utils.SizeError
		switch {
		case stderrors.As(err, &sizeErr):
			return "", errors.NewValidationError(errors.ErrCodeInvalidRequest,
				fmt.Sprintf("File %s", sizeErr.Error()), nil)
		case stderrors.Is(err, utils.ErrNotFound):
			return "", errors.NewIOError(errors.ErrCodeFileNotFound,
				fmt.Sprintf("Invalid file %s", filename), err)
		default:
			return "", errors.NewIOError(errors.ErrCodeFileNotReadable,
				fmt.Sprintf("Cannot read file: %s", filename), err)
		}
	}

	return string(content), nil
}

// LoadResume fills the resume source of input from a text or PDF file
func (fp *FileProcessor) LoadResume(filename string, input *types.UserInput) error {
	text, doc, err := document.LoadResume(filename, fp.maxFileSize)
	if err != nil {
		return err
	}

	if doc != nil {
		input.ResumeFile = doc
		input.ResumeText = ""
		fp.logger.Debug("Resume loaded as document",
			"filename", filename,
			"size", utils.FormatFileSize(int64(len(doc.Data))))
		return nil
	}

	input.ResumeText = strings.TrimSpace(text)
	input.ResumeFile = nil
	fp.logger.Debug("Resume loaded as text", "filename", filename, "chars", len(input.ResumeText))
	return nil
}

// WriteFile writes content to a file with directory creation
func (fp *FileProcessor) WriteFile(filename, content string) error {
	if err := utils.EnsureParentDir(filename); err != nil {
		return errors.NewIOError(errors.ErrCodeFileWriteFailed,
			fmt.Sprintf("Cannot create directory for %s", filename), err)
	}

	if err := os.WriteFile(filename, []byte(content), 0600); err != nil {
		return errors.NewIOError(errors.ErrCodeFileWriteFailed,
			fmt.Sprintf("Cannot write file: %s", filename), err)
	}
	return nil
}

// ValidateOutputFile validates output file path
func (fp *FileProcessor) ValidateOutputFile(filename string) error {
	if filename == "" {
		return nil // stdout is valid
	}

	if err := utils.EnsureParentDir(filename); err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("Invalid output file: %s", filename), err)
	}
	return nil
}
