package formatters

import (
	"os"
	"path/filepath"

	"careerlaunch/internal/errors"
	"careerlaunch/internal/utils"
	"careerlaunch/internal/workflow"
)

// ExportKind selects which result region is exported
type ExportKind string

const (
	ExportResume ExportKind = "resume"
	ExportJobs   ExportKind = "jobs"
)

// Export file names offered for download
const (
	ResumeExportFilename = "Optimized-Resume.md"
	JobsExportFilename   = "Matched-Jobs.md"
)

// Export is a rendered result ready to be saved or downloaded
type Export struct {
	Filename    string
	ContentType string
	Content     []byte
}

// BuildExport renders the requested region of a run. It fails with a conflict
// error while the region has no result yet.
func BuildExport(kind ExportKind, state workflow.State) (Export, error) {
	switch kind {
	case ExportResume:
		if state.Optimization == nil {
			return Export{}, errors.NewConflictError(errors.ErrCodeResultNotReady, "No optimized resume to export yet", nil)
		}
		return Export{
			Filename:    ResumeExportFilename,
			ContentType: "text/markdown; charset=utf-8",
			Content:     []byte(state.Optimization.RevisedResume + "\n"),
		}, nil
	case ExportJobs:
		if state.JobSearch == nil {
			return Export{}, errors.NewConflictError(errors.ErrCodeResultNotReady, "No matched jobs to export yet", nil)
		}
		content, err := (&JobsMarkdownFormatter{}).Format(state.JobSearch)
		if err != nil {
			return Export{}, errors.NewInternalError(errors.ErrCodeInvalidFormat, "Failed to render matched jobs", err)
		}
		return Export{
			Filename:    JobsExportFilename,
			ContentType: "text/markdown; charset=utf-8",
			Content:     []byte(content),
		}, nil
	default:
		return Export{}, errors.NewValidationError(errors.ErrCodeInvalidRequest, "Unknown export kind", nil).
			WithContext("kind", string(kind))
	}
}

// WriteExport saves an export into dir and returns the written path
func WriteExport(dir string, export Export) (string, error) {
	path := filepath.Join(dir, export.Filename)
	if err := utils.EnsureParentDir(path); err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileWriteFailed, "Invalid export directory", err).WithContext("path", dir)
	}
	if err := os.WriteFile(path, export.Content, 0600); err != nil {
		return "", errors.NewIOError(errors.ErrCodeFileWriteFailed, "Failed to write export", err).WithContext("path", path)
	}
	return path, nil
}
