package common

import (
	"fmt"
	"io"
	"os"

	"careerlaunch/internal/errors"
	"careerlaunch/internal/formatters"
	"careerlaunch/internal/workflow"
)

// CommandConfig holds common configuration for commands
type CommandConfig struct {
	OutputFile   string
	OutputFormat string
	ExportDir    string
	Quiet        bool
}

// OutputHandler handles formatting and writing output
type OutputHandler struct {
	fileProcessor *FileProcessor
	registry      *formatters.FormatterRegistry
	stdout        io.Writer
	logger        *errors.Logger
}

// NewOutputHandler creates a new output handler writing to stdout
func NewOutputHandler(logger *errors.Logger) *OutputHandler {
	return NewOutputHandlerWithWriter(os.Stdout, logger)
}

// NewOutputHandlerWithWriter creates an output handler writing to w when no
// output file is configured
func NewOutputHandlerWithWriter(w io.Writer, logger *errors.Logger) *OutputHandler {
	if logger == nil {
		logger = errors.NewNopLogger()
	}
	return &OutputHandler{
		fileProcessor: NewFileProcessor(0, logger),
		registry:      formatters.NewFormatterRegistry(),
		stdout:        w,
		logger:        logger,
	}
}

// HandleOutput formats data and writes it to the specified output
func (oh *OutputHandler) HandleOutput(data any, config CommandConfig) error {
	if err := oh.fileProcessor.ValidateOutputFile(config.OutputFile); err != nil {
		return err
	}

	output, err := oh.registry.Format(data, config.OutputFormat)
	if err != nil {
		return errors.NewValidationError(errors.ErrCodeInvalidFormat,
			fmt.Sprintf("Failed to format output as %s", config.OutputFormat), err)
	}

	if config.OutputFile == "" {
		_, err := fmt.Fprint(oh.stdout, output)
		return err
	}

	if err := oh.fileProcessor.WriteFile(config.OutputFile, output); err != nil {
		return err
	}
	oh.logger.Info("Output written successfully",
		"file", config.OutputFile, "format", config.OutputFormat)
	return nil
}

// HandleExports writes every available result region of state into the
// export directory and returns the written paths
func (oh *OutputHandler) HandleExports(state workflow.State, config CommandConfig) ([]string, error) {
	if config.ExportDir == "" {
		return nil, nil
	}

	var written []string
	for _, kind := range []formatters.ExportKind{formatters.ExportResume, formatters.ExportJobs} {
		export, err := formatters.BuildExport(kind, state)
		if errors.IsType(err, errors.ErrorTypeConflict) {
			continue // result region not produced by this run
		}
		if err != nil {
			return written, err
		}

		path, err := formatters.WriteExport(config.ExportDir, export)
		if err != nil {
			return written, err
		}
		oh.logger.Info("Export written", "kind", string(kind), "file", path)
		written = append(written, path)
	}
	return written, nil
}

// GetSupportedFormats returns all supported output formats
func (oh *OutputHandler) GetSupportedFormats() []string {
	return oh.registry.GetSupportedFormats()
}
