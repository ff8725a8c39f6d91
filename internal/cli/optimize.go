package cli

import (
	"fmt"
	"io"
	"os"

	"careerlaunch/internal/common"
	"careerlaunch/internal/types"
	"careerlaunch/internal/workflow"

	"github.com/spf13/cobra"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Optimize a resume for a job and search for matching openings",
	Long: `Rewrite your resume for a target job description, then search the web for
job postings that match the rewritten resume near the chosen location.

The resume may be a text/markdown file or a PDF. The job description is either a
text file (--job) or a link to the posting (--job-url).`,
	Example: `  careerlaunch optimize --resume resume.md --job job.txt --country Canada --state Ontario
  careerlaunch optimize --resume resume.pdf --job-url https://example.com/jobs/42 --tone Executive --export-dir out/`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if optimizeConfig.OutputFormat == "" {
			optimizeConfig.OutputFormat = cfg.App.DefaultFormat
		}
		if err := common.ValidateOutputFormat(optimizeConfig.OutputFormat, cfg.App.SupportedFormats); err != nil {
			return err
		}
		if (optimizeFlags.jobFile == "") == (optimizeFlags.jobURL == "") {
			return fmt.Errorf("exactly one of --job or --job-url is required")
		}
		if _, err := common.ParseTone(optimizeFlags.tone); err != nil {
			return err
		}
		return common.ValidateLocation(optimizeFlags.country, optimizeFlags.state)
	},
	RunE: runOptimize,
}

var optimizeConfig common.CommandConfig

var optimizeFlags struct {
	resumeFile string
	jobFile    string
	jobURL     string
	tone       string
	country    string
	state      string
}

func init() {
	flags := optimizeCmd.Flags()
	flags.StringVar(&optimizeFlags.resumeFile, "resume", "", "Resume file (text, markdown or PDF)")
	flags.StringVar(&optimizeFlags.jobFile, "job", "", "Job description text file")
	flags.StringVar(&optimizeFlags.jobURL, "job-url", "", "Link to the job posting")
	flags.StringVar(&optimizeFlags.tone, "tone", string(types.ToneProfessional), "Writing tone: Professional, Enthusiastic, Concise or Executive")
	flags.StringVar(&optimizeFlags.country, "country", "United States", "Country to search for jobs in")
	flags.StringVar(&optimizeFlags.state, "state", "", "State or region to search for jobs in")
	flags.StringVarP(&optimizeConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	flags.StringVar(&optimizeConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")
	flags.StringVar(&optimizeConfig.ExportDir, "export-dir", "", "Also write Optimized-Resume.md and Matched-Jobs.md into this directory")
	flags.BoolVarP(&optimizeConfig.Quiet, "quiet", "q", false, "Do not print progress")
	_ = optimizeCmd.MarkFlagRequired("resume")

	// Add completion for enumerated flags
	_ = optimizeCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		cfg := getConfigFromContext(cmd.Context())
		return cfg.App.SupportedFormats, cobra.ShellCompDirectiveNoFileComp
	})
	_ = optimizeCmd.RegisterFlagCompletionFunc("tone", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		tones := make([]string, len(types.Tones))
		for i, tone := range types.Tones {
			tones[i] = string(tone)
		}
		return tones, cobra.ShellCompDirectiveNoFileComp
	})
	_ = optimizeCmd.RegisterFlagCompletionFunc("country", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return types.Countries(), cobra.ShellCompDirectiveNoFileComp
	})
}

// buildOptimizeInput turns the command flags into a UserInput
func buildOptimizeInput(files *common.FileProcessor) (types.UserInput, error) {
	tone, err := common.ParseTone(optimizeFlags.tone)
	if err != nil {
		return types.UserInput{}, err
	}

	input := types.UserInput{
		Tone:    tone,
		Country: optimizeFlags.country,
		State:   optimizeFlags.state,
	}
	if err := files.LoadResume(optimizeFlags.resumeFile, &input); err != nil {
		return types.UserInput{}, err
	}

	if optimizeFlags.jobURL != "" {
		input.JobDescriptionType = types.JobDescriptionLink
		input.JobDescriptionLink = optimizeFlags.jobURL
	} else {
		job, err := files.ReadFile(optimizeFlags.jobFile)
		if err != nil {
			return types.UserInput{}, err
		}
		input.JobDescriptionType = types.JobDescriptionText
		input.JobDescription = job
	}

	return input.Normalize(), nil
}

func runOptimize(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	files := common.NewFileProcessor(cfg.App.MaxFileSize, logger)
	input, err := buildOptimizeInput(files)
	if err != nil {
		return err
	}
	if err := input.Validate(); err != nil {
		return err
	}

	rt, err := newRuntime(cfg, logger, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	orchestrator := rt.newOrchestrator()
	defer orchestrator.Close()

	var progress io.Writer = os.Stderr
	if optimizeConfig.Quiet {
		progress = nil
	}

	state, err := common.RunWorkflow(ctx, orchestrator, input, progress, logger)
	if err != nil {
		return fmt.Errorf("failed to optimize resume: %w", err)
	}

	output := common.NewOutputHandler(logger)
	if err := output.HandleOutput(state, optimizeConfig); err != nil {
		return err
	}
	if _, err := output.HandleExports(state, optimizeConfig); err != nil {
		return err
	}

	if state.Phase == workflow.PhaseFailed {
		return fmt.Errorf("run %s failed: %s", state.RunID, state.Error)
	}
	logger.Info("Resume optimization completed successfully",
		"run_id", state.RunID,
		"match_score", state.Optimization.MatchScore)
	return nil
}
