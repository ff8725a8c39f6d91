package cli

import (
	"fmt"

	"careerlaunch/internal/common"
	"careerlaunch/internal/history"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently finished runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyConfig struct {
	limit  int
	format string
}

func init() {
	historyCmd.Flags().IntVarP(&historyConfig.limit, "limit", "n", 0, "Number of runs to show (default from config)")
	historyCmd.Flags().StringVar(&historyConfig.format, "format", "text", "Output format: json or text")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	if !cfg.History.Enabled {
		return fmt.Errorf("run history is disabled, set history.enabled to record runs")
	}

	store, err := history.Open(cfg.History)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.LogError(err, "Failed to close run history")
		}
	}()

	records, err := store.List(ctx, historyConfig.limit)
	if err != nil {
		return err
	}
	if records == nil {
		records = []history.RunRecord{}
	}

	return common.NewOutputHandlerWithWriter(cmd.OutOrStdout(), logger).
		HandleOutput(records, common.CommandConfig{OutputFormat: historyConfig.format})
}
