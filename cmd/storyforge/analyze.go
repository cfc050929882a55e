package storyforge

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/storyforge/go-storyforge/pkg/config"
	"github.com/storyforge/go-storyforge/pkg/types"
)

var analyzeProjectID string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <batch.json>",
	Short: "Fold an analyzed chapter's changes into the entity graph",
	Long: `Read a JSON analysis batch (chapter number plus character and
organization deltas) and apply it to the persisted graph: state updates,
survival statuses with their cascades, relationship adjustments, membership
events and organization standing.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeProjectID, "project", "", "project ID (required)")
	analyzeCmd.MarkFlagRequired("project")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}
	var batch types.AnalysisBatch
	if err := json.Unmarshal(data, &batch); err != nil {
		return fmt.Errorf("parse batch file: %w", err)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx)

	report, err := client.ApplyAnalysis(ctx, analyzeProjectID, batch)
	if err != nil {
		return err
	}

	fmt.Printf("Chapter %d: applied %d, skipped %d, failed %d\n",
		report.ChapterNumber, report.Applied, report.Skipped, report.Failed)
	for _, item := range report.Items {
		line := fmt.Sprintf("  %s (%s): %s", item.Entity, item.Kind, item.Outcome)
		if item.Reason != "" {
			line += " - " + item.Reason
		}
		fmt.Println(line)
		for _, change := range item.Changes {
			fmt.Printf("    %s\n", change)
		}
	}
	return nil
}
