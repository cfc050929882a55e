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

var syncProjectID string

var syncCmd = &cobra.Command{
	Use:   "sync <units.json>",
	Short: "Materialize entities newly mentioned in outline text",
	Long: `Read a JSON array of narrative units (outline chapters or scenes) and
create every mentioned character or organization that is not yet persisted.
Each created entity is elaborated into a full profile by the LLM.`,
	Args: cobra.ExactArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncProjectID, "project", "", "project ID (required)")
	syncCmd.MarkFlagRequired("project")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read units file: %w", err)
	}
	var units []types.NarrativeUnit
	if err := json.Unmarshal(data, &units); err != nil {
		return fmt.Errorf("parse units file: %w", err)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer client.Close(ctx)

	report, err := client.SyncMentions(ctx, syncProjectID, units)
	if err != nil {
		return err
	}

	fmt.Printf("Missing entities: %d, created: %d\n", len(report.Missing), len(report.Created))
	for _, item := range report.Items {
		if item.Error != "" {
			fmt.Printf("  %s (%s): %s - %s\n", item.Name, item.Kind, item.Outcome, item.Error)
		} else {
			fmt.Printf("  %s (%s): %s\n", item.Name, item.Kind, item.Outcome)
		}
	}
	return nil
}
