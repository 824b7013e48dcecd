package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphmind/codegraph/pkg/config"
	"github.com/graphmind/codegraph/pkg/engine"
	"github.com/graphmind/codegraph/pkg/orchestrator"
	"github.com/graphmind/codegraph/pkg/types"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze QUERY",
	Short: "Run an agentic analysis session over the tool catalogue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]
		configPath, _ := cmd.Flags().GetString("config")
		projectID, _ := cmd.Flags().GetString("project")
		snapshotID, _ := cmd.Flags().GetString("snapshot")
		analysisType, _ := cmd.Flags().GetString("type")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		e, err := engine.Open(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		req := orchestrator.Request{
			AnalysisType:        orchestrator.AnalysisType(analysisType),
			Query:               query,
			ProjectID:           projectID,
			SnapshotID:          types.SnapshotID(snapshotID),
			ContextWindowTokens: cfg.ContextWindow,
			Sink: func(n orchestrator.Notification) {
				fmt.Printf("[%s] %.0f%% %s\n", n.Params.ProgressToken, n.Params.Progress*100, n.Params.Message)
			},
		}

		result, err := e.Orchestrator.Run(context.Background(), req)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("project", "default", "Project ID")
	analyzeCmd.Flags().String("snapshot", "", "Snapshot ID to resolve against (defaults to latest)")
	analyzeCmd.Flags().String("type", "code_search", "Analysis type: code_search, dependency_analysis, coupling_analysis, hotspot_analysis")
}
