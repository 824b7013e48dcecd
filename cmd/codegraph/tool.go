package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/graphmind/codegraph/pkg/config"
	"github.com/graphmind/codegraph/pkg/engine"
	"github.com/graphmind/codegraph/pkg/types"
)

var toolCmd = &cobra.Command{
	Use:   "tool",
	Short: "Invoke a single tool from the catalogue directly",
}

var toolListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the available tool names",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		e, err := engine.Open(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		for _, name := range e.Executor.Names() {
			fmt.Println(name)
		}
		return nil
	},
}

var toolCallCmd = &cobra.Command{
	Use:   "call NAME",
	Short: "Call a tool by name with JSON parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		toolName := args[0]
		configPath, _ := cmd.Flags().GetString("config")
		projectID, _ := cmd.Flags().GetString("project")
		snapshotID, _ := cmd.Flags().GetString("snapshot")
		paramsJSON, _ := cmd.Flags().GetString("params")

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		e, err := engine.Open(cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		params := map[string]any{}
		if strings.TrimSpace(paramsJSON) != "" {
			if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
				return fmt.Errorf("parsing --params: %w", err)
			}
		}

		result, err := e.Executor.Invoke(context.Background(), projectID, toolName, types.SnapshotID(snapshotID), params)
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
	toolCmd.AddCommand(toolListCmd)
	toolCmd.AddCommand(toolCallCmd)

	toolCallCmd.Flags().String("project", "default", "Project ID to scope the cache key")
	toolCallCmd.Flags().String("snapshot", "", "Snapshot ID to resolve against (defaults to latest)")
	toolCallCmd.Flags().String("params", "{}", "JSON object of tool parameters")
}
