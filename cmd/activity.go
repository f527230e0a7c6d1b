package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/naka-gawa/github-activity/internal/logger"
	"github.com/spf13/cobra"
)

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Fetches a GitHub user's repositories and recent commits as JSON",
	Long:  `Fetches the public repositories of a GitHub user, loads the recent commits of each repository, and outputs the result in JSON format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		// Logs are discarded unless --verbose is given, so stdout carries only JSON.
		verbose, _ := cmd.Flags().GetBool("verbose")
		level, _ := cmd.Flags().GetString("log-level")
		if level == "" {
			level = cfg.Log.Level
		}
		var out io.Writer = io.Discard
		if verbose {
			out = os.Stderr
			if level == "info" {
				level = "debug"
			}
		}
		log := logger.New(level, cfg.Log.Format, out)

		user, _ := cmd.Flags().GetString("user")
		pipeline, err := newActivityPipeline(cfg, log)
		if err != nil {
			return err
		}

		report, err := pipeline.FetchUserActivity(cmd.Context(), user)
		if err != nil {
			return fmt.Errorf("failed to fetch activity: %w", err)
		}

		// Marshal the results into a pretty-printed JSON string.
		jsonData, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results to JSON: %w", err)
		}

		// Print the final JSON to standard output.
		fmt.Fprintln(cmd.OutOrStdout(), string(jsonData))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(activityCmd)
	activityCmd.Flags().StringP("user", "u", "", "Target GitHub user name (required)")
	activityCmd.MarkFlagRequired("user")
}
