package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newJobCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Submit, inspect, and cancel training jobs",
	}
	cmd.AddCommand(newJobSubmitCmd())
	cmd.AddCommand(newJobGetCmd())
	cmd.AddCommand(newJobListCmd())
	cmd.AddCommand(newJobCancelCmd())
	return cmd
}

func newJobSubmitCmd() *cobra.Command {
	var kind, configRef, datasetRef string
	var priority int
	var tags []string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new training job",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"kind":        kind,
				"config_ref":  configRef,
				"dataset_ref": datasetRef,
				"priority":    priority,
				"tags":        tags,
			}
			var job map[string]any
			if err := client().do("POST", "/api/jobs", req, &job); err != nil {
				return err
			}
			printResult(job)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "job kind: lora, qlora, or continuous")
	cmd.Flags().StringVar(&configRef, "config", "", "training config reference")
	cmd.Flags().StringVar(&datasetRef, "dataset", "", "dataset reference")
	cmd.Flags().IntVar(&priority, "priority", 0, "scheduling priority")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "tag (repeatable)")
	cmd.MarkFlagRequired("kind")
	cmd.MarkFlagRequired("config")
	return cmd
}

func newJobGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <job-id>",
		Short: "Get a job's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job map[string]any
			if err := client().do("GET", "/api/jobs/"+args[0], nil, &job); err != nil {
				return err
			}
			printResult(job)
			return nil
		},
	}
}

func newJobListCmd() *cobra.Command {
	var state string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := fmt.Sprintf("/api/jobs?limit=%d", limit)
			if state != "" {
				path += "&state=" + state
			}
			var result map[string]any
			if err := client().do("GET", path, nil, &result); err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&state, "state", "", "filter by state")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum jobs to return")
	return cmd
}

func newJobCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or queued job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			if err := client().do("POST", "/api/jobs/"+args[0]+"/cancel", nil, &result); err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
}
