package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDatasetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Create and inspect dataset builds",
	}
	cmd.AddCommand(newDatasetCreateCmd())
	cmd.AddCommand(newDatasetGetCmd())
	cmd.AddCommand(newDatasetListCmd())
	return cmd
}

func newDatasetCreateCmd() *cobra.Command {
	var name, description, queryText string
	var topK int
	var minQuality float64
	var formats []string
	var dedup bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a dataset build from a search query",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{
				"name":        name,
				"description": description,
				"query": map[string]any{
					"query_text":        queryText,
					"top_k":             topK,
					"min_quality_score": minQuality,
					"dedup_enabled":     dedup,
				},
				"export_formats": formats,
			}
			var rec map[string]any
			if err := client().do("POST", "/api/datasets", req, &rec); err != nil {
				return err
			}
			printResult(rec)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "dataset name")
	cmd.Flags().StringVar(&description, "description", "", "dataset description")
	cmd.Flags().StringVar(&queryText, "query", "", "search query text")
	cmd.Flags().IntVar(&topK, "top-k", 100, "documents to request from the search backend")
	cmd.Flags().Float64Var(&minQuality, "min-quality", 0, "minimum quality score to keep a document")
	cmd.Flags().StringSliceVar(&formats, "format", []string{"jsonl"}, "export format (repeatable): jsonl, json, csv, parquet")
	cmd.Flags().BoolVar(&dedup, "dedup", true, "drop near-duplicate documents")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("query")
	return cmd
}

func newDatasetGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <dataset-id>",
		Short: "Get a dataset build's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rec map[string]any
			if err := client().do("GET", "/api/datasets/"+args[0], nil, &rec); err != nil {
				return err
			}
			printResult(rec)
			return nil
		},
	}
}

func newDatasetListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dataset builds",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			if err := client().do("GET", fmt.Sprintf("/api/datasets?limit=%d", limit), nil, &result); err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum datasets to return")
	return cmd
}
