package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverAddr string
	authToken  string
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "orchestratorctl",
	Short: "Command-line client for the training-job orchestrator",
	Long: `orchestratorctl talks to a running orchestratord over its Orchestration API.

Examples:
  orchestratorctl job submit --kind=lora --config=configs/run1.yaml
  orchestratorctl job list --state=running
  orchestratorctl job cancel <job-id>
  orchestratorctl dataset create --name=web-corpus --query="machine learning" --format=jsonl
  orchestratorctl dataset get <dataset-id>`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func client() *Client {
	return NewClient(serverAddr, authToken)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://localhost:8080", "orchestratord base URL")
	rootCmd.PersistentFlags().StringVar(&authToken, "token", os.Getenv("FORGE_TOKEN"), "bearer token for the Orchestration API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print raw JSON responses")

	rootCmd.AddCommand(newJobCmd())
	rootCmd.AddCommand(newDatasetCmd())
}

func printResult(v any) {
	if jsonOutput {
		printJSON(v)
		return
	}
	fmt.Printf("%+v\n", v)
}
