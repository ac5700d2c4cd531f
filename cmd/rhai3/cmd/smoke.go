package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/erwangranger/RHAI3-demo/pkg/inference"
)

var (
	smokeURL    string
	smokeModel  string
	smokePrompt string
	smokeJSON   bool
)

var smokeCmd = &cobra.Command{
	Use:   "smoke",
	Short: "Send a test prompt to the served model and report the round trip",
	Long: `Post one chat completion to the model's OpenAI-compatible endpoint and
report latency, the reply, and token usage. When the server omits usage
accounting the tokens are estimated locally.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if smokeURL == "" {
			return fmt.Errorf("--url is required (the served model route, e.g. https://granite.apps.cluster.example)")
		}

		client := inference.NewClient(smokeURL, smokeModel)

		if err := client.Health(ctx); err != nil {
			log.Printf("⚠️  Health probe failed, trying the completion anyway: %v", err)
		}

		report, err := client.Smoke(ctx, smokePrompt)
		if err != nil {
			return err
		}

		if smokeJSON {
			return printJSON(report)
		}

		log.Printf("✅ Model %q answered in %.2fs", report.Model, report.LatencySeconds)
		log.Printf("   Reply: %s", report.Reply)
		source := "reported by server"
		if report.UsageEstimated {
			source = "estimated locally"
		}
		log.Printf("   Tokens: %d prompt + %d completion = %d (%s)",
			report.PromptTokens, report.CompletionTokens, report.TotalTokens, source)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(smokeCmd)

	smokeCmd.Flags().StringVar(&smokeURL, "url", getEnvOrDefault("MODEL_URL", ""), "Base URL of the served model")
	smokeCmd.Flags().StringVar(&smokeModel, "model", getEnvOrDefault("MODEL_NAME", "granite-3-1-8b-instruct"), "Served model id")
	smokeCmd.Flags().StringVar(&smokePrompt, "prompt", "", "Prompt to send (a short default is used when empty)")
	smokeCmd.Flags().BoolVar(&smokeJSON, "json", false, "Print JSON instead of log lines")
}
