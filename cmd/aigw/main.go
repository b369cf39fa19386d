// Command aigw exercises the gateway from the shell: validate a
// configuration, run a one-shot generation or embedding, or inspect the
// recorded per-model metrics.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ainqa-health/aigateway"
	"github.com/ainqa-health/aigateway/pkg/config"
	"github.com/ainqa-health/aigateway/pkg/model"
)

var (
	configPath string
	modelRef   string
	noFallback bool
	timeout    time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "aigw",
		Short:         "Multi-provider AI request gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config (environment still overrides)")

	root.AddCommand(validateCmd(), generateCmd(), embedCmd(), statsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initClient() (*aigateway.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return aigateway.Init(cfg)
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := initClient()
			if err != nil {
				return err
			}
			defer client.Close()
			fmt.Println("configuration ok; providers:", client.Registry.Providers())
			return nil
		},
	}
}

func override() (*model.ModelConfig, error) {
	if modelRef == "" {
		return nil, nil
	}
	mc, err := config.ParseModelRef(modelRef)
	if err != nil {
		return nil, err
	}
	return &mc, nil
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Run a one-shot generation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := initClient()
			if err != nil {
				return err
			}
			defer client.Close()

			mc, err := override()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			result, err := client.Generation.Generate(ctx, model.GenerationRequest{
				Messages:        []model.Message{{"role": "user", "content": args[0]}},
				Model:           mc,
				DisableFallback: noFallback,
			})
			if err != nil {
				return err
			}
			fmt.Println(result.Text)
			fmt.Fprintf(os.Stderr, "model=%s/%s tokens=%d\n", result.Provider, result.ModelID, result.Usage.TotalTokens)
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelRef, "model", "m", "", "provider/model override")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "surface the primary failure without trying the fallback")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")
	return cmd
}

func embedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "embed [text...]",
		Short: "Embed one or more inputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := initClient()
			if err != nil {
				return err
			}
			defer client.Close()

			mc, err := override()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()

			result, err := client.Embedding.Embed(ctx, model.EmbeddingRequest{
				Input:           args,
				Model:           mc,
				DisableFallback: noFallback,
			})
			if err != nil {
				return err
			}
			for i, embedding := range result.Embeddings {
				fmt.Printf("input %d: %d dimensions\n", i, len(embedding))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&modelRef, "model", "m", "", "provider/model override")
	cmd.Flags().BoolVar(&noFallback, "no-fallback", false, "surface the primary failure without trying the fallback")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "request timeout")
	return cmd
}

func statsCmd() *cobra.Command {
	var lastN int64
	cmd := &cobra.Command{
		Use:   "stats [provider/model]",
		Short: "Show recorded latency and error statistics for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := initClient()
			if err != nil {
				return err
			}
			defer client.Close()

			if client.Metrics == nil {
				return fmt.Errorf("metrics tracking is not configured (set REDIS_ADDR)")
			}

			ctx := context.Background()
			avg, err := client.Metrics.AverageLatency(ctx, args[0], lastN)
			if err != nil {
				return err
			}
			percentages, err := client.Metrics.ErrorPercentages(ctx, args[0], lastN)
			if err != nil {
				return err
			}

			fmt.Printf("model %s over last %d calls:\n", args[0], lastN)
			fmt.Printf("  avg latency: %.3fs\n", avg)
			if len(percentages) == 0 {
				fmt.Println("  no recorded errors")
				return nil
			}
			for code, pct := range percentages {
				fmt.Printf("  status %d: %.1f%%\n", code, pct)
			}
			return nil
		},
	}
	cmd.Flags().Int64VarP(&lastN, "last", "n", 100, "number of most recent calls to consider")
	return cmd
}
