package cmd

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowline-dev/flowline/internal/config"
	"github.com/flowline-dev/flowline/internal/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured model providers and check their reachability",
	Long: `List the model providers enabled in the configuration and ping
each one with a minimal generation request.

A provider reports "ok" when its endpoint answers, "unreachable" when
the endpoint cannot be contacted. Authentication and quota errors still
count as reachable since the endpoint responded.`,
	RunE: runProviders,
}

var providersTimeout time.Duration

func init() {
	rootCmd.AddCommand(providersCmd)

	providersCmd.Flags().DurationVar(&providersTimeout, "timeout", 10*time.Second,
		"Per-provider ping timeout")
}

func runProviders(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	registry := provider.NewRegistryFromConfig(&cfg.Providers)
	names := registry.List()
	if len(names) == 0 {
		cmd.Println("no providers enabled")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tSTATUS")
	for _, name := range names {
		p, err := registry.Get(name)
		if err != nil {
			continue
		}
		status := "ok"
		ctx, cancel := context.WithTimeout(context.Background(), providersTimeout)
		if err := p.Ping(ctx); err != nil {
			status = "unreachable: " + err.Error()
		}
		cancel()
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, providerModel(&cfg.Providers, name), status)
	}
	return w.Flush()
}

func providerModel(cfg *config.ProvidersConfig, name string) string {
	switch name {
	case "openai":
		return cfg.OpenAI.Model
	case "anthropic":
		return cfg.Anthropic.Model
	case "gemini":
		return cfg.Gemini.Model
	}
	return ""
}
