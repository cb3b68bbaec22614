package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/autodev/internal/core/config"
	redisclient "github.com/vietddude/autodev/internal/infra/redis"
)

var patternsLimit int

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Show the most frequent failure patterns and what recovered them",
	Run:   runPatterns,
}

func init() {
	patternsCmd.Flags().IntVar(&patternsLimit, "limit", 10, "number of patterns to show")
	rootCmd.AddCommand(patternsCmd)
}

func runPatterns(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.URL == "" {
		fmt.Println("Failure patterns require redis; set redis.url in the config")
		os.Exit(1)
	}

	ctx := context.Background()
	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	patterns, err := client.TopPatterns(ctx, patternsLimit)
	if err != nil {
		slog.Error("Failed to query patterns", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PATTERN\tCOUNT\tRECOVERED BY\tLAST SEEN")

	for _, p := range patterns {
		recovered := "-"
		if len(p.Strategies) > 0 {
			recovered = strings.Join(p.Strategies, ", ")
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
			p.Key, p.Count, recovered, p.LastSeen.Format("2006-01-02 15:04:05"))
	}
	_ = w.Flush()
}
