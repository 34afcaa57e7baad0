package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/internal/detect"
	"github.com/slanderwatch/slanderwatch/internal/server"
	"github.com/slanderwatch/slanderwatch/models"
)

func runCMD() *cobra.Command {
	var (
		cfgPath   string
		query     string
		keywords  []string
		target    string
		describe  string
		platforms []string
		format    string
		output    string
	)

	var run = &cobra.Command{
		Use:   "run",
		Short: "Run a one-off slander detection and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if query == "" && describe == "" {
				return fmt.Errorf("--query or --describe required")
			}
			cfg := config.LoadConfig(cfgPath)

			det, err := server.BuildDetector(cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var plats []models.Platform
			for _, p := range platforms {
				switch models.Platform(p) {
				case models.PlatformYouTube, models.PlatformTwitter:
					plats = append(plats, models.Platform(p))
				default:
					return fmt.Errorf("unknown platform: %s", p)
				}
			}

			report, err := det.Run(ctx, detect.Request{
				Query:     query,
				Keywords:  keywords,
				Target:    target,
				Describe:  describe,
				Platforms: plats,
			})
			if err != nil {
				return err
			}

			rendered, err := detect.Render(report, format)
			if err != nil {
				return err
			}
			if output != "" {
				return os.WriteFile(output, []byte(rendered), 0o644)
			}
			fmt.Println(rendered)
			return nil
		},
	}

	run.Flags().StringVarP(&query, "query", "q", "", "literal search query (usually the person's name)")
	run.Flags().StringSliceVarP(&keywords, "keywords", "k", nil, "extra keywords appended to the query")
	run.Flags().StringVar(&target, "target", "", "person under analysis (defaults to --query)")
	run.Flags().StringVar(&describe, "describe", "", "natural-language description; search queries are generated by the LLM")
	run.Flags().StringSliceVar(&platforms, "platforms", nil, "platforms to search (youtube, twitter; default all)")
	run.Flags().StringVarP(&format, "format", "f", "markdown", "report format: markdown, yaml or json")
	run.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	run.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return run
}
