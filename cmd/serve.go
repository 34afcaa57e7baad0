package main

import (
	"github.com/spf13/cobra"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/internal/server"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string

	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server and watch scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if serveAddr == "" {
				serveAddr = getenv("SLANDERWATCH_HTTP_ADDR", "")
			}
			return server.Run(cfg, serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
