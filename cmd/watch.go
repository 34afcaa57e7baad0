package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/slanderwatch/slanderwatch/config"
	"github.com/slanderwatch/slanderwatch/internal/server"
	"github.com/slanderwatch/slanderwatch/internal/store"
	"github.com/slanderwatch/slanderwatch/models"
)

func watchCMD() *cobra.Command {
	var cfgPath string

	var watch = &cobra.Command{
		Use:   "watch",
		Short: "Manage scheduled watches",
	}
	watch.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	var (
		target   string
		keywords []string
		cronSpec string
	)
	var add = &cobra.Command{
		Use:   "add <query>",
		Short: "Register a watch that re-runs detection on a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := server.ValidateCronSpec(cronSpec); err != nil {
				return err
			}
			cfg := config.LoadConfig(cfgPath)
			st, err := store.New(cmd.Context(), cfg.Storage.Postgres)
			if err != nil {
				return err
			}
			defer st.DB.Close()

			id, err := st.CreateWatch(cmd.Context(), models.Watch{
				Query:    args[0],
				Target:   target,
				Keywords: keywords,
				CronSpec: cronSpec,
			})
			if err != nil {
				return err
			}
			fmt.Println(id)
			return nil
		},
	}
	add.Flags().StringVar(&target, "target", "", "person under analysis (defaults to query)")
	add.Flags().StringSliceVarP(&keywords, "keywords", "k", nil, "extra keywords appended to the query")
	add.Flags().StringVar(&cronSpec, "cron", "@daily", "schedule (@daily, @hourly or cron expression)")

	var list = &cobra.Command{
		Use:   "list",
		Short: "List registered watches",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			st, err := store.New(cmd.Context(), cfg.Storage.Postgres)
			if err != nil {
				return err
			}
			defer st.DB.Close()

			watches, err := st.ListWatches(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tQUERY\tCRON\tLAST RUN")
			for _, item := range watches {
				last := "never"
				if ts, err := st.LatestRunTime(cmd.Context(), item.ID); err == nil && ts != nil {
					last = ts.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.ID, item.Query, item.CronSpec, last)
			}
			return w.Flush()
		},
	}

	var rm = &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a watch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			st, err := store.New(cmd.Context(), cfg.Storage.Postgres)
			if err != nil {
				return err
			}
			defer st.DB.Close()
			return st.DeleteWatch(cmd.Context(), args[0])
		},
	}

	watch.AddCommand(add, list, rm)
	return watch
}
