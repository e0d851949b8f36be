package main

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/spf13/cobra"
)

func routesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the gateway route table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if err := cfg.Validate(); err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Prefix", "Service", "Base URL"})
			for _, r := range cfg.Routes.Routes() {
				base := ""
				if ep, ok := cfg.Services.Lookup(r.Service); ok {
					base = ep.BaseURL
				}
				tw.AppendRow(table.Row{r.Prefix, r.Service, base})
			}
			tw.Render()
			return nil
		},
	}
}
