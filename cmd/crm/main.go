package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "crm",
	Short: "CRM orchestration services",
	Long: `crm runs the orchestration layer of the CRM platform.
Every role is the same binary started with a different argument:
- gateway: the edge router on :5000 that forwards /api/* to the owning service.
- analytics and search: fan-out readers that merge several services into one response.
- invoices: invoices, the payment ledger and the reconciliation that keeps invoice status honest.
- tickets, tasks, hr: resource services that emit notifications as a side effect.
- auth, contacts, opportunities, products, documents: document collections.
- notifications: the email sender behind every side effect.
- all: every resource route in one process, for local development.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("CRM")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("addr", "", "listen address (overrides HTTP_ADDR)")
	rootCmd.PersistentFlags().Int64("node-id", 0, "snowflake node id (overrides NODE_ID)")
	_ = viper.BindPFlag("addr", rootCmd.PersistentFlags().Lookup("addr"))
	_ = viper.BindPFlag("node-id", rootCmd.PersistentFlags().Lookup("node-id"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(routesCmd())
}
