package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/support-desk/internal/config"
)

var version = "0.1.0"

func main() {
	config.LoadEnvFiles()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "supportctl",
		Short: "Operator tool for the support desk",
		Long: `supportctl mints development tokens and inspects escalation tickets.

Examples:
  supportctl token --id 42 --role customer
  supportctl token --id 7 --username alice --role staff --ttl 1h
  supportctl escalations list --status open
  supportctl escalations ack 01HZX3... --by alice`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newTokenCmd())
	root.AddCommand(newEscalationsCmd())
	return root
}
