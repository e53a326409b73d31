// Package main is the gigconnect server and maintenance CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gigconnect/gigconnect/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "gigconnect",
		Short:         "Gig Connect ticket negotiation backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	root.AddCommand(
		newServeCommand(),
		newMailQueueCommand(),
		newSeedCommand(),
		newVersionCommand(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		configPath = os.Getenv("GIGCONNECT_CONFIG")
	}
	return config.Load(configPath)
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gigconnect %s\n", version)
		},
	}
}
