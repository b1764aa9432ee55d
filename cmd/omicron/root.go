package main

import (
	"github.com/spf13/cobra"

	"github.com/dsilvavinicius/omicron/internal/omlog"
)

var (
	logLevel string
	logJSON  bool
	logFile  string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "omicron",
		Short: "Out-of-core octree point-cloud construction and inspection",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return omlog.Init(omlog.Config{Level: logLevel, JSON: logJSON, File: logFile})
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", false, "emit structured JSON logs")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "rotate logs through this file instead of stderr")

	root.AddCommand(newSortCmd())
	root.AddCommand(newBuildCmd())
	root.AddCommand(newInspectCmd())
	return root
}
