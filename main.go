package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/notewire/cmd"
	"github.com/mattsolo1/notewire/pkg/nwlog"
)

var dataDir string

func main() {
	rootCmd := &cobra.Command{
		Use:   "notewire",
		Short: "Sync a local note store with a remote Evernote-style service and transcode ENML",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", ".notewire", "Directory holding the local store and sync-engine state")

	var logLevel string
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		nwlog.Init(nwlog.Config{Level: nwlog.Level(logLevel)})
	}

	rootCmd.AddCommand(cmd.NewSyncCmd(nil, &dataDir))
	rootCmd.AddCommand(cmd.NewEnmlCmd())
	rootCmd.AddCommand(cmd.NewEnexCmd(&dataDir))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
