// Command autoimply derives costume-tag implications for configured
// series and files them as bulk update requests on Danbooru.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	// SQL drivers for the local mirror.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	verbose    bool
	log        *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "autoimply",
		Short:         "Costume tag implication bot for Danbooru",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setupLogger()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", "config.yaml", "path to the YAML config file")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newRunCmd(a))
	cmd.AddCommand(newSyncCmd(a))
	cmd.AddCommand(newScheduleCmd(a))
	return cmd
}

func (a *app) setupLogger() error {
	cfg := zap.NewProductionConfig()
	if a.verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	log, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	a.log = log
	return nil
}
