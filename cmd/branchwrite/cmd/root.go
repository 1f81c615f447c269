// Copyright © 2018 One Concern

package cmd

import (
	"fmt"
	"log"

	"github.com/oneconcern/branchwrite/pkg/config"
	"github.com/oneconcern/branchwrite/pkg/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "branchwrite",
	Short: "branchwrite writes files to a branch-versioned repository, in transactions",
	Long: `branchwrite writes files to a branch-versioned repository, in transactions.

Files are uploaded, deleted, copied or moved within a write session, which commits all
operations at once, or none of them. Large sessions are committed in several steps.

The repository is kept in an object store: a local directory, a badger database or an S3 bucket.
`,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		metrics.Flush()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var (
	cfg    *config.Config
	logger *zap.Logger
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}

func init() {
	log.SetFlags(0)
	cobra.OnInitialize(initConfig)

	addConfigFlag(rootCmd)
	addLogLevelFlag(rootCmd)
	addMetricsFlag(rootCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	var err error
	cfg, err = config.Load(cliFlags.root.configFile)
	if err != nil {
		wrapFatalln("load configuration", err)
		return
	}
	if cliFlags.root.logLevel != "" {
		cfg.Logging.Level = cliFlags.root.logLevel
	}
	if cliFlags.root.metrics {
		cfg.Metrics.Enabled = true
	}

	logger, err = cfg.Logger()
	if err != nil {
		wrapFatalln("create logger", err)
		return
	}
	cfg.InitMetrics(logger)
	if !cfg.InitGate() {
		logger.Warn("the maximum number of concurrent transactions is already set: ignored",
			zap.Int("max_concurrent_transactions", cfg.Session.MaxConcurrentTransactions))
	}
}
