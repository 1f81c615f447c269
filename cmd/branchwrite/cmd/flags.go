// Copyright © 2018 One Concern

package cmd

import (
	"github.com/docker/go-units"
	"github.com/spf13/cobra"
)

const defaultChunkSize = "4MB"

type flagsT struct {
	root struct {
		configFile string
		logLevel   string
		metrics    bool
	}
	write struct {
		branch      string
		message     string
		prefix      string
		chunkSize   string
		maxSize     int
		concurrency int
		dryRun      bool
	}
	read struct {
		lines  int
		offset int64
	}
	log struct {
		max int
	}
}

var cliFlags = flagsT{}

func addConfigFlag(cmd *cobra.Command) string {
	config := "config"
	cmd.PersistentFlags().StringVar(&cliFlags.root.configFile, config, "",
		"Path to a configuration file. Defaults to $BRANCHWRITE_CONFIG, or branchwrite.yaml in ., $HOME/.branchwrite or /etc/branchwrite")
	return config
}

func addLogLevelFlag(cmd *cobra.Command) string {
	logLevel := "loglevel"
	cmd.PersistentFlags().StringVar(&cliFlags.root.logLevel, logLevel, "", "The logging level: debug, info, warn, error or none. Overrides the configuration")
	return logLevel
}

func addMetricsFlag(cmd *cobra.Command) string {
	m := "metrics"
	cmd.PersistentFlags().BoolVar(&cliFlags.root.metrics, m, false, "Log collected metrics when the command completes")
	return m
}

func addBranchFlag(cmd *cobra.Command) string {
	branch := "branch"
	cmd.Flags().StringVar(&cliFlags.write.branch, branch, "main", "The branch to work on")
	return branch
}

func addMessageFlag(cmd *cobra.Command) string {
	message := "message"
	cmd.Flags().StringVarP(&cliFlags.write.message, message, "m", "", "The commit message")
	return message
}

func addPrefixFlag(cmd *cobra.Command) string {
	prefix := "prefix"
	cmd.Flags().StringVar(&cliFlags.write.prefix, prefix, "", "A path in the branch where to put uploaded files")
	return prefix
}

func addChunkSizeFlag(cmd *cobra.Command) string {
	chunkSize := "chunk-size"
	cmd.Flags().StringVar(&cliFlags.write.chunkSize, chunkSize, defaultChunkSize, "The size of each write, e.g. 512KB, 4MB")
	return chunkSize
}

func addMaxSizeFlag(cmd *cobra.Command) string {
	maxSize := "max-size-before-commit"
	cmd.Flags().IntVar(&cliFlags.write.maxSize, maxSize, 0,
		"The number of operations which triggers an intermediate commit. Overrides the configuration")
	return maxSize
}

func addConcurrencyFlag(cmd *cobra.Command, defaultConcurrency int) string {
	concurrency := "concurrency"
	cmd.Flags().IntVar(&cliFlags.write.concurrency, concurrency, defaultConcurrency, "The number of files uploaded in parallel")
	return concurrency
}

func addDryRunFlag(cmd *cobra.Command) string {
	dryRun := "dry-run"
	cmd.Flags().BoolVar(&cliFlags.write.dryRun, dryRun, false, "Apply all operations but do not commit them")
	return dryRun
}

func addLinesFlag(cmd *cobra.Command) string {
	lines := "lines"
	cmd.Flags().IntVar(&cliFlags.read.lines, lines, 0, "Only print that many lines")
	return lines
}

func addOffsetFlag(cmd *cobra.Command) string {
	offset := "offset"
	cmd.Flags().Int64Var(&cliFlags.read.offset, offset, 0, "Start reading at this offset. Negative offsets are relative to the end of the file")
	return offset
}

func addMaxFlag(cmd *cobra.Command) string {
	m := "max"
	cmd.Flags().IntVar(&cliFlags.log.max, m, 0, "The maximum number of commits to list. All commits are listed by default")
	return m
}

func chunkSize() (int, error) {
	size, err := units.RAMInBytes(cliFlags.write.chunkSize)
	if err != nil {
		return 0, err
	}
	if size <= 0 {
		size = 4 * units.MiB
	}
	return int(size), nil
}
